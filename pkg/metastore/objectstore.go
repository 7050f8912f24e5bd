package metastore

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned when a referenced table does not exist.
var ErrTableNotFound = errors.New("table not found")

// ErrPartitionValuesRequired is returned by the partial-value entry points
// when no partition values are supplied.
var ErrPartitionValuesRequired = errors.New("partition values required")

// ObjectStore is the partition-metadata surface of the catalog.
// The default implementation reads durable catalog state; the bridge
// decorates it and redirects linked tables to the warehouse.
//
// maxParts caps result sizes on the capped entry points; zero or a negative
// value means unlimited.
type ObjectStore interface {
	// GetTable returns the table record for ref.
	GetTable(ctx context.Context, ref TableRef) (*Table, error)

	// PartitionsByFilter returns partitions matching an encoded filter
	// expression over the table's partition key. The boolean result reports
	// whether the listing may include partitions the filter does not match
	// (or miss ones it does); callers must treat it as a completeness hint,
	// not an error.
	PartitionsByFilter(ctx context.Context, ref TableRef, filter []byte, defaultPartName string, maxParts int) ([]Partition, bool, error)

	// Partitions returns up to maxParts partitions of the table.
	Partitions(ctx context.Context, ref TableRef, maxParts int) ([]Partition, error)

	// PartitionNames returns up to maxParts "key=value" partition names.
	PartitionNames(ctx context.Context, ref TableRef, maxParts int) ([]string, error)

	// PartitionNamesByValues returns partition names matching the given
	// partial partition values.
	PartitionNamesByValues(ctx context.Context, ref TableRef, partVals []string, maxParts int) ([]string, error)

	// PartitionsWithAuth returns partitions matching the given partial
	// partition values, scoped to the requesting user and groups.
	PartitionsWithAuth(ctx context.Context, ref TableRef, partVals []string, maxParts int, user string, groups []string) ([]Partition, error)
}
