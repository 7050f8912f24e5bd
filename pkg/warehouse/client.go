// Package warehouse defines the client surface the bridge and the commit
// strategies need from the columnar warehouse. BigQuery implements this
// (pkg/warehouse/bigquery); tests use in-memory fakes.
package warehouse

import "context"

// TableID identifies a warehouse table.
type TableID struct {
	Project string
	Dataset string
	Table   string
}

// String returns the fully qualified "project.dataset.table" form.
func (id TableID) String() string {
	return id.Project + "." + id.Dataset + "." + id.Table
}

// PartitioningType is a warehouse time-partitioning granularity.
type PartitioningType string

// Time-partitioning granularities. Only day partitioning maps onto catalog
// partition values.
const (
	PartitioningHour  PartitioningType = "HOUR"
	PartitioningDay   PartitioningType = "DAY"
	PartitioningMonth PartitioningType = "MONTH"
	PartitioningYear  PartitioningType = "YEAR"
)

// TimePartitioning describes a table's native time partitioning.
type TimePartitioning struct {
	Type  PartitioningType
	Field string
}

// TableMetadata is the subset of warehouse table metadata the bridge needs.
type TableMetadata struct {
	ID               TableID
	TimePartitioning *TimePartitioning
}

// Client executes queries and reads table metadata from the warehouse.
type Client interface {
	// Query runs a SQL statement and returns all result rows as strings.
	Query(ctx context.Context, sql string) ([][]string, error)

	// TableMetadata fetches metadata for the given table.
	TableMetadata(ctx context.Context, id TableID) (*TableMetadata, error)

	// Close releases resources.
	Close() error
}

// StreamCommitter finalizes or discards pending write streams on a table.
// The direct write strategy depends on it.
type StreamCommitter interface {
	// CommitWriteStreams atomically commits the given pending streams.
	CommitWriteStreams(ctx context.Context, id TableID, streams []string) error

	// CancelWriteStreams finalizes the given streams without committing
	// them, discarding their buffered rows.
	CancelWriteStreams(ctx context.Context, id TableID, streams []string) error
}

// LoadRunner runs a batch load of staged objects into a table. The indirect
// write strategy depends on it.
type LoadRunner interface {
	// RunLoadJob loads the given source URIs into the table and waits for
	// the job to finish.
	RunLoadJob(ctx context.Context, id TableID, sourceURIs []string) error
}
