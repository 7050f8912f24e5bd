// Package bridge intercepts catalog partition queries for tables linked to
// the warehouse. Linked tables get their partition metadata synthesized from
// warehouse state; every other table is delegated untouched to the wrapped
// default store.
package bridge

import (
	"context"
	"fmt"

	"github.com/datalinkhq/bqbridge/pkg/config"
	"github.com/datalinkhq/bqbridge/pkg/filter"
	"github.com/datalinkhq/bqbridge/pkg/metastore"
	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// Bridge decorates a metastore.ObjectStore, redirecting partition metadata
// queries for linked tables to the warehouse.
type Bridge struct {
	fallback metastore.ObjectStore
	wh       warehouse.Client
	decoder  filter.Decoder
}

// New creates a Bridge wrapping the default object store.
func New(fallback metastore.ObjectStore, wh warehouse.Client, decoder filter.Decoder) (*Bridge, error) {
	if fallback == nil {
		return nil, fmt.Errorf("fallback object store is required")
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse client is required")
	}
	if decoder == nil {
		decoder = filter.JSONDecoder{}
	}
	return &Bridge{fallback: fallback, wh: wh, decoder: decoder}, nil
}

// GetTable delegates to the default store; table records themselves are not
// intercepted.
func (b *Bridge) GetTable(ctx context.Context, ref metastore.TableRef) (*metastore.Table, error) {
	return b.fallback.GetTable(ctx, ref)
}

// linkedTable resolves ref and returns the table if it is linked to the
// warehouse, or nil if it is an ordinary catalog table.
func (b *Bridge) linkedTable(ctx context.Context, ref metastore.TableRef) (*metastore.Table, error) {
	table, err := b.fallback.GetTable(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving table %s: %w", ref.Key(), err)
	}
	if table.Parameters[config.StorageHandlerKey] != config.StorageHandlerID {
		return nil, nil
	}
	return table, nil
}

// PartitionsByFilter returns partitions matching the encoded filter. For
// linked tables the result is always flagged as possibly incomplete because
// predicate translation covers only part of the engine's expression
// language; over-returning is preferred to silently dropping partitions.
func (b *Bridge) PartitionsByFilter(ctx context.Context, ref metastore.TableRef, filterExpr []byte, defaultPartName string, maxParts int) ([]metastore.Partition, bool, error) {
	table, err := b.linkedTable(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if table == nil {
		return b.fallback.PartitionsByFilter(ctx, ref, filterExpr, defaultPartName, maxParts)
	}

	var node filter.Node
	if len(filterExpr) > 0 {
		decoded, err := b.decoder.Decode(filterExpr)
		if err != nil {
			return nil, false, fmt.Errorf("decoding partition filter for %s: %w", ref.Key(), err)
		}
		node, err = filter.Translate(decoded)
		if err != nil {
			return nil, false, fmt.Errorf("translating partition filter for %s: %w", ref.Key(), err)
		}
	}

	parts, err := b.fetchPartitions(ctx, table, node, maxParts)
	if err != nil {
		return nil, false, err
	}
	return parts, true, nil
}

// Partitions returns up to maxParts partitions.
func (b *Bridge) Partitions(ctx context.Context, ref metastore.TableRef, maxParts int) ([]metastore.Partition, error) {
	table, err := b.linkedTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return b.fallback.Partitions(ctx, ref, maxParts)
	}
	return b.fetchPartitions(ctx, table, nil, maxParts)
}

// PartitionNames returns up to maxParts "key=value" partition names.
func (b *Bridge) PartitionNames(ctx context.Context, ref metastore.TableRef, maxParts int) ([]string, error) {
	table, err := b.linkedTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return b.fallback.PartitionNames(ctx, ref, maxParts)
	}

	key, err := partitionKey(table)
	if err != nil {
		return nil, err
	}
	values, err := b.fetchPartitionValues(ctx, table, nil, maxParts)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = metastore.PartName(key, v)
	}
	return names, nil
}

// PartitionNamesByValues returns partition names matching the given partial
// partition values.
func (b *Bridge) PartitionNamesByValues(ctx context.Context, ref metastore.TableRef, partVals []string, maxParts int) ([]string, error) {
	table, err := b.linkedTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return b.fallback.PartitionNamesByValues(ctx, ref, partVals, maxParts)
	}

	key, err := partitionKey(table)
	if err != nil {
		return nil, err
	}
	node, err := partitionValueFilter(key, partVals)
	if err != nil {
		return nil, err
	}
	values, err := b.fetchPartitionValues(ctx, table, node, maxParts)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = metastore.PartName(key, v)
	}
	return names, nil
}

// PartitionsWithAuth returns partitions matching the given partial partition
// values. The warehouse holds no per-user partition grants, so user and
// groups only apply on the fallback path.
func (b *Bridge) PartitionsWithAuth(ctx context.Context, ref metastore.TableRef, partVals []string, maxParts int, user string, groups []string) ([]metastore.Partition, error) {
	table, err := b.linkedTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return b.fallback.PartitionsWithAuth(ctx, ref, partVals, maxParts, user, groups)
	}

	key, err := partitionKey(table)
	if err != nil {
		return nil, err
	}
	node, err := partitionValueFilter(key, partVals)
	if err != nil {
		return nil, err
	}
	return b.fetchPartitions(ctx, table, node, maxParts)
}

// partitionValueFilter builds the translated equality filter for a partial
// partition value lookup. Single-column keys only.
func partitionValueFilter(key string, partVals []string) (filter.Node, error) {
	if len(partVals) == 0 {
		return nil, metastore.ErrPartitionValuesRequired
	}
	node := &filter.Func{Op: filter.OpEqual, Children: []filter.Node{
		&filter.Column{Name: key},
		&filter.Const{Type: filter.TypeString, Value: partVals[0]},
	}}
	return filter.Translate(node)
}

// partitionKey returns the table's single partition key name.
func partitionKey(table *metastore.Table) (string, error) {
	if len(table.PartitionKeys) == 0 {
		return "", fmt.Errorf("table %s has no partition keys", table.Ref.Key())
	}
	return table.PartitionKeys[0].Name, nil
}

// fetchPartitionValues queries the warehouse for partition ids matching the
// (already translated) filter and converts them to catalog partition values.
func (b *Bridge) fetchPartitionValues(ctx context.Context, table *metastore.Table, node filter.Node, maxParts int) ([]string, error) {
	id, err := config.TableIDFromParameters(table.Parameters)
	if err != nil {
		return nil, fmt.Errorf("resolving warehouse table for %s: %w", table.Ref.Key(), err)
	}

	rows, err := b.wh.Query(ctx, PartitionsQuery(id, node, maxParts))
	if err != nil {
		return nil, fmt.Errorf("listing warehouse partitions for %s: %w", table.Ref.Key(), err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			ids = append(ids, row[0])
		}
	}

	md, err := b.wh.TableMetadata(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching warehouse metadata for %s: %w", table.Ref.Key(), err)
	}
	return ConvertPartitionIDs(ids, md.TimePartitioning)
}

// fetchPartitions fetches partition values and synthesizes catalog partition
// records from them.
func (b *Bridge) fetchPartitions(ctx context.Context, table *metastore.Table, node filter.Node, maxParts int) ([]metastore.Partition, error) {
	key, err := partitionKey(table)
	if err != nil {
		return nil, err
	}
	values, err := b.fetchPartitionValues(ctx, table, node, maxParts)
	if err != nil {
		return nil, err
	}

	parts := make([]metastore.Partition, 0, len(values))
	for _, v := range values {
		parts = append(parts, metastore.Partition{
			Ref:        table.Ref,
			Values:     []string{v},
			Parameters: map[string]string{},
			Storage: metastore.StorageDescriptor{
				Location: metastore.PartitionLocation(table.Storage.Location, key, v),
				SerDe:    table.Storage.SerDe,
			},
		})
	}
	return parts, nil
}
