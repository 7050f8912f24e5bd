// Package postgres provides the default PostgreSQL-backed object store the
// bridge falls back to for tables that are not linked to the warehouse.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/datalinkhq/bqbridge/pkg/filter"
	"github.com/datalinkhq/bqbridge/pkg/metastore"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// tableColumns lists columns returned by table SELECT queries.
var tableColumns = []string{
	"catalog_name", "db_name", "table_name", "location",
	"input_format", "output_format", "serde_lib",
	"parameters", "partition_keys",
}

// Store implements metastore.ObjectStore using PostgreSQL.
type Store struct {
	db      *sql.DB
	decoder filter.Decoder
}

// New creates a new PostgreSQL object store.
func New(db *sql.DB) *Store {
	return &Store{db: db, decoder: filter.JSONDecoder{}}
}

// GetTable returns the table record for ref.
func (s *Store) GetTable(ctx context.Context, ref metastore.TableRef) (*metastore.Table, error) {
	query, args, err := psq.Select(tableColumns...).
		From("catalog_tables").
		Where(sq.Eq{"db_name": ref.Database, "table_name": ref.Name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building table select: %w", err)
	}

	var (
		table         metastore.Table
		paramsJSON    []byte
		partKeysJSON  []byte
		catalog       string
		db, name      string
		serdeLib      string
		inFmt, outFmt string
		tableLocation string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&catalog, &db, &name, &tableLocation,
		&inFmt, &outFmt, &serdeLib,
		&paramsJSON, &partKeysJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s: %w", ref.Key(), metastore.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", ref.Key(), err)
	}

	table.Ref = metastore.TableRef{Catalog: catalog, Database: db, Name: name}
	table.Storage = metastore.StorageDescriptor{
		Location:     tableLocation,
		InputFormat:  inFmt,
		OutputFormat: outFmt,
		SerDe:        metastore.SerDeInfo{SerializationLib: serdeLib},
	}
	if err := json.Unmarshal(paramsJSON, &table.Parameters); err != nil {
		return nil, fmt.Errorf("decoding parameters for %s: %w", ref.Key(), err)
	}
	if err := json.Unmarshal(partKeysJSON, &table.PartitionKeys); err != nil {
		return nil, fmt.Errorf("decoding partition keys for %s: %w", ref.Key(), err)
	}
	return &table, nil
}

// PartitionsByFilter returns partitions whose values satisfy the encoded
// filter. Filters the evaluator does not cover fall back to the unfiltered
// listing, flagged as possibly incomplete.
func (s *Store) PartitionsByFilter(ctx context.Context, ref metastore.TableRef, filterExpr []byte, _ string, maxParts int) ([]metastore.Partition, bool, error) {
	parts, err := s.Partitions(ctx, ref, 0)
	if err != nil {
		return nil, false, err
	}
	if len(filterExpr) == 0 {
		return capPartitions(parts, maxParts), false, nil
	}

	node, err := s.decoder.Decode(filterExpr)
	if err != nil {
		return nil, false, fmt.Errorf("decoding partition filter for %s: %w", ref.Key(), err)
	}

	matched := make([]metastore.Partition, 0, len(parts))
	for _, p := range parts {
		value := ""
		if len(p.Values) > 0 {
			value = p.Values[0]
		}
		ok, evalErr := evaluate(node, value)
		if evalErr != nil {
			// Unsupported predicate shape: over-return rather than drop.
			return capPartitions(parts, maxParts), true, nil
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return capPartitions(matched, maxParts), false, nil
}

// Partitions returns up to maxParts partitions ordered by name.
func (s *Store) Partitions(ctx context.Context, ref metastore.TableRef, maxParts int) ([]metastore.Partition, error) {
	table, err := s.GetTable(ctx, ref)
	if err != nil {
		return nil, err
	}

	qb := psq.Select("part_values", "location", "parameters").
		From("catalog_partitions").
		Where(sq.Eq{"db_name": ref.Database, "table_name": ref.Name}).
		OrderBy("part_name")
	if maxParts > 0 {
		qb = qb.Limit(uint64(maxParts))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building partition select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading partitions for %s: %w", ref.Key(), err)
	}
	defer func() { _ = rows.Close() }()

	var parts []metastore.Partition
	for rows.Next() {
		var (
			valuesJSON []byte
			location   string
			paramsJSON []byte
		)
		if err := rows.Scan(&valuesJSON, &location, &paramsJSON); err != nil {
			return nil, fmt.Errorf("scanning partition for %s: %w", ref.Key(), err)
		}
		p := metastore.Partition{
			Ref: table.Ref,
			Storage: metastore.StorageDescriptor{
				Location: location,
				SerDe:    table.Storage.SerDe,
			},
		}
		if err := json.Unmarshal(valuesJSON, &p.Values); err != nil {
			return nil, fmt.Errorf("decoding partition values for %s: %w", ref.Key(), err)
		}
		if err := json.Unmarshal(paramsJSON, &p.Parameters); err != nil {
			return nil, fmt.Errorf("decoding partition parameters for %s: %w", ref.Key(), err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading partitions for %s: %w", ref.Key(), err)
	}
	return parts, nil
}

// PartitionNames returns up to maxParts partition names ordered by name.
func (s *Store) PartitionNames(ctx context.Context, ref metastore.TableRef, maxParts int) ([]string, error) {
	qb := psq.Select("part_name").
		From("catalog_partitions").
		Where(sq.Eq{"db_name": ref.Database, "table_name": ref.Name}).
		OrderBy("part_name")
	if maxParts > 0 {
		qb = qb.Limit(uint64(maxParts))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building partition name select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading partition names for %s: %w", ref.Key(), err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning partition name for %s: %w", ref.Key(), err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading partition names for %s: %w", ref.Key(), err)
	}
	return names, nil
}

// PartitionNamesByValues returns partition names whose first value matches
// the first partial value.
func (s *Store) PartitionNamesByValues(ctx context.Context, ref metastore.TableRef, partVals []string, maxParts int) ([]string, error) {
	if len(partVals) == 0 {
		return nil, metastore.ErrPartitionValuesRequired
	}

	qb := psq.Select("part_name").
		From("catalog_partitions").
		Where(sq.Eq{"db_name": ref.Database, "table_name": ref.Name}).
		Where(sq.Expr("part_values->>0 = ?", partVals[0])).
		OrderBy("part_name")
	if maxParts > 0 {
		qb = qb.Limit(uint64(maxParts))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building partition name select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading partition names for %s: %w", ref.Key(), err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning partition name for %s: %w", ref.Key(), err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading partition names for %s: %w", ref.Key(), err)
	}
	return names, nil
}

// PartitionsWithAuth returns partitions matching the partial values. The
// default store keeps no partition-level grants, so user and groups are
// accepted for interface compatibility only.
func (s *Store) PartitionsWithAuth(ctx context.Context, ref metastore.TableRef, partVals []string, maxParts int, _ string, _ []string) ([]metastore.Partition, error) {
	if len(partVals) == 0 {
		return nil, metastore.ErrPartitionValuesRequired
	}

	parts, err := s.Partitions(ctx, ref, 0)
	if err != nil {
		return nil, err
	}
	matched := make([]metastore.Partition, 0, len(parts))
	for _, p := range parts {
		if len(p.Values) > 0 && p.Values[0] == partVals[0] {
			matched = append(matched, p)
		}
	}
	return capPartitions(matched, maxParts), nil
}

func capPartitions(parts []metastore.Partition, maxParts int) []metastore.Partition {
	if maxParts > 0 && len(parts) > maxParts {
		return parts[:maxParts]
	}
	return parts
}
