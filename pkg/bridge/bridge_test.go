package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalinkhq/bqbridge/pkg/config"
	"github.com/datalinkhq/bqbridge/pkg/filter"
	"github.com/datalinkhq/bqbridge/pkg/metastore"
	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// fakeStore is an in-memory ObjectStore with canned results that records
// delegated calls.
type fakeStore struct {
	tables map[string]*metastore.Table

	partitions []metastore.Partition
	names      []string
	incomplete bool
	err        error

	calls []string
}

func (f *fakeStore) GetTable(_ context.Context, ref metastore.TableRef) (*metastore.Table, error) {
	t, ok := f.tables[ref.Key()]
	if !ok {
		return nil, metastore.ErrTableNotFound
	}
	return t, nil
}

func (f *fakeStore) PartitionsByFilter(_ context.Context, _ metastore.TableRef, _ []byte, _ string, _ int) ([]metastore.Partition, bool, error) {
	f.calls = append(f.calls, "PartitionsByFilter")
	return f.partitions, f.incomplete, f.err
}

func (f *fakeStore) Partitions(_ context.Context, _ metastore.TableRef, _ int) ([]metastore.Partition, error) {
	f.calls = append(f.calls, "Partitions")
	return f.partitions, f.err
}

func (f *fakeStore) PartitionNames(_ context.Context, _ metastore.TableRef, _ int) ([]string, error) {
	f.calls = append(f.calls, "PartitionNames")
	return f.names, f.err
}

func (f *fakeStore) PartitionNamesByValues(_ context.Context, _ metastore.TableRef, _ []string, _ int) ([]string, error) {
	f.calls = append(f.calls, "PartitionNamesByValues")
	return f.names, f.err
}

func (f *fakeStore) PartitionsWithAuth(_ context.Context, _ metastore.TableRef, _ []string, _ int, _ string, _ []string) ([]metastore.Partition, error) {
	f.calls = append(f.calls, "PartitionsWithAuth")
	return f.partitions, f.err
}

// fakeWarehouse records queries and serves canned rows and metadata.
type fakeWarehouse struct {
	rows     [][]string
	queryErr error

	metadata    *warehouse.TableMetadata
	metadataErr error

	queries []string
}

func (f *fakeWarehouse) Query(_ context.Context, sql string) ([][]string, error) {
	f.queries = append(f.queries, sql)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeWarehouse) TableMetadata(_ context.Context, id warehouse.TableID) (*warehouse.TableMetadata, error) {
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	if f.metadata != nil {
		return f.metadata, nil
	}
	return &warehouse.TableMetadata{
		ID:               id,
		TimePartitioning: &warehouse.TimePartitioning{Type: warehouse.PartitioningDay, Field: "dt"},
	}, nil
}

func (f *fakeWarehouse) Close() error { return nil }

func linkedTable() *metastore.Table {
	return &metastore.Table{
		Ref: metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"},
		Parameters: map[string]string{
			config.StorageHandlerKey: config.StorageHandlerID,
			config.ProjectParam:      "proj",
			config.DatasetParam:      "ds",
			config.TableParam:        "events",
		},
		PartitionKeys: []metastore.Column{{Name: "dt", Type: "string"}},
		Storage: metastore.StorageDescriptor{
			Location: "gs://bucket/warehouse/events",
			SerDe:    metastore.SerDeInfo{SerializationLib: "avro"},
		},
	}
}

func plainTable() *metastore.Table {
	return &metastore.Table{
		Ref:           metastore.TableRef{Catalog: "hive", Database: "db", Name: "plain"},
		Parameters:    map[string]string{"comment": "not linked"},
		PartitionKeys: []metastore.Column{{Name: "dt", Type: "string"}},
		Storage:       metastore.StorageDescriptor{Location: "/warehouse/plain"},
	}
}

func newTestBridge(t *testing.T, store *fakeStore, wh *fakeWarehouse) *Bridge {
	t.Helper()
	b, err := New(store, wh, filter.JSONDecoder{})
	require.NoError(t, err)
	return b
}

func encodeFilter(t *testing.T, node filter.Node) []byte {
	t.Helper()
	data, err := filter.Encode(node)
	require.NoError(t, err)
	return data
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &fakeWarehouse{}, nil)
	require.Error(t, err)

	_, err = New(&fakeStore{}, nil, nil)
	require.Error(t, err)

	b, err := New(&fakeStore{}, &fakeWarehouse{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestBridge_PassThroughForNonLinkedTables(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "plain"}
	wantParts := []metastore.Partition{{Ref: ref, Values: []string{"2020-01-01"}}}
	wantNames := []string{"dt=2020-01-01"}

	store := &fakeStore{
		tables:     map[string]*metastore.Table{"db.plain": plainTable()},
		partitions: wantParts,
		names:      wantNames,
		incomplete: false,
	}
	wh := &fakeWarehouse{}
	b := newTestBridge(t, store, wh)
	ctx := context.Background()

	parts, incomplete, err := b.PartitionsByFilter(ctx, ref, []byte(`{"kind":"column","name":"dt"}`), "__DEFAULT__", 5)
	require.NoError(t, err)
	assert.Equal(t, wantParts, parts)
	assert.False(t, incomplete)

	parts, err = b.Partitions(ctx, ref, 5)
	require.NoError(t, err)
	assert.Equal(t, wantParts, parts)

	names, err := b.PartitionNames(ctx, ref, 5)
	require.NoError(t, err)
	assert.Equal(t, wantNames, names)

	names, err = b.PartitionNamesByValues(ctx, ref, []string{"2020-01-01"}, 5)
	require.NoError(t, err)
	assert.Equal(t, wantNames, names)

	parts, err = b.PartitionsWithAuth(ctx, ref, []string{"2020-01-01"}, 5, "alice", []string{"eng"})
	require.NoError(t, err)
	assert.Equal(t, wantParts, parts)

	assert.Equal(t, []string{
		"PartitionsByFilter", "Partitions", "PartitionNames",
		"PartitionNamesByValues", "PartitionsWithAuth",
	}, store.calls)
	assert.Empty(t, wh.queries, "non-linked tables must never reach the warehouse")
}

func TestBridge_PartitionNames(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{rows: [][]string{{"20230101"}, {"20230102"}}}
	b := newTestBridge(t, store, wh)

	names, err := b.PartitionNames(context.Background(), ref, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"dt=2023-01-01", "dt=2023-01-02"}, names)

	require.Len(t, wh.queries, 1)
	assert.Equal(t,
		"SELECT partition_id FROM `proj.ds.INFORMATION_SCHEMA.PARTITIONS` WHERE table_name = 'events' LIMIT 10",
		wh.queries[0])
	assert.Empty(t, store.calls)
}

func TestBridge_PartitionsByFilter(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{rows: [][]string{{"20230615"}}}
	b := newTestBridge(t, store, wh)

	expr := encodeFilter(t, &filter.Func{Op: filter.OpEqual, Children: []filter.Node{
		&filter.Column{Name: "dt"},
		&filter.Const{Type: filter.TypeString, Value: "2023-06-15"},
	}})

	parts, incomplete, err := b.PartitionsByFilter(context.Background(), ref, expr, "__DEFAULT__", 0)
	require.NoError(t, err)
	assert.True(t, incomplete, "linked-table filtered listings are always flagged incomplete")

	require.Len(t, wh.queries, 1)
	assert.Equal(t,
		"SELECT partition_id FROM `proj.ds.INFORMATION_SCHEMA.PARTITIONS` WHERE table_name = 'events' AND (partition_id = '20230615')",
		wh.queries[0])

	require.Len(t, parts, 1)
	assert.Equal(t, []string{"2023-06-15"}, parts[0].Values)
	assert.Equal(t, "gs://bucket/warehouse/events/dt=2023-06-15", parts[0].Storage.Location)
	assert.Equal(t, "avro", parts[0].Storage.SerDe.SerializationLib)
	assert.Equal(t, ref, parts[0].Ref)
	assert.NotNil(t, parts[0].Parameters)
}

func TestBridge_PartitionsByFilter_NoFilter(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{rows: [][]string{{"20230101"}}}
	b := newTestBridge(t, store, wh)

	parts, incomplete, err := b.PartitionsByFilter(context.Background(), ref, nil, "__DEFAULT__", 0)
	require.NoError(t, err)
	assert.True(t, incomplete)
	require.Len(t, parts, 1)
	assert.Equal(t,
		"SELECT partition_id FROM `proj.ds.INFORMATION_SCHEMA.PARTITIONS` WHERE table_name = 'events'",
		wh.queries[0])
}

func TestBridge_PartitionsByFilter_BadFilter(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{}
	b := newTestBridge(t, store, wh)

	_, _, err := b.PartitionsByFilter(context.Background(), ref, []byte(`{"kind":"between"}`), "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding partition filter")
	assert.Empty(t, wh.queries)
}

func TestBridge_Partitions(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{rows: [][]string{{"20230101"}, {"20230102"}}}
	b := newTestBridge(t, store, wh)

	parts, err := b.Partitions(context.Background(), ref, 2)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, []string{"2023-01-01"}, parts[0].Values)
	assert.Equal(t, []string{"2023-01-02"}, parts[1].Values)
	assert.Equal(t,
		"SELECT partition_id FROM `proj.ds.INFORMATION_SCHEMA.PARTITIONS` WHERE table_name = 'events' LIMIT 2",
		wh.queries[0])
}

func TestBridge_PartitionNamesByValues(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{rows: [][]string{{"20230615"}}}
	b := newTestBridge(t, store, wh)

	names, err := b.PartitionNamesByValues(context.Background(), ref, []string{"2023-06-15"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"dt=2023-06-15"}, names)
	assert.Equal(t,
		"SELECT partition_id FROM `proj.ds.INFORMATION_SCHEMA.PARTITIONS` WHERE table_name = 'events' AND (partition_id = '20230615') LIMIT 1",
		wh.queries[0])
}

func TestBridge_PartitionNamesByValues_MissingValues(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	b := newTestBridge(t, store, &fakeWarehouse{})

	_, err := b.PartitionNamesByValues(context.Background(), ref, nil, 1)
	require.ErrorIs(t, err, metastore.ErrPartitionValuesRequired)
}

func TestBridge_PartitionsWithAuth(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{rows: [][]string{{"20230615"}}}
	b := newTestBridge(t, store, wh)

	parts, err := b.PartitionsWithAuth(context.Background(), ref, []string{"2023-06-15"}, 0, "alice", []string{"eng"})
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, []string{"2023-06-15"}, parts[0].Values)
	assert.Equal(t,
		"SELECT partition_id FROM `proj.ds.INFORMATION_SCHEMA.PARTITIONS` WHERE table_name = 'events' AND (partition_id = '20230615')",
		wh.queries[0])
}

func TestBridge_NonDayPartitioning(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{
		rows: [][]string{{"2023060100"}, {"2023060101"}},
		metadata: &warehouse.TableMetadata{
			TimePartitioning: &warehouse.TimePartitioning{Type: warehouse.PartitioningHour, Field: "ts"},
		},
	}
	b := newTestBridge(t, store, wh)

	names, err := b.PartitionNames(context.Background(), ref, 0)
	require.NoError(t, err)
	assert.Empty(t, names, "non-day partitioning yields no catalog partitions")
}

func TestBridge_CorruptPartitionID(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	wh := &fakeWarehouse{rows: [][]string{{"not-a-date"}}}
	b := newTestBridge(t, store, wh)

	_, err := b.PartitionNames(context.Background(), ref, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing warehouse partition id")
}

func TestBridge_WarehouseErrorsPropagate(t *testing.T) {
	ref := metastore.TableRef{Catalog: "hive", Database: "db", Name: "events"}
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": linkedTable()}}
	whErr := errors.New("rpc unavailable")
	wh := &fakeWarehouse{queryErr: whErr}
	b := newTestBridge(t, store, wh)

	_, err := b.Partitions(context.Background(), ref, 0)
	require.ErrorIs(t, err, whErr)
}

func TestBridge_MissingLinkParameters(t *testing.T) {
	table := linkedTable()
	delete(table.Parameters, config.DatasetParam)
	ref := table.Ref
	store := &fakeStore{tables: map[string]*metastore.Table{"db.events": table}}
	b := newTestBridge(t, store, &fakeWarehouse{})

	_, err := b.Partitions(context.Background(), ref, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving warehouse table")
}

func TestBridge_TableResolutionErrorsPropagate(t *testing.T) {
	store := &fakeStore{tables: map[string]*metastore.Table{}}
	b := newTestBridge(t, store, &fakeWarehouse{})

	_, err := b.Partitions(context.Background(), metastore.TableRef{Database: "db", Name: "ghost"}, 0)
	require.ErrorIs(t, err, metastore.ErrTableNotFound)
}
