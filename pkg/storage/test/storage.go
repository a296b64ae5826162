// Package test holds the behavior every storage.Datastore must show, run against each backend
// by its own tests.
package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

// Column is a reference column of a Table.
type Column struct {
	Name       string
	References string
}

// Table describes one table of the schema the tests run against. Every table has the key column
// <name>_id and the partition column.
type Table struct {
	Name    string
	Columns []Column

	// Polymorphic tables carry ad_table_id and record_id without a foreign key.
	Polymorphic bool
}

// Schema is created by the backend before the tests insert data. Tables come before the tables
// referencing them, except for the a, b and c cycle.
var Schema = []Table{
	{Name: "c_order"},
	{Name: "c_orderline", Columns: []Column{{Name: "c_order_id", References: "c_order"}}},
	{Name: "c_invoice", Columns: []Column{
		{Name: "c_order_id", References: "c_order"},
		{Name: "reversal_id", References: "c_invoice"},
	}},
	{Name: "c_payment", Columns: []Column{{Name: "c_invoice_id", References: "c_invoice"}}},
	{Name: "r_request", Polymorphic: true},
	{Name: "a", Columns: []Column{{Name: "b_id", References: "b"}}},
	{Name: "b", Columns: []Column{{Name: "c_id", References: "c"}}},
	{Name: "c", Columns: []Column{{Name: "a_id", References: "a"}}},
}

// ForeignKeys returns the foreign keys declared by Schema.
func ForeignKeys() []refconfig.TableReferenceDescriptor {
	var fks []refconfig.TableReferenceDescriptor
	for _, t := range Schema {
		for _, c := range t.Columns {
			fks = append(fks, refconfig.TableReferenceDescriptor{
				ReferencingTable:  t.Name,
				ReferencingColumn: c.Name,
				ReferencedTable:   c.References,
			})
		}
	}
	return fks
}

// Seeder writes the test data. References are given as int64 ids, nil is null.
type Seeder interface {
	Insert(ctx context.Context, table string, values map[string]any) (*storage.Record, error)
	Update(ctx context.Context, record *storage.Record, values map[string]any) error

	// TableID returns the ad_table_id of the table.
	TableID(ctx context.Context, table string) (int64, error)
}

// BulkSeeder is implemented by seeders that insert many rows faster than one Insert call per row.
type BulkSeeder interface {
	InsertMany(ctx context.Context, table string, values []map[string]any) ([]*storage.Record, error)
}

// DatastoreFactory returns an empty datastore with Schema in place. The datastore is closed by
// the factory's cleanup.
type DatastoreFactory func(t *testing.T) (storage.Datastore, Seeder)

func RunAllTests(t *testing.T, newDatastore DatastoreFactory) {
	t.Run("TestDatastoreIsReady", func(t *testing.T) {
		ds, _ := newDatastore(t)
		status, err := ds.IsReady(context.Background())
		require.NoError(t, err)
		require.True(t, status.IsReady)
	})

	// Records.
	t.Run("TestReadUnpartitioned", func(t *testing.T) { ReadUnpartitionedTest(t, newDatastore) })
	t.Run("TestResolveReference", func(t *testing.T) { ResolveReferenceTest(t, newDatastore) })

	// Integrity.
	t.Run("TestDryRun", func(t *testing.T) { DryRunTest(t, newDatastore) })

	// Partitions.
	t.Run("TestWriteAndReadPartition", func(t *testing.T) { WriteAndReadPartitionTest(t, newDatastore) })
	t.Run("TestLargePartition", func(t *testing.T) { LargePartitionTest(t, newDatastore) })

	// Partitioner on top of the datastore.
	t.Run("TestCreatePartition", func(t *testing.T) { CreatePartitionTest(t, newDatastore) })
}

func insert(t *testing.T, s Seeder, table string, values map[string]any) *storage.Record {
	t.Helper()
	r, err := s.Insert(context.Background(), table, values)
	require.NoError(t, err)
	return r
}

func insertMany(t *testing.T, s Seeder, table string, values []map[string]any) []*storage.Record {
	t.Helper()
	if bulk, ok := s.(BulkSeeder); ok {
		records, err := bulk.InsertMany(context.Background(), table, values)
		require.NoError(t, err)
		require.Len(t, records, len(values))
		return records
	}

	records := make([]*storage.Record, 0, len(values))
	for _, v := range values {
		records = append(records, insert(t, s, table, v))
	}
	return records
}

func update(t *testing.T, s Seeder, r *storage.Record, values map[string]any) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), r, values))
}

func tableID(t *testing.T, s Seeder, table string) int64 {
	t.Helper()
	id, err := s.TableID(context.Background(), table)
	require.NoError(t, err)
	return id
}

// reference returns the reference of a single line configuration.
func reference(table, column, referencedTable string) *refconfig.Reference {
	cfg := refconfig.NewBuilder().Line(table).Ref(column, referencedTable).MustBuild()
	return cfg.Line(table).Reference(column, referencedTable)
}

func readUnpartitioned(t *testing.T, ds storage.Datastore, table string, oldestFirst bool) []int64 {
	t.Helper()
	ctx := context.Background()

	iter, err := ds.ReadUnpartitioned(ctx, table, storage.ReadUnpartitionedOptions{OldestFirst: oldestFirst})
	require.NoError(t, err)
	records, err := storage.Collect(ctx, iter)
	require.NoError(t, err)

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		require.Equal(t, table, r.Table)
		require.False(t, r.IsPartitioned())
		ids = append(ids, r.ID)
	}
	return ids
}

func writePartition(t *testing.T, ds storage.Datastore, records ...*storage.Record) *storage.Partition {
	t.Helper()
	cfg := refconfig.NewBuilder().Line(records[0].Table).MustBuild()
	stored, err := ds.WritePartition(context.Background(), &storage.Partition{Config: cfg, Records: records})
	require.NoError(t, err)
	return stored
}
