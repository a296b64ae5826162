package sqlite

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"
	"modernc.org/sqlite"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlcommon"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlite/migrations"
	"github.com/zhangwei5095/metasfresh/pkg/storage/test"
)

// seeder writes test rows with plain statements. Every row gets a NULL partition column.
type seeder struct {
	ds *Datastore
}

var (
	_ test.Seeder     = (*seeder)(nil)
	_ test.BulkSeeder = (*seeder)(nil)
)

func (s *seeder) Insert(ctx context.Context, table string, values map[string]any) (*storage.Record, error) {
	return s.insert(ctx, s.ds.DB(), table, values)
}

// InsertMany inserts all rows in one transaction.
func (s *seeder) InsertMany(ctx context.Context, table string, values []map[string]any) ([]*storage.Record, error) {
	txn, err := s.ds.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = txn.Rollback()
	}()

	records := make([]*storage.Record, 0, len(values))
	for _, v := range values {
		r, err := s.insert(ctx, txn, table, v)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, txn.Commit()
}

func (s *seeder) insert(ctx context.Context, runner sq.BaseRunner, table string, values map[string]any) (*storage.Record, error) {
	columns := []string{storage.PartitionColumn}
	args := []any{nil}
	for _, column := range slices.Sorted(maps.Keys(values)) {
		columns = append(columns, column)
		args = append(args, values[column])
	}

	res, err := s.ds.stbl.Insert(table).Columns(columns...).Values(args...).RunWith(runner).ExecContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &storage.Record{Table: table, ID: id}, nil
}

func (s *seeder) Update(ctx context.Context, record *storage.Record, values map[string]any) error {
	_, err := s.ds.stbl.
		Update(record.Table).
		SetMap(values).
		Where(sq.Eq{sqlcommon.KeyColumn(record.Table): record.ID}).
		ExecContext(ctx)
	return err
}

func (s *seeder) TableID(ctx context.Context, table string) (int64, error) {
	return s.ds.TableID(ctx, table)
}

// createTableStatement renders the table without the partition column, which EnablePartitioning adds.
func createTableStatement(table test.Table) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n\t%s INTEGER PRIMARY KEY AUTOINCREMENT", table.Name, sqlcommon.KeyColumn(table.Name))
	for _, c := range table.Columns {
		fmt.Fprintf(&sb, ",\n\t%s INTEGER NULL REFERENCES %s (%s)", c.Name, c.References, sqlcommon.KeyColumn(c.References))
	}
	if table.Polymorphic {
		fmt.Fprintf(&sb, ",\n\t%s INTEGER NULL,\n\t%s INTEGER NULL", refconfig.GenericTableColumn, refconfig.GenericRecordColumn)
	}
	sb.WriteString("\n)")
	return sb.String()
}

func newTestDatastore(t *testing.T, opts ...sqlcommon.DatastoreOption) *Datastore {
	t.Helper()
	ctx := context.Background()

	uri := "file:" + filepath.Join(t.TempDir(), "dlm.db")
	ds, err := New(uri, sqlcommon.NewConfig(opts...))
	require.NoError(t, err)
	t.Cleanup(ds.Close)

	version, err := migrations.Migrations.Run(ctx, ds.DB())
	require.NoError(t, err)
	require.Equal(t, int64(1), version)

	for _, table := range test.Schema {
		_, err := ds.DB().ExecContext(ctx, createTableStatement(table))
		require.NoError(t, err)
		_, err = ds.EnablePartitioning(ctx, table.Name)
		require.NoError(t, err)
	}
	return ds
}

func TestSQLiteDatastore(t *testing.T) {
	test.RunAllTests(t, func(t *testing.T) (storage.Datastore, test.Seeder) {
		ds := newTestDatastore(t)
		return ds, &seeder{ds: ds}
	})
}

func TestStatementsAreChunked(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t, sqlcommon.WithMaxParamsPerStatement(4))
	s := &seeder{ds: ds}

	orders := make([]*storage.Record, 0, 10)
	for range 10 {
		r, err := s.Insert(ctx, "c_order", nil)
		require.NoError(t, err)
		orders = append(orders, r)
	}
	line, err := s.Insert(ctx, "c_orderline", map[string]any{"c_order_id": orders[9].ID})
	require.NoError(t, err)

	cfg := refconfig.NewBuilder().Line("c_order").MustBuild()

	result, err := ds.DryRun(ctx, &storage.Partition{Config: cfg, Records: orders})
	require.NoError(t, err)
	require.False(t, result.OK())
	require.Equal(t, "c_orderline", result.Violation.ReferencingTable)

	result, err = ds.DryRun(ctx, &storage.Partition{Config: cfg, Records: append(slices.Clone(orders), line)})
	require.NoError(t, err)
	require.True(t, result.OK())

	// orders[9] lands in the third chunk, after two chunks were updated
	_, err = ds.WritePartition(ctx, &storage.Partition{Config: cfg, Records: orders[9:]})
	require.NoError(t, err)
	_, err = ds.WritePartition(ctx, &storage.Partition{Config: cfg, Records: orders})
	require.ErrorIs(t, err, storage.ErrRecordsAlreadyPartitioned)
	require.ErrorContains(t, err, "1 of 2 rows of c_order")

	stored, err := ds.WritePartition(ctx, &storage.Partition{Config: cfg, Records: orders[:9]})
	require.NoError(t, err)
	got, err := ds.ReadPartition(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, got.Records, 9)
}

func TestSQLiteDatastoreAfterCloseIsNotReady(t *testing.T) {
	ds := newTestDatastore(t)
	ds.Close()
	status, err := ds.IsReady(context.Background())
	require.Error(t, err)
	require.False(t, status.IsReady)
}

func TestNotReadyWithoutMigrations(t *testing.T) {
	ds, err := New("file:"+filepath.Join(t.TempDir(), "dlm.db"), sqlcommon.NewConfig())
	require.NoError(t, err)
	defer ds.Close()

	status, err := ds.IsReady(context.Background())
	require.NoError(t, err)
	require.False(t, status.IsReady)
	require.Contains(t, status.Message, "requires migrations")
}

func TestEnablePartitioningIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)

	first, err := ds.TableID(ctx, "c_order")
	require.NoError(t, err)

	second, err := ds.EnablePartitioning(ctx, "c_order")
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := ds.TableID(ctx, "c_invoice")
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestForeignKeysFromCatalog(t *testing.T) {
	ds := newTestDatastore(t)

	fks, err := loadForeignKeys(context.Background(), ds.DB())
	require.NoError(t, err)

	got := make([]refconfig.TableReferenceDescriptor, 0, len(fks))
	for _, fk := range fks {
		require.True(t, fk.ReferencingPartitionable, fk.String())
		require.True(t, fk.ReferencedPartitionable, fk.String())
		got = append(got, fk.TableReferenceDescriptor)
	}
	require.ElementsMatch(t, test.ForeignKeys(), got)
}

func TestReadUnpartitionedRequiresPartitionColumn(t *testing.T) {
	ctx := context.Background()
	ds := newTestDatastore(t)
	_, err := ds.DB().ExecContext(ctx, "CREATE TABLE ad_user (ad_user_id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	iter, err := ds.ReadUnpartitioned(ctx, "ad_user", storage.ReadUnpartitionedOptions{})
	require.NoError(t, err)
	_, err = storage.Collect(ctx, iter)
	require.Error(t, err)
}

func TestInvalidIdentifier(t *testing.T) {
	ds := newTestDatastore(t)

	_, err := ds.ReadUnpartitioned(context.Background(), "c_order; DROP TABLE c_order", storage.ReadUnpartitionedOptions{})
	require.ErrorIs(t, err, storage.ErrInvalidIdentifier)
}

func TestPrepareDSN(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    []string
		notWant []string
	}{
		{
			name: "defaults",
			uri:  "file:dlm.db",
			want: []string{"journal_mode%28WAL%29", "busy_timeout%28100%29", "foreign_keys%281%29", "_txlock=immediate"},
		},
		{
			name:    "keeps_explicit_pragmas",
			uri:     "file:dlm.db?_pragma=journal_mode(DELETE)&_txlock=deferred",
			want:    []string{"journal_mode%28DELETE%29", "_txlock=deferred"},
			notWant: []string{"journal_mode%28WAL%29", "_txlock=immediate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrepareDSN(tt.uri)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(got, "file:dlm.db?"), got)
			for _, want := range tt.want {
				require.Contains(t, got, want)
			}
			for _, notWant := range tt.notWant {
				require.NotContains(t, got, notWant)
			}
		})
	}

	_, err := PrepareDSN("file:dlm.db?%zz")
	require.Error(t, err)
}

func TestHandleSQLError(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		err := HandleSQLError(fmt.Errorf("query: %w", context.Canceled))
		require.ErrorIs(t, err, storage.ErrCancelled)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("other", func(t *testing.T) {
		cause := errors.New("boom")
		err := HandleSQLError(cause)
		require.ErrorIs(t, err, cause)
		require.ErrorContains(t, err, "sql error")
	})

	t.Run("unique_constraint", func(t *testing.T) {
		ctx := context.Background()
		ds := newTestDatastore(t)
		_, err := ds.DB().ExecContext(ctx, "INSERT INTO dlm_table (table_name) VALUES ('c_order')")
		var sqliteErr *sqlite.Error
		require.ErrorAs(t, err, &sqliteErr)
		require.ErrorIs(t, HandleSQLError(err), storage.ErrCollision)
	})
}
