package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlcommon"
	"github.com/zhangwei5095/metasfresh/pkg/storage/test"
	storagefixtures "github.com/zhangwei5095/metasfresh/pkg/testfixtures/storage"
)

// seeder writes test rows with plain statements. Every row gets a NULL partition column.
type seeder struct {
	ds   *Datastore
	stbl sq.StatementBuilderType
}

var (
	_ test.Seeder     = (*seeder)(nil)
	_ test.BulkSeeder = (*seeder)(nil)
)

func newSeeder(ds *Datastore) *seeder {
	return &seeder{ds: ds, stbl: sq.StatementBuilder.RunWith(ds.DB())}
}

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

	res, err := s.stbl.Insert(table).Columns(columns...).Values(args...).RunWith(runner).ExecContext(ctx)
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
	_, err := s.stbl.
		Update(record.Table).
		SetMap(values).
		Where(sq.Eq{sqlcommon.KeyColumn(record.Table): record.ID}).
		ExecContext(ctx)
	return err
}

func (s *seeder) TableID(ctx context.Context, table string) (int64, error) {
	return s.ds.TableID(ctx, table)
}

// createSchemaStatements renders the tables without the partition column, which
// EnablePartitioning adds. The foreign keys follow once all tables exist.
func createSchemaStatements(schema []test.Table) []string {
	var stmts, fks []string
	for _, table := range schema {
		var sb strings.Builder
		fmt.Fprintf(&sb, "CREATE TABLE %s (\n\t%s BIGINT AUTO_INCREMENT PRIMARY KEY", table.Name, sqlcommon.KeyColumn(table.Name))
		for _, c := range table.Columns {
			fmt.Fprintf(&sb, ",\n\t%s BIGINT NULL", c.Name)
			fks = append(fks, fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s (%s)",
				table.Name, c.Name, c.References, sqlcommon.KeyColumn(c.References)))
		}
		if table.Polymorphic {
			fmt.Fprintf(&sb, ",\n\t%s BIGINT NULL,\n\t%s BIGINT NULL", refconfig.GenericTableColumn, refconfig.GenericRecordColumn)
		}
		sb.WriteString("\n)")
		stmts = append(stmts, sb.String())
	}
	return append(stmts, fks...)
}

func newTestDatastore(t *testing.T, container storagefixtures.DatastoreTestContainer) *Datastore {
	t.Helper()
	ctx := context.Background()

	ds, err := New(container.CreateDatabase(t), sqlcommon.NewConfig())
	require.NoError(t, err)
	t.Cleanup(ds.Close)

	for _, stmt := range createSchemaStatements(test.Schema) {
		_, err := ds.DB().ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	for _, table := range test.Schema {
		_, err = ds.EnablePartitioning(ctx, table.Name)
		require.NoError(t, err)
	}
	return ds
}

func TestMySQLDatastore(t *testing.T) {
	testDatastore := storagefixtures.RunDatastoreTestContainer(t, "mysql")
	require.Equal(t, int64(1), testDatastore.GetDatabaseSchemaVersion())

	test.RunAllTests(t, func(t *testing.T) (storage.Datastore, test.Seeder) {
		ds := newTestDatastore(t, testDatastore)
		return ds, newSeeder(ds)
	})
}

func TestMySQLForeignKeysFromCatalog(t *testing.T) {
	testDatastore := storagefixtures.RunDatastoreTestContainer(t, "mysql")
	ds := newTestDatastore(t, testDatastore)

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

func TestPrepareDSN(t *testing.T) {
	t.Run("no_override", func(t *testing.T) {
		uri := "root:secret@tcp(localhost:3306)/metasfresh"
		got, err := PrepareDSN(uri, sqlcommon.NewConfig())
		require.NoError(t, err)
		require.Equal(t, uri, got)
	})

	t.Run("override", func(t *testing.T) {
		got, err := PrepareDSN("root:secret@tcp(localhost:3306)/metasfresh", sqlcommon.NewConfig(
			sqlcommon.WithUsername("archiver"),
			sqlcommon.WithPassword("other"),
		))
		require.NoError(t, err)

		dsn, err := mysql.ParseDSN(got)
		require.NoError(t, err)
		require.Equal(t, "archiver", dsn.User)
		require.Equal(t, "other", dsn.Passwd)
		require.Equal(t, "metasfresh", dsn.DBName)
		require.Equal(t, "localhost:3306", dsn.Addr)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := PrepareDSN("not a dsn", sqlcommon.NewConfig(sqlcommon.WithUsername("archiver")))
		require.Error(t, err)
	})
}

func TestHandleSQLError(t *testing.T) {
	require.ErrorIs(t, HandleSQLError(sql.ErrNoRows), storage.ErrNotFound)
	require.ErrorIs(t, HandleSQLError(&mysql.MySQLError{Number: errDuplicateEntry}), storage.ErrCollision)
	require.ErrorIs(t, HandleSQLError(context.Canceled), storage.ErrCancelled)

	unknownColumn := &mysql.MySQLError{Number: 1054, Message: "Unknown column 'dlm_partition_id'"}
	err := HandleSQLError(unknownColumn)
	require.NotErrorIs(t, err, storage.ErrCollision)
	require.ErrorIs(t, err, unknownColumn)

	cause := errors.New("bad connection")
	require.ErrorIs(t, HandleSQLError(cause), cause)
}
