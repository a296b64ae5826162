package enabletable

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/cmd"
	"github.com/zhangwei5095/metasfresh/cmd/util"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlcommon"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlite"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlite/migrations"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCommand()
	root.AddCommand(NewEnableTableCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"enable-table", "--log-level", "none"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestEnableTableCommand(t *testing.T) {
	util.PrepareTempConfigDir(t)
	ctx := context.Background()

	uri := "file:" + filepath.Join(t.TempDir(), "dlm.db")
	ds, err := sqlite.New(uri, sqlcommon.NewConfig())
	require.NoError(t, err)
	_, err = migrations.Migrations.Run(ctx, ds.DB())
	require.NoError(t, err)
	_, err = ds.DB().ExecContext(ctx, `CREATE TABLE c_order (c_order_id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = ds.DB().ExecContext(ctx, `INSERT INTO c_order (c_order_id) VALUES (1)`)
	require.NoError(t, err)
	ds.Close()

	out, err := execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, "c_order")
	require.NoError(t, err)
	require.Contains(t, out, "c_order: table id")

	// enabling twice keeps the table id
	again, err := execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, "c_order")
	require.NoError(t, err)
	require.Equal(t, out, again)

	ds, err = sqlite.New(uri, sqlcommon.NewConfig())
	require.NoError(t, err)
	defer ds.Close()

	iter, err := ds.ReadUnpartitioned(ctx, "c_order", storage.ReadUnpartitionedOptions{})
	require.NoError(t, err)
	records, err := storage.Collect(ctx, iter)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestEnableTableCommandErrors(t *testing.T) {
	util.PrepareTempConfigDir(t)

	t.Run("memory", func(t *testing.T) {
		_, err := execute(t, "--datastore-engine", "memory", "c_order")
		require.ErrorContains(t, err, "does not support")
	})

	t.Run("unknown_table", func(t *testing.T) {
		uri := "file:" + filepath.Join(t.TempDir(), "dlm.db")
		ds, err := sqlite.New(uri, sqlcommon.NewConfig())
		require.NoError(t, err)
		_, err = migrations.Migrations.Run(context.Background(), ds.DB())
		require.NoError(t, err)
		ds.Close()

		_, err = execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, "c_order")
		require.ErrorContains(t, err, "enable c_order")
	})

	t.Run("no_args", func(t *testing.T) {
		_, err := execute(t)
		require.Error(t, err)
	})
}
