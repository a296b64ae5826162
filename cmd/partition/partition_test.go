package partition

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/cmd"
	"github.com/zhangwei5095/metasfresh/cmd/util"
	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlcommon"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlite"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlite/migrations"
)

var schema = []string{
	`CREATE TABLE c_order (c_order_id INTEGER PRIMARY KEY AUTOINCREMENT)`,
	`CREATE TABLE c_orderline (
		c_orderline_id INTEGER PRIMARY KEY AUTOINCREMENT,
		c_order_id INTEGER NULL REFERENCES c_order (c_order_id)
	)`,
	`CREATE TABLE c_invoice (
		c_invoice_id INTEGER PRIMARY KEY AUTOINCREMENT,
		c_order_id INTEGER NULL REFERENCES c_order (c_order_id)
	)`,
}

// prepareDatabase creates a migrated sqlite database with one order, its line and its invoice.
func prepareDatabase(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()

	dbFile := filepath.Join(t.TempDir(), "dlm.db")
	uri := "file:" + dbFile
	ds, err := sqlite.New(uri, sqlcommon.NewConfig())
	require.NoError(t, err)
	defer ds.Close()

	_, err = migrations.Migrations.Run(ctx, ds.DB())
	require.NoError(t, err)

	for _, stmt := range schema {
		_, err := ds.DB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	for _, table := range []string{"c_order", "c_orderline", "c_invoice"} {
		_, err := ds.EnablePartitioning(ctx, table)
		require.NoError(t, err)
	}

	_, err = ds.DB().ExecContext(ctx, `INSERT INTO c_order (c_order_id) VALUES (1)`)
	require.NoError(t, err)
	_, err = ds.DB().ExecContext(ctx, `INSERT INTO c_orderline (c_orderline_id, c_order_id) VALUES (1, 1)`)
	require.NoError(t, err)
	_, err = ds.DB().ExecContext(ctx, `INSERT INTO c_invoice (c_invoice_id, c_order_id) VALUES (1, 1)`)
	require.NoError(t, err)

	return uri, dbFile
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "orders.yml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

const orderConfig = `lines:
  - table: c_order
  - table: c_orderline
    references:
      - column: c_order_id
        table: c_order
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCommand()
	root.AddCommand(NewPartitionCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"partition", "--log-level", "none"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPartitionCommand(t *testing.T) {
	util.PrepareTempConfigDir(t)
	uri, _ := prepareDatabase(t)
	file := writeConfig(t, orderConfig)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t,
		"--datastore-engine", "sqlite",
		"--datastore-uri", uri,
		"--output", outDir,
		file,
	)
	require.NoError(t, err)
	require.Contains(t, out, "with 3 records")
	require.Contains(t, out, "c_invoice: 1")
	require.Contains(t, out, "c_invoice.c_order_id->c_order")

	augmented, err := refconfig.ParseFile(filepath.Join(outDir, "orders.yaml"))
	require.NoError(t, err)
	require.NotNil(t, augmented.Line("c_invoice").Reference("c_order_id", "c_order"))

	ds, err := sqlite.New(uri, sqlcommon.NewConfig())
	require.NoError(t, err)
	defer ds.Close()

	iter, err := ds.ReadUnpartitioned(context.Background(), "c_order", storage.ReadUnpartitionedOptions{})
	require.NoError(t, err)
	records, err := storage.Collect(context.Background(), iter)
	require.NoError(t, err)
	require.Empty(t, records)

	// nothing left to partition
	out, err = execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, file)
	require.NoError(t, err)
	require.Contains(t, out, "no unpartitioned records")
}

func TestPartitionCommandDryRun(t *testing.T) {
	util.PrepareTempConfigDir(t)
	uri, _ := prepareDatabase(t)
	file := writeConfig(t, orderConfig)

	out, err := execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, "--dry-run", file)
	require.NoError(t, err)
	require.Contains(t, out, "partition (not stored) with 3 records")

	out, err = execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, "--dry-run", file)
	require.NoError(t, err)
	require.Contains(t, out, "with 3 records")
}

func TestPartitionCommandNoConvergence(t *testing.T) {
	util.PrepareTempConfigDir(t)
	uri, _ := prepareDatabase(t)
	file := writeConfig(t, orderConfig)

	_, err := execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, "--max-iterations", "1", file)
	require.ErrorContains(t, err, "max-iterations")
}

func TestPartitionCommandErrors(t *testing.T) {
	util.PrepareTempConfigDir(t)

	t.Run("no_args", func(t *testing.T) {
		_, err := execute(t)
		require.Error(t, err)
	})

	t.Run("invalid_config", func(t *testing.T) {
		file := writeConfig(t, "lines:\n  - table: ''\n")
		_, err := execute(t, "--datastore-engine", "memory", file)
		require.ErrorContains(t, err, "orders.yml")
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := execute(t, "--datastore-engine", "memory", filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
	})

	t.Run("not_migrated", func(t *testing.T) {
		file := writeConfig(t, orderConfig)
		uri := "file:" + filepath.Join(t.TempDir(), "empty.db")
		_, err := execute(t, "--datastore-engine", "sqlite", "--datastore-uri", uri, file)
		require.ErrorContains(t, err, "not ready")
	})

	t.Run("sql_engine_without_uri", func(t *testing.T) {
		file := writeConfig(t, orderConfig)
		_, err := execute(t, "--datastore-engine", "postgres", file)
		require.ErrorContains(t, err, "datastore.uri")
	})
}

func TestPartitionCommandMemory(t *testing.T) {
	util.PrepareTempConfigDir(t)
	file := writeConfig(t, orderConfig)

	out, err := execute(t, "--datastore-engine", "memory", file)
	require.NoError(t, err)
	require.Contains(t, out, "no unpartitioned records")
}
