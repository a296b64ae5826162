package util

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/internal/config"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
	"github.com/zhangwei5095/metasfresh/pkg/storage/memory"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlite"
)

func newCommand(t *testing.T, run func(cfg *config.Config)) *cobra.Command {
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.dlm")

	command := &cobra.Command{
		Use: "test",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := ReadConfig()
			require.NoError(t, err)
			run(cfg)
			return nil
		},
	}
	BindDatastoreFlags(command)
	return command
}

func TestReadConfigDefaults(t *testing.T) {
	PrepareTempConfigDir(t)

	command := newCommand(t, func(cfg *config.Config) {
		require.Equal(t, config.DefaultConfig(), cfg)
	})
	command.SetArgs([]string{})
	require.NoError(t, command.Execute())
}

func TestReadConfigPrecedence(t *testing.T) {
	PrepareTempConfigFile(t, `datastore:
    engine: postgres
    uri: postgres://localhost:5432/dlm
    maxOpenConns: 5
log:
    level: debug
partitioner:
    maxIterations: 7
    oldestFirst: false
`)
	t.Setenv("DLM_DATASTORE_URI", "postgres://db:5432/dlm")

	command := newCommand(t, func(cfg *config.Config) {
		require.Equal(t, "postgres", cfg.Datastore.Engine)
		require.Equal(t, "postgres://db:5432/dlm", cfg.Datastore.URI)
		require.Equal(t, 5, cfg.Datastore.MaxOpenConns)
		require.Equal(t, 20*time.Second, cfg.Datastore.ConnMaxIdleTime)
		require.Equal(t, "warn", cfg.Log.Level)
		require.Equal(t, 7, cfg.Partitioner.MaxIterations)
		require.False(t, cfg.Partitioner.OldestFirst)
		require.NoError(t, cfg.Verify())
	})
	command.SetArgs([]string{"--log-level", "warn", "--datastore-conn-max-idle-time", "20s"})
	require.NoError(t, command.Execute())
}

func TestReadConfigInvalidFile(t *testing.T) {
	PrepareTempConfigFile(t, "datastore: [")

	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.dlm")

	_, err := ReadConfig()
	require.ErrorContains(t, err, "failed to load config")
}

func TestNewDatastore(t *testing.T) {
	log := logger.NewNoopLogger()

	t.Run("memory", func(t *testing.T) {
		ds, err := NewDatastore(config.DatastoreConfig{Engine: "memory"}, log)
		require.NoError(t, err)
		defer ds.Close()
		require.IsType(t, &memory.MemoryBackend{}, ds)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.DefaultConfig().Datastore
		cfg.Engine = "sqlite"
		cfg.URI = "file:" + filepath.Join(t.TempDir(), "dlm.db")

		ds, err := NewDatastore(cfg, log)
		require.NoError(t, err)
		defer ds.Close()
		require.IsType(t, &sqlite.Datastore{}, ds)

		status, err := ds.IsReady(context.Background())
		require.NoError(t, err)
		require.False(t, status.IsReady)
	})

	t.Run("unsupported", func(t *testing.T) {
		ds, err := NewDatastore(config.DatastoreConfig{Engine: "oracle"}, log)
		require.ErrorContains(t, err, "unsupported")
		require.Nil(t, ds)
	})

	t.Run("failed_constructor_returns_nil_interface", func(t *testing.T) {
		for _, cfg := range []config.DatastoreConfig{
			{Engine: "sqlite", URI: "file:dlm.db?%zz"},
			{Engine: "postgres", URI: "postgres://%zz", Username: "dlm"},
			{Engine: "mysql", URI: "not a dsn", Username: "dlm"},
		} {
			ds, err := NewDatastore(cfg, log)
			require.Error(t, err, cfg.Engine)
			// compares the interface itself, a typed nil pointer would not be equal
			require.True(t, ds == nil, "%s: got %#v", cfg.Engine, ds)
		}
	})
}
