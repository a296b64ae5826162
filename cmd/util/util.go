// Package util provides common utilities for spf13/cobra CLI utilities
// that can be used for various commands within this project.
package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/internal/config"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/storage/memory"
	"github.com/zhangwei5095/metasfresh/pkg/storage/mysql"
	"github.com/zhangwei5095/metasfresh/pkg/storage/postgres"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlcommon"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlite"
)

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// BindDatastoreFlags registers the datastore and log flags shared by the commands that open a
// datastore and binds them to their config keys.
func BindDatastoreFlags(command *cobra.Command) {
	defaultConfig := config.DefaultConfig()
	flags := command.Flags()

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine that holds the records (e.g. 'memory', 'sqlite', 'postgres', 'mysql')")
	MustBindPFlag("datastore.engine", flags.Lookup("datastore-engine"))
	MustBindEnv("datastore.engine", "DLM_DATASTORE_ENGINE")

	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	MustBindPFlag("datastore.uri", flags.Lookup("datastore-uri"))
	MustBindEnv("datastore.uri", "DLM_DATASTORE_URI")

	flags.String("datastore-username", "", "the connection username to connect to the datastore (overwrites any username provided in the connection uri)")
	MustBindPFlag("datastore.username", flags.Lookup("datastore-username"))
	MustBindEnv("datastore.username", "DLM_DATASTORE_USERNAME")

	flags.String("datastore-password", "", "the connection password to connect to the datastore (overwrites any password provided in the connection uri)")
	MustBindPFlag("datastore.password", flags.Lookup("datastore-password"))
	MustBindEnv("datastore.password", "DLM_DATASTORE_PASSWORD")

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")
	MustBindPFlag("datastore.maxOpenConns", flags.Lookup("datastore-max-open-conns"))
	MustBindEnv("datastore.maxOpenConns", "DLM_DATASTORE_MAX_OPEN_CONNS", "DLM_DATASTORE_MAXOPENCONNS")

	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")
	MustBindPFlag("datastore.maxIdleConns", flags.Lookup("datastore-max-idle-conns"))
	MustBindEnv("datastore.maxIdleConns", "DLM_DATASTORE_MAX_IDLE_CONNS", "DLM_DATASTORE_MAXIDLECONNS")

	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")
	MustBindPFlag("datastore.connMaxIdleTime", flags.Lookup("datastore-conn-max-idle-time"))
	MustBindEnv("datastore.connMaxIdleTime", "DLM_DATASTORE_CONN_MAX_IDLE_TIME", "DLM_DATASTORE_CONNMAXIDLETIME")

	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")
	MustBindPFlag("datastore.connMaxLifetime", flags.Lookup("datastore-conn-max-lifetime"))
	MustBindEnv("datastore.connMaxLifetime", "DLM_DATASTORE_CONN_MAX_LIFETIME", "DLM_DATASTORE_CONNMAXLIFETIME")

	flags.Int64("datastore-table-cache-size", defaultConfig.Datastore.TableCacheSize, "the number of table directory entries to keep in memory")
	MustBindPFlag("datastore.tableCacheSize", flags.Lookup("datastore-table-cache-size"))
	MustBindEnv("datastore.tableCacheSize", "DLM_DATASTORE_TABLE_CACHE_SIZE", "DLM_DATASTORE_TABLECACHESIZE")

	flags.Duration("datastore-foreign-key-cache-ttl", defaultConfig.Datastore.ForeignKeyCacheTTL, "how long the foreign keys read from the database catalog are reused")
	MustBindPFlag("datastore.foreignKeyCacheTTL", flags.Lookup("datastore-foreign-key-cache-ttl"))
	MustBindEnv("datastore.foreignKeyCacheTTL", "DLM_DATASTORE_FOREIGN_KEY_CACHE_TTL", "DLM_DATASTORE_FOREIGNKEYCACHETTL")

	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics.Enabled, "enable/disable sql metrics")
	MustBindPFlag("datastore.metrics.enabled", flags.Lookup("datastore-metrics-enabled"))
	MustBindEnv("datastore.metrics.enabled", "DLM_DATASTORE_METRICS_ENABLED")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	MustBindPFlag("log.format", flags.Lookup("log-format"))
	MustBindEnv("log.format", "DLM_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	MustBindPFlag("log.level", flags.Lookup("log-level"))
	MustBindEnv("log.level", "DLM_LOG_LEVEL")

	flags.String("log-timestamp-format", defaultConfig.Log.TimestampFormat, "the timestamp format to use for log messages")
	MustBindPFlag("log.timestampFormat", flags.Lookup("log-timestamp-format"))
	MustBindEnv("log.timestampFormat", "DLM_LOG_TIMESTAMP_FORMAT")
}

// ReadConfig merges the config file, the environment and the bound flags into the default config.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// NewDatastore opens the datastore the config describes.
func NewDatastore(cfg config.DatastoreConfig, log logger.Logger) (storage.Datastore, error) {
	opts := []sqlcommon.DatastoreOption{
		sqlcommon.WithUsername(cfg.Username),
		sqlcommon.WithPassword(cfg.Password),
		sqlcommon.WithLogger(log),
		sqlcommon.WithMaxOpenConns(cfg.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(cfg.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(cfg.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(cfg.ConnMaxLifetime),
		sqlcommon.WithTableCacheSize(cfg.TableCacheSize),
		sqlcommon.WithForeignKeyCacheTTL(cfg.ForeignKeyCacheTTL),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, sqlcommon.WithMetrics())
	}
	dsCfg := sqlcommon.NewConfig(opts...)

	var (
		ds  storage.Datastore
		err error
	)

	// the constructors return typed pointers: assign them one by one so that a failed
	// constructor does not yield a non-nil interface holding a nil pointer
	switch cfg.Engine {
	case "memory":
		ds = memory.New()
	case "sqlite":
		var sqliteDS *sqlite.Datastore
		if sqliteDS, err = sqlite.New(cfg.URI, dsCfg); err == nil {
			ds = sqliteDS
		}
	case "postgres":
		var postgresDS *postgres.Datastore
		if postgresDS, err = postgres.New(cfg.URI, dsCfg); err == nil {
			ds = postgresDS
		}
	case "mysql":
		var mysqlDS *mysql.Datastore
		if mysqlDS, err = mysql.New(cfg.URI, dsCfg); err == nil {
			ds = mysqlDS
		}
	default:
		err = fmt.Errorf("storage engine '%s' is unsupported", cfg.Engine)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func PrepareTempConfigDir(t *testing.T) string {
	_, err := os.Stat("/etc/dlm/config.yaml")
	require.ErrorIs(t, err, os.ErrNotExist, "Config file at /etc/dlm/config.yaml would disturb test result.")

	homedir := t.TempDir()
	t.Setenv("HOME", homedir)

	confdir := filepath.Join(homedir, ".dlm")
	require.NoError(t, os.Mkdir(confdir, 0750))

	return confdir
}

func PrepareTempConfigFile(t *testing.T, config string) {
	confdir := PrepareTempConfigDir(t)
	confFile, err := os.Create(filepath.Join(confdir, "config.yaml"))
	require.NoError(t, err)
	_, err = confFile.WriteString(config)
	require.NoError(t, err)
	require.NoError(t, confFile.Close())
}
