// Package config contains all knobs and defaults used to configure the partitioner when it runs
// as a command.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	DefaultMaxIterations      = 100
	DefaultMaxConcurrency     = 4
	DefaultStoreRetries       = 3
	DefaultStoreRetryInterval = 50 * time.Millisecond

	DefaultTableCacheSize     = 1000
	DefaultForeignKeyCacheTTL = time.Minute
)

var engines = []string{"memory", "sqlite", "postgres", "mysql"}

type DatastoreMetricsConfig struct {
	// Enabled enables export of the Datastore metrics.
	Enabled bool
}

// DatastoreConfig defines the datastore the partitioner reads records from and writes partitions to.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'memory', 'sqlite', 'postgres', 'mysql')
	Engine   string
	URI      string
	Username string
	Password string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections to the datastore in the idle connection
	// pool.
	MaxIdleConns int

	// ConnMaxIdleTime is the maximum amount of time a connection to the datastore may be idle.
	ConnMaxIdleTime time.Duration

	// ConnMaxLifetime is the maximum amount of time a connection to the datastore may be reused.
	ConnMaxLifetime time.Duration

	// TableCacheSize is the number of table directory entries kept in memory.
	TableCacheSize int64

	// ForeignKeyCacheTTL is how long the foreign keys read from the database catalog are reused.
	ForeignKeyCacheTTL time.Duration

	// Metrics is configuration for the Datastore metrics.
	Metrics DatastoreMetricsConfig
}

// LogConfig defines the log output. For production we recommend using the 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string

	// Format of the timestamp in the log output (e.g. 'Unix'(default) or 'ISO8601')
	TimestampFormat string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

// PartitionerConfig bounds the work done for one partition.
type PartitionerConfig struct {
	// MaxIterations is the number of closure computations after which a configuration that still
	// does not yield a consistent partition is given up.
	MaxIterations int

	// MaxConcurrency is the number of configurations processed at the same time.
	MaxConcurrency int

	// OldestFirst reads records in ascending id order.
	OldestFirst bool

	// StoreRetries is how often a partition is recomputed and stored again when some of its
	// records were partitioned concurrently.
	StoreRetries       uint64
	StoreRetryInterval time.Duration
}

type Config struct {
	Datastore   DatastoreConfig
	Log         LogConfig
	Trace       TraceConfig
	Partitioner PartitionerConfig
}

func (cfg *Config) Verify() error {
	if !slices.Contains(engines, cfg.Datastore.Engine) {
		return fmt.Errorf("config 'datastore.engine' must be one of %v", engines)
	}

	if cfg.Datastore.Engine != "memory" && cfg.Datastore.URI == "" {
		return fmt.Errorf("config 'datastore.uri' must be set for engine '%s'", cfg.Datastore.Engine)
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" &&
		cfg.Log.Level != "panic" &&
		cfg.Log.Level != "fatal" {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Log.TimestampFormat != "Unix" && cfg.Log.TimestampFormat != "ISO8601" {
		return fmt.Errorf("config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']")
	}

	if cfg.Trace.Enabled {
		if cfg.Trace.OTLP.Endpoint == "" {
			return errors.New("config 'trace.otlp.endpoint' must be set when tracing is enabled")
		}
		if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
			return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
		}
	}

	if cfg.Partitioner.MaxIterations <= 0 {
		return errors.New("config 'partitioner.maxIterations' must be a positive integer")
	}

	if cfg.Partitioner.MaxConcurrency <= 0 {
		return errors.New("config 'partitioner.maxConcurrency' must be a positive integer")
	}

	if cfg.Partitioner.StoreRetryInterval < 0 {
		return errors.New("config 'partitioner.storeRetryInterval' must be a non-negative duration")
	}

	return nil
}

// DefaultConfig is the partitioner's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Datastore: DatastoreConfig{
			Engine:             "memory",
			MaxIdleConns:       10,
			MaxOpenConns:       30,
			TableCacheSize:     DefaultTableCacheSize,
			ForeignKeyCacheTTL: DefaultForeignKeyCacheTTL,
		},
		Log: LogConfig{
			Format:          "text",
			Level:           "info",
			TimestampFormat: "Unix",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
				TLS: OTLPTraceTLSConfig{
					Enabled: false,
				},
			},
			SampleRatio: 0.2,
		},
		Partitioner: PartitionerConfig{
			MaxIterations:      DefaultMaxIterations,
			MaxConcurrency:     DefaultMaxConcurrency,
			OldestFirst:        true,
			StoreRetries:       DefaultStoreRetries,
			StoreRetryInterval: DefaultStoreRetryInterval,
		},
	}
}
