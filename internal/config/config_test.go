package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Verify())
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
		err    string
	}{
		{
			name:   "unknown_engine",
			modify: func(cfg *Config) { cfg.Datastore.Engine = "oracle" },
			err:    "datastore.engine",
		},
		{
			name:   "missing_uri",
			modify: func(cfg *Config) { cfg.Datastore.Engine = "postgres" },
			err:    "datastore.uri",
		},
		{
			name: "sql_with_uri",
			modify: func(cfg *Config) {
				cfg.Datastore.Engine = "sqlite"
				cfg.Datastore.URI = "file:dlm.db"
			},
		},
		{
			name:   "log_format",
			modify: func(cfg *Config) { cfg.Log.Format = "xml" },
			err:    "log.format",
		},
		{
			name:   "log_level",
			modify: func(cfg *Config) { cfg.Log.Level = "verbose" },
			err:    "log.level",
		},
		{
			name:   "log_timestamp_format",
			modify: func(cfg *Config) { cfg.Log.TimestampFormat = "RFC3339" },
			err:    "log.TimestampFormat",
		},
		{
			name: "trace_without_endpoint",
			modify: func(cfg *Config) {
				cfg.Trace.Enabled = true
				cfg.Trace.OTLP.Endpoint = ""
			},
			err: "trace.otlp.endpoint",
		},
		{
			name: "trace_sample_ratio",
			modify: func(cfg *Config) {
				cfg.Trace.Enabled = true
				cfg.Trace.SampleRatio = 1.5
			},
			err: "trace.sampleRatio",
		},
		{
			name:   "max_iterations",
			modify: func(cfg *Config) { cfg.Partitioner.MaxIterations = 0 },
			err:    "partitioner.maxIterations",
		},
		{
			name:   "max_concurrency",
			modify: func(cfg *Config) { cfg.Partitioner.MaxConcurrency = -1 },
			err:    "partitioner.maxConcurrency",
		},
		{
			name:   "retry_interval",
			modify: func(cfg *Config) { cfg.Partitioner.StoreRetryInterval = -1 },
			err:    "partitioner.storeRetryInterval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Verify()
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.err)
		})
	}
}
