package partition

import (
	"github.com/spf13/cobra"

	"github.com/zhangwei5095/metasfresh/cmd/util"
	"github.com/zhangwei5095/metasfresh/internal/config"
)

// bindPartitionFlags binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindPartitionFlags(command *cobra.Command) {
	defaultConfig := config.DefaultConfig()
	flags := command.Flags()

	util.BindDatastoreFlags(command)

	flags.Int("max-iterations", defaultConfig.Partitioner.MaxIterations, "the number of closure computations after which a partition that is still inconsistent is given up")
	util.MustBindPFlag("partitioner.maxIterations", flags.Lookup("max-iterations"))
	util.MustBindEnv("partitioner.maxIterations", "DLM_PARTITIONER_MAX_ITERATIONS", "DLM_PARTITIONER_MAXITERATIONS")

	flags.Int("max-concurrency", defaultConfig.Partitioner.MaxConcurrency, "the number of configuration files processed at the same time")
	util.MustBindPFlag("partitioner.maxConcurrency", flags.Lookup("max-concurrency"))
	util.MustBindEnv("partitioner.maxConcurrency", "DLM_PARTITIONER_MAX_CONCURRENCY", "DLM_PARTITIONER_MAXCONCURRENCY")

	flags.Bool("oldest-first", defaultConfig.Partitioner.OldestFirst, "read records in ascending id order")
	util.MustBindPFlag("partitioner.oldestFirst", flags.Lookup("oldest-first"))
	util.MustBindEnv("partitioner.oldestFirst", "DLM_PARTITIONER_OLDEST_FIRST", "DLM_PARTITIONER_OLDESTFIRST")

	flags.Uint64("store-retries", defaultConfig.Partitioner.StoreRetries, "how often a partition is recomputed when some of its records were partitioned concurrently")
	util.MustBindPFlag("partitioner.storeRetries", flags.Lookup("store-retries"))
	util.MustBindEnv("partitioner.storeRetries", "DLM_PARTITIONER_STORE_RETRIES", "DLM_PARTITIONER_STORERETRIES")

	flags.Duration("store-retry-interval", defaultConfig.Partitioner.StoreRetryInterval, "the time to wait before a partition is recomputed")
	util.MustBindPFlag("partitioner.storeRetryInterval", flags.Lookup("store-retry-interval"))
	util.MustBindEnv("partitioner.storeRetryInterval", "DLM_PARTITIONER_STORE_RETRY_INTERVAL", "DLM_PARTITIONER_STORERETRYINTERVAL")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
	util.MustBindEnv("trace.enabled", "DLM_TRACE_ENABLED")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
	util.MustBindEnv("trace.otlp.endpoint", "DLM_TRACE_OTLP_ENDPOINT")

	flags.Bool("trace-otlp-tls-enabled", defaultConfig.Trace.OTLP.TLS.Enabled, "use a TLS connection for the trace collector")
	util.MustBindPFlag("trace.otlp.tls.enabled", flags.Lookup("trace-otlp-tls-enabled"))
	util.MustBindEnv("trace.otlp.tls.enabled", "DLM_TRACE_OTLP_TLS_ENABLED")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
	util.MustBindEnv("trace.sampleRatio", "DLM_TRACE_SAMPLE_RATIO")

	flags.Bool(dryRunFlag, false, "compute the partitions without storing them")
	flags.String(outputFlag, "", "a directory to write the configurations the partitions ended up with to")
}
