// Package partition contains the command that creates partitions.
package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhangwei5095/metasfresh/cmd/util"
	"github.com/zhangwei5095/metasfresh/internal/config"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
	"github.com/zhangwei5095/metasfresh/pkg/partitioner"
	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/telemetry"
)

const (
	dryRunFlag = "dry-run"
	outputFlag = "output"
)

func NewPartitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition CONFIG_FILE...",
		Short: "Create one partition per partitioner configuration",
		Long: `Create one partition per partitioner configuration.

Every unpartitioned record of the tables a configuration names starts the partition. The references
of the configuration are followed until no new records are found. If the datastore reports a
foreign key the configuration does not cover, the reference is added and the partition is computed
again. Unless --dry-run is given, the records are marked as belonging to the new partition.`,
		RunE: run,
		Args: cobra.MinimumNArgs(1),
	}

	bindPartitionFlags(cmd)

	return cmd
}

// result is the outcome for one configuration file.
type result struct {
	file      string
	input     *refconfig.Config
	partition *storage.Partition
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := util.ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	flags := cmd.Flags()
	dryRun, err := flags.GetBool(dryRunFlag)
	if err != nil {
		return err
	}
	output, err := flags.GetString(outputFlag)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level, cfg.Log.TimestampFormat)
	if err != nil {
		return err
	}

	tp := newTracerProvider(cfg.Trace)
	defer func() {
		if err := tp.Close(context.Background()); err != nil {
			log.Error("failed to shut down tracer", zap.Error(err))
		}
	}()

	results := make([]*result, 0, len(args))
	for _, file := range args {
		refCfg, err := refconfig.ParseFile(file)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		results = append(results, &result{file: file, input: refCfg})
	}

	ctx := cmd.Context()

	ds, err := util.NewDatastore(cfg.Datastore, log)
	if err != nil {
		return fmt.Errorf("initialize datastore: %w", err)
	}
	defer ds.Close()

	status, err := ds.IsReady(ctx)
	if err != nil {
		return fmt.Errorf("datastore readiness: %w", err)
	}
	if !status.IsReady {
		return fmt.Errorf("datastore is not ready: %s", status.Message)
	}

	p := partitioner.NewFromBackend(ds,
		partitioner.WithLogger(log),
		partitioner.WithMaxIterations(cfg.Partitioner.MaxIterations),
		partitioner.WithMaxConcurrency(cfg.Partitioner.MaxConcurrency),
		partitioner.WithOldestFirst(cfg.Partitioner.OldestFirst),
		partitioner.WithStoreRetries(cfg.Partitioner.StoreRetries, cfg.Partitioner.StoreRetryInterval),
	)

	if err := createPartitions(ctx, p, results, dryRun); err != nil {
		return err
	}

	for _, r := range results {
		printResult(cmd.OutOrStdout(), r)
	}

	if output != "" {
		return writeConfigs(output, results)
	}
	return nil
}

func newTracerProvider(cfg config.TraceConfig) telemetry.TracerProvider {
	if !cfg.Enabled {
		return telemetry.Noop()
	}

	opts := []telemetry.TracerOption{
		telemetry.WithOTLPEndpoint(cfg.OTLP.Endpoint),
		telemetry.WithSamplingRatio(cfg.SampleRatio),
	}
	if !cfg.OTLP.TLS.Enabled {
		opts = append(opts, telemetry.WithOTLPInsecure())
	}
	return telemetry.MustNewTracerProvider(opts...)
}

func createPartitions(ctx context.Context, p *partitioner.Partitioner, results []*result, dryRun bool) error {
	if dryRun {
		for _, r := range results {
			partition, err := p.CreatePartition(ctx, r.input)
			if err != nil {
				return fmt.Errorf("%s: %w", r.file, err)
			}
			r.partition = partition
		}
		return nil
	}

	cfgs := make([]*refconfig.Config, 0, len(results))
	for _, r := range results {
		cfgs = append(cfgs, r.input)
	}

	partitions, err := p.CreatePartitions(ctx, cfgs)
	if err != nil {
		if errors.Is(err, partitioner.ErrNoConvergence) {
			return fmt.Errorf("%w: raise --max-iterations or add the missing references to the configuration", err)
		}
		return err
	}
	for i, partition := range partitions {
		results[i].partition = partition
	}
	return nil
}

func printResult(w io.Writer, r *result) {
	partition := r.partition
	if partition.IsEmpty() {
		fmt.Fprintf(w, "%s: no unpartitioned records\n", r.file)
		return
	}

	id := partition.ID
	if id == "" {
		id = "(not stored)"
	}
	fmt.Fprintf(w, "%s: partition %s with %d records\n", r.file, id, len(partition.Records))

	byTable := partition.RecordsByTable()
	for _, table := range slices.Sorted(maps.Keys(byTable)) {
		fmt.Fprintf(w, "  %s: %d\n", table, len(byTable[table]))
	}

	if added := addedReferences(r.input, partition.Config); len(added) > 0 {
		fmt.Fprintf(w, "  added references:\n")
		for _, ref := range added {
			fmt.Fprintf(w, "    %s\n", ref)
		}
	}
}

// addedReferences lists the references of the final configuration the input did not declare.
func addedReferences(input, final *refconfig.Config) []string {
	var added []string
	for _, line := range final.Lines() {
		inputLine := input.Line(line.Table())
		for _, ref := range line.References() {
			if inputLine != nil && inputLine.Reference(ref.ReferencingColumn(), ref.ReferencedTable()) != nil {
				continue
			}
			added = append(added, ref.String())
		}
	}
	return added
}

func writeConfigs(dir string, results []*result) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, r := range results {
		data, err := refconfig.Marshal(r.partition.Config)
		if err != nil {
			return fmt.Errorf("%s: %w", r.file, err)
		}

		name := strings.TrimSuffix(filepath.Base(r.file), filepath.Ext(r.file)) + ".yaml"
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
