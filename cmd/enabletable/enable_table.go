// Package enabletable contains the command that prepares tables for partitioning.
package enabletable

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhangwei5095/metasfresh/cmd/util"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
)

// partitioningEnabler is implemented by the SQL datastores.
type partitioningEnabler interface {
	EnablePartitioning(ctx context.Context, table string) (int64, error)
}

func NewEnableTableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable-table TABLE...",
		Short: "Prepare tables for partitioning",
		Long: `Register the tables in the table directory and add the partition column to them.

Records of a table without the partition column cannot be partitioned. Running the command again
for a table that is already enabled changes nothing.`,
		RunE: run,
		Args: cobra.MinimumNArgs(1),
	}

	util.BindDatastoreFlags(cmd)

	return cmd
}

func run(cmd *cobra.Command, tables []string) error {
	cfg, err := util.ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level, cfg.Log.TimestampFormat)
	if err != nil {
		return err
	}

	ds, err := util.NewDatastore(cfg.Datastore, log)
	if err != nil {
		return fmt.Errorf("initialize datastore: %w", err)
	}
	defer ds.Close()

	enabler, ok := ds.(partitioningEnabler)
	if !ok {
		return fmt.Errorf("datastore engine '%s' does not support enabling tables", cfg.Datastore.Engine)
	}

	ctx := cmd.Context()
	status, err := ds.IsReady(ctx)
	if err != nil {
		return fmt.Errorf("datastore readiness: %w", err)
	}
	if !status.IsReady {
		return fmt.Errorf("datastore is not ready: %s", status.Message)
	}

	for _, table := range tables {
		id, err := enabler.EnablePartitioning(ctx, table)
		if err != nil {
			return fmt.Errorf("enable %s: %w", table, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: table id %d\n", table, id)
	}
	return nil
}
