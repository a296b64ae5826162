package main

import (
	"os"

	"github.com/zhangwei5095/metasfresh/cmd"
	"github.com/zhangwei5095/metasfresh/cmd/enabletable"
	"github.com/zhangwei5095/metasfresh/cmd/migrate"
	"github.com/zhangwei5095/metasfresh/cmd/partition"
	"github.com/zhangwei5095/metasfresh/cmd/validateconfig"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	partitionCmd := partition.NewPartitionCommand()
	rootCmd.AddCommand(partitionCmd)

	migrateCmd := migrate.NewMigrateCommand()
	rootCmd.AddCommand(migrateCmd)

	enableTableCmd := enabletable.NewEnableTableCommand()
	rootCmd.AddCommand(enableTableCmd)

	validateConfigCmd := validateconfig.NewValidateCommand()
	rootCmd.AddCommand(validateConfigCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
