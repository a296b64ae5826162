package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/zhangwei5095/metasfresh/internal/build"
)

// NewVersionCommand returns the command to get the dlm version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the dlm version",
		Long:  "Return the dlm version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(_ *cobra.Command, _ []string) error {
	log.Printf("dlm Version %s Date %s commit id %s ", build.Version, build.Date, build.Commit)
	return nil
}
