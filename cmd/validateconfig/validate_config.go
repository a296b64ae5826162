// Package validateconfig contains the command to check partitioner configuration files.
package validateconfig

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
)

var errInvalidConfig = errors.New("invalid partitioner configuration")

func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config CONFIG_FILE...",
		Short: "Validate partitioner configuration files",
		Long:  "Parse partitioner configuration files and report the tables and references each one declares.",
		RunE:  runValidate,
		Args:  cobra.MinimumNArgs(1),
	}
}

type validationResult struct {
	File       string   `json:"file"`
	Tables     []string `json:"tables,omitempty"`
	References []string `json:"references,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	results := ValidateConfigFiles(args)

	marshalled, err := json.MarshalIndent(results, "", "    ")
	if err != nil {
		return fmt.Errorf("error gathering validation results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(marshalled))

	for _, r := range results {
		if r.Error != "" {
			return errInvalidConfig
		}
	}
	return nil
}

// ValidateConfigFiles parses every file and lists what it declares.
func ValidateConfigFiles(files []string) []validationResult {
	results := make([]validationResult, 0, len(files))
	for _, file := range files {
		result := validationResult{File: file}

		cfg, err := refconfig.ParseFile(file)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		for _, line := range cfg.Lines() {
			result.Tables = append(result.Tables, line.Table())
			for _, ref := range line.References() {
				result.References = append(result.References, ref.String())
			}
		}
		results = append(results, result)
	}
	return results
}
