package main

import (
	"fmt"

	"github.com/jpalmerr/votewatch"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate votewatch configuration without starting the server.

This command parses the YAML (if given), expands environment variables,
applies environment overrides, and validates all fields. It's useful for
CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  votewatch validate -c config.yaml
  votewatch validate --config /etc/votewatch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	slate := votewatch.DefaultSlate
	if len(cfg.Slate) > 0 {
		slate = cfg.Slate
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Source:        %s\n", cfg.Source.URL)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Fetch timeout: %s\n", cfg.Source.Timeout.Duration())
	fmt.Fprintf(out, "  History:       %d snapshots\n", cfg.History.Capacity)
	fmt.Fprintf(out, "  Vote log:      %s\n", cfg.Archive.Path)
	fmt.Fprintf(out, "  Candidates:    %d\n", len(slate))

	return nil
}
