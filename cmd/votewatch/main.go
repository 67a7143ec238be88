// Package main is the entry point for the votewatch CLI.
//
// votewatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration and environment overrides. This CLI provides the
// standalone binary approach.
//
// Usage:
//
//	votewatch serve -c config.yaml    # Start polling and serving
//	votewatch validate -c config.yaml # Validate configuration
//	votewatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "votewatch",
	Short: "A live vote tracker for a remote poll",
	Long: `votewatch polls a remote poll endpoint, keeps a rolling history of vote
counts, appends every snapshot to a CSV vote log, and streams live updates
to a web dashboard over Server-Sent Events.

Quick start:
  1. Create a config file (votewatch.yaml), or set VOTEWATCH_SOURCE_URL
  2. Run: votewatch serve -c votewatch.yaml
  3. Open http://localhost:3000 in your browser

Example config:
  port: 3000
  poll_interval: 30s
  source:
    url: https://polls.example.com/api/polls/42
  archive:
    path: votes.csv`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this votewatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "votewatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
