// Package main provides the entry point for the codescope CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescope-dev/codescope/cmd/codescope/commands"
	"github.com/codescope-dev/codescope/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "codescope",
		Short: "Codescope repository quality scorecard",
		Long: `Codescope clones a git repository, runs it through a nine-stage
detector pipeline, and produces a weighted quality scorecard.

Commands:
  analyze      Submit a repository, block until analysis completes, print the scorecard
  status       Poll a job submitted earlier in the same process
  batch        Submit a CSV of team,repo_url rows and print a result table
  leaderboard  List completed projects sorted by score
  serve-mcp    Expose the pipeline as MCP tools over stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewBatchCommand())
	rootCmd.AddCommand(commands.NewLeaderboardCommand())
	rootCmd.AddCommand(commands.NewServeMCPCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
