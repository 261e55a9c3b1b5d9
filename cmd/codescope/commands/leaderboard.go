package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/codescope-dev/codescope/pkg/observability"
	"github.com/codescope-dev/codescope/pkg/persist"
)

const completedStatus persist.ProjectStatusFilter = "completed"

// LeaderboardCommand lists completed projects sorted by total score.
type LeaderboardCommand struct {
	configPath string

	bootstrapFunc func(string, observability.AppMode) (*App, error)
}

// NewLeaderboardCommand builds the "leaderboard" subcommand.
func NewLeaderboardCommand() *cobra.Command {
	lc := &LeaderboardCommand{bootstrapFunc: bootstrap}

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "List completed projects sorted by total score",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return lc.run(cobraCmd.Context())
		},
	}

	cmd.Flags().StringVar(&lc.configPath, "config", "", "path to config file")

	return cmd
}

func (lc *LeaderboardCommand) run(ctx context.Context) error {
	app, err := lc.bootstrapFunc(lc.configPath, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	projects, err := app.Manager.ListProjects(ctx, persist.ProjectFilter{Status: completedStatus})
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	sort.Slice(projects, func(i, j int) bool {
		left, right := projects[i].Scores, projects[j].Scores
		if left == nil || right == nil {
			return right == nil && left != nil
		}

		return left.Total > right.Total
	})

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Rank", "Team", "Repository", "Total"})

	for i, p := range projects {
		total := "-"
		if p.Scores != nil {
			total = scoreCell(p.Scores.Total)
		}

		tbl.AppendRow(table.Row{i + 1, p.TeamLabel, p.RepoURL, total})
	}

	fmt.Println(tbl.Render())

	return nil
}
