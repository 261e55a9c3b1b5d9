package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/observability"
)

const analyzePollInterval = 250 * time.Millisecond

// AnalyzeCommand submits one repository and blocks until its job reaches
// a terminal state, printing the scorecard (or the failure reason).
type AnalyzeCommand struct {
	configPath string
	teamLabel  string
	timeout    time.Duration
	noColor    bool

	bootstrapFunc func(string, observability.AppMode) (*App, error)
}

// NewAnalyzeCommand builds the "analyze" subcommand.
func NewAnalyzeCommand() *cobra.Command {
	ac := &AnalyzeCommand{bootstrapFunc: bootstrap}

	cmd := &cobra.Command{
		Use:   "analyze <repo-url>",
		Short: "Submit a repository for analysis and print its scorecard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return ac.run(cobraCmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVar(&ac.configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&ac.teamLabel, "team", "", "label identifying the submitting team")
	cmd.Flags().DurationVar(&ac.timeout, "timeout", 15*time.Minute, "maximum time to wait for analysis to finish")
	cmd.Flags().BoolVar(&ac.noColor, "no-color", false, "disable colored output")

	return cmd
}

func (ac *AnalyzeCommand) run(ctx context.Context, repoURL string) error {
	if ac.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	app, err := ac.bootstrapFunc(ac.configPath, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.Manager.Start(runCtx)
	defer app.Manager.Stop()

	project, j, err := app.Manager.Submit(ctx, repoURL, ac.teamLabel)
	if err != nil {
		return fmt.Errorf("submit %s: %w", repoURL, err)
	}

	fmt.Printf("submitted %s as job %s\n", repoURL, j.ID)

	finished, err := ac.awaitTerminal(ctx, app, j.ID)
	if err != nil {
		return err
	}

	return ac.printResult(ctx, app, project.ID, finished)
}

func (ac *AnalyzeCommand) awaitTerminal(ctx context.Context, app *App, jobID string) (*model.Job, error) {
	deadline := time.Now().Add(ac.timeout)

	for time.Now().Before(deadline) {
		j, err := app.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("poll job %s: %w", jobID, err)
		}

		if j.Status.Terminal() {
			return j, nil
		}

		time.Sleep(analyzePollInterval)
	}

	return nil, fmt.Errorf("analyze: job %s timed out after %s", jobID, ac.timeout)
}

func (ac *AnalyzeCommand) printResult(ctx context.Context, app *App, projectID string, j *model.Job) error {
	if j.Status == model.JobFailed {
		color.New(color.FgRed).Printf("analysis failed: %s\n", j.ErrorMessage)
		return fmt.Errorf("job %s failed: %s", j.ID, j.ErrorMessage)
	}

	project, err := app.Manager.Result(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}

	renderScorecard(project)

	return nil
}

func renderScorecard(project *model.Project) {
	verdictColor := color.FgYellow

	switch {
	case project.Scores != nil && project.Scores.Total >= scoreThresholdHigh:
		verdictColor = color.FgGreen
	case project.Scores != nil && project.Scores.Total < scoreThresholdLow:
		verdictColor = color.FgRed
	}

	color.New(verdictColor).Printf("%s: %s\n", project.RepoURL, project.Verdict)

	if project.Scores == nil {
		return
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.AppendHeader(table.Row{"Dimension", "Score"})
	tbl.AppendRow(table.Row{"Total", scoreCell(project.Scores.Total)})
	tbl.AppendRow(table.Row{"Originality", scoreCell(project.Scores.Originality)})
	tbl.AppendRow(table.Row{"Quality", scoreCell(project.Scores.Quality)})
	tbl.AppendRow(table.Row{"Security", scoreCell(project.Scores.Security)})
	tbl.AppendRow(table.Row{"Effort", scoreCell(project.Scores.Effort)})
	tbl.AppendRow(table.Row{"Implementation", scoreCell(project.Scores.Implementation)})
	tbl.AppendRow(table.Row{"Engineering", scoreCell(project.Scores.Engineering)})
	tbl.AppendRow(table.Row{"Organization", scoreCell(project.Scores.Organization)})
	tbl.AppendRow(table.Row{"Documentation", scoreCell(project.Scores.Documentation)})
	fmt.Println(tbl.Render())

	fmt.Printf("%s commits analyzed\n", humanize.Comma(int64(project.TotalCommits)))

	if project.PositiveNotes != "" {
		fmt.Printf("+ %s\n", project.PositiveNotes)
	}

	if project.ConstructiveNotes != "" {
		fmt.Printf("- %s\n", project.ConstructiveNotes)
	}
}

const (
	scoreThresholdHigh = 70.0
	scoreThresholdLow  = 40.0
)

func scoreCell(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
