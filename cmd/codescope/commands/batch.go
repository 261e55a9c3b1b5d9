package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/observability"
)

const batchPollInterval = 250 * time.Millisecond

// BatchCommand submits every team,repo_url row of a CSV file (spec §6's
// batch-submission format) and blocks until every job reaches a
// terminal state, printing one result table.
type BatchCommand struct {
	configPath string
	timeout    time.Duration

	bootstrapFunc func(string, observability.AppMode) (*App, error)
}

// NewBatchCommand builds the "batch" subcommand.
func NewBatchCommand() *cobra.Command {
	bc := &BatchCommand{bootstrapFunc: bootstrap}

	cmd := &cobra.Command{
		Use:   "batch <csv-file>",
		Short: "Submit a CSV of team,repo_url rows and print a result table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return bc.run(cobraCmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVar(&bc.configPath, "config", "", "path to config file")
	cmd.Flags().DurationVar(&bc.timeout, "timeout", time.Hour, "maximum time to wait for the whole batch to finish")

	return cmd
}

type batchRow struct {
	team    string
	repoURL string
}

func readBatchRows(path string) ([]batchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	var rows []batchRow

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}

		rows = append(rows, batchRow{team: record[0], repoURL: record[1]})
	}

	return rows, nil
}

type batchSubmission struct {
	team      string
	projectID string
	jobID     string
}

func (bc *BatchCommand) run(ctx context.Context, csvPath string) error {
	rows, err := readBatchRows(csvPath)
	if err != nil {
		return err
	}

	app, err := bc.bootstrapFunc(bc.configPath, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.Manager.Start(runCtx)
	defer app.Manager.Stop()

	submissions := make([]batchSubmission, 0, len(rows))

	for _, row := range rows {
		project, j, submitErr := app.Manager.Submit(ctx, row.repoURL, row.team)
		if submitErr != nil {
			fmt.Printf("%s: submit failed: %v\n", row.repoURL, submitErr)
			continue
		}

		submissions = append(submissions, batchSubmission{team: row.team, projectID: project.ID, jobID: j.ID})
	}

	deadline := time.Now().Add(bc.timeout)

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Team", "Repository", "Status", "Total"})

	for _, sub := range submissions {
		tbl.AppendRow(bc.rowFor(ctx, app, sub, deadline))
	}

	fmt.Println(tbl.Render())

	return nil
}

func (bc *BatchCommand) rowFor(ctx context.Context, app *App, sub batchSubmission, deadline time.Time) table.Row {
	j := waitBatchJob(ctx, app, sub.jobID, deadline)

	repoURL := sub.projectID
	total := "-"

	if project, err := app.Manager.Result(ctx, sub.projectID); err == nil {
		repoURL = project.RepoURL

		if project.Scores != nil {
			total = scoreCell(project.Scores.Total)
		}
	}

	return table.Row{sub.team, repoURL, string(j.Status), total}
}

func waitBatchJob(ctx context.Context, app *App, jobID string, deadline time.Time) *model.Job {
	for time.Now().Before(deadline) {
		j, err := app.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return &model.Job{ID: jobID, Status: model.JobFailed, ErrorMessage: err.Error()}
		}

		if j.Status.Terminal() {
			return j
		}

		time.Sleep(batchPollInterval)
	}

	return &model.Job{ID: jobID, Status: model.JobFailed, ErrorMessage: "timed out"}
}
