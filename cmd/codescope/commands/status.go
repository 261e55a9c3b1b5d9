package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescope-dev/codescope/pkg/observability"
)

// StatusCommand polls a job previously submitted in the same process.
// Job state lives only in the in-memory backend bootstrap wires up, so
// this is chiefly useful composed with batch/analyze within a single
// invocation, or once a real persistence backend is configured.
type StatusCommand struct {
	configPath string

	bootstrapFunc func(string, observability.AppMode) (*App, error)
}

// NewStatusCommand builds the "status" subcommand.
func NewStatusCommand() *cobra.Command {
	sc := &StatusCommand{bootstrapFunc: bootstrap}

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Check the progress and stage of a submitted job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return sc.run(cobraCmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVar(&sc.configPath, "config", "", "path to config file")

	return cmd
}

func (sc *StatusCommand) run(ctx context.Context, jobID string) error {
	app, err := sc.bootstrapFunc(sc.configPath, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	j, err := app.Manager.Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("look up job %s: %w", jobID, err)
	}

	fmt.Printf("job %s: status=%s stage=%s progress=%d%%\n", j.ID, j.Status, j.Stage, j.Progress)

	if j.ErrorMessage != "" {
		fmt.Printf("error: %s\n", j.ErrorMessage)
	}

	return nil
}
