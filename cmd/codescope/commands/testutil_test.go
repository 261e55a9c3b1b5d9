package commands

import (
	"context"
	"testing"

	"github.com/codescope-dev/codescope/pkg/job"
	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/observability"
	"github.com/codescope-dev/codescope/pkg/persist"
	"github.com/codescope-dev/codescope/pkg/pipeline"
)

type stubRunner struct {
	report *model.Report
	err    error
}

func (s *stubRunner) Run(_ context.Context, _, _ string, progress pipeline.ProgressFunc) (*model.Report, error) {
	if progress != nil {
		progress("completion", pipeline.ProgressComplete)
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.report, nil
}

func testApp(t *testing.T, runner job.Runner) (*App, *persist.MemoryBackend) {
	t.Helper()

	backend := persist.NewMemoryBackend()
	mapper := persist.NewMapper(backend.Projects(), backend.Jobs(), backend.Children())
	mgr := job.NewManager(backend.Projects(), backend.Jobs(), mapper, runner, t.TempDir(), 2, 8, nil, nil)

	app := &App{
		Manager:  mgr,
		Projects: backend.Projects(),
		Jobs:     backend.Jobs(),
		Codec:    persist.NewLZ4JSONCodec(),
		Shutdown: func(context.Context) error { return nil },
	}

	return app, backend
}

func testBootstrap(app *App) func(string, observability.AppMode) (*App, error) {
	return func(string, observability.AppMode) (*App, error) {
		return app, nil
	}
}
