// Package pipeline runs the fixed detector DAG over a cloned repository:
// a clone node, eight independent detector nodes fanned out concurrently,
// and an aggregator node, per §4.1.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codescope-dev/codescope/pkg/aggregate"
	"github.com/codescope-dev/codescope/pkg/config"
	"github.com/codescope-dev/codescope/pkg/detect"
	"github.com/codescope-dev/codescope/pkg/gitlib"
	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/observability"
)

const tracerName = "codescope"

// Stage progress percentages (§4.1). Fixed regardless of the order in
// which concurrent detector nodes happen to finish.
const (
	ProgressClone      = 10
	ProgressStack      = 20
	ProgressStructure  = 30
	ProgressMaturity   = 40
	ProgressCommits    = 50
	ProgressQuality    = 60
	ProgressSecurity   = 70
	ProgressOrigin     = 80
	ProgressJudge      = 90
	ProgressAggregator = 95
	ProgressComplete   = 100
)

// ProgressFunc receives a stage name and its fixed completion percentage.
// A Runner only ever calls it with a percentage strictly greater than the
// last one it reported, so a caller that just stores the latest value
// never observes it moving backward even though the eight detector nodes
// finish in no particular order.
type ProgressFunc func(stage string, percent int)

// Runner executes the detector DAG for one repository.
type Runner struct {
	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics
	Logger  *slog.Logger

	CloneTimeout time.Duration
	JudgeConfig  detect.JudgeConfig
	Oracles      []detect.Oracle
	Weights      config.ScoringConfig
}

// NewRunner builds a Runner wired from cfg. oracles are the optional
// external AI/plagiarism detectors the origin ensemble consults.
func NewRunner(cfg *config.Config, tracer trace.Tracer, metrics *observability.PipelineMetrics, logger *slog.Logger, oracles ...detect.Oracle) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		Tracer:       tracer,
		Metrics:      metrics,
		Logger:       logger,
		CloneTimeout: cfg.Repository.CloneTimeout,
		JudgeConfig: detect.JudgeConfig{
			Enabled:    cfg.Judge.Enabled,
			Endpoint:   cfg.Judge.Endpoint,
			APIKey:     cfg.Judge.APIKey,
			Model:      cfg.Judge.Model,
			Timeout:    cfg.Judge.Timeout,
			SchemaPath: cfg.Judge.SchemaPath,
		},
		Oracles: oracles,
		Weights: cfg.Scoring,
	}
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer != nil {
		return r.Tracer
	}

	return otel.Tracer(tracerName)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}

// Run clones repoURL into workDir, fans the eight detectors out
// concurrently over the resulting working tree, and aggregates their
// output into a scored Report. Cancellation is cooperative: it is
// checked before the clone, before each detector node is launched, and
// inside the judge adapter's HTTP call; a node already running to
// completion is not interrupted mid-scan. Only a clone failure aborts
// the run - every other node that fails or panics leaves its Report
// field at its typed zero value and the run continues.
func (r *Runner) Run(ctx context.Context, repoURL, workDir string, progress ProgressFunc) (*model.Report, error) {
	report := model.NewReport()
	notify := monotonicProgress(progress)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.clone(ctx, repoURL, workDir); err != nil {
		return nil, fmt.Errorf("clone %s: %w", repoURL, err)
	}

	notify(stageClone, ProgressClone)

	if err := r.runGraph(ctx, workDir, report, notify); err != nil {
		r.logger().ErrorContext(ctx, "detector graph failed", "error", err)
	}

	notify(stageComplete, ProgressComplete)

	return report, nil
}

func (r *Runner) clone(ctx context.Context, repoURL, workDir string) error {
	cloneCtx := ctx

	if r.CloneTimeout > 0 {
		var cancel context.CancelFunc
		cloneCtx, cancel = context.WithTimeout(ctx, r.CloneTimeout)
		defer cancel()
	}

	start := time.Now()
	spanCtx, span := r.tracer().Start(cloneCtx, "codescope.detector."+stageClone)
	defer span.End()

	repo, err := gitlib.Clone(spanCtx, repoURL, workDir, nil)
	r.Metrics.RecordDetector(spanCtx, stageClone, time.Since(start), err != nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	repo.Free()

	return nil
}

const (
	stageClone      = "clone"
	stageStack      = "stack"
	stageStructure  = "structure"
	stageMaturity   = "maturity"
	stageCommits    = "commits"
	stageQuality    = "quality"
	stageSecurity   = "security"
	stageOrigin     = "origin"
	stageJudge      = "judge"
	stageAggregator = "aggregator"
	stageComplete   = "completion"
)

// runGraph builds the post-clone portion of the detector DAG - the eight
// independent detector nodes plus the aggregator node that depends on all
// of them - and executes it. The graph has no edges among the detectors
// themselves, so dagExecutor runs all eight concurrently and only holds
// the aggregator back until every one of them has finished; this is the
// same concurrency §4.1 calls for, just expressed as data (nodes and
// edges) instead of a hand-written sequence of goroutines, so a ninth
// detector is a registration, not a rewrite.
func (r *Runner) runGraph(ctx context.Context, workDir string, report *model.Report, notify ProgressFunc) error {
	dag := newDAGExecutor()

	dag.addNode(stageStack, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageStack, func(context.Context) error {
			report.Stack = detect.Stack(workDir)
			return nil
		})
		notify(stageStack, ProgressStack)
	})

	dag.addNode(stageStructure, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageStructure, func(context.Context) error {
			report.Structure = detect.Structure(workDir)
			return nil
		})
		notify(stageStructure, ProgressStructure)
	})

	dag.addNode(stageMaturity, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageMaturity, func(context.Context) error {
			report.Maturity = detect.Maturity(workDir)
			return nil
		})
		notify(stageMaturity, ProgressMaturity)
	})

	dag.addNode(stageCommits, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageCommits, func(context.Context) error {
			forensics, err := detect.Commits(workDir)
			if err != nil {
				return err
			}

			report.Forensics = forensics

			return nil
		})
		notify(stageCommits, ProgressCommits)
	})

	dag.addNode(stageQuality, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageQuality, func(context.Context) error {
			report.Quality = detect.Quality(workDir)
			return nil
		})
		notify(stageQuality, ProgressQuality)
	})

	dag.addNode(stageSecurity, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageSecurity, func(context.Context) error {
			report.Security = detect.Security(workDir)
			return nil
		})
		notify(stageSecurity, ProgressSecurity)
	})

	dag.addNode(stageOrigin, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageOrigin, func(context.Context) error {
			report.Origin = detect.Origin(workDir, r.Oracles...)
			return nil
		})
		notify(stageOrigin, ProgressOrigin)
	})

	dag.addNode(stageJudge, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageJudge, func(innerCtx context.Context) error {
			report.Judge = detect.Judge(innerCtx, workDir, r.JudgeConfig)
			return nil
		})
		notify(stageJudge, ProgressJudge)
	})

	dag.addNode(stageAggregator, func(nodeCtx context.Context) {
		r.runNode(nodeCtx, stageAggregator, func(context.Context) error {
			aggregate.Score(report, r.Weights)
			return nil
		})
		notify(stageAggregator, ProgressAggregator)
	})

	for _, detector := range []string{
		stageStack, stageStructure, stageMaturity, stageCommits,
		stageQuality, stageSecurity, stageOrigin, stageJudge,
	} {
		dag.addEdge(detector, stageAggregator)
	}

	return dag.run(ctx)
}

// runNode wraps a single detector's execution with cancellation
// checking, a span, duration/failure metrics, and panic recovery so one
// misbehaving detector can never take the whole run down. fn's error is
// logged, never returned - every caller of runNode has already decided
// the corresponding Report field should simply stay at its zero value
// on failure.
func (r *Runner) runNode(ctx context.Context, name string, fn func(context.Context) error) {
	if err := ctx.Err(); err != nil {
		r.logger().WarnContext(ctx, "detector node skipped: context canceled", "detector", name)
		return
	}

	start := time.Now()
	spanCtx, span := r.tracer().Start(ctx, "codescope.detector."+name)
	defer span.End()

	err := r.runRecovered(spanCtx, name, fn)

	r.Metrics.RecordDetector(spanCtx, name, time.Since(start), err != nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger().WarnContext(spanCtx, "detector node failed, continuing with empty result", "detector", name, "error", err)
	}
}

func (r *Runner) runRecovered(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("detector %s panicked: %v", name, rec)
		}
	}()

	return fn(ctx)
}

// monotonicProgress wraps a ProgressFunc so it only ever observes a
// percentage strictly increasing, even though the eight detector nodes
// it is fed from complete in whatever order the scheduler picks.
func monotonicProgress(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return func(string, int) {}
	}

	var (
		mu      sync.Mutex
		highest int
	)

	return func(stage string, percent int) {
		mu.Lock()
		defer mu.Unlock()

		if percent <= highest {
			return
		}

		highest = percent
		progress(stage, percent)
	}
}
