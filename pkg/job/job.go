// Package job owns the Project/Job lifecycle (§4.13): submission
// conflict checks, a bounded worker pool draining a queue of pending
// analysis runs, and the status/progress transitions a caller polls.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codescope-dev/codescope/pkg/cache"
	"github.com/codescope-dev/codescope/pkg/config"
	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/observability"
	"github.com/codescope-dev/codescope/pkg/persist"
	"github.com/codescope-dev/codescope/pkg/pipeline"
)

// ErrBusy is returned by Submit when the repo URL already has a Project
// whose status is analyzing or completed.
var ErrBusy = errors.New("job: project already analyzing or completed")

// Runner is the subset of pipeline.Runner a Manager needs, narrowed to
// an interface so tests can substitute a stub that never shells out to
// git.
type Runner interface {
	Run(ctx context.Context, repoURL, workDir string, progress pipeline.ProgressFunc) (*model.Report, error)
}

// Manager owns the bounded worker pool that drains queued Jobs,
// transitioning Project pending->analyzing->completed/failed and Job
// queued->running->completed/failed, per §4.13 and §5.
type Manager struct {
	Projects persist.ProjectStore
	Jobs     persist.JobStore
	Mapper   *persist.Mapper
	Runner   Runner
	Logger   *slog.Logger
	Metrics  *observability.PipelineMetrics

	WorkDir string // base directory for per-job clone working trees
	Workers int

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statusCache *cache.TTLCache[string, *model.Job]
	resultCache *cache.TTLCache[string, *model.Project]
	listCache   *cache.TTLCache[string, []*model.Project]
}

// EnableCache wires a response-memoization layer in front of Status,
// Result, and ListProjects, sized and timed per cfg. A Manager on which
// this is never called (or called with cfg.Enabled false) serves every
// lookup straight from Jobs/Projects, which is what process's own
// internal polling already does and must keep doing: a 30s staleness
// budget on Status would stall a job's own completion detection.
func (m *Manager) EnableCache(cfg config.CacheConfig) {
	if !cfg.Enabled {
		return
	}

	m.statusCache = cache.New[string, *model.Job](cfg.MaxEntries, cfg.StatusTTL)
	m.resultCache = cache.New[string, *model.Project](cfg.MaxEntries, cfg.ResultTTL)
	m.listCache = cache.New[string, []*model.Project](cfg.MaxEntries, cfg.ListTTL)
}

// Status returns the Job by id, serving a memoized copy when the cache
// is enabled and still fresh. Intended for repeated external polling
// (the CLI's status command, an MCP get_status call) rather than a
// tight in-process wait loop.
func (m *Manager) Status(ctx context.Context, jobID string) (*model.Job, error) {
	if m.statusCache != nil {
		if j, ok := m.statusCache.Get(jobID); ok {
			m.Metrics.RecordCache(ctx, "status", true)
			return j, nil
		}

		m.Metrics.RecordCache(ctx, "status", false)
	}

	j, err := m.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if m.statusCache != nil {
		m.statusCache.Put(jobID, j)
	}

	return j, nil
}

// Result returns the Project by id, serving a memoized copy when the
// cache is enabled and still fresh.
func (m *Manager) Result(ctx context.Context, projectID string) (*model.Project, error) {
	if m.resultCache != nil {
		if p, ok := m.resultCache.Get(projectID); ok {
			m.Metrics.RecordCache(ctx, "result", true)
			return p, nil
		}

		m.Metrics.RecordCache(ctx, "result", false)
	}

	p, err := m.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if m.resultCache != nil {
		m.resultCache.Put(projectID, p)
	}

	return p, nil
}

// ListProjects returns the Projects matching filter, serving a memoized
// copy when the cache is enabled and still fresh. The cache key folds
// the filter's three fields together since ProjectFilter has no natural
// comparable identity of its own.
func (m *Manager) ListProjects(ctx context.Context, filter persist.ProjectFilter) ([]*model.Project, error) {
	key := fmt.Sprintf("%s|%s|%s", filter.Status, filter.Tech, filter.Search)

	if m.listCache != nil {
		if ps, ok := m.listCache.Get(key); ok {
			m.Metrics.RecordCache(ctx, "list", true)
			return ps, nil
		}

		m.Metrics.RecordCache(ctx, "list", false)
	}

	ps, err := m.Projects.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if m.listCache != nil {
		m.listCache.Put(key, ps)
	}

	return ps, nil
}

// NewManager builds a Manager. workers and queueCapacity must be
// positive; callers normally take these from config.PipelineConfig.
func NewManager(projects persist.ProjectStore, jobs persist.JobStore, mapper *persist.Mapper, runner Runner, workDir string, workers, queueCapacity int, logger *slog.Logger, metrics *observability.PipelineMetrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if workDir == "" {
		workDir = os.TempDir()
	}

	return &Manager{
		Projects: projects,
		Jobs:     jobs,
		Mapper:   mapper,
		Runner:   runner,
		Logger:   logger,
		Metrics:  metrics,
		WorkDir:  workDir,
		Workers:  workers,
		queue:    make(chan string, queueCapacity),
	}
}

// Start launches the worker pool. It returns immediately; workers run
// until ctx is canceled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for range m.Workers {
		m.wg.Go(func() {
			m.worker(runCtx)
		})
	}
}

// Stop cancels every in-flight job and waits for the worker pool to
// drain. In-flight jobs observe the cancellation cooperatively, the same
// way pipeline.Runner does, and are marked failed rather than left
// running.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}

	m.wg.Wait()
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-m.queue:
			if !ok {
				return
			}

			m.process(ctx, jobID)
		}
	}
}

// Submit creates (or reuses) the Project for repoURL and enqueues a new
// Job against it. It rejects the submission with ErrBusy if the project
// is already analyzing or already completed, per §4.13's conflict rule.
func (m *Manager) Submit(ctx context.Context, repoURL, teamLabel string) (*model.Project, *model.Job, error) {
	project, err := m.Projects.GetByURL(ctx, repoURL)

	switch {
	case errors.Is(err, persist.ErrNotFound):
		project = &model.Project{
			ID:        uuid.NewString(),
			RepoURL:   repoURL,
			TeamLabel: teamLabel,
			Status:    model.ProjectPending,
			CreatedAt: time.Now(),
		}

		if createErr := m.Projects.Create(ctx, project); createErr != nil {
			return nil, nil, fmt.Errorf("create project: %w", createErr)
		}
	case err != nil:
		return nil, nil, fmt.Errorf("look up project: %w", err)
	case project.Status == model.ProjectAnalyzing || project.Status == model.ProjectCompleted:
		return nil, nil, fmt.Errorf("%w: %s", ErrBusy, repoURL)
	default:
		project.TeamLabel = teamLabel
		if updateErr := m.Projects.Update(ctx, project); updateErr != nil {
			return nil, nil, fmt.Errorf("update project: %w", updateErr)
		}
	}

	j := &model.Job{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Status:    model.JobQueued,
	}

	if err := m.Jobs.Create(ctx, j); err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}

	select {
	case m.queue <- j.ID:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	return project, j, nil
}

// process runs one queued job end to end: clone+detect+aggregate via
// Runner, persist via Mapper, and Project/Job status transitions on
// every exit path. The clone working directory is always removed,
// whether the run succeeds, fails, or is canceled.
func (m *Manager) process(ctx context.Context, jobID string) {
	j, err := m.Jobs.GetByID(ctx, jobID)
	if err != nil {
		m.Logger.ErrorContext(ctx, "job lookup failed, dropping", "job_id", jobID, "error", err)
		return
	}

	project, err := m.Projects.GetByID(ctx, j.ProjectID)
	if err != nil {
		m.Logger.ErrorContext(ctx, "project lookup failed, failing job", "job_id", jobID, "error", err)
		m.failJob(ctx, j, err)
		m.invalidateCaches(j.ID, j.ProjectID)

		return
	}

	now := time.Now()
	j.Status = model.JobRunning
	j.StartedAt = &now
	_ = m.Jobs.Update(ctx, j)

	project.Status = model.ProjectAnalyzing
	_ = m.Projects.Update(ctx, project)

	workDir := filepath.Join(m.WorkDir, "codescope-"+j.ID)
	defer os.RemoveAll(workDir)

	report, err := m.Runner.Run(ctx, project.RepoURL, workDir, func(stage string, percent int) {
		j.Stage = stage
		j.Progress = percent
		_ = m.Jobs.Update(ctx, j)
	})
	if err != nil {
		m.failJob(ctx, j, err)

		project.Status = model.ProjectFailed
		_ = m.Projects.Update(ctx, project)
		m.Metrics.RecordJob(ctx, "failed")
		m.invalidateCaches(j.ID, project.ID)

		return
	}

	analyzedAt := time.Now()
	project.AnalyzedAt = &analyzedAt

	if errs := m.Mapper.Persist(ctx, project, report); len(errs) > 0 {
		m.Logger.ErrorContext(ctx, "report persisted with partial failures", "job_id", jobID, "errors", errors.Join(errs...))
	}

	j.Status = model.JobCompleted
	j.Progress = pipeline.ProgressComplete
	j.Stage = "completion"
	completedAt := time.Now()
	j.CompletedAt = &completedAt
	_ = m.Jobs.Update(ctx, j)

	m.Metrics.RecordJob(ctx, "completed")
	m.invalidateCaches(j.ID, project.ID)
}

func (m *Manager) failJob(ctx context.Context, j *model.Job, cause error) {
	completedAt := time.Now()
	j.Status = model.JobFailed
	j.ErrorMessage = cause.Error()
	j.CompletedAt = &completedAt
	_ = m.Jobs.Update(ctx, j)
}

// invalidateCaches drops any memoized Status/Result/ListProjects entries
// made stale by a job reaching a terminal state, so a caller polling
// get_status/get_result (directly or through pkg/mcp) observes the
// terminal status on its very next call rather than up to StatusTTL or
// ResultTTL later. ListProjects has no single key to invalidate - its
// cache key is a filter tuple a caller chooses, any of which might have
// included this project - so it is cleared outright instead.
func (m *Manager) invalidateCaches(jobID, projectID string) {
	if m.statusCache != nil {
		m.statusCache.Invalidate(jobID)
	}

	if m.resultCache != nil {
		m.resultCache.Invalidate(projectID)
	}

	if m.listCache != nil {
		m.listCache.Clear()
	}
}
