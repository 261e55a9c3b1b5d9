package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope-dev/codescope/pkg/config"
	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/persist"
)

func TestManagerStatusServesMemoizedCopyWithinTTL(t *testing.T) {
	t.Parallel()

	mgr, backend := newManager(t, &stubRunner{report: model.NewReport()})
	mgr.EnableCache(config.CacheConfig{Enabled: true, MaxEntries: 16, StatusTTL: time.Minute, ResultTTL: time.Minute, ListTTL: time.Minute})

	_, j, err := mgr.Submit(context.Background(), "https://example.com/cached.git", "team-a")
	require.NoError(t, err)

	first, err := mgr.Status(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, first.Status)

	stored, err := backend.Jobs().GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	stored.Progress = 42
	require.NoError(t, backend.Jobs().Update(context.Background(), stored))

	cached, err := mgr.Status(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cached.Progress, "a fresh cache entry should not see the store write that happened after it was populated")
}

func TestManagerStatusBypassesCacheWhenDisabled(t *testing.T) {
	t.Parallel()

	mgr, backend := newManager(t, &stubRunner{report: model.NewReport()})

	_, j, err := mgr.Submit(context.Background(), "https://example.com/uncached.git", "team-a")
	require.NoError(t, err)

	_, err = mgr.Status(context.Background(), j.ID)
	require.NoError(t, err)

	stored, err := backend.Jobs().GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	stored.Progress = 42
	require.NoError(t, backend.Jobs().Update(context.Background(), stored))

	updated, err := mgr.Status(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Progress, "with caching disabled every call must hit the store directly")
}

func TestManagerStatusReflectsCompletionImmediatelyAfterInvalidation(t *testing.T) {
	t.Parallel()

	report := model.NewReport()
	mgr, backend := newManager(t, &stubRunner{report: report, delay: 50 * time.Millisecond})
	mgr.EnableCache(config.CacheConfig{Enabled: true, MaxEntries: 16, StatusTTL: time.Minute, ResultTTL: time.Minute, ListTTL: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.Start(ctx)
	defer mgr.Stop()

	project, j, err := mgr.Submit(context.Background(), "https://example.com/invalidate.git", "team-a")
	require.NoError(t, err)

	// Populate the cache with the pre-completion status while the job is
	// still running.
	queued, err := mgr.Status(context.Background(), j.ID)
	require.NoError(t, err)
	require.NotEqual(t, model.JobCompleted, queued.Status)

	// With a 1-minute StatusTTL, the only way this ever observes
	// JobCompleted within the test's deadline is if process() actively
	// invalidates the cache entry on completion rather than relying on
	// expiry.
	deadline := time.Now().Add(2 * time.Second)

	var completed *model.Job

	for time.Now().Before(deadline) {
		completed, err = mgr.Status(context.Background(), j.ID)
		require.NoError(t, err)

		if completed.Status == model.JobCompleted {
			break
		}

		time.Sleep(5 * time.Millisecond)
	}

	require.NotNil(t, completed)
	assert.Equal(t, model.JobCompleted, completed.Status, "job completion must invalidate the cached status promptly")

	result, err := mgr.Result(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectCompleted, result.Status, "job completion must invalidate the cached result immediately")
}

func TestManagerListProjectsCachesByFilter(t *testing.T) {
	t.Parallel()

	mgr, backend := newManager(t, &stubRunner{report: model.NewReport()})
	mgr.EnableCache(config.CacheConfig{Enabled: true, MaxEntries: 16, StatusTTL: time.Minute, ResultTTL: time.Minute, ListTTL: time.Minute})

	first, err := mgr.ListProjects(context.Background(), persist.ProjectFilter{})
	require.NoError(t, err)
	assert.Empty(t, first)

	require.NoError(t, backend.Projects().Create(context.Background(), &model.Project{
		ID: "p1", RepoURL: "https://example.com/new.git", Status: model.ProjectPending,
	}))

	second, err := mgr.ListProjects(context.Background(), persist.ProjectFilter{})
	require.NoError(t, err)
	assert.Empty(t, second, "a fresh cache entry should not see a project created after it was populated")
}
