package persist

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/codescope-dev/codescope/pkg/model"
)

// memoryState is the shared backing store behind MemoryProjectStore,
// MemoryJobStore, and MemoryChildStore, so a single MemoryBackend can be
// wired into all three persistence ports at once, the way a single
// connection pool backs every mapper in a real database.
type memoryState struct {
	mu sync.Mutex

	projects map[string]*model.Project // by id
	byURL    map[string]string         // repo URL -> id
	jobs     map[string]*model.Job
	tech     map[string][]model.TechStackEntry
	issues   map[string][]model.Issue
	team     map[string][]model.TeamMember
}

// MemoryBackend is an in-memory ProjectStore, JobStore, and ChildStore,
// used to exercise the pipeline and job runner end-to-end in tests
// without a real relational backend.
type MemoryBackend struct {
	state *memoryState
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{state: &memoryState{
		projects: make(map[string]*model.Project),
		byURL:    make(map[string]string),
		jobs:     make(map[string]*model.Job),
		tech:     make(map[string][]model.TechStackEntry),
		issues:   make(map[string][]model.Issue),
		team:     make(map[string][]model.TeamMember),
	}}
}

// Projects returns the ProjectStore view of the backend.
func (b *MemoryBackend) Projects() ProjectStore { return memoryProjectStore{b.state} }

// Jobs returns the JobStore view of the backend.
func (b *MemoryBackend) Jobs() JobStore { return memoryJobStore{b.state} }

// Children returns the ChildStore view of the backend.
func (b *MemoryBackend) Children() ChildStore { return memoryChildStore{b.state} }

// TechStackFor returns the tech stack rows recorded for projectID, for
// test assertions.
func (b *MemoryBackend) TechStackFor(projectID string) []model.TechStackEntry {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	return append([]model.TechStackEntry(nil), b.state.tech[projectID]...)
}

// IssuesFor returns the issue rows recorded for projectID, for test
// assertions.
func (b *MemoryBackend) IssuesFor(projectID string) []model.Issue {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	return append([]model.Issue(nil), b.state.issues[projectID]...)
}

// TeamFor returns the team member rows recorded for projectID, for test
// assertions.
func (b *MemoryBackend) TeamFor(projectID string) []model.TeamMember {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	return append([]model.TeamMember(nil), b.state.team[projectID]...)
}

var (
	_ ProjectStore = memoryProjectStore{}
	_ JobStore     = memoryJobStore{}
	_ ChildStore   = memoryChildStore{}
)

type memoryProjectStore struct{ s *memoryState }

func (m memoryProjectStore) GetByURL(_ context.Context, repoURL string) (*model.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	id, ok := m.s.byURL[repoURL]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *m.s.projects[id]

	return &cp, nil
}

func (m memoryProjectStore) GetByID(_ context.Context, id string) (*model.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *p

	return &cp, nil
}

func (m memoryProjectStore) Create(_ context.Context, p *model.Project) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.byURL[p.RepoURL]; ok {
		return ErrConflict
	}

	cp := *p
	m.s.projects[p.ID] = &cp
	m.s.byURL[p.RepoURL] = p.ID

	return nil
}

func (m memoryProjectStore) Update(_ context.Context, p *model.Project) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.projects[p.ID]; !ok {
		return ErrNotFound
	}

	cp := *p
	m.s.projects[p.ID] = &cp

	return nil
}

func (m memoryProjectStore) List(_ context.Context, filter ProjectFilter) ([]*model.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	out := make([]*model.Project, 0, len(m.s.projects))

	for _, p := range m.s.projects {
		if filter.Status != "" && string(p.Status) != string(filter.Status) {
			continue
		}

		if filter.Search != "" && !strings.Contains(strings.ToLower(p.RepoURL), strings.ToLower(filter.Search)) {
			continue
		}

		cp := *p
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

// Delete cascades to all three owned child tables and any jobs (spec §3
// ownership invariant).
func (m memoryProjectStore) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.projects[id]
	if !ok {
		return ErrNotFound
	}

	delete(m.s.projects, id)
	delete(m.s.byURL, p.RepoURL)
	delete(m.s.tech, id)
	delete(m.s.issues, id)
	delete(m.s.team, id)

	for jobID, j := range m.s.jobs {
		if j.ProjectID == id {
			delete(m.s.jobs, jobID)
		}
	}

	return nil
}

type memoryJobStore struct{ s *memoryState }

func (m memoryJobStore) GetByID(_ context.Context, id string) (*model.Job, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	j, ok := m.s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *j

	return &cp, nil
}

func (m memoryJobStore) Create(_ context.Context, j *model.Job) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	cp := *j
	m.s.jobs[j.ID] = &cp

	return nil
}

func (m memoryJobStore) Update(_ context.Context, j *model.Job) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.jobs[j.ID]; !ok {
		return ErrNotFound
	}

	cp := *j
	m.s.jobs[j.ID] = &cp

	return nil
}

func (m memoryJobStore) ListByProject(_ context.Context, projectID string) ([]*model.Job, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []*model.Job

	for _, j := range m.s.jobs {
		if j.ProjectID == projectID {
			cp := *j
			out = append(out, &cp)
		}
	}

	return out, nil
}

type memoryChildStore struct{ s *memoryState }

func (m memoryChildStore) InsertTechStack(_ context.Context, entries []model.TechStackEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, e := range entries {
		m.s.tech[e.ProjectID] = append(m.s.tech[e.ProjectID], e)
	}

	return nil
}

func (m memoryChildStore) InsertIssues(_ context.Context, issues []model.Issue) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, i := range issues {
		m.s.issues[i.ProjectID] = append(m.s.issues[i.ProjectID], i)
	}

	return nil
}

func (m memoryChildStore) InsertTeamMembers(_ context.Context, members []model.TeamMember) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, tm := range members {
		m.s.team[tm.ProjectID] = append(m.s.team[tm.ProjectID], tm)
	}

	return nil
}

func (m memoryChildStore) DeleteByProject(_ context.Context, projectID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	delete(m.s.tech, projectID)
	delete(m.s.issues, projectID)
	delete(m.s.team, projectID)

	return nil
}
