package persist

import (
	"context"
	"errors"

	"github.com/codescope-dev/codescope/pkg/model"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("persist: not found")

// ErrConflict is returned when a write would violate a uniqueness or
// state invariant (e.g. submitting a repo URL already analyzing).
var ErrConflict = errors.New("persist: conflict")

// ProjectStore is the persistence port for the Project aggregate.
// Implementations must enforce repo-URL uniqueness at insert and must
// treat a nil Scores as "not yet analyzed".
type ProjectStore interface {
	GetByURL(ctx context.Context, repoURL string) (*model.Project, error)
	GetByID(ctx context.Context, id string) (*model.Project, error)
	Create(ctx context.Context, p *model.Project) error
	Update(ctx context.Context, p *model.Project) error
	List(ctx context.Context, filter ProjectFilter) ([]*model.Project, error)
	Delete(ctx context.Context, id string) error
}

// ProjectFilter narrows a Project listing.
type ProjectFilter struct {
	Status ProjectStatusFilter
	Tech   string
	Search string
}

// ProjectStatusFilter optionally restricts a listing to one status; the
// zero value matches every status.
type ProjectStatusFilter string

// JobStore is the persistence port for the Job aggregate.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
	Create(ctx context.Context, j *model.Job) error
	Update(ctx context.Context, j *model.Job) error
	ListByProject(ctx context.Context, projectID string) ([]*model.Job, error)
}

// ChildStore is the persistence port for a Project's owned child rows
// (TechStackEntry, Issue, TeamMember). Each insert method is independent:
// a Data Mapper call failing on one does not roll back the others
// (spec §4.12 best-effort durability).
type ChildStore interface {
	InsertTechStack(ctx context.Context, entries []model.TechStackEntry) error
	InsertIssues(ctx context.Context, issues []model.Issue) error
	InsertTeamMembers(ctx context.Context, members []model.TeamMember) error
	DeleteByProject(ctx context.Context, projectID string) error
}
