package persist

import (
	"context"
	"fmt"
	"math"

	"github.com/codescope-dev/codescope/pkg/model"
)

const (
	maxVerdictLen  = 255
	maxFeedbackLen = 5000

	qualityIssueMaintainabilityThreshold     = 50.0
	qualityIssueHighSeverityThreshold        = 20.0
	originIssueThreshold                     = 50.0
	originIssueHighSeverityAIThreshold       = 80.0
	originIssueHighSeverityPlagThreshold     = 80.0
)

// Mapper translates a completed Report into calls against the
// persistence ports, per the derivation rules of spec §4.12. Each write
// is independent and best-effort: a failure in one does not prevent or
// roll back the others, and is returned to the caller as one element of
// the returned error slice rather than aborting early.
type Mapper struct {
	Projects ProjectStore
	Jobs     JobStore
	Children ChildStore
	Codec    BlobCodec
}

// NewMapper builds a Mapper over the given ports, using LZ4JSONCodec for
// the report blob.
func NewMapper(projects ProjectStore, jobs JobStore, children ChildStore) *Mapper {
	return &Mapper{
		Projects: projects,
		Jobs:     jobs,
		Children: children,
		Codec:    NewLZ4JSONCodec(),
	}
}

// Persist writes a completed Report's four derived pieces of state for
// projectID: the Project row itself (scores, verdict, feedback, blob),
// the tech stack entries, the derived issues, and the team roster. Each
// piece is attempted independently; errors are collected, not
// short-circuited.
func (m *Mapper) Persist(ctx context.Context, project *model.Project, r *model.Report) []error {
	var errs []error

	if err := m.persistProject(ctx, project, r); err != nil {
		errs = append(errs, fmt.Errorf("persist project: %w", err))
	}

	if entries := mapTechStack(project.ID, r); len(entries) > 0 {
		if err := m.Children.InsertTechStack(ctx, entries); err != nil {
			errs = append(errs, fmt.Errorf("persist tech stack: %w", err))
		}
	}

	if issues := mapIssues(project.ID, r); len(issues) > 0 {
		if err := m.Children.InsertIssues(ctx, issues); err != nil {
			errs = append(errs, fmt.Errorf("persist issues: %w", err))
		}
	}

	if team := mapTeam(project.ID, r); len(team) > 0 {
		if err := m.Children.InsertTeamMembers(ctx, team); err != nil {
			errs = append(errs, fmt.Errorf("persist team: %w", err))
		}
	}

	return errs
}

// persistProject updates the Project row with the computed scores,
// truncated verdict/feedback strings, total commit count, and a
// compressed report blob. If encoding or writing the blob fails, it
// retries once with the blob omitted so a report that is too unusual to
// compress (or a transient write failure) does not lose the scores.
func (m *Mapper) persistProject(ctx context.Context, project *model.Project, r *model.Report) error {
	project.Scores = &r.Scores
	project.TotalCommits = r.Forensics.TotalCommits
	project.Verdict = truncate(r.Judge.Verdict, maxVerdictLen)
	project.PositiveNotes = truncate(r.Judge.PositiveFeedback, maxFeedbackLen)
	project.ConstructiveNotes = truncate(r.Judge.ConstructiveFeedback, maxFeedbackLen)
	project.Status = model.ProjectCompleted

	blob, err := m.Codec.Encode(r)
	if err != nil {
		project.ReportBlob = nil
		return m.Projects.Update(ctx, project)
	}

	project.ReportBlob = blob

	if err := m.Projects.Update(ctx, project); err != nil {
		project.ReportBlob = nil
		return m.Projects.Update(ctx, project)
	}

	return nil
}

// mapTechStack converts the stack detector's technology list into
// TechStackEntry rows. Category is not distinguished by the detector, so
// every entry is recorded as a language; the judge oracle's observed
// stack (when present) is merged in without duplicates.
func mapTechStack(projectID string, r *model.Report) []model.TechStackEntry {
	seen := make(map[string]bool, len(r.Stack.Technologies))

	entries := make([]model.TechStackEntry, 0, len(r.Stack.Technologies))

	for _, name := range r.Stack.Technologies {
		if seen[name] {
			continue
		}

		seen[name] = true

		entries = append(entries, model.TechStackEntry{
			ProjectID: projectID,
			Name:      name,
			Category:  model.TechLanguage,
		})
	}

	for _, name := range r.Judge.TechStackObserved {
		if seen[name] {
			continue
		}

		seen[name] = true

		entries = append(entries, model.TechStackEntry{
			ProjectID: projectID,
			Name:      name,
			Category:  model.TechFramework,
		})
	}

	return entries
}

// mapIssues derives Issue rows from three independent sources, per spec
// §4.12: every leaked secret becomes a security issue of severity high;
// every file with AI likelihood above 50% becomes a plagiarism issue
// (high if above 80%, medium otherwise); every file with plagiarism
// similarity above 50% becomes a plagiarism issue the same way; and a
// single quality issue is raised if average maintainability drops below
// 50 (high if below 20).
func mapIssues(projectID string, r *model.Report) []model.Issue {
	var issues []model.Issue

	for _, leak := range r.Security.Leaks {
		issues = append(issues, model.Issue{
			ProjectID:   projectID,
			Kind:        model.IssueSecurity,
			Severity:    model.SeverityHigh,
			FilePath:    leak.Path,
			Description: fmt.Sprintf("possible leaked %s at line %d", leak.Category, leak.Line),
		})
	}

	for path, likelihood := range r.Origin.AILikelihood {
		pct := likelihood * 100
		if pct <= originIssueThreshold {
			continue
		}

		l := likelihood
		issues = append(issues, model.Issue{
			ProjectID:     projectID,
			Kind:          model.IssuePlagiarism,
			Severity:      severityFor(pct, originIssueHighSeverityAIThreshold),
			FilePath:      path,
			Description:   "high AI-generation likelihood",
			AIProbability: &l,
		})
	}

	for path, match := range r.Origin.Plagiarism {
		pct := match.Similarity * 100
		if pct <= originIssueThreshold {
			continue
		}

		sim := match.Similarity
		issues = append(issues, model.Issue{
			ProjectID:   projectID,
			Kind:        model.IssuePlagiarism,
			Severity:    severityFor(pct, originIssueHighSeverityPlagThreshold),
			FilePath:    path,
			Description: fmt.Sprintf("high similarity to %s", match.MatchPath),
			Similarity:  &sim,
		})
	}

	if r.Quality.AverageMaintainability < qualityIssueMaintainabilityThreshold {
		severity := model.SeverityMedium
		if r.Quality.AverageMaintainability < qualityIssueHighSeverityThreshold {
			severity = model.SeverityHigh
		}

		issues = append(issues, model.Issue{
			ProjectID:   projectID,
			Kind:        model.IssueQuality,
			Severity:    severity,
			Description: "average maintainability index below threshold",
		})
	}

	return issues
}

func severityFor(pct, highThreshold float64) model.IssueSeverity {
	if pct > highThreshold {
		return model.SeverityHigh
	}

	return model.SeverityMedium
}

// mapTeam converts forensics author stats into TeamMember rows, each
// with contribution percentage rounded to two decimal places.
func mapTeam(projectID string, r *model.Report) []model.TeamMember {
	if r.Forensics.TotalCommits == 0 {
		return nil
	}

	team := make([]model.TeamMember, 0, len(r.Forensics.AuthorStats))

	for _, a := range r.Forensics.AuthorStats {
		pct := float64(a.Commits) / float64(r.Forensics.TotalCommits) * 100
		pct = math.Round(pct*100) / 100

		team = append(team, model.TeamMember{
			ProjectID:       projectID,
			AuthorName:      a.Author,
			CommitCount:     a.Commits,
			ContributionPct: pct,
		})
	}

	return team
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit]
}
