// Package aggregate reduces a completed Report's eight detector outputs
// into the weighted scorecard and the bounded per-file risk list (§4.11).
package aggregate

import (
	"sort"

	"github.com/codescope-dev/codescope/pkg/config"
	"github.com/codescope-dev/codescope/pkg/model"
)

const (
	fileRiskASTWeight   = 0.6
	fileRiskTokenWeight = 0.4
	fileRiskThreshold   = 15.0
	fileRiskMaxFiles    = 30
	effortScoreCap      = 100.0
)

// Score folds a completed Report's detector outputs into Report.Scores
// and Report.Files, using weights the caller's ScoringConfig was already
// validated to sum to 1.0.
func Score(r *model.Report, weights config.ScoringConfig) {
	r.Files = fileRisks(r.Origin)

	maxAI := 0.0
	for _, likelihood := range r.Origin.AILikelihood {
		if likelihood > maxAI {
			maxAI = likelihood
		}
	}

	originality := 100 - maxAI*100
	if originality < 0 {
		originality = 0
	}

	effort := float64(r.Forensics.TotalCommits)
	if effort > effortScoreCap {
		effort = effortScoreCap
	}

	scores := model.Scores{
		Originality:    originality,
		Quality:        r.Quality.AverageMaintainability,
		Security:       r.Security.Score,
		Effort:         effort,
		Implementation: r.Judge.ImplementationScore,
		Engineering:    r.Maturity.Score,
		Organization:   r.Structure.OrganizationScore,
		Documentation:  r.Quality.DocumentationScore,
	}

	scores.Total = weights.Originality*scores.Originality +
		weights.Quality*scores.Quality +
		weights.Security*scores.Security +
		weights.Effort*scores.Effort +
		weights.Implementation*scores.Implementation +
		weights.Engineering*scores.Engineering +
		weights.Organization*scores.Organization +
		weights.Documentation*scores.Documentation

	r.Scores = scores
}

// fileRisks computes the combined AI/plagiarism risk for every file the
// origin ensemble scored, keeping only files above the noise floor and
// bounding the result to the highest-risk fileRiskMaxFiles entries.
func fileRisks(origin model.OriginReport) []model.FileRisk {
	paths := make(map[string]struct{}, len(origin.AILikelihood)+len(origin.Plagiarism))
	for path := range origin.AILikelihood {
		paths[path] = struct{}{}
	}

	for path := range origin.Plagiarism {
		paths[path] = struct{}{}
	}

	risks := make([]model.FileRisk, 0, len(paths))

	for path := range paths {
		ai := origin.AILikelihood[path]
		plag := origin.Plagiarism[path].Similarity

		risk := (fileRiskASTWeight*ai + fileRiskTokenWeight*plag) * 100
		if risk <= fileRiskThreshold {
			continue
		}

		risks = append(risks, model.FileRisk{Path: path, Risk: risk})
	}

	sort.Slice(risks, func(i, j int) bool {
		if risks[i].Risk != risks[j].Risk {
			return risks[i].Risk > risks[j].Risk
		}

		return risks[i].Path < risks[j].Path
	})

	if len(risks) > fileRiskMaxFiles {
		risks = risks[:fileRiskMaxFiles]
	}

	return risks
}
