package detect

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codescope-dev/codescope/pkg/alg/stats"
	"github.com/codescope-dev/codescope/pkg/astsim"
	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/winnow"
)

const (
	qualityNeutralComplexity      = 5.0
	qualityNeutralMaintainability = 60.0
	qualityNeutralDocScore        = 40.0
	qualityBaseComplexity         = 1.0
	qualityDocRatioTarget         = 0.15
	qualityDocScoreCeiling        = 100.0
	maintainabilityHalsteadCoef   = 5.2
	maintainabilityComplexityCoef = 0.23
	maintainabilityLOCCoef        = 16.2
	maintainabilityConstant       = 171.0
	maintainabilityScale          = 100.0 / maintainabilityConstant
)

var qualityExtensions = map[string]astsim.Language{
	".go": astsim.Go,
	".py": astsim.Python,
}

var commentPrefixRE = map[astsim.Language]*regexp.Regexp{
	astsim.Go:     regexp.MustCompile(`^\s*//`),
	astsim.Python: regexp.MustCompile(`^\s*#`),
}

// Quality walks source files in the two supported languages, computing
// per-file cyclomatic complexity (average of function-level block
// complexities) and a maintainability index derived from a Halstead
// volume estimate, complexity, and line count, then aggregates to
// averages plus a comment-density documentation score (§4.8). Falls
// back to neutral defaults when no supported file is found so that
// projects in other languages aren't penalized for toolchain absence.
func Quality(root string) model.QualityReport {
	ctx := context.Background()

	var (
		complexities      []float64
		maintainabilities []float64
		totalLOC          int
		totalComments     int
	)

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "vendor" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}

			return nil
		}

		lang, ok := qualityExtensions[strings.ToLower(filepath.Ext(d.Name()))]
		if !ok {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil || len(strings.TrimSpace(string(content))) == 0 {
			return nil
		}

		lang = classifyLanguage(d.Name(), content, lang)

		complexity, maintainability, loc, comments := analyzeFile(ctx, lang, content)

		complexities = append(complexities, complexity)
		maintainabilities = append(maintainabilities, maintainability)
		totalLOC += loc
		totalComments += comments

		return nil
	})

	if len(complexities) == 0 {
		return model.QualityReport{
			AverageComplexity:      qualityNeutralComplexity,
			AverageMaintainability: qualityNeutralMaintainability,
			DocumentationScore:     qualityNeutralDocScore,
		}
	}

	docScore := qualityNeutralDocScore
	if totalLOC > 0 {
		ratio := float64(totalComments) / float64(totalLOC)
		docScore = math.Min(1.0, ratio/qualityDocRatioTarget) * qualityDocScoreCeiling
	}

	return model.QualityReport{
		AverageComplexity:      stats.Mean(complexities),
		AverageMaintainability: stats.Mean(maintainabilities),
		DocumentationScore:     docScore,
	}
}

func analyzeFile(ctx context.Context, lang astsim.Language, content []byte) (complexity, maintainability float64, loc, comments int) {
	loc, comments = rawStats(lang, content)

	blocks, err := astsim.Complexity(ctx, lang, content)
	if err != nil || len(blocks) == 0 {
		complexity = qualityBaseComplexity
	} else {
		sum := 0
		for _, c := range blocks {
			sum += c
		}

		complexity = float64(sum) / float64(len(blocks))
	}

	maintainability = maintainabilityIndex(content, complexity, loc)

	return complexity, maintainability, loc, comments
}

func rawStats(lang astsim.Language, content []byte) (loc, comments int) {
	re := commentPrefixRE[lang]

	lines := strings.Split(string(content), "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		loc++

		if re != nil && re.MatchString(line) {
			comments++
		}
	}

	return loc, comments
}

// maintainabilityIndex approximates radon's mi_visit formula using a
// token-based Halstead volume estimate (distinct tokens * log2(total
// tokens)) in place of a full operator/operand classification, since
// that requires language-specific grammar tables this module doesn't
// carry. Clamped to [0, 100].
func maintainabilityIndex(content []byte, complexity float64, loc int) float64 {
	tokens := winnow.Tokenize(string(content))
	if len(tokens) == 0 || loc == 0 {
		return qualityNeutralMaintainability
	}

	distinct := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		distinct[tok] = struct{}{}
	}

	volume := float64(len(distinct)) * math.Log2(float64(len(tokens)))
	if volume < 1 {
		volume = 1
	}

	raw := maintainabilityConstant -
		maintainabilityHalsteadCoef*math.Log(volume) -
		maintainabilityComplexityCoef*complexity -
		maintainabilityLOCCoef*math.Log(float64(loc))

	return stats.Clamp(raw*maintainabilityScale, 0, 100)
}
