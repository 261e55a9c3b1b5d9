package detect

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/codescope-dev/codescope/pkg/model"
)

const (
	maturityContainerPoints = 20
	maturityCloudPoints     = 20
	maturityCIPoints        = 20
	maturityLintPoints      = 10
	maturityTestPointsCap   = 30
	maturityTestPointsEach  = 6
	maturityScoreCap        = 100
)

var devopsFiles = map[string][]string{
	"container": {"dockerfile", "docker-compose.yml", ".dockerignore"},
	"ci":        {".github/workflows", ".gitlab-ci.yml", "azure-pipelines.yml", "circleci.config.yml"},
	"cloud":     {"vercel.json", "netlify.toml", "app.yaml", "serverless.yml", "procfile"},
	"lint":      {".eslintrc", ".pylintrc", "pyproject.toml", ".prettierrc"},
}

var testNamePatterns = []string{
	"test_", "_test.py", ".spec.js", ".test.js", "src/test", "tests/", "__tests__", "_test.go",
}

var assertionTokens = []string{"assert", "expect(", "testing"}

// Maturity walks the working tree looking for DevOps markers across four
// categories and for test files whose content contains an assertion
// token, then scores the project per §4.5.
func Maturity(root string) model.MaturityReport {
	hasContainer, hasCI, hasCloud, hasLint := false, false, false, false
	testFiles := 0

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		lowerRel := strings.ToLower(rel)

		if strings.Contains(lowerRel, ".github") {
			hasCI = true
		}

		if d.IsDir() {
			return nil
		}

		lowerName := strings.ToLower(d.Name())

		if matchesAny(lowerName, devopsFiles["container"]) {
			hasContainer = true
		}

		if matchesAny(lowerName, devopsFiles["ci"]) {
			hasCI = true
		}

		if matchesAny(lowerName, devopsFiles["cloud"]) {
			hasCloud = true
		}

		if matchesAny(lowerName, devopsFiles["lint"]) {
			hasLint = true
		}

		if looksLikeTest(lowerName, lowerRel) && !hasExcludedExt(lowerName) {
			content, readErr := os.ReadFile(path)
			if readErr == nil && containsAssertion(string(content)) {
				testFiles++
			}
		}

		return nil
	})

	score := 0.0
	if hasContainer {
		score += maturityContainerPoints
	}

	if hasCloud {
		score += maturityCloudPoints
	}

	if hasCI {
		score += maturityCIPoints
	}

	if hasLint {
		score += maturityLintPoints
	}

	testScore := float64(testFiles * maturityTestPointsEach)
	if testScore > maturityTestPointsCap {
		testScore = maturityTestPointsCap
	}

	score += testScore
	if score > maturityScoreCap {
		score = maturityScoreCap
	}

	return model.MaturityReport{
		HasContainer:  hasContainer,
		HasCI:         hasCI,
		HasCloud:      hasCloud,
		HasLint:       hasLint,
		TestFileCount: testFiles,
		HasTests:      testFiles > 0,
		IsDeployable:  hasContainer || hasCloud,
		Score:         score,
	}
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(name, strings.ToLower(c)) {
			return true
		}
	}

	return false
}

func looksLikeTest(name, rel string) bool {
	for _, p := range testNamePatterns {
		if strings.Contains(name, p) || strings.Contains(rel, p) {
			return true
		}
	}

	return false
}

func hasExcludedExt(name string) bool {
	for _, ext := range []string{".png", ".jpg", ".xml", ".json"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}

	return false
}

func containsAssertion(content string) bool {
	lower := strings.ToLower(content)

	for _, tok := range assertionTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}

	return false
}
