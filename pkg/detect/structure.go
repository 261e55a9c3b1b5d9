package detect

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/codescope-dev/codescope/pkg/model"
)

const (
	spaghettiRootFileThreshold = 15
	spaghettiFolderCeiling     = 3
	nestingHellDepth           = 6
	emptyProjectFolderCeiling  = 0
	emptyProjectRootFileCeiling = 5

	spaghettiPenalty = 40
	nestingPenalty   = 20
)

type archPattern struct {
	name      string
	required  []string
	threshold int
}

// archPatterns are checked in order; the first whose minimum-match
// threshold is met wins (§4.4).
var archPatterns = []archPattern{
	{"MVC (Model-View-Controller)", []string{"models", "views", "controllers"}, 2},
	{"Clean Architecture", []string{"domain", "use_cases", "data", "presentation", "core"}, 2},
	{"Microservices", []string{"services", "api-gateway", "kubernetes", "docker", "proto"}, 2},
	{"Modern React/Next", []string{"components", "hooks", "context", "pages", "public", "app"}, 3},
	{"Django Standard", []string{"migrations", "templates", "static", "apps"}, 3},
	{"Standard Go", []string{"cmd", "internal", "pkg", "api"}, 2},
	{"Flutter/Mobile", []string{"lib", "ios", "android", "assets"}, 3},
}

// Structure walks the working tree (skipping hidden and version-control
// folders), computes nesting depth, folder count, and root-file clutter,
// classifies the architecture by folder-name pattern matching, and
// derives an organization score (§4.4).
func Structure(root string) model.StructureReport {
	folders := make(map[string]struct{})

	maxDepth := 0
	totalFolders := 0
	rootFileCount := 0

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}

		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		depth := strings.Count(rel, string(filepath.Separator))

		if d.IsDir() {
			// A top-level folder is one level of nesting.
			if depth+1 > maxDepth {
				maxDepth = depth + 1
			}

			folders[strings.ToLower(d.Name())] = struct{}{}
			totalFolders++

			return nil
		}

		if depth == 0 && !strings.HasPrefix(d.Name(), ".") {
			rootFileCount++
		}

		return nil
	})

	architecture := classifyArchitecture(folders)

	orgScore := 100.0

	if rootFileCount > spaghettiRootFileThreshold && totalFolders < spaghettiFolderCeiling {
		orgScore -= spaghettiPenalty
		if architecture == "Monolithic / Unstructured" {
			architecture = "Flat Spaghetti Code"
		}
	}

	if maxDepth > nestingHellDepth {
		orgScore -= nestingPenalty
	}

	if totalFolders == emptyProjectFolderCeiling && rootFileCount < emptyProjectRootFileCeiling {
		orgScore = 0
		architecture = "Empty / Minimal"
	}

	if orgScore < 0 {
		orgScore = 0
	}

	folderNames := make([]string, 0, len(folders))
	for f := range folders {
		folderNames = append(folderNames, f)
	}

	return model.StructureReport{
		MaxDepth:          maxDepth,
		FolderCount:       totalFolders,
		RootFileCount:     rootFileCount,
		FolderNames:       folderNames,
		Architecture:      architecture,
		OrganizationScore: orgScore,
	}
}

func classifyArchitecture(folders map[string]struct{}) string {
	for _, pattern := range archPatterns {
		matches := 0

		for _, req := range pattern.required {
			if folderMatches(folders, req) {
				matches++
			}
		}

		if matches >= pattern.threshold {
			return pattern.name
		}
	}

	return "Monolithic / Unstructured"
}

func folderMatches(folders map[string]struct{}, req string) bool {
	if _, ok := folders[req]; ok {
		return true
	}

	for f := range folders {
		if strings.Contains(f, req) {
			return true
		}
	}

	return false
}
