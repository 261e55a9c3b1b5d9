package detect

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/codescope-dev/codescope/pkg/model"
)

const stackContentSampleBytes = 8192

// stackMarkers maps a manifest/config filename (lowercase) to the
// technology it implies.
var stackMarkers = map[string]string{
	"requirements.txt":   "Python",
	"pyproject.toml":     "Python",
	"package.json":       "Node.js",
	"pom.xml":            "Java",
	"build.gradle":       "Java",
	"go.mod":             "Go",
	"composer.json":      "PHP",
	"gemfile":            "Ruby",
	"cargo.toml":         "Rust",
	"dockerfile":         "Docker",
	"manage.py":          "Django",
	"next.config.js":     "Next.js",
	"tailwind.config.js": "Tailwind",
}

// Stack walks the working tree once, collecting every filename, and
// matches them against a fixed manifest/config marker table (§4.3). When
// no marker matches, the language enry attributes the most source bytes
// to becomes the fallback primary language.
func Stack(root string) model.StackReport {
	files := make(map[string]struct{})
	langBytes := make(map[string]int64)

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" {
				return filepath.SkipDir
			}

			return nil
		}

		files[strings.ToLower(d.Name())] = struct{}{}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if enry.IsVendor(rel) || enry.IsDotFile(rel) || enry.IsDocumentation(rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil || info.Size() == 0 {
			return nil
		}

		sample, sampleErr := readSample(path, stackContentSampleBytes)
		if sampleErr != nil {
			return nil
		}

		if enry.IsGenerated(rel, sample) {
			return nil
		}

		if lang := enry.GetLanguage(d.Name(), sample); lang != "" {
			langBytes[lang] += info.Size()
		}

		return nil
	})

	found := make(map[string]struct{})

	for name, tech := range stackMarkers {
		if _, ok := files[name]; ok {
			found[tech] = struct{}{}
		}
	}

	primary := ""

	if len(found) == 0 {
		bestLang, bestBytes := "", int64(0)

		for lang, n := range langBytes {
			if n > bestBytes {
				bestLang, bestBytes = lang, n
			}
		}

		if bestLang != "" {
			found[bestLang] = struct{}{}
			primary = bestLang
		} else {
			found["Generic/Unknown"] = struct{}{}
			primary = "Generic/Unknown"
		}
	}

	techs := make([]string, 0, len(found))
	for t := range found {
		techs = append(techs, t)
	}

	sort.Strings(techs)

	if primary == "" && len(techs) > 0 {
		primary = techs[0]
	}

	return model.StackReport{
		Technologies:    techs,
		PrimaryLanguage: primary,
	}
}

func readSample(path string, limit int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, limit)

	n, readErr := f.Read(buf)
	if readErr != nil && readErr != io.EOF {
		return nil, readErr
	}

	return buf[:n], nil
}
