package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/codescope-dev/codescope/pkg/model"
)

const (
	judgeSummaryMaxChars    = 40000
	judgeTreeMaxDepth       = 3
	judgeSourceSampleCount  = 10
	judgeSourceSampleChars  = 3000
	judgeDefaultTimeout     = 60 * time.Second
	judgeValidVerdictProd   = "Production Ready"
	judgeValidVerdictProto  = "Prototype"
	judgeValidVerdictBroken = "Broken"
)

var judgeCriticalFiles = []string{
	"README.md", "requirements.txt", "package.json", "Dockerfile", "schema.sql", ".env.example",
}

var judgeSourceExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".java": {}, ".go": {}, ".ts": {}, ".cpp": {},
}

var judgeSkippedFileSuffixes = []string{".pyc", ".lock", ".png", ".jpg"}

var judgeValidVerdicts = map[string]struct{}{
	judgeValidVerdictProd:   {},
	judgeValidVerdictProto:  {},
	judgeValidVerdictBroken: {},
}

// judgeResponseSchema constrains the shape the external judge must answer
// in. A readable JudgeConfig.SchemaPath replaces it; the verdict string is
// checked against judgeValidVerdicts either way.
const judgeResponseSchema = `{
  "type": "object",
  "required": ["project_name", "description", "implementation_score", "verdict"],
  "properties": {
    "project_name": {"type": "string"},
    "description": {"type": "string"},
    "features": {"type": "array", "items": {"type": "string"}},
    "tech_stack_observed": {"type": "array", "items": {"type": "string"}},
    "implementation_score": {"type": "number", "minimum": 0, "maximum": 100},
    "positive_feedback": {"type": "string"},
    "constructive_feedback": {"type": "string"},
    "verdict": {"type": "string", "enum": ["Production Ready", "Prototype", "Broken"]}
  }
}`

// JudgeConfig carries the external judge oracle's credentials and dial
// parameters. A zero-value or missing Endpoint/APIKey is a valid
// configuration meaning "skip the oracle".
type JudgeConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	SchemaPath string
	Timeout    time.Duration
	Enabled    bool
}

type judgeRequest struct {
	Model   string `json:"model"`
	Summary string `json:"summary"`
}

type judgeResponse struct {
	ProjectName          string   `json:"project_name"`
	Description          string   `json:"description"`
	Features             []string `json:"features"`
	TechStackObserved    []string `json:"tech_stack_observed"`
	ImplementationScore  float64  `json:"implementation_score"`
	PositiveFeedback     string   `json:"positive_feedback"`
	ConstructiveFeedback string   `json:"constructive_feedback"`
	Verdict              string   `json:"verdict"`
}

// Judge generates a textual summary of the repository at root and submits
// it to the external judge described by cfg (§4.10). Any failure to reach
// or trust the judge - disabled, missing credential, transport error,
// malformed or schema-invalid response - yields a skipped verdict rather
// than an error, so the pipeline can proceed without it.
func Judge(ctx context.Context, root string, cfg JudgeConfig) model.JudgeVerdict {
	if !cfg.Enabled || cfg.Endpoint == "" || cfg.APIKey == "" {
		return skippedVerdict()
	}

	summary := generateSummary(root)

	resp, err := callJudge(ctx, cfg, summary)
	if err != nil {
		return skippedVerdict()
	}

	return resp
}

func skippedVerdict() model.JudgeVerdict {
	return model.JudgeVerdict{Skipped: true, ImplementationScore: 0}
}

func callJudge(ctx context.Context, cfg JudgeConfig, summary string) (model.JudgeVerdict, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = judgeDefaultTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, marshalErr := json.Marshal(judgeRequest{Model: cfg.Model, Summary: summary})
	if marshalErr != nil {
		return model.JudgeVerdict{}, fmt.Errorf("marshal judge request: %w", marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(reqCtx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if reqErr != nil {
		return model.JudgeVerdict{}, fmt.Errorf("build judge request: %w", reqErr)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	client := &http.Client{Timeout: timeout}

	httpResp, doErr := client.Do(httpReq)
	if doErr != nil {
		return model.JudgeVerdict{}, fmt.Errorf("call judge endpoint: %w", doErr)
	}
	defer httpResp.Body.Close()

	respBody, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		return model.JudgeVerdict{}, fmt.Errorf("read judge response: %w", readErr)
	}

	if httpResp.StatusCode != http.StatusOK {
		return model.JudgeVerdict{}, fmt.Errorf("judge endpoint returned status %d", httpResp.StatusCode)
	}

	return parseVerdict(respBody, cfg.SchemaPath)
}

func parseVerdict(body []byte, schemaPath string) (model.JudgeVerdict, error) {
	var payload any

	if err := json.Unmarshal(body, &payload); err != nil {
		return model.JudgeVerdict{}, fmt.Errorf("decode judge response: %w", err)
	}

	schemaLoader := loadJudgeSchema(schemaPath)

	result, validateErr := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(payload))
	if validateErr != nil {
		return model.JudgeVerdict{}, fmt.Errorf("validate judge response: %w", validateErr)
	}

	if !result.Valid() {
		return model.JudgeVerdict{}, fmt.Errorf("judge response failed schema validation: %v", result.Errors())
	}

	var resp judgeResponse

	if err := json.Unmarshal(body, &resp); err != nil {
		return model.JudgeVerdict{}, fmt.Errorf("unmarshal judge response: %w", err)
	}

	if _, ok := judgeValidVerdicts[resp.Verdict]; !ok {
		return model.JudgeVerdict{}, fmt.Errorf("unrecognized judge verdict %q", resp.Verdict)
	}

	return model.JudgeVerdict{
		ProjectName:          resp.ProjectName,
		Description:          resp.Description,
		Features:             resp.Features,
		TechStackObserved:    resp.TechStackObserved,
		ImplementationScore:  resp.ImplementationScore,
		PositiveFeedback:     resp.PositiveFeedback,
		ConstructiveFeedback: resp.ConstructiveFeedback,
		Verdict:              resp.Verdict,
		Skipped:              false,
	}, nil
}

func loadJudgeSchema(schemaPath string) gojsonschema.JSONLoader {
	if schemaPath != "" {
		if schemaBytes, err := os.ReadFile(schemaPath); err == nil {
			return gojsonschema.NewBytesLoader(schemaBytes)
		}
	}

	return gojsonschema.NewStringLoader(judgeResponseSchema)
}

// generateSummary ports the directory-tree-plus-samples summary the
// original judge client fed its oracle: a depth-limited tree, any
// canonical config files present in full, and the content of the ten
// largest recognized source files, all capped at roughly 40000 characters.
func generateSummary(root string) string {
	var b strings.Builder

	b.WriteString("Directory structure:\n")
	b.WriteString(directoryTree(root, judgeTreeMaxDepth))

	for _, name := range judgeCriticalFiles {
		content, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}

		b.WriteString(fmt.Sprintf("\n--- FILE: %s ---\n%s\n", name, string(content)))
	}

	samples := topSourceSamples(root, judgeSourceSampleCount)

	charsSoFar := b.Len()

	for _, s := range samples {
		if charsSoFar > judgeSummaryMaxChars {
			break
		}

		snippet := truncateToChars(s.content, judgeSourceSampleChars)
		section := fmt.Sprintf("\n--- FILE: %s ---\n%s\n", s.rel, snippet)
		b.WriteString(section)
		charsSoFar += len(section)
	}

	summary := b.String()
	if len(summary) > judgeSummaryMaxChars {
		summary = summary[:judgeSummaryMaxChars]
	}

	return summary
}

func directoryTree(root string, maxDepth int) string {
	var b strings.Builder

	var walk func(dir string, depth int)

	walk = func(dir string, depth int) {
		if depth > maxDepth {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") || hasSkippedSuffix(name) {
				continue
			}

			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(name)

			if entry.IsDir() {
				b.WriteString("/\n")
				walk(filepath.Join(dir, name), depth+1)
			} else {
				b.WriteString("\n")
			}
		}
	}

	walk(root, 0)

	return b.String()
}

func hasSkippedSuffix(name string) bool {
	for _, suffix := range judgeSkippedFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}

type judgeSourceSample struct {
	rel     string
	size    int64
	content string
}

func topSourceSamples(root string, n int) []judgeSourceSample {
	var samples []judgeSourceSample

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

		if _, ok := judgeSourceExtensions[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		samples = append(samples, judgeSourceSample{rel: rel, size: info.Size()})

		return nil
	})

	sort.Slice(samples, func(i, j int) bool { return samples[i].size > samples[j].size })

	if len(samples) > n {
		samples = samples[:n]
	}

	for i := range samples {
		content, err := os.ReadFile(filepath.Join(root, samples[i].rel))
		if err == nil {
			samples[i].content = string(content)
		}
	}

	return samples
}

func truncateToChars(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit]
}
