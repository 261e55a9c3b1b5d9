package detect

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codescope-dev/codescope/pkg/astsim"
	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/winnow"
)

const (
	originLLMSampleSize    = 15
	originPlagSampleSize   = 20
	originMinFileSize      = 100
	originEntropyMidpoint  = 6.0
	originLengthDampenCap  = 2000
	originASTWeight        = 0.6
	originTokenWeight      = 0.4
)

var originLanguageExtensions = map[string]astsim.Language{
	".go": astsim.Go,
	".py": astsim.Python,
}

// Oracle is an external AI/plagiarism detector the origin ensemble can
// consult alongside its local entropy heuristic. It returns ok=false
// when the oracle is unavailable (missing credential, request failure)
// so the ensemble falls back to whatever other scores it has.
type Oracle func(ctx context.Context, content string) (score float64, ok bool)

type originFile struct {
	path        string
	lang        astsim.Language
	hasLang     bool
	tokens      []string
	fingerprint winnow.Fingerprint
	types       []string
	hasTypes    bool
}

// Origin samples the largest source files under root and produces the
// origin ensemble report (§4.7): a per-file LLM-likelihood score from a
// token-entropy heuristic ensembled with any configured external
// oracles, and per-file best-match plagiarism similarity over a
// winnowing fingerprint pool, blended with AST-type-sequence similarity
// when both files are in a language the AST analyzer supports.
func Origin(root string, oracles ...Oracle) model.OriginReport {
	candidates := sampleSourceFiles(root)

	report := model.OriginReport{
		AILikelihood: make(map[string]float64),
		Plagiarism:   make(map[string]model.FileMatch),
	}

	if len(candidates) == 0 {
		return report
	}

	llmPool := topN(candidates, originLLMSampleSize)
	for _, c := range llmPool {
		report.AILikelihood[c.rel] = llmLikelihood(context.Background(), c.content, oracles)
	}

	plagPool := buildOriginFiles(topN(candidates, originPlagSampleSize))
	for path, match := range bestPlagiarismMatches(plagPool) {
		report.Plagiarism[path] = match
	}

	return report
}

type sourceCandidate struct {
	rel     string
	size    int64
	content string
}

func sampleSourceFiles(root string) []sourceCandidate {
	var candidates []sourceCandidate

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

		if _, ok := originLanguageExtensions[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil || info.Size() < originMinFileSize {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		candidates = append(candidates, sourceCandidate{rel: rel, size: info.Size(), content: string(content)})

		return nil
	})

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].size > candidates[j].size })

	return candidates
}

func topN(candidates []sourceCandidate, n int) []sourceCandidate {
	if len(candidates) <= n {
		return candidates
	}

	return candidates[:n]
}

func llmLikelihood(ctx context.Context, content string, oracles []Oracle) float64 {
	tokens := winnow.Tokenize(content)

	scores := []float64{llmHeuristicScore(tokens)}

	for _, oracle := range oracles {
		if oracle == nil {
			continue
		}

		if score, ok := oracle(ctx, content); ok {
			scores = append(scores, score)
		}
	}

	sum := 0.0
	for _, s := range scores {
		sum += s
	}

	return sum / float64(len(scores))
}

// llmHeuristicScore reproduces the local heuristic from the original
// implementation: a sigmoid centered on entropy 6.0, dampened toward 0
// for very short token streams.
func llmHeuristicScore(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}

	entropy := tokenEntropy(tokens)
	sigmoid := 1.0 / (1.0 + math.Exp(entropy-originEntropyMidpoint))
	lengthFactor := math.Min(1.0, float64(len(tokens))/originLengthDampenCap)

	return sigmoid * lengthFactor
}

func tokenEntropy(tokens []string) float64 {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	total := float64(len(tokens))
	entropy := 0.0

	for _, count := range counts {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}

	return entropy
}

func buildOriginFiles(candidates []sourceCandidate) []originFile {
	ctx := context.Background()

	files := make([]originFile, 0, len(candidates))

	for _, c := range candidates {
		tokens := winnow.Tokenize(c.content)

		of := originFile{
			path:        c.rel,
			tokens:      tokens,
			fingerprint: winnow.Winnow(tokens, winnow.K, winnow.W),
		}

		if extLang, ok := originLanguageExtensions[strings.ToLower(filepath.Ext(c.rel))]; ok {
			of.lang = classifyLanguage(filepath.Base(c.rel), []byte(c.content), extLang)
			of.hasLang = true

			if types, err := astsim.TypeSequence(ctx, of.lang, []byte(c.content)); err == nil {
				of.types = types
				of.hasTypes = true
			}
		}

		files = append(files, of)
	}

	return files
}

// bestPlagiarismMatches computes, for every file in the pool, its
// highest-similarity other file and records that match.
func bestPlagiarismMatches(files []originFile) map[string]model.FileMatch {
	matches := make(map[string]model.FileMatch, len(files))

	for i := range files {
		bestPath := ""
		bestScore := -1.0

		for j := range files {
			if i == j {
				continue
			}

			score := pairSimilarity(files[i], files[j])
			if score > bestScore {
				bestScore = score
				bestPath = files[j].path
			}
		}

		if bestPath == "" {
			continue
		}

		matches[files[i].path] = model.FileMatch{
			Path:       files[i].path,
			MatchPath:  bestPath,
			Similarity: bestScore,
		}
	}

	return matches
}

func pairSimilarity(a, b originFile) float64 {
	tokenSim := winnow.Jaccard(a.fingerprint, b.fingerprint)

	if a.hasLang && b.hasLang && a.lang == b.lang && a.hasTypes && b.hasTypes {
		astSim := astsim.Similarity(a.types, b.types)

		return originASTWeight*astSim + originTokenWeight*tokenSim
	}

	return tokenSim
}
