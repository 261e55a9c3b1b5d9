package detect

import (
	"github.com/src-d/enry/v2"

	"github.com/codescope-dev/codescope/pkg/astsim"
)

// enryToASTSim maps the subset of enry's language names this module
// carries a tree-sitter grammar for.
var enryToASTSim = map[string]astsim.Language{
	"Go":     astsim.Go,
	"Python": astsim.Python,
}

// classifyLanguage confirms a file's language via enry's content-aware
// classifier (vendor/generated/extension heuristics), falling back to
// extLang - the extension-table guess the caller already made - when
// enry's classifier can't resolve one of the two AST-supported
// languages from a short or ambiguous sample.
func classifyLanguage(name string, content []byte, extLang astsim.Language) astsim.Language {
	if lang, ok := enryToASTSim[enry.GetLanguage(name, content)]; ok {
		return lang
	}

	return extLang
}
