// Package astsim computes AST-type-sequence similarity between two
// source files: the preorder traversal of tree-sitter node-type labels,
// compared via longest common subsequence and normalized by the mean
// sequence length. It supplements pairwise token similarity for the two
// languages this deployment carries a tree-sitter grammar for.
package astsim

import (
	"context"
	"fmt"

	golang "github.com/alexaandru/go-sitter-forest/go"
	python "github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Language identifies one of the grammars this package can parse.
type Language string

// Supported languages. Widened from the single-language whitelist the
// original tool shipped with, since both grammars are already a
// dependency of this module.
const (
	Go     Language = "go"
	Python Language = "python"
)

// Supported reports whether lang has a registered grammar.
func Supported(lang Language) bool {
	_, ok := grammars[lang]

	return ok
}

var grammars = map[Language]func() sitter.Language{
	Go:     golang.GetLanguage,
	Python: python.GetLanguage,
}

// parseTree parses code with lang's grammar, returning the tree. The
// caller must call tree.Close().
func parseTree(ctx context.Context, lang Language, code []byte) (*sitter.Tree, error) {
	newLang, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("astsim: unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if ok := parser.SetLanguage(newLang()); !ok {
		return nil, fmt.Errorf("astsim: failed to set grammar for %q", lang)
	}

	tree, err := parser.ParseCtx(ctx, nil, code)
	if err != nil {
		return nil, fmt.Errorf("astsim: parse %q: %w", lang, err)
	}

	return tree, nil
}

// TypeSequence parses code with lang's grammar and returns the preorder
// traversal of every node's type label. A parse failure or unsupported
// language yields an error; callers treat that as "fall back to token
// similarity alone", per the same-language AST gate.
func TypeSequence(ctx context.Context, lang Language, code []byte) ([]string, error) {
	tree, err := parseTree(ctx, lang, code)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var seq []string

	var walk func(n sitter.Node)
	walk = func(n sitter.Node) {
		seq = append(seq, n.Type())

		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			walk(n.Child(i))
		}
	}

	walk(tree.RootNode())

	return seq, nil
}

// functionTypes and decisionTypes classify tree-sitter node type labels
// per language for cyclomatic complexity (§4.8): one function node opens
// a new count starting at base complexity 1, incremented once per
// descendant decision-point node found anywhere in its subtree.
var functionTypes = map[Language]map[string]struct{}{
	Go: {
		"function_declaration": {},
		"method_declaration":   {},
		"func_literal":         {},
	},
	Python: {
		"function_definition": {},
	},
}

var decisionTypes = map[Language]map[string]struct{}{
	Go: {
		"if_statement":       {},
		"for_statement":      {},
		"expression_case":    {},
		"type_case":          {},
		"communication_case": {},
		"default_case":       {},
	},
	Python: {
		"if_statement":     {},
		"elif_clause":      {},
		"for_statement":    {},
		"while_statement":  {},
		"except_clause":    {},
		"boolean_operator": {},
	},
}

// Complexity parses code with lang's grammar and returns the cyclomatic
// complexity of every function found, base 1 plus one per decision-point
// node in its subtree — the same accounting the UAST-based
// ComplexityVisitor in the pack's sibling analyzer uses, re-expressed
// over raw tree-sitter node types since this module has no UAST layer.
func Complexity(ctx context.Context, lang Language, code []byte) ([]int, error) {
	funcTypes, ok := functionTypes[lang]
	if !ok {
		return nil, fmt.Errorf("astsim: unsupported language %q", lang)
	}

	decTypes := decisionTypes[lang]

	tree, err := parseTree(ctx, lang, code)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var complexities []int

	var walk func(n sitter.Node)
	walk = func(n sitter.Node) {
		if _, isFunc := funcTypes[n.Type()]; isFunc {
			complexities = append(complexities, 1+countDecisions(n, decTypes))
		}

		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			walk(n.Child(i))
		}
	}

	walk(tree.RootNode())

	return complexities, nil
}

func countDecisions(n sitter.Node, decTypes map[string]struct{}) int {
	count := 0

	var walk func(x sitter.Node)
	walk = func(x sitter.Node) {
		if _, isDecision := decTypes[x.Type()]; isDecision {
			count++
		}

		childCount := int(x.ChildCount())
		for i := 0; i < childCount; i++ {
			walk(x.Child(i))
		}
	}

	walk(n)

	return count
}

// Similarity returns the longest-common-subsequence length between two
// type sequences, normalized by their mean length. Two empty sequences
// are defined as dissimilar (0), matching the winnowing package's
// treatment of an empty comparison.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	lcs := lcsLength(a, b)
	mean := float64(len(a)+len(b)) / 2

	return float64(lcs) / mean
}

// lcsLength is the classic O(n*m) dynamic-programming longest common
// subsequence length, run bottom-up with a single rolling row to keep
// memory linear in the shorter sequence.
func lcsLength(a, b []string) int {
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				curr[j] = 1 + prev[j+1]
			} else if prev[j] > curr[j+1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j+1]
			}
		}

		prev, curr = curr, prev
	}

	return prev[0]
}
