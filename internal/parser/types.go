// Package parser turns source files into symbol-level analyses.
//
// A Registry holds an ordered list of per-language strategies sharing one
// contract; for each file the first strategy producing a result wins.
package parser

import (
	"sort"
	"strings"

	"codeplan/internal/lang"
)

// Symbol represents an extracted symbol from source code. Immutable after
// parsing; owned by its FileAnalysis.
type Symbol struct {
	// Name is the symbol name, qualified as "Class.method" for methods.
	Name string `json:"name"`
	// Kind classifies the symbol.
	Kind lang.SymbolKind `json:"kind"`
	// Path is the file the symbol was extracted from.
	Path string `json:"path"`
	// StartLine and EndLine are 1-indexed.
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
	// Calls holds the bare identifiers of direct call targets inside the
	// symbol body. No scope or type resolution is performed.
	Calls []string `json:"calls,omitempty"`
	// Complexity is the cyclomatic complexity, always >= 1.
	Complexity int `json:"complexity"`
}

// BareName returns the unqualified symbol name (the part after the last dot).
func (s *Symbol) BareName() string {
	if idx := strings.LastIndex(s.Name, "."); idx >= 0 {
		return s.Name[idx+1:]
	}
	return s.Name
}

// FileAnalysis is the structured result of parsing one source file.
type FileAnalysis struct {
	Path     string        `json:"path"`
	Language lang.Language `json:"language"`
	Symbols  []Symbol      `json:"symbols"`
	// Imports holds raw normalized import module strings.
	Imports []string `json:"imports,omitempty"`
	// Exports holds top-level function and class names.
	Exports []string `json:"exports,omitempty"`
	// Dependencies holds package names derived from imports.
	Dependencies []string `json:"dependencies,omitempty"`
	// Complexity is the sum of symbol complexities.
	Complexity int `json:"complexity"`
}

// Minimal returns the degraded FileAnalysis used when parsing fails:
// no symbols, no imports, complexity 1.
func Minimal(path string, l lang.Language) *FileAnalysis {
	return &FileAnalysis{
		Path:       path,
		Language:   l,
		Symbols:    []Symbol{},
		Complexity: 1,
	}
}

// Finish derives exports, dependency packages, and aggregate complexity.
// Called once by a strategy after extraction.
func (fa *FileAnalysis) Finish() {
	fa.Complexity = 0
	fa.Exports = fa.Exports[:0]
	for _, s := range fa.Symbols {
		fa.Complexity += s.Complexity
		if s.Kind != lang.KindMethod {
			fa.Exports = append(fa.Exports, s.Name)
		}
	}
	fa.Dependencies = DependencyPackages(fa.Imports)
}

// SymbolByName returns the symbol with the given qualified name, or nil.
func (fa *FileAnalysis) SymbolByName(name string) *Symbol {
	for i := range fa.Symbols {
		if fa.Symbols[i].Name == name {
			return &fa.Symbols[i]
		}
	}
	return nil
}

// DependencyPackages maps raw import strings to package names: the first
// path or dot segment of each import that is not relative.
func DependencyPackages(imports []string) []string {
	seen := make(map[string]bool)
	var pkgs []string

	for _, imp := range imports {
		imp = strings.TrimSpace(imp)
		if imp == "" || strings.HasPrefix(imp, ".") {
			continue
		}
		pkg := imp
		if idx := strings.IndexAny(pkg, "/."); idx > 0 {
			pkg = pkg[:idx]
		}
		if pkg == "" || seen[pkg] {
			continue
		}
		seen[pkg] = true
		pkgs = append(pkgs, pkg)
	}

	sort.Strings(pkgs)
	return pkgs
}

// dedupe removes duplicates from names while preserving first-seen order.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
