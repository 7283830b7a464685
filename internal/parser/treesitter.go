//go:build cgo

package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codeplan/internal/lang"
)

// treeSitterStrategy extracts symbols with grammar-based parsing. It is
// the highest-priority strategy and also provides the enhanced-metrics
// capability for the languages it covers.
type treeSitterStrategy struct {
	parser *sitter.Parser
}

func newTreeSitterStrategy() Strategy {
	return &treeSitterStrategy{parser: sitter.NewParser()}
}

func (t *treeSitterStrategy) Name() string { return "treesitter" }

func (t *treeSitterStrategy) Supports(l lang.Language) bool {
	return grammarFor(l) != nil
}

func (t *treeSitterStrategy) EnhancesMetrics(l lang.Language) bool {
	return t.Supports(l)
}

func grammarFor(l lang.Language) *sitter.Language {
	switch l {
	case lang.Go:
		return golang.GetLanguage()
	case lang.JavaScript:
		return javascript.GetLanguage()
	case lang.TypeScript:
		return typescript.GetLanguage()
	case lang.TSX:
		return tsx.GetLanguage()
	case lang.Python:
		return python.GetLanguage()
	case lang.Rust:
		return rust.GetLanguage()
	case lang.Java:
		return java.GetLanguage()
	default:
		return nil
	}
}

func (t *treeSitterStrategy) Parse(ctx context.Context, path string, source []byte, l lang.Language) (*FileAnalysis, error) {
	root, table, err := t.parseRoot(ctx, source, l)
	if err != nil {
		return nil, err
	}

	fa := &FileAnalysis{
		Path:     path,
		Language: l,
		Symbols:  []Symbol{},
	}

	for _, sym := range extractSymbols(root, source, l, table, path) {
		// Symbol names are unique within a file; first definition wins.
		if fa.SymbolByName(sym.Name) == nil {
			fa.Symbols = append(fa.Symbols, sym)
		}
	}

	fa.Imports = extractImports(root, source, l, table)
	fa.Finish()
	return fa, nil
}

// ComplexityByName implements the enhanced-metrics capability: a precise
// complexity recomputation used to refine results from lower-precision
// strategies.
func (t *treeSitterStrategy) ComplexityByName(ctx context.Context, source []byte, l lang.Language) (map[string]int, error) {
	root, table, err := t.parseRoot(ctx, source, l)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int)
	for _, sym := range extractSymbols(root, source, l, table, "") {
		if _, ok := out[sym.Name]; !ok {
			out[sym.Name] = sym.Complexity
		}
	}
	return out, nil
}

func (t *treeSitterStrategy) parseRoot(ctx context.Context, source []byte, l lang.Language) (*sitter.Node, lang.Table, error) {
	table, ok := lang.TableFor(l)
	if !ok {
		return nil, lang.Table{}, errUnsupported(l)
	}

	grammar := grammarFor(l)
	if grammar == nil {
		return nil, lang.Table{}, errUnsupported(l)
	}

	t.parser.SetLanguage(grammar)
	tree, err := t.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, lang.Table{}, err
	}
	return tree.RootNode(), table, nil
}

// extractSymbols walks the tree once, collecting classes with their
// methods first so that method nodes are never double-counted as free
// functions (Python and Rust share node types between the two).
func extractSymbols(root *sitter.Node, source []byte, l lang.Language, table lang.Table, path string) []Symbol {
	var symbols []Symbol
	inClass := make(map[*sitter.Node]bool)

	classNodes := findNodes(root, table.Classes)
	for _, cls := range classNodes {
		className := classNameOf(cls, source, l)
		if className == "" {
			continue
		}

		symbols = append(symbols, Symbol{
			Name:       className,
			Kind:       lang.KindClass,
			Path:       path,
			StartLine:  int(cls.StartPoint().Row) + 1,
			EndLine:    int(cls.EndPoint().Row) + 1,
			Complexity: 1,
		})

		for _, m := range findNodes(cls, table.Methods) {
			if m == cls {
				continue
			}
			inClass[m] = true
			name := identifierOf(m, source, l)
			if name == "" {
				continue
			}
			symbols = append(symbols, buildSymbol(m, source, l, table, path, className+"."+name, lang.KindMethod))
		}
	}

	for _, fn := range findNodes(root, table.Functions) {
		if inClass[fn] || underAny(fn, classNodes) {
			continue
		}
		name := identifierOf(fn, source, l)
		if name == "" {
			continue
		}

		kind := lang.KindFunction
		if l == lang.Go && fn.Type() == "method_declaration" {
			kind = lang.KindMethod
			if recv := goReceiverType(fn, source); recv != "" {
				name = recv + "." + name
			}
		}
		symbols = append(symbols, buildSymbol(fn, source, l, table, path, name, kind))
	}

	return symbols
}

func buildSymbol(node *sitter.Node, source []byte, l lang.Language, table lang.Table, path, name string, kind lang.SymbolKind) Symbol {
	return Symbol{
		Name:       name,
		Kind:       kind,
		Path:       path,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Calls:      extractCalls(node, source, l, table),
		Complexity: cyclomatic(node, table),
	}
}

// cyclomatic computes McCabe complexity: 1 plus the branch-inducing
// constructs in the node's subtree.
func cyclomatic(node *sitter.Node, table lang.Table) int {
	return 1 + len(findNodes(node, table.Decisions))
}

// extractCalls records the bare identifier of every direct call's callee,
// including the trailing name of attribute and method-call targets.
func extractCalls(node *sitter.Node, source []byte, l lang.Language, table lang.Table) []string {
	var calls []string
	for _, call := range findNodes(node, table.Calls) {
		if name := calleeName(call, source, l); name != "" {
			calls = append(calls, name)
		}
	}
	return dedupe(calls)
}

func calleeName(call *sitter.Node, source []byte, l lang.Language) string {
	if l == lang.Java {
		if n := call.ChildByFieldName("name"); n != nil {
			return text(n, source)
		}
		return ""
	}

	fn := call.ChildByFieldName("function")
	if fn == nil && call.ChildCount() > 0 {
		fn = call.Child(0)
	}
	if fn == nil {
		return ""
	}

	switch fn.Type() {
	case "identifier", "field_identifier":
		return text(fn, source)
	case "selector_expression", "member_expression", "attribute", "field_expression":
		// Method or attribute call: keep the trailing name only.
		if n := fn.ChildByFieldName("field"); n != nil {
			return text(n, source)
		}
		if n := fn.ChildByFieldName("property"); n != nil {
			return text(n, source)
		}
		if n := fn.ChildByFieldName("attribute"); n != nil {
			return text(n, source)
		}
		// Fall back to the last identifier-ish child.
		for i := int(fn.ChildCount()) - 1; i >= 0; i-- {
			c := fn.Child(i)
			if c != nil && strings.Contains(c.Type(), "identifier") {
				return text(c, source)
			}
		}
	case "scoped_identifier":
		if n := fn.ChildByFieldName("name"); n != nil {
			return text(n, source)
		}
	}
	return ""
}

// extractImports normalizes per-language import statements to a flat
// list of module-name strings.
func extractImports(root *sitter.Node, source []byte, l lang.Language, table lang.Table) []string {
	var imports []string

	for _, node := range findNodes(root, table.Imports) {
		switch l {
		case lang.Go:
			for _, lit := range findNodes(node, []string{"interpreted_string_literal"}) {
				imports = append(imports, strings.Trim(text(lit, source), `"`))
			}
		case lang.JavaScript, lang.TypeScript, lang.TSX:
			for _, str := range findNodes(node, []string{"string"}) {
				imports = append(imports, strings.Trim(text(str, source), "\"'`"))
				break
			}
		case lang.Python:
			imports = append(imports, pythonImports(node, source)...)
		case lang.Rust:
			t := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(text(node, source), "use")), ";")
			t = strings.ReplaceAll(strings.TrimSpace(t), "::", "/")
			if t != "" {
				imports = append(imports, t)
			}
		case lang.Java:
			for _, id := range findNodes(node, []string{"scoped_identifier"}) {
				imports = append(imports, text(id, source))
				break
			}
		}
	}

	return dedupe(imports)
}

func pythonImports(node *sitter.Node, source []byte) []string {
	if node.Type() == "import_from_statement" {
		if m := node.ChildByFieldName("module_name"); m != nil {
			return []string{text(m, source)}
		}
		// from . import x
		for i := 0; i < int(node.ChildCount()); i++ {
			c := node.Child(i)
			if c != nil && (c.Type() == "dotted_name" || c.Type() == "relative_import") {
				return []string{text(c, source)}
			}
		}
		return nil
	}

	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "dotted_name":
			out = append(out, text(c, source))
		case "aliased_import":
			if n := c.ChildByFieldName("name"); n != nil {
				out = append(out, text(n, source))
			}
		}
	}
	return out
}

// identifierOf extracts the declared name from a definition node.
func identifierOf(node *sitter.Node, source []byte, l lang.Language) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return text(n, source)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c != nil && (c.Type() == "identifier" || c.Type() == "type_identifier" || c.Type() == "field_identifier") {
			return text(c, source)
		}
	}
	return ""
}

func classNameOf(node *sitter.Node, source []byte, l lang.Language) string {
	switch l {
	case lang.Go:
		// type_declaration wraps type_spec which carries the name.
		for i := 0; i < int(node.ChildCount()); i++ {
			c := node.Child(i)
			if c != nil && c.Type() == "type_spec" {
				return identifierOf(c, source, l)
			}
		}
		return ""
	case lang.Rust:
		if node.Type() == "impl_item" {
			for i := 0; i < int(node.ChildCount()); i++ {
				c := node.Child(i)
				if c != nil && c.Type() == "type_identifier" {
					return text(c, source)
				}
			}
			return ""
		}
	}
	return identifierOf(node, source, l)
}

// goReceiverType extracts the receiver type name of a Go method.
func goReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	if ids := findNodes(recv, []string{"type_identifier"}); len(ids) > 0 {
		return text(ids[0], source)
	}
	return ""
}

// underAny reports whether node lies strictly inside any of the parents.
func underAny(node *sitter.Node, parents []*sitter.Node) bool {
	for _, p := range parents {
		if node != p && node.StartByte() >= p.StartByte() && node.EndByte() <= p.EndByte() {
			return true
		}
	}
	return false
}

// findNodes finds all nodes of the given types in the subtree, root
// included.
func findNodes(root *sitter.Node, types []string) []*sitter.Node {
	if len(types) == 0 {
		return nil
	}

	var result []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if lang.Contains(types, node.Type()) {
			result = append(result, node)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}

	walk(root)
	return result
}

func text(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

type unsupportedError struct{ l lang.Language }

func (e unsupportedError) Error() string { return "unsupported language: " + string(e.l) }

func errUnsupported(l lang.Language) error { return unsupportedError{l} }
