package parser

import (
	"context"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"strings"

	"codeplan/internal/lang"
)

// nativeStrategy parses Go files with the language-native parser. It sits
// between the structural parser and the line heuristic: precise for Go,
// unavailable for everything else.
type nativeStrategy struct{}

func newNativeStrategy() Strategy { return &nativeStrategy{} }

func (n *nativeStrategy) Name() string { return "go-native" }

func (n *nativeStrategy) Supports(l lang.Language) bool { return l == lang.Go }

func (n *nativeStrategy) Parse(ctx context.Context, path string, source []byte, l lang.Language) (*FileAnalysis, error) {
	if l != lang.Go {
		return nil, nil
	}

	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, path, source, 0)
	if err != nil {
		return nil, err
	}

	fa := &FileAnalysis{
		Path:     path,
		Language: lang.Go,
		Symbols:  []Symbol{},
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			fa.Symbols = append(fa.Symbols, goFuncSymbol(fset, d, path))
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				fa.Symbols = append(fa.Symbols, Symbol{
					Name:       ts.Name.Name,
					Kind:       lang.KindClass,
					Path:       path,
					StartLine:  fset.Position(ts.Pos()).Line,
					EndLine:    fset.Position(ts.End()).Line,
					Complexity: 1,
				})
			}
		}
	}

	for _, imp := range file.Imports {
		fa.Imports = append(fa.Imports, strings.Trim(imp.Path.Value, `"`))
	}

	fa.Finish()
	return fa, nil
}

func goFuncSymbol(fset *token.FileSet, d *ast.FuncDecl, path string) Symbol {
	name := d.Name.Name
	kind := lang.KindFunction
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = lang.KindMethod
		if recv := goRecvName(d.Recv.List[0].Type); recv != "" {
			name = recv + "." + name
		}
	}

	return Symbol{
		Name:       name,
		Kind:       kind,
		Path:       path,
		StartLine:  fset.Position(d.Pos()).Line,
		EndLine:    fset.Position(d.End()).Line,
		Calls:      goCalls(d),
		Complexity: goComplexity(d),
	}
}

// goRecvName unwraps the receiver type down to its identifier.
func goRecvName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return goRecvName(t.X)
	case *ast.IndexExpr:
		return goRecvName(t.X)
	case *ast.IndexListExpr:
		return goRecvName(t.X)
	default:
		return ""
	}
}

// goComplexity counts branch-inducing constructs: 1 + ifs, loops, and
// non-default switch/select cases.
func goComplexity(d *ast.FuncDecl) int {
	complexity := 1
	ast.Inspect(d, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt:
			complexity++
		case *ast.CaseClause:
			if node.List != nil {
				complexity++
			}
		case *ast.CommClause:
			if node.Comm != nil {
				complexity++
			}
		}
		return true
	})
	return complexity
}

// goCalls collects bare callee identifiers, keeping the trailing selector
// name for method calls.
func goCalls(d *ast.FuncDecl) []string {
	var calls []string
	ast.Inspect(d, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			calls = append(calls, fn.Name)
		case *ast.SelectorExpr:
			calls = append(calls, fn.Sel.Name)
		}
		return true
	})
	return dedupe(calls)
}
