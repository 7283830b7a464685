// Package lang defines the supported languages and the per-language
// grammar tables used by the parser strategies.
//
// Grammar node-type strings are confined to this package: each language
// maps its raw tree-sitter node types to one explicit SymbolKind
// enumeration, and the tables are validated once at registry construction
// instead of being compared ad hoc at traversal sites.
package lang

import (
	"fmt"
	"strings"
)

// Language represents a supported programming language.
type Language string

const (
	Go         Language = "go"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Python     Language = "python"
	Rust       Language = "rust"
	Java       Language = "java"
)

// All lists every supported language in a stable order.
func All() []Language {
	return []Language{Go, JavaScript, TypeScript, TSX, Python, Rust, Java}
}

// SymbolKind classifies an extracted symbol.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindClass    SymbolKind = "class"
)

// FromExtension returns the Language for a file extension.
func FromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".go":
		return Go, true
	case ".js", ".mjs", ".cjs", ".jsx":
		return JavaScript, true
	case ".ts", ".mts", ".cts":
		return TypeScript, true
	case ".tsx":
		return TSX, true
	case ".py", ".pyw":
		return Python, true
	case ".rs":
		return Rust, true
	case ".java":
		return Java, true
	default:
		return "", false
	}
}

// Extensions returns the file extensions associated with a language,
// primary extension first.
func Extensions(l Language) []string {
	switch l {
	case Go:
		return []string{".go"}
	case JavaScript:
		return []string{".js", ".mjs", ".cjs", ".jsx"}
	case TypeScript:
		return []string{".ts", ".mts", ".cts"}
	case TSX:
		return []string{".tsx"}
	case Python:
		return []string{".py", ".pyw"}
	case Rust:
		return []string{".rs"}
	case Java:
		return []string{".java"}
	default:
		return nil
	}
}

// FromPath detects the language of a file from its name.
func FromPath(path string) (Language, bool) {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return "", false
	}
	return FromExtension(path[idx:])
}

// Table holds the grammar node-type names for one language.
type Table struct {
	// Functions are node types declaring free functions.
	Functions []string
	// Classes are node types declaring classes/types that may contain methods.
	Classes []string
	// Methods are node types declaring methods inside a class body.
	// Empty for languages whose methods are top-level (Go).
	Methods []string
	// Decisions are branch-inducing node types counted for cyclomatic
	// complexity (if/else-if, loops, case, catch, ternary).
	Decisions []string
	// Calls are call-expression node types.
	Calls []string
	// Imports are import-statement node types.
	Imports []string
}

var tables = map[Language]Table{
	Go: {
		Functions: []string{"function_declaration", "method_declaration"},
		Classes:   []string{"type_declaration"},
		Methods:   nil, // methods are top level with receivers
		Decisions: []string{
			"if_statement",
			"for_statement",
			"expression_case",
			"type_case",
			"communication_case",
		},
		Calls:   []string{"call_expression"},
		Imports: []string{"import_declaration"},
	},
	JavaScript: {
		Functions: []string{"function_declaration", "generator_function_declaration"},
		Classes:   []string{"class_declaration"},
		Methods:   []string{"method_definition"},
		Decisions: []string{
			"if_statement",
			"for_statement",
			"for_in_statement",
			"while_statement",
			"do_statement",
			"switch_case",
			"catch_clause",
			"ternary_expression",
		},
		Calls:   []string{"call_expression"},
		Imports: []string{"import_statement"},
	},
	Python: {
		Functions: []string{"function_definition"},
		Classes:   []string{"class_definition"},
		Methods:   []string{"function_definition"},
		Decisions: []string{
			"if_statement",
			"elif_clause",
			"for_statement",
			"while_statement",
			"except_clause",
			"conditional_expression",
		},
		Calls:   []string{"call"},
		Imports: []string{"import_statement", "import_from_statement"},
	},
	Rust: {
		Functions: []string{"function_item"},
		Classes:   []string{"struct_item", "enum_item", "trait_item", "impl_item"},
		Methods:   []string{"function_item"},
		Decisions: []string{
			"if_expression",
			"match_arm",
			"while_expression",
			"loop_expression",
			"for_expression",
		},
		Calls:   []string{"call_expression"},
		Imports: []string{"use_declaration"},
	},
	Java: {
		Functions: nil, // everything lives inside a class body
		Classes:   []string{"class_declaration", "interface_declaration", "enum_declaration"},
		Methods:   []string{"method_declaration", "constructor_declaration"},
		Decisions: []string{
			"if_statement",
			"for_statement",
			"enhanced_for_statement",
			"while_statement",
			"do_statement",
			"switch_block_statement_group",
			"catch_clause",
			"ternary_expression",
		},
		Calls:   []string{"method_invocation"},
		Imports: []string{"import_declaration"},
	},
}

func init() {
	// TypeScript and TSX share the JavaScript grammar shape.
	ts := tables[JavaScript]
	ts.Classes = []string{"class_declaration", "interface_declaration"}
	tables[TypeScript] = ts
	tables[TSX] = ts
}

// TableFor returns the grammar table for a language.
func TableFor(l Language) (Table, bool) {
	t, ok := tables[l]
	return t, ok
}

// ValidateTables checks that every supported language carries a usable
// grammar table. Called once at registry construction.
func ValidateTables() error {
	for _, l := range All() {
		t, ok := tables[l]
		if !ok {
			return fmt.Errorf("language %s has no grammar table", l)
		}
		if len(t.Functions) == 0 && len(t.Methods) == 0 {
			return fmt.Errorf("language %s declares no function or method node types", l)
		}
		if len(t.Decisions) == 0 {
			return fmt.Errorf("language %s declares no decision node types", l)
		}
		if len(t.Calls) == 0 {
			return fmt.Errorf("language %s declares no call node types", l)
		}
	}
	return nil
}

// Contains reports whether a node-type list includes the given type.
func Contains(types []string, nodeType string) bool {
	for _, t := range types {
		if t == nodeType {
			return true
		}
	}
	return false
}
