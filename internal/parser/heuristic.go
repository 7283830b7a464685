package parser

import (
	"context"
	"regexp"
	"strings"

	"codeplan/internal/lang"
)

// heuristicStrategy is the last-resort line scanner. It trades precision
// for coverage: definitions are matched per line, a symbol extends to the
// next definition, and complexity counts branch keywords in that span.
type heuristicStrategy struct{}

func newHeuristicStrategy() Strategy { return &heuristicStrategy{} }

func (h *heuristicStrategy) Name() string { return "heuristic" }

func (h *heuristicStrategy) Supports(l lang.Language) bool {
	_, ok := heuristicPatterns[l]
	return ok
}

type heuristicPattern struct {
	function *regexp.Regexp // name in capture group "name"
	class    *regexp.Regexp
	imports  *regexp.Regexp
	branch   *regexp.Regexp
	indented bool // nesting by indentation (Python) instead of braces
}

var callPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

var callKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "func": true, "function": true, "def": true, "fn": true,
	"with": true, "except": true, "match": true, "new": true, "super": true,
}

var heuristicPatterns = map[lang.Language]heuristicPattern{
	lang.Go: {
		function: regexp.MustCompile(`^func\s+(?:\((?P<recv>[^)]*)\)\s+)?(?P<name>[A-Za-z_][A-Za-z0-9_]*)\s*\(`),
		class:    regexp.MustCompile(`^type\s+(?P<name>[A-Za-z_][A-Za-z0-9_]*)\s+(?:struct|interface)\b`),
		imports:  regexp.MustCompile(`^\s*(?:import\s+)?(?:[A-Za-z_.]+\s+)?"(?P<mod>[^"]+)"`),
		branch:   regexp.MustCompile(`\b(?:if|for|case)\b`),
	},
	lang.Python: {
		function: regexp.MustCompile(`^(?P<indent>\s*)(?:async\s+)?def\s+(?P<name>[A-Za-z_][A-Za-z0-9_]*)`),
		class:    regexp.MustCompile(`^(?P<indent>\s*)class\s+(?P<name>[A-Za-z_][A-Za-z0-9_]*)`),
		imports:  regexp.MustCompile(`^\s*(?:from\s+(?P<mod>[.\w]+)\s+import|import\s+(?P<mod2>[.\w]+))`),
		branch:   regexp.MustCompile(`\b(?:if|elif|while|for|except)\b|\bif\b.*\belse\b`),
		indented: true,
	},
	lang.JavaScript: {
		function: regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(?P<name>[A-Za-z_$][A-Za-z0-9_$]*)`),
		class:    regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(?P<name>[A-Za-z_$][A-Za-z0-9_$]*)`),
		imports:  regexp.MustCompile(`(?:import\b[^'"]*|require\s*\()\s*['"](?P<mod>[^'"]+)['"]`),
		branch:   regexp.MustCompile(`\b(?:if|while|for|case|catch)\b|\?`),
	},
	lang.Rust: {
		function: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+(?P<name>[A-Za-z_][A-Za-z0-9_]*)`),
		class:    regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait)\s+(?P<name>[A-Za-z_][A-Za-z0-9_]*)|^\s*impl(?:<[^>]*>)?\s+(?P<name2>[A-Za-z_][A-Za-z0-9_]*)`),
		imports:  regexp.MustCompile(`^\s*use\s+(?P<mod>[\w:]+)`),
		branch:   regexp.MustCompile(`\b(?:if|while|for|loop)\b|=>`),
	},
	lang.Java: {
		function: regexp.MustCompile(`^\s*(?:public|protected|private|static|final|synchronized|abstract|\s)+[\w<>\[\],\s]+\s(?P<name>[A-Za-z_][A-Za-z0-9_]*)\s*\([^;]*$`),
		class:    regexp.MustCompile(`^\s*(?:public\s+|final\s+|abstract\s+)*(?:class|interface|enum)\s+(?P<name>[A-Za-z_][A-Za-z0-9_]*)`),
		imports:  regexp.MustCompile(`^\s*import\s+(?:static\s+)?(?P<mod>[\w.]+)`),
		branch:   regexp.MustCompile(`\b(?:if|while|for|case|catch)\b|\?`),
	},
}

func init() {
	// TypeScript and TSX scan like JavaScript.
	heuristicPatterns[lang.TypeScript] = heuristicPatterns[lang.JavaScript]
	heuristicPatterns[lang.TSX] = heuristicPatterns[lang.JavaScript]
}

// marker is a definition found during the line scan.
type marker struct {
	name   string
	kind   lang.SymbolKind
	line   int // 1-indexed
	indent int
}

func (h *heuristicStrategy) Parse(ctx context.Context, path string, source []byte, l lang.Language) (*FileAnalysis, error) {
	pat, ok := heuristicPatterns[l]
	if !ok {
		return nil, nil
	}

	lines := strings.Split(string(source), "\n")
	fa := &FileAnalysis{
		Path:     path,
		Language: l,
		Symbols:  []Symbol{},
	}

	markers := scanDefinitions(lines, pat)
	for i, m := range markers {
		end := len(lines)
		// A symbol runs until the next definition at the same or a
		// shallower nesting level.
		for j := i + 1; j < len(markers); j++ {
			if markers[j].indent <= m.indent {
				end = markers[j].line - 1
				break
			}
		}
		if end < m.line {
			end = m.line
		}

		body := strings.Join(lines[m.line-1:end], "\n")
		sym := Symbol{
			Name:       m.name,
			Kind:       m.kind,
			Path:       path,
			StartLine:  m.line,
			EndLine:    end,
			Complexity: 1 + len(pat.branch.FindAllString(body, -1)),
		}
		if m.kind == lang.KindClass {
			sym.Complexity = 1
		} else {
			sym.Calls = heuristicCalls(body, m.name)
		}

		if fa.SymbolByName(sym.Name) == nil {
			fa.Symbols = append(fa.Symbols, sym)
		}
	}

	for _, line := range lines {
		if m := pat.imports.FindStringSubmatch(line); m != nil {
			if mod := namedGroup(pat.imports, m, "mod", "mod2"); mod != "" {
				if l == lang.Rust {
					mod = strings.ReplaceAll(mod, "::", "/")
				}
				fa.Imports = append(fa.Imports, mod)
			}
		}
	}
	fa.Imports = dedupe(fa.Imports)

	fa.Finish()
	return fa, nil
}

// scanDefinitions finds definition lines and qualifies methods with their
// enclosing class name.
func scanDefinitions(lines []string, pat heuristicPattern) []marker {
	var markers []marker
	type classFrame struct {
		name   string
		indent int
	}
	var stack []classFrame

	for i, line := range lines {
		indent := indentOf(line)

		if pat.indented {
			// Pop classes we have dedented out of.
			trimmed := strings.TrimSpace(line)
			for len(stack) > 0 && trimmed != "" && indent <= stack[len(stack)-1].indent {
				stack = stack[:len(stack)-1]
			}
		}

		if m := pat.class.FindStringSubmatch(line); m != nil {
			name := namedGroup(pat.class, m, "name", "name2")
			if name != "" {
				markers = append(markers, marker{name: name, kind: lang.KindClass, line: i + 1, indent: indent})
				stack = append(stack, classFrame{name: name, indent: indent})
			}
			continue
		}

		if m := pat.function.FindStringSubmatch(line); m != nil {
			name := namedGroup(pat.function, m, "name", "")
			if name == "" {
				continue
			}
			kind := lang.KindFunction
			if recv := namedGroup(pat.function, m, "recv", ""); recv != "" {
				// Go receiver: qualify by receiver type.
				kind = lang.KindMethod
				fields := strings.Fields(strings.NewReplacer("*", " ", "]", " ").Replace(recv))
				if len(fields) > 0 {
					name = fields[len(fields)-1] + "." + name
				}
			} else if len(stack) > 0 && indent > stack[len(stack)-1].indent {
				kind = lang.KindMethod
				name = stack[len(stack)-1].name + "." + name
			}
			markers = append(markers, marker{name: name, kind: kind, line: i + 1, indent: indent})
		}

		if !pat.indented {
			// Brace languages: a line consisting of a closing brace at
			// class indent closes the class.
			trimmed := strings.TrimSpace(line)
			if trimmed == "}" && len(stack) > 0 && indent <= stack[len(stack)-1].indent {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return markers
}

func heuristicCalls(body, selfName string) []string {
	var calls []string
	bare := selfName
	if idx := strings.LastIndex(bare, "."); idx >= 0 {
		bare = bare[idx+1:]
	}
	for _, m := range callPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if callKeywords[name] || name == bare {
			continue
		}
		calls = append(calls, name)
	}
	return dedupe(calls)
}

func namedGroup(re *regexp.Regexp, match []string, primary, secondary string) string {
	for i, n := range re.SubexpNames() {
		if i < len(match) && match[i] != "" && (n == primary || (secondary != "" && n == secondary)) {
			return match[i]
		}
	}
	return ""
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
