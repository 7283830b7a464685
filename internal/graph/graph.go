// Package graph implements the directed call/import graph over symbols
// and files, with impact, dependency, cycle, and path queries.
//
// A Graph is owned by exactly one analyzer instance and is not safe for
// concurrent use; all mutation happens in the sequential merge phase
// after parallel parsing. Call resolution is deliberately heuristic: an
// edge is added only when a known symbol's bare name or trailing
// attribute name equals the callee name, which produces false positives
// across same-named symbols in different files and false negatives for
// dynamic dispatch. That tradeoff is intentional and downstream impact
// queries depend on it.
package graph

import (
	"fmt"
	"strings"

	"codeplan/internal/lang"
	"codeplan/internal/parser"
)

// FileNodeSuffix names the pseudo-symbol used for file-level import edges.
const FileNodeSuffix = "__file__"

// EdgeKind classifies an edge.
type EdgeKind string

const (
	// EdgeCalls connects a caller symbol to a callee symbol.
	EdgeCalls EdgeKind = "calls"
	// EdgeImports connects a file node to an imported file node.
	EdgeImports EdgeKind = "imports"
)

// Node is one vertex: a symbol or a file.
type Node struct {
	ID         string          `json:"id"`
	Kind       lang.SymbolKind `json:"kind,omitempty"`
	Complexity int             `json:"complexity"`
	StartLine  int             `json:"startLine,omitempty"`
	EndLine    int             `json:"endLine,omitempty"`
}

// Edge is one directed edge. Both endpoints always exist as nodes.
type Edge struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Kind       EdgeKind `json:"kind"`
	ImportName string   `json:"importName,omitempty"`
}

// Graph is the call graph engine.
type Graph struct {
	nodes map[string]*Node
	succ  map[string][]Edge
	pred  map[string][]string
	// nameIndex maps a bare symbol name to the node ids carrying it.
	nameIndex map[string][]string
	edgeCount int
	// edgeSeen prevents duplicate edges.
	edgeSeen map[string]bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		succ:      make(map[string][]Edge),
		pred:      make(map[string][]string),
		nameIndex: make(map[string][]string),
		edgeSeen:  make(map[string]bool),
	}
}

// NodeID builds the canonical node id for a symbol in a file.
func NodeID(file, symbol string) string {
	return file + ":" + symbol
}

// FileNodeID builds the canonical node id for file-level edges.
func FileNodeID(file string) string {
	return NodeID(file, FileNodeSuffix)
}

// AddSymbol registers a symbol node and indexes its bare and trailing
// names for heuristic call resolution.
func (g *Graph) AddSymbol(sym *parser.Symbol) string {
	id := NodeID(sym.Path, sym.Name)
	if _, exists := g.nodes[id]; exists {
		return id
	}

	g.nodes[id] = &Node{
		ID:         id,
		Kind:       sym.Kind,
		Complexity: sym.Complexity,
		StartLine:  sym.StartLine,
		EndLine:    sym.EndLine,
	}

	bare := sym.BareName()
	g.nameIndex[bare] = append(g.nameIndex[bare], id)
	if bare != sym.Name {
		g.nameIndex[sym.Name] = append(g.nameIndex[sym.Name], id)
	}
	return id
}

// AddCall materializes call edges from a caller node to every known
// symbol whose name matches calleeName, recursion included. Unresolved
// names are silently dropped: no edge, no error.
func (g *Graph) AddCall(callerID, calleeName string) int {
	if _, ok := g.nodes[callerID]; !ok {
		return 0
	}

	targets := g.resolve(calleeName)
	added := 0
	for _, target := range targets {
		if g.addEdge(Edge{From: callerID, To: target, Kind: EdgeCalls}) {
			added++
		}
	}
	return added
}

// AddFileDependency records a file-level import edge. File nodes are
// created on demand.
func (g *Graph) AddFileDependency(fromFile, toFile, importName string) {
	from := g.ensureFileNode(fromFile)
	to := g.ensureFileNode(toFile)
	g.addEdge(Edge{From: from, To: to, Kind: EdgeImports, ImportName: importName})
}

// Callers returns the direct predecessors of a node.
func (g *Graph) Callers(id string) []string {
	return append([]string(nil), g.pred[id]...)
}

// Callees returns the direct successors of a node.
func (g *Graph) Callees(id string) []string {
	out := make([]string, 0, len(g.succ[id]))
	for _, e := range g.succ[id] {
		out = append(out, e.To)
	}
	return out
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// NodesByName returns the ids of symbols whose bare or qualified name
// equals name.
func (g *Graph) NodesByName(name string) []string {
	return append([]string(nil), g.nameIndex[name]...)
}

// ImpactSet returns the transitive closure of callers of the changed
// set, unioned with the changed ids themselves: everything that might
// break when those symbols change.
func (g *Graph) ImpactSet(changed map[string]bool) map[string]bool {
	return g.closure(changed, func(id string) []string { return g.pred[id] })
}

// DependencySet returns the transitive closure of callees: everything
// the given symbols need.
func (g *Graph) DependencySet(ids map[string]bool) map[string]bool {
	return g.closure(ids, g.Callees)
}

// closure runs BFS from every seed over the supplied neighbor function.
func (g *Graph) closure(seeds map[string]bool, next func(string) []string) map[string]bool {
	result := make(map[string]bool, len(seeds))
	var queue []string

	for id := range seeds {
		result[id] = true
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range next(id) {
			if !result[n] {
				result[n] = true
				queue = append(queue, n)
			}
		}
	}
	return result
}

// ShortestPath returns a shortest directed path from a to b, or nil when
// none exists.
func (g *Graph) ShortestPath(a, b string) []string {
	if _, ok := g.nodes[a]; !ok {
		return nil
	}
	if _, ok := g.nodes[b]; !ok {
		return nil
	}
	if a == b {
		return []string{a}
	}

	prev := map[string]string{a: ""}
	queue := []string{a}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.succ[id] {
			if _, seen := prev[e.To]; seen {
				continue
			}
			prev[e.To] = id
			if e.To == b {
				return unwindPath(prev, a, b)
			}
			queue = append(queue, e.To)
		}
	}
	return nil
}

func unwindPath(prev map[string]string, a, b string) []string {
	var path []string
	for id := b; id != ""; id = prev[id] {
		path = append([]string{id}, path...)
		if id == a {
			break
		}
	}
	return path
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Edges returns a copy of all edges.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, edges := range g.succ {
		out = append(out, edges...)
	}
	return out
}

// resolve maps a callee name to known symbol nodes: the bare name, or
// for attribute calls the trailing segment.
func (g *Graph) resolve(calleeName string) []string {
	if ids, ok := g.nameIndex[calleeName]; ok {
		return ids
	}
	if idx := strings.LastIndex(calleeName, "."); idx >= 0 {
		if ids, ok := g.nameIndex[calleeName[idx+1:]]; ok {
			return ids
		}
	}
	return nil
}

func (g *Graph) ensureFileNode(file string) string {
	id := FileNodeID(file)
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &Node{ID: id, Complexity: 0}
	}
	return id
}

func (g *Graph) addEdge(e Edge) bool {
	sig := fmt.Sprintf("%s|%s|%s", e.From, e.To, e.Kind)
	if g.edgeSeen[sig] {
		return false
	}
	g.edgeSeen[sig] = true
	g.succ[e.From] = append(g.succ[e.From], e)
	g.pred[e.To] = append(g.pred[e.To], e.From)
	g.edgeCount++
	return true
}
