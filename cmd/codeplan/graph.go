package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"codeplan/internal/engine"
	"codeplan/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Query the call graph",
	Long: `Query the call graph built from the repository.

Every subcommand analyzes the repository first, cache permitting.

Examples:
  codeplan graph metrics
  codeplan graph cycles
  codeplan graph impact process_payment
  codeplan graph deps src/auth.py:login
  codeplan graph path src/a.py:f src/b.py:g`,
}

var graphMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show graph-wide health metrics",
	Run:   runGraphMetrics,
}

var graphCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "List circular dependencies",
	Run:   runGraphCycles,
}

var graphImpactCmd = &cobra.Command{
	Use:   "impact <symbol>",
	Short: "Show everything that transitively calls a symbol",
	Args:  cobra.ExactArgs(1),
	Run:   runGraphImpact,
}

var graphDepsCmd = &cobra.Command{
	Use:   "deps <symbol>",
	Short: "Show everything a symbol transitively calls",
	Args:  cobra.ExactArgs(1),
	Run:   runGraphDeps,
}

var graphPathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Show a shortest call path between two symbols",
	Args:  cobra.ExactArgs(2),
	Run:   runGraphPath,
}

func init() {
	graphCmd.AddCommand(graphMetricsCmd, graphCyclesCmd, graphImpactCmd, graphDepsCmd, graphPathCmd)
	rootCmd.AddCommand(graphCmd)
}

// loadGraph analyzes the repository and returns the merged graph.
func loadGraph() *graph.Graph {
	logger := newLogger()
	repoRoot := mustGetRepoRoot()
	analyzer := mustGetAnalyzer(repoRoot, logger)

	paths, err := engine.DiscoverFiles(repoRoot)
	if err != nil {
		fatalf("Error discovering files: %v", err)
	}
	if _, err := analyzer.AnalyzeFiles(newContext(), paths); err != nil {
		fatalf("Error analyzing repository: %v", err)
	}
	return analyzer.Graph()
}

// resolveNodes maps a CLI symbol argument to node ids: an exact node id
// when it contains a colon, a name lookup otherwise.
func resolveNodes(g *graph.Graph, arg string) []string {
	if strings.Contains(arg, ":") {
		if g.Node(arg) != nil {
			return []string{arg}
		}
		return nil
	}
	return g.NodesByName(arg)
}

func runGraphMetrics(cmd *cobra.Command, args []string) {
	g := loadGraph()
	m := g.ComputeMetrics()

	printResult(m, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Nodes: %d  Edges: %d  Avg degree: %.2f", m.NodeCount, m.EdgeCount, m.AvgDegree)
		fmt.Fprintf(&b, "\nMax in: %d  Max out: %d  Cycles: %d  Components: %d",
			m.MaxInDegree, m.MaxOutDegree, m.CycleCount, m.WeakComponentCount)
		b.WriteString("\nMost complex:")
		for _, n := range m.TopComplex {
			fmt.Fprintf(&b, "\n  %4d  %s", n.Score, n.ID)
		}
		b.WriteString("\nMost connected:")
		for _, n := range m.TopConnected {
			fmt.Fprintf(&b, "\n  %4d  %s", n.Score, n.ID)
		}
		return b.String()
	})
}

func runGraphCycles(cmd *cobra.Command, args []string) {
	g := loadGraph()
	cycles := g.FindCycles()

	printResult(map[string]interface{}{"cycles": cycles}, func() string {
		if len(cycles) == 0 {
			return "No circular dependencies."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d circular dependencies:", len(cycles))
		for _, c := range cycles {
			fmt.Fprintf(&b, "\n  %s -> %s", strings.Join(c, " -> "), c[0])
		}
		return b.String()
	})
}

func runGraphImpact(cmd *cobra.Command, args []string) {
	g := loadGraph()
	printClosure(g, args[0], "impacted", g.ImpactSet)
}

func runGraphDeps(cmd *cobra.Command, args []string) {
	g := loadGraph()
	printClosure(g, args[0], "dependencies", g.DependencySet)
}

func printClosure(g *graph.Graph, arg, label string, closure func(map[string]bool) map[string]bool) {
	seeds := resolveNodes(g, arg)
	if len(seeds) == 0 {
		fatalf("Unknown symbol: %s", arg)
	}

	seedSet := make(map[string]bool, len(seeds))
	for _, id := range seeds {
		seedSet[id] = true
	}

	ids := make([]string, 0)
	for id := range closure(seedSet) {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	printResult(map[string]interface{}{"symbol": arg, label: ids}, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "%d %s of %s:", len(ids), label, arg)
		for _, id := range ids {
			b.WriteString("\n  " + id)
		}
		return b.String()
	})
}

func runGraphPath(cmd *cobra.Command, args []string) {
	g := loadGraph()

	from := resolveNodes(g, args[0])
	to := resolveNodes(g, args[1])
	if len(from) == 0 {
		fatalf("Unknown symbol: %s", args[0])
	}
	if len(to) == 0 {
		fatalf("Unknown symbol: %s", args[1])
	}

	// Ambiguous names try every pairing and keep the shortest path.
	var best []string
	for _, a := range from {
		for _, b := range to {
			if p := g.ShortestPath(a, b); p != nil && (best == nil || len(p) < len(best)) {
				best = p
			}
		}
	}

	printResult(map[string]interface{}{"path": best}, func() string {
		if best == nil {
			return fmt.Sprintf("No path from %s to %s.", args[0], args[1])
		}
		return strings.Join(best, " -> ")
	})
}
