package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codeplan/internal/engine"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze source files into the cache and call graph",
	Long: `Analyze source files. With no arguments, walks the repository root and
analyzes every supported file.

Examples:
  codeplan analyze
  codeplan analyze src/auth.py src/handlers.py
  codeplan analyze --format=json`,
	Run: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	logger := newLogger()
	repoRoot := mustGetRepoRoot()
	analyzer := mustGetAnalyzer(repoRoot, logger)
	defer analyzer.Close()

	paths := args
	if len(paths) == 0 {
		var err error
		paths, err = engine.DiscoverFiles(repoRoot)
		if err != nil {
			fatalf("Error discovering files: %v", err)
		}
	}

	report, err := analyzer.AnalyzeFiles(newContext(), paths)
	if err != nil {
		fatalf("Error analyzing files: %v", err)
	}

	printResult(report, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Analyzed %d files in %dms (%d cache hits, %d skipped)",
			report.Analyzed, report.Elapsed.Milliseconds(), report.CacheHits, report.Skipped)
		for path, msg := range report.Failures {
			fmt.Fprintf(&b, "\n  FAILED %s: %s", path, msg)
		}
		g := analyzer.Graph()
		fmt.Fprintf(&b, "\nGraph: %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
		return b.String()
	})
}
