package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codeplan/internal/engine"
	"codeplan/internal/plan"
)

var (
	planBaseCommit string
	planOut        string
	planFull       bool
)

var planCmd = &cobra.Command{
	Use:   "plan <plan-file>",
	Short: "Compile a change plan into a task bundle",
	Long: `Compile a YAML or JSON change plan into a dependency-ordered bundle of
coding tasks with complexity estimates and skeleton hints.

Examples:
  codeplan plan refactor.yaml
  codeplan plan refactor.json --base-commit=abc123 --out=bundle.json
  codeplan plan refactor.yaml --full`,
	Args: cobra.ExactArgs(1),
	Run:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planBaseCommit, "base-commit", "", "Commit hash tasks apply against")
	planCmd.Flags().StringVar(&planOut, "out", "", "Write the bundle JSON to this file instead of stdout")
	planCmd.Flags().BoolVar(&planFull, "full", false, "Analyze the whole repository before compiling")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) {
	logger := newLogger()
	repoRoot := mustGetRepoRoot()
	analyzer := mustGetAnalyzer(repoRoot, logger)
	defer analyzer.Close()

	p, err := plan.Load(args[0])
	if err != nil {
		fatalf("Error loading plan: %v", err)
	}

	ctx := newContext()

	// A full pass gives symbol matching the whole repository to work
	// with; otherwise only the plan's own paths are analyzed.
	if planFull {
		paths, err := engine.DiscoverFiles(repoRoot)
		if err != nil {
			fatalf("Error discovering files: %v", err)
		}
		if _, err := analyzer.AnalyzeFiles(ctx, paths); err != nil {
			fatalf("Error analyzing repository: %v", err)
		}
	}

	bundle, err := analyzer.ProcessPlan(ctx, p, planBaseCommit, nil)
	if err != nil {
		fatalf("Error compiling plan: %v", err)
	}

	if planOut != "" {
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			fatalf("Error encoding bundle: %v", err)
		}
		if err := os.WriteFile(planOut, data, 0o644); err != nil {
			fatalf("Error writing bundle: %v", err)
		}
		fmt.Printf("Wrote %d tasks to %s\n", len(bundle.Tasks), planOut)
		return
	}

	printResult(bundle, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Bundle %s (plan %s, %s)", bundle.ID, bundle.ParentPlanID, bundle.ExecutionStrategy)
		for i, t := range bundle.Tasks {
			fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, t.Complexity, t.Goal)
			fmt.Fprintf(&b, "\n   files: %s", strings.Join(t.FilePaths, ", "))
			fmt.Fprintf(&b, "\n   tokens: ~%d", t.EstimatedTokens)
			if len(t.DependsOn) > 0 {
				fmt.Fprintf(&b, "\n   after: %s", strings.Join(t.DependsOn, ", "))
			}
		}
		return b.String()
	})
}
