package tasks

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"codeplan/internal/graph"
	"codeplan/internal/lang"
	"codeplan/internal/parser"
	"codeplan/internal/plan"
)

// fakeSource serves canned analyses.
type fakeSource struct {
	analyses map[string]*parser.FileAnalysis
}

func (f *fakeSource) Analysis(ctx context.Context, path string) (*parser.FileAnalysis, bool) {
	fa, ok := f.analyses[path]
	return fa, ok
}

func (f *fakeSource) Symbols() []*parser.Symbol {
	var out []*parser.Symbol
	for _, fa := range f.analyses {
		for i := range fa.Symbols {
			out = append(out, &fa.Symbols[i])
		}
	}
	return out
}

func paymentFixture() (*fakeSource, *graph.Graph) {
	pay := &parser.FileAnalysis{
		Path:     "src/pay.py",
		Language: lang.Python,
		Symbols: []parser.Symbol{
			{Name: "process_payment", Kind: lang.KindFunction, Path: "src/pay.py",
				StartLine: 10, EndLine: 40, Complexity: 6},
		},
		Complexity: 6,
	}
	api := &parser.FileAnalysis{
		Path:     "src/api.py",
		Language: lang.Python,
		Symbols: []parser.Symbol{
			{Name: "checkout", Kind: lang.KindFunction, Path: "src/api.py",
				StartLine: 1, EndLine: 20, Calls: []string{"process_payment"}, Complexity: 3},
		},
		Complexity: 3,
	}

	source := &fakeSource{analyses: map[string]*parser.FileAnalysis{
		"src/pay.py": pay,
		"src/api.py": api,
	}}

	g := graph.New()
	for _, fa := range source.analyses {
		for i := range fa.Symbols {
			g.AddSymbol(&fa.Symbols[i])
		}
	}
	g.AddCall(graph.NodeID("src/api.py", "checkout"), "process_payment")
	return source, g
}

func singleStepPlan(kind plan.StepKind, goal string) *plan.Plan {
	p := &plan.Plan{
		ID:    "plan-1",
		Steps: []plan.Step{{Goal: goal, Kind: kind}},
	}
	_ = p.Validate()
	return p
}

func TestGenerateRefactorStep(t *testing.T) {
	source, g := paymentFixture()
	gen := NewGenerator(source, g)

	bundle, err := gen.Generate(context.Background(),
		singleStepPlan(plan.KindRefactor, "extract validation from process_payment"), "abc123")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if bundle.ParentPlanID != "plan-1" {
		t.Errorf("ParentPlanID = %q", bundle.ParentPlanID)
	}
	if len(bundle.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(bundle.Tasks))
	}
	task := bundle.Tasks[0]

	// The goal names process_payment, so its file and its caller's file
	// are both in scope.
	files := map[string]bool{}
	for _, p := range task.FilePaths {
		files[p] = true
	}
	if !files["src/pay.py"] {
		t.Errorf("FilePaths = %v, want to include src/pay.py", task.FilePaths)
	}
	if !files["src/api.py"] {
		t.Errorf("FilePaths = %v, want to include caller file src/api.py", task.FilePaths)
	}

	if task.BaseCommit != "abc123" {
		t.Errorf("BaseCommit = %q", task.BaseCommit)
	}
	if task.StepNumber != 1 {
		t.Errorf("StepNumber = %d", task.StepNumber)
	}
	if task.Metadata["step_kind"] != "refactor" {
		t.Errorf("step_kind = %q", task.Metadata["step_kind"])
	}
	if !strings.Contains(task.Metadata["affected_symbols"], "src/pay.py:process_payment") {
		t.Errorf("affected_symbols = %q", task.Metadata["affected_symbols"])
	}

	// Refactor skeletons anchor on the matched symbol's line range.
	if len(task.SkeletonPatches) == 0 {
		t.Fatal("expected at least one skeleton patch")
	}
	joined := strings.Join(task.SkeletonPatches, "\n")
	if !strings.Contains(joined, "lines 10-40: process_payment") {
		t.Errorf("skeletons missing symbol anchor:\n%s", joined)
	}

	if task.EstimatedTokens < tokenBase(task.Complexity) {
		t.Errorf("EstimatedTokens = %d below base", task.EstimatedTokens)
	}
	if bundle.ExecutionStrategy != StrategyParallel {
		t.Errorf("strategy = %s, want parallel for a single task", bundle.ExecutionStrategy)
	}
}

func TestGenerateQualifiesSameNamedSymbols(t *testing.T) {
	// Two files defining render must yield two distinct metadata ids.
	source := &fakeSource{analyses: map[string]*parser.FileAnalysis{
		"src/a.py": {
			Path:     "src/a.py",
			Language: lang.Python,
			Symbols: []parser.Symbol{
				{Name: "render", Kind: lang.KindFunction, Path: "src/a.py",
					StartLine: 1, EndLine: 5, Complexity: 2},
			},
			Complexity: 2,
		},
		"src/b.py": {
			Path:     "src/b.py",
			Language: lang.Python,
			Symbols: []parser.Symbol{
				{Name: "render", Kind: lang.KindFunction, Path: "src/b.py",
					StartLine: 1, EndLine: 5, Complexity: 2},
			},
			Complexity: 2,
		},
	}}
	gen := NewGenerator(source, graph.New())

	bundle, err := gen.Generate(context.Background(),
		singleStepPlan(plan.KindEdit, "speed up render"), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got := bundle.Tasks[0].Metadata["affected_symbols"]
	if got != "src/a.py:render,src/b.py:render" {
		t.Errorf("affected_symbols = %q", got)
	}
}

func TestGenerateSharedFileMakesChain(t *testing.T) {
	source, g := paymentFixture()
	gen := NewGenerator(source, g)

	p := &plan.Plan{
		ID:            "plan-2",
		AffectedPaths: []string{"src/pay.py"},
		Steps: []plan.Step{
			{Goal: "tighten validation", Kind: plan.KindEdit},
			{Goal: "update error messages", Kind: plan.KindEdit},
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}

	bundle, err := gen.Generate(context.Background(), p, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(bundle.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(bundle.Tasks))
	}
	second := bundle.Tasks[1]
	if !reflect.DeepEqual(second.DependsOn, []string{bundle.Tasks[0].ID}) {
		t.Errorf("DependsOn = %v, want the first task", second.DependsOn)
	}
	if bundle.ExecutionStrategy != StrategySequential {
		t.Errorf("strategy = %s, want sequential", bundle.ExecutionStrategy)
	}
}

func TestGenerateDisjointFilesRunParallel(t *testing.T) {
	source, g := paymentFixture()
	gen := NewGenerator(source, g)

	p := &plan.Plan{
		ID: "plan-3",
		Steps: []plan.Step{
			{Goal: "touch one", Kind: plan.KindEdit, Hints: []string{"see src/one.py"}},
			{Goal: "touch two", Kind: plan.KindEdit, Hints: []string{"see src/two.py"}},
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}

	bundle, err := gen.Generate(context.Background(), p, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bundle.ExecutionStrategy != StrategyParallel {
		t.Errorf("strategy = %s, want parallel", bundle.ExecutionStrategy)
	}
}

func TestGenerateHintPathsArePickedUp(t *testing.T) {
	source, g := paymentFixture()
	gen := NewGenerator(source, g)

	p := singleStepPlan(plan.KindEdit, "wire the new logger")
	p.Steps[0].Hints = []string{"start from src/logging.py, then config"}

	bundle, err := gen.Generate(context.Background(), p, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, f := range bundle.Tasks[0].FilePaths {
		if f == "src/logging.py" {
			found = true
		}
	}
	if !found {
		t.Errorf("FilePaths = %v, want hint path src/logging.py", bundle.Tasks[0].FilePaths)
	}
}

func TestGenerateNoMatchesStillProducesTask(t *testing.T) {
	source, g := paymentFixture()
	gen := NewGenerator(source, g)

	bundle, err := gen.Generate(context.Background(),
		singleStepPlan(plan.KindReview, "ponder the architecture"), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	task := bundle.Tasks[0]
	if len(task.FilePaths) != 0 {
		t.Errorf("FilePaths = %v, want none", task.FilePaths)
	}
	if task.Complexity != Trivial {
		t.Errorf("Complexity = %s, want trivial", task.Complexity)
	}
}

// failingProvider errors on every call.
type failingProvider struct{}

func (failingProvider) Prefetch(ctx context.Context, goal string, paths []string) ([]string, error) {
	return nil, errors.New("provider down")
}

func (failingProvider) EnhanceSkeleton(ctx context.Context, path, patch string) (string, error) {
	return "", errors.New("provider down")
}

func TestGenerateSurvivesProviderFailure(t *testing.T) {
	source, g := paymentFixture()
	gen := NewGenerator(source, g, WithProvider(failingProvider{}))

	bundle, err := gen.Generate(context.Background(),
		singleStepPlan(plan.KindRefactor, "extract validation from process_payment"), "")
	if err != nil {
		t.Fatalf("provider failure must not fail generation: %v", err)
	}
	task := bundle.Tasks[0]
	if len(task.ContextIDs) != 0 {
		t.Errorf("ContextIDs = %v, want none on provider failure", task.ContextIDs)
	}
	if len(task.SkeletonPatches) == 0 {
		t.Error("skeletons should fall back to the unenhanced patch")
	}
}

// recordingProvider returns canned ids and an enhanced patch.
type recordingProvider struct{}

func (recordingProvider) Prefetch(ctx context.Context, goal string, paths []string) ([]string, error) {
	return []string{"ctx-1", "ctx-2"}, nil
}

func (recordingProvider) EnhanceSkeleton(ctx context.Context, path, patch string) (string, error) {
	return patch + "+// context: nearby callers\n", nil
}

func TestGenerateUsesProvider(t *testing.T) {
	source, g := paymentFixture()
	gen := NewGenerator(source, g, WithProvider(recordingProvider{}))

	bundle, err := gen.Generate(context.Background(),
		singleStepPlan(plan.KindRefactor, "extract validation from process_payment"), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	task := bundle.Tasks[0]
	if !reflect.DeepEqual(task.ContextIDs, []string{"ctx-1", "ctx-2"}) {
		t.Errorf("ContextIDs = %v", task.ContextIDs)
	}
	if !strings.Contains(strings.Join(task.SkeletonPatches, ""), "nearby callers") {
		t.Error("enhanced skeleton not applied")
	}
}

func TestPathTokens(t *testing.T) {
	hints := []string{
		"start from src/auth.py and follow the flow",
		"(also check lib/db.rs);",
		"plain words only",
		"version 2.0 is not a path",
	}
	got := pathTokens(hints)
	want := []string{"src/auth.py", "lib/db.rs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pathTokens = %v, want %v", got, want)
	}
}
