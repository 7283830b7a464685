package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeplan/internal/config"
	"codeplan/internal/plan"
)

const payPy = `from validators import check_amount

def process_payment(amount):
    if not check_amount(amount):
        return None
    if amount > 1000:
        audit(amount)
    return amount
`

const apiPy = `from pay import process_payment

def checkout(cart):
    if cart:
        return process_payment(cart.total)
    return None
`

const validatorsPy = `def check_amount(amount):
    if amount <= 0:
        return False
    return True
`

func testRepo(t *testing.T) (string, []string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		"src/pay.py":        payPy,
		"src/api.py":        apiPy,
		"src/validators.py": validatorsPy,
		"README.md":         "# test repo\n",
	}
	var paths []string
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if strings.HasSuffix(rel, ".py") {
			paths = append(paths, path)
		}
	}
	return root, paths
}

func newTestAnalyzer(t *testing.T, root string) *Analyzer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RepoRoot = root
	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestDiscoverFiles(t *testing.T) {
	root, paths := testRepo(t)

	// Noise that must be skipped.
	if err := os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "node_modules", "dep", "x.py"), []byte("def x(): pass"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := DiscoverFiles(root)
	if err != nil {
		t.Fatalf("DiscoverFiles: %v", err)
	}
	if len(found) != len(paths) {
		t.Errorf("found %d files, want %d: %v", len(found), len(paths), found)
	}
	for _, f := range found {
		if strings.Contains(f, "node_modules") {
			t.Errorf("node_modules leaked into discovery: %s", f)
		}
	}
}

func TestAnalyzeFilesBuildsGraph(t *testing.T) {
	root, paths := testRepo(t)
	a := newTestAnalyzer(t, root)

	report, err := a.AnalyzeFiles(context.Background(), paths)
	if err != nil {
		t.Fatalf("AnalyzeFiles: %v", err)
	}
	if report.Analyzed != 3 {
		t.Errorf("Analyzed = %d, want 3", report.Analyzed)
	}
	if len(report.Failures) != 0 {
		t.Errorf("Failures = %v", report.Failures)
	}

	g := a.Graph()
	payPath := filepath.Join(root, "src", "pay.py")
	apiPath := filepath.Join(root, "src", "api.py")

	payID := payPath + ":process_payment"
	apiID := apiPath + ":checkout"
	if g.Node(payID) == nil {
		t.Fatalf("missing node %s; have %d nodes", payID, g.NodeCount())
	}

	// checkout calls process_payment.
	impacted := g.ImpactSet(map[string]bool{payID: true})
	if !impacted[apiID] {
		t.Errorf("impact of process_payment should include checkout, got %v", impacted)
	}
}

func TestRepeatedMergeKeepsStemIndexUnique(t *testing.T) {
	root, paths := testRepo(t)
	a := newTestAnalyzer(t, root)

	ctx := context.Background()
	if _, err := a.AnalyzeFiles(ctx, paths); err != nil {
		t.Fatal(err)
	}
	// Same paths again through a second batch, as ProcessPlan does.
	if _, err := a.AnalyzeFiles(ctx, paths); err != nil {
		t.Fatal(err)
	}

	for stem, entries := range a.stemIndex {
		seen := map[string]bool{}
		for _, p := range entries {
			if seen[p] {
				t.Errorf("stem %q lists %s twice: %v", stem, p, entries)
			}
			seen[p] = true
		}
	}
}

func TestAnalyzeFilesSecondRunHitsCache(t *testing.T) {
	root, paths := testRepo(t)
	a := newTestAnalyzer(t, root)

	ctx := context.Background()
	if _, err := a.AnalyzeFiles(ctx, paths); err != nil {
		t.Fatal(err)
	}

	// Fresh analyzer, same durable cache.
	b := newTestAnalyzer(t, root)
	report, err := b.AnalyzeFiles(ctx, paths)
	if err != nil {
		t.Fatal(err)
	}
	if report.CacheHits != 3 {
		t.Errorf("CacheHits = %d, want 3", report.CacheHits)
	}
	if report.Analyzed != 3 {
		t.Errorf("Analyzed = %d, want 3 (hits still merge)", report.Analyzed)
	}
}

func TestEditedFileMissesCache(t *testing.T) {
	root, paths := testRepo(t)
	ctx := context.Background()

	a := newTestAnalyzer(t, root)
	if _, err := a.AnalyzeFiles(ctx, paths); err != nil {
		t.Fatal(err)
	}

	payPath := filepath.Join(root, "src", "pay.py")
	if err := os.WriteFile(payPath, []byte(payPy+"\ndef refund(amount):\n    return -amount\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := newTestAnalyzer(t, root)
	report, err := b.AnalyzeFiles(ctx, []string{payPath})
	if err != nil {
		t.Fatal(err)
	}
	if report.CacheHits != 0 {
		t.Errorf("edited file should miss the cache, hits = %d", report.CacheHits)
	}

	fa, ok := b.Analysis(ctx, payPath)
	if !ok || fa.SymbolByName("refund") == nil {
		t.Error("re-analysis should see the new symbol")
	}
}

func TestProcessPlanEndToEnd(t *testing.T) {
	root, paths := testRepo(t)
	a := newTestAnalyzer(t, root)

	ctx := context.Background()
	if _, err := a.AnalyzeFiles(ctx, paths); err != nil {
		t.Fatal(err)
	}

	p := &plan.Plan{
		ID: "plan-e2e",
		Steps: []plan.Step{
			{Goal: "extract validation from process_payment", Kind: plan.KindRefactor},
		},
	}

	bundle, err := a.ProcessPlan(ctx, p, "deadbee", nil)
	if err != nil {
		t.Fatalf("ProcessPlan: %v", err)
	}

	if bundle.ParentPlanID != "plan-e2e" {
		t.Errorf("ParentPlanID = %q", bundle.ParentPlanID)
	}
	if len(bundle.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(bundle.Tasks))
	}
	task := bundle.Tasks[0]

	payPath := filepath.Join(root, "src", "pay.py")
	foundPay := false
	for _, f := range task.FilePaths {
		if f == payPath {
			foundPay = true
		}
	}
	if !foundPay {
		t.Errorf("FilePaths = %v, want to include %s", task.FilePaths, payPath)
	}
	if task.BaseCommit != "deadbee" {
		t.Errorf("BaseCommit = %q", task.BaseCommit)
	}
	if err := bundle.Validate(); err != nil {
		t.Errorf("bundle should validate: %v", err)
	}
}

func TestProcessPlanRejectsInvalidPlan(t *testing.T) {
	root, _ := testRepo(t)
	a := newTestAnalyzer(t, root)

	_, err := a.ProcessPlan(context.Background(), &plan.Plan{ID: "p"}, "", nil)
	if err == nil {
		t.Error("plan with no steps should be rejected")
	}
}
