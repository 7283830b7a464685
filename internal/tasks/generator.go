package tasks

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"codeplan/internal/graph"
	"codeplan/internal/logging"
	"codeplan/internal/parser"
	"codeplan/internal/plan"
)

// Source supplies file analyses and the known symbol population. The
// engine implements it over the cache and scheduler.
type Source interface {
	// Analysis returns the analysis for path, or false when the file
	// cannot be analyzed.
	Analysis(ctx context.Context, path string) (*parser.FileAnalysis, bool)
	// Symbols returns every known symbol across analyzed files.
	Symbols() []*parser.Symbol
}

// ContextProvider optionally enriches tasks with prefetched context and
// improved skeletons. Every provider failure is logged and swallowed;
// generation never degrades below provider-free output.
type ContextProvider interface {
	// Prefetch returns content ids relevant to the goal and files.
	Prefetch(ctx context.Context, goal string, paths []string) ([]string, error)
	// EnhanceSkeleton rewrites a skeleton patch with more context.
	EnhanceSkeleton(ctx context.Context, path, patch string) (string, error)
}

// Generator compiles plans into task bundles.
type Generator struct {
	source   Source
	graph    *graph.Graph
	provider ContextProvider
	logger   *logging.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithProvider attaches an optional context provider.
func WithProvider(p ContextProvider) Option {
	return func(g *Generator) { g.provider = p }
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator over the given analysis source and
// call graph.
func NewGenerator(source Source, gr *graph.Graph, opts ...Option) *Generator {
	g := &Generator{source: source, graph: gr, logger: logging.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("tasks")
	return g
}

const maxSkeletonPatches = 3

// Generate compiles a validated plan into a TaskBundle. One task per
// step, in step order. The only hard failure is a bundle that fails
// validation; per-step degradation (no files, no symbols, no skeletons)
// produces a thinner task, not an error.
func (g *Generator) Generate(ctx context.Context, p *plan.Plan, baseCommit string) (*TaskBundle, error) {
	tasks := make([]CodingTask, 0, len(p.Steps))
	// firstTouch remembers which earlier tasks touched each file so
	// later tasks on the same file can be ordered after them.
	touchedBy := make(map[string][]string)

	for _, step := range p.Steps {
		task := g.buildTask(ctx, p, &step, baseCommit, touchedBy)
		for _, path := range task.FilePaths {
			touchedBy[path] = append(touchedBy[path], task.ID)
		}
		tasks = append(tasks, task)
	}

	bundle := &TaskBundle{
		ID:                uuid.NewString(),
		ParentPlanID:      p.ID,
		Tasks:             tasks,
		ExecutionStrategy: inferStrategy(tasks),
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	g.logger.Info("Generated task bundle", map[string]interface{}{
		"plan":     p.ID,
		"tasks":    len(tasks),
		"strategy": string(bundle.ExecutionStrategy),
	})
	return bundle, nil
}

func (g *Generator) buildTask(ctx context.Context, p *plan.Plan, step *plan.Step, baseCommit string, touchedBy map[string][]string) CodingTask {
	task := CodingTask{
		ID:         uuid.NewString(),
		Goal:       step.Goal,
		StepNumber: step.Order,
		BaseCommit: baseCommit,
		Metadata:   map[string]string{"step_kind": string(step.Kind)},
	}

	// File discovery: plan-level paths, path-shaped hint tokens, files
	// of goal-matched symbols, files of their callers, then test file
	// candidates for everything found so far.
	files := append([]string(nil), p.AffectedPaths...)
	files = append(files, pathTokens(step.Hints)...)

	matched := g.matchSymbols(step.Goal)
	for _, sym := range matched {
		files = append(files, sym.Path)
	}
	files = append(files, g.callerFiles(matched)...)
	files = uniquePaths(files)
	files = append(files, g.testFiles(ctx, files)...)
	files = uniquePaths(files)
	task.FilePaths = files

	if len(files) == 0 {
		g.logger.Warn("Step resolved to no files", map[string]interface{}{
			"plan": p.ID,
			"step": step.Order,
		})
	}

	// Complexity: sum of file complexities plus weights for breadth.
	score := 5*len(files) + 3*len(matched)
	analyses := make(map[string]*parser.FileAnalysis, len(files))
	for _, path := range files {
		if fa, ok := g.source.Analysis(ctx, path); ok {
			analyses[path] = fa
			score += fa.Complexity
		}
	}
	task.Complexity = labelForScore(score)

	task.SkeletonPatches = g.skeletons(ctx, step, files, analyses, matched)
	task.ContextIDs = g.prefetch(ctx, step.Goal, files)
	task.EstimatedTokens = tokenBase(task.Complexity) +
		tokensPerFile*len(files) +
		tokensPerSkeleton*len(task.SkeletonPatches)

	if len(matched) > 0 {
		// Qualified ids, so same-named symbols in different files stay apart.
		ids := make([]string, len(matched))
		for i, sym := range matched {
			ids[i] = graph.NodeID(sym.Path, sym.Name)
		}
		task.Metadata["affected_symbols"] = strings.Join(ids, ",")
	}

	task.DependsOn = dependsOn(files, touchedBy)
	return task
}

// matchSymbols returns the known symbols whose bare name appears
// case-insensitively in the goal text. Purely lexical on purpose; the
// graph disambiguates nothing here.
func (g *Generator) matchSymbols(goal string) []*parser.Symbol {
	lowerGoal := strings.ToLower(goal)
	var matched []*parser.Symbol
	for _, sym := range g.source.Symbols() {
		if strings.Contains(lowerGoal, strings.ToLower(sym.BareName())) {
			matched = append(matched, sym)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Path != matched[j].Path {
			return matched[i].Path < matched[j].Path
		}
		return matched[i].Name < matched[j].Name
	})
	return matched
}

// callerFiles returns the files containing symbols that call any of the
// matched symbols.
func (g *Generator) callerFiles(matched []*parser.Symbol) []string {
	if g.graph == nil {
		return nil
	}
	var files []string
	for _, sym := range matched {
		id := graph.NodeID(sym.Path, sym.Name)
		for _, caller := range g.graph.Callers(id) {
			if file, ok := fileOfNode(caller); ok {
				files = append(files, file)
			}
		}
	}
	return files
}

// testFiles probes the conventional test file locations for each file
// and keeps the ones that actually analyze.
func (g *Generator) testFiles(ctx context.Context, files []string) []string {
	var found []string
	for _, path := range files {
		for _, candidate := range testFileCandidates(path) {
			if _, ok := g.source.Analysis(ctx, candidate); ok {
				found = append(found, candidate)
			}
		}
	}
	return found
}

func (g *Generator) skeletons(ctx context.Context, step *plan.Step, files []string, analyses map[string]*parser.FileAnalysis, matched []*parser.Symbol) []string {
	var patches []string
	for _, path := range files {
		if len(patches) >= maxSkeletonPatches {
			break
		}
		patch, err := skeletonPatch(step, path, analyses[path], matched)
		if err != nil {
			g.logger.Debug("Skipping skeleton hint", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		if g.provider != nil {
			if enhanced, err := g.provider.EnhanceSkeleton(ctx, path, patch); err == nil && enhanced != "" {
				patch = enhanced
			} else if err != nil {
				g.logger.Debug("Skeleton enhancement failed", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
			}
		}
		patches = append(patches, patch)
	}
	return patches
}

func (g *Generator) prefetch(ctx context.Context, goal string, files []string) []string {
	if g.provider == nil {
		return nil
	}
	ids, err := g.provider.Prefetch(ctx, goal, files)
	if err != nil {
		g.logger.Debug("Context prefetch failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return ids
}

// dependsOn collects the ids of every earlier task that touched any of
// this task's files.
func dependsOn(files []string, touchedBy map[string][]string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, path := range files {
		for _, id := range touchedBy[path] {
			if !seen[id] {
				seen[id] = true
				deps = append(deps, id)
			}
		}
	}
	return deps
}

// pathTokens extracts the hint tokens that look like file paths: they
// contain both a path separator and an extension dot.
func pathTokens(hints []string) []string {
	var paths []string
	for _, hint := range hints {
		for _, token := range strings.Fields(hint) {
			token = strings.Trim(token, "`\"'(),;:")
			if strings.Contains(token, "/") && strings.Contains(token, ".") {
				paths = append(paths, token)
			}
		}
	}
	return paths
}

// fileOfNode splits a node id back into its file part. File-level
// pseudo-nodes count as their file.
func fileOfNode(id string) (string, bool) {
	idx := strings.LastIndex(id, ":")
	if idx <= 0 {
		return "", false
	}
	return id[:idx], true
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
