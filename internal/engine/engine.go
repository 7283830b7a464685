// Package engine owns the analysis pipeline: cache-first file analysis,
// parallel parsing for misses, sequential merge into the call graph, and
// plan-to-bundle compilation on top of the merged state.
package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"codeplan/internal/cache"
	"codeplan/internal/config"
	"codeplan/internal/graph"
	"codeplan/internal/lang"
	"codeplan/internal/logging"
	"codeplan/internal/parser"
	"codeplan/internal/plan"
	"codeplan/internal/scheduler"
	"codeplan/internal/tasks"
)

// Analyzer is the top-level engine facade. Not safe for concurrent use;
// all parallelism lives inside the scheduler.
type Analyzer struct {
	cfg       *config.Config
	logger    *logging.Logger
	store     *cache.Store
	graph     *graph.Graph
	scheduler *scheduler.Scheduler
	registry  *parser.Registry

	// analyses is the merged per-path state for this analyzer's lifetime.
	analyses map[string]*parser.FileAnalysis
	// stemIndex maps file stems to analyzed paths for import resolution.
	stemIndex map[string][]string
}

// Report summarizes one AnalyzeFiles batch.
type Report struct {
	Analyzed  int               `json:"analyzed"`
	CacheHits int               `json:"cache_hits"`
	Skipped   int               `json:"skipped"`
	Failures  map[string]string `json:"failures,omitempty"`
	Elapsed   time.Duration     `json:"-"`
}

// New builds an analyzer from configuration. The cache store never fails
// to open; registry construction fails only on broken language tables.
func New(cfg *config.Config, logger *logging.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	dbPath := cfg.Cache.DBPath
	if dbPath != "" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(config.Dir(cfg.RepoRoot), dbPath)
	}

	store := cache.NewStore(cache.Options{
		DBPath:           dbPath,
		TTL:              time.Duration(cfg.Cache.AnalysisTtlSeconds) * time.Second,
		MemoryMaxEntries: cfg.Cache.MemoryMaxEntries,
		OpTimeout:        time.Duration(cfg.Cache.OpTimeoutMs) * time.Millisecond,
		Logger:           logger,
	})

	parserOpts := parser.Options{
		MaxFileSizeBytes: cfg.Parser.MaxFileSizeBytes,
		Logger:           logger,
	}
	registry, err := parser.NewRegistry(parserOpts)
	if err != nil {
		store.Close()
		return nil, err
	}

	sched := scheduler.New(scheduler.Config{
		ParallelThreshold: cfg.Scheduler.ParallelThreshold,
		Workers:           cfg.Scheduler.Workers,
		ParserOptions:     parserOpts,
	}, logger)

	return &Analyzer{
		cfg:       cfg,
		logger:    logger.With("engine"),
		store:     store,
		graph:     graph.New(),
		scheduler: sched,
		registry:  registry,
		analyses:  make(map[string]*parser.FileAnalysis),
		stemIndex: make(map[string][]string),
	}, nil
}

// Graph exposes the merged call graph for queries.
func (a *Analyzer) Graph() *graph.Graph { return a.graph }

// Cache exposes the cache store for stats and invalidation.
func (a *Analyzer) Cache() *cache.Store { return a.store }

// Close releases the cache backend.
func (a *Analyzer) Close() error { return a.store.Close() }

// skipDirs are never descended into during discovery.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"__pycache__":  true,
}

// DiscoverFiles walks root and returns every supported source file, in
// sorted order.
func DiscoverFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if skipDirs[name] || (len(name) > 1 && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := lang.FromPath(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// AnalyzeFiles analyzes the given paths, cache first. Misses go through
// the scheduler; results merge into the graph strictly sequentially, in
// sorted path order, so repeated runs over the same inputs produce the
// same graph.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{Failures: make(map[string]string)}

	if a.cfg.Scheduler.BatchTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx,
			time.Duration(a.cfg.Scheduler.BatchTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	hits := make(map[string]*parser.FileAnalysis)
	var misses []string
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			report.Failures[path] = err.Error()
			continue
		}
		if _, ok := lang.FromPath(path); !ok {
			report.Skipped++
			continue
		}
		hash := cache.ContentHash(source)
		if fa, ok := a.store.GetAnalysis(ctx, path, hash); ok {
			hits[path] = fa
			report.CacheHits++
			continue
		}
		misses = append(misses, path)
	}

	results := a.scheduler.AnalyzeMany(ctx, misses)

	// Merge phase: single goroutine, deterministic order.
	merged := make([]string, 0, len(hits)+len(results))
	for path := range hits {
		merged = append(merged, path)
	}
	for path := range results {
		merged = append(merged, path)
	}
	sort.Strings(merged)

	for _, path := range merged {
		if fa, ok := hits[path]; ok {
			a.merge(fa)
			report.Analyzed++
			continue
		}
		r := results[path]
		switch {
		case r.Err != nil:
			report.Failures[path] = r.Err.Error()
		case r.Analysis == nil:
			report.Skipped++
		default:
			a.store.SetAnalysis(ctx, path, r.Hash, r.Analysis)
			a.merge(r.Analysis)
			report.Analyzed++
		}
	}

	a.linkCalls()
	a.linkImports()

	report.Elapsed = time.Since(start)
	a.logger.Info("Analysis batch complete", map[string]interface{}{
		"analyzed":  report.Analyzed,
		"cacheHits": report.CacheHits,
		"skipped":   report.Skipped,
		"failures":  len(report.Failures),
		"elapsedMs": report.Elapsed.Milliseconds(),
	})
	return report, nil
}

// merge folds one analysis into the engine state and registers its
// symbol nodes. Edges are added afterward by linkCalls and linkImports,
// once every node of the batch exists.
func (a *Analyzer) merge(fa *parser.FileAnalysis) {
	// A path re-merged across batches must not duplicate its stem entry.
	if _, seen := a.analyses[fa.Path]; !seen {
		stem := fileStem(fa.Path)
		a.stemIndex[stem] = append(a.stemIndex[stem], fa.Path)
	}
	a.analyses[fa.Path] = fa

	for i := range fa.Symbols {
		a.graph.AddSymbol(&fa.Symbols[i])
	}
}

// linkCalls replays call edges over all merged analyses. Duplicate edges
// collapse in the graph, so the replay is idempotent, and calls that
// were unresolvable in an earlier batch resolve once their target file
// arrives.
func (a *Analyzer) linkCalls() {
	for _, fa := range a.analyses {
		for i := range fa.Symbols {
			sym := &fa.Symbols[i]
			callerID := graph.NodeID(sym.Path, sym.Name)
			for _, callee := range sym.Calls {
				a.graph.AddCall(callerID, callee)
			}
		}
	}
}

// linkImports resolves import strings against analyzed files and adds
// file-level edges. Runs after every merge batch so late-arriving files
// pick up edges from earlier importers.
func (a *Analyzer) linkImports() {
	for path, fa := range a.analyses {
		for _, imp := range fa.Imports {
			if target, ok := a.resolveImport(path, imp); ok && target != path {
				a.graph.AddFileDependency(path, target, imp)
			}
		}
	}
}

// resolveImport maps an import string to an analyzed file. Relative
// imports resolve against the importing file's directory; everything
// else matches on the trailing segment's stem. Unresolved imports are
// dropped, matching the call-edge policy.
func (a *Analyzer) resolveImport(fromPath, imp string) (string, bool) {
	if strings.HasPrefix(imp, ".") {
		base := filepath.Join(filepath.Dir(fromPath), imp)
		for _, l := range lang.All() {
			for _, ext := range lang.Extensions(l) {
				candidate := base + ext
				if _, ok := a.analyses[candidate]; ok {
					return candidate, true
				}
			}
		}
		return "", false
	}

	seg := imp
	if idx := strings.LastIndexAny(seg, "/."); idx >= 0 {
		seg = seg[idx+1:]
	}
	candidates := a.stemIndex[seg]
	if len(candidates) == 0 {
		return "", false
	}
	// Prefer a sibling of the importer when the stem is ambiguous.
	dir := filepath.Dir(fromPath)
	for _, c := range candidates {
		if filepath.Dir(c) == dir {
			return c, true
		}
	}
	return candidates[0], true
}

// Analysis implements tasks.Source. Unknown paths are analyzed on
// demand, cache first, and merged into the graph.
func (a *Analyzer) Analysis(ctx context.Context, path string) (*parser.FileAnalysis, bool) {
	if fa, ok := a.analyses[path]; ok {
		return fa, true
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	l, ok := lang.FromPath(path)
	if !ok {
		return nil, false
	}

	hash := cache.ContentHash(source)
	fa, ok := a.store.GetAnalysis(ctx, path, hash)
	if !ok {
		fa = a.registry.AnalyzeSource(ctx, path, source, l)
		if fa == nil {
			return nil, false
		}
		a.store.SetAnalysis(ctx, path, hash, fa)
	}
	a.merge(fa)
	a.linkCalls()
	a.linkImports()
	return fa, true
}

// Symbols implements tasks.Source over all merged analyses.
func (a *Analyzer) Symbols() []*parser.Symbol {
	var out []*parser.Symbol
	for _, fa := range a.analyses {
		for i := range fa.Symbols {
			out = append(out, &fa.Symbols[i])
		}
	}
	return out
}

// Invalidate drops every cache entry for a path.
func (a *Analyzer) Invalidate(path string) error {
	return a.store.Invalidate(path)
}

// ProcessPlan analyzes the plan's affected paths and compiles the plan
// into a TaskBundle.
func (a *Analyzer) ProcessPlan(ctx context.Context, p *plan.Plan, baseCommit string, provider tasks.ContextProvider) (*tasks.TaskBundle, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if len(p.AffectedPaths) > 0 {
		if _, err := a.AnalyzeFiles(ctx, p.AffectedPaths); err != nil {
			return nil, err
		}
	}

	opts := []tasks.Option{tasks.WithLogger(a.logger)}
	if provider != nil {
		opts = append(opts, tasks.WithProvider(provider))
	}
	gen := tasks.NewGenerator(a, a.graph, opts...)
	return gen.Generate(ctx, p, baseCommit)
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
