// Package scheduler fans per-file parsing out across a worker pool.
//
// Each unit of work is pure: it reads one file and parses it with its
// own parser state, so nothing is shared across the pool boundary.
// Results arrive in arbitrary order; merging into the cache and the call
// graph is the caller's job and happens strictly sequentially afterward.
package scheduler

import (
	"context"
	"os"
	"runtime"
	"sync"

	"codeplan/internal/cache"
	"codeplan/internal/errors"
	"codeplan/internal/lang"
	"codeplan/internal/logging"
	"codeplan/internal/parser"
)

// Result is the outcome for one file. Exactly one of Analysis and Err is
// set, except for skipped (unsupported) files where both are nil.
type Result struct {
	// Analysis is nil for skipped or failed files.
	Analysis *parser.FileAnalysis
	// Hash is the content hash of the file as read by the worker.
	Hash string
	// Err records a per-file worker failure. It never aborts the batch.
	Err error
}

// Config controls batch execution.
type Config struct {
	// ParallelThreshold is the file count below which the batch runs
	// sequentially; pool startup overhead dominates under it.
	ParallelThreshold int
	// Workers overrides the pool size when > 0. The default is
	// min(GOMAXPROCS-1, file count).
	Workers int
	// ParserOptions configures the per-worker registries.
	ParserOptions parser.Options
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{ParallelThreshold: 10}
}

// Scheduler runs analysis batches.
type Scheduler struct {
	config Config
	logger *logging.Logger
}

// New creates a scheduler.
func New(config Config, logger *logging.Logger) *Scheduler {
	if config.ParallelThreshold < 1 {
		config.ParallelThreshold = 10
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{config: config, logger: logger.With("scheduler")}
}

// AnalyzeMany parses the given paths and returns a per-path result map.
// The batch never aborts on a single failure; cancellation is
// best-effort at the batch level, and straggler results past the
// deadline are discarded.
func (s *Scheduler) AnalyzeMany(ctx context.Context, paths []string) map[string]Result {
	if len(paths) < s.config.ParallelThreshold {
		return s.runSequential(ctx, paths)
	}
	return s.runParallel(ctx, paths)
}

func (s *Scheduler) runSequential(ctx context.Context, paths []string) map[string]Result {
	registry, err := parser.NewRegistry(s.config.ParserOptions)
	if err != nil {
		return failAll(paths, err)
	}

	results := make(map[string]Result, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		results[path] = analyzeOne(ctx, registry, path)
	}
	return results
}

func (s *Scheduler) runParallel(ctx context.Context, paths []string) map[string]Result {
	workers := s.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) - 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	s.logger.Debug("Starting parallel analysis", map[string]interface{}{
		"files":   len(paths),
		"workers": workers,
	})

	type item struct {
		path   string
		result Result
	}

	jobs := make(chan string)
	out := make(chan item)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each worker owns its parser state.
			registry, err := parser.NewRegistry(s.config.ParserOptions)
			for path := range jobs {
				var r Result
				if err != nil {
					r = Result{Err: errors.New(errors.WorkerFailure, "worker init failed", err)}
				} else {
					r = analyzeOne(ctx, registry, path)
				}
				select {
				case out <- item{path, r}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make(map[string]Result, len(paths))
collect:
	for {
		select {
		case it, ok := <-out:
			if !ok {
				break collect
			}
			results[it.path] = it.result
		case <-ctx.Done():
			// Stragglers are abandoned; whatever arrived before the
			// deadline is returned.
			s.logger.Warn("Analysis batch deadline hit", map[string]interface{}{
				"collected": len(results),
				"total":     len(paths),
			})
			break collect
		}
	}

	return results
}

// analyzeOne is the pure unit of work.
func analyzeOne(ctx context.Context, registry *parser.Registry, path string) Result {
	source, err := os.ReadFile(path)
	if err != nil {
		return Result{Err: errors.New(errors.WorkerFailure, "read "+path, err)}
	}

	l, ok := lang.FromPath(path)
	if !ok {
		return Result{} // unsupported language: skipped, not an error
	}

	fa := registry.AnalyzeSource(ctx, path, source, l)
	return Result{Analysis: fa, Hash: cache.ContentHash(source)}
}

func failAll(paths []string, err error) map[string]Result {
	results := make(map[string]Result, len(paths))
	for _, path := range paths {
		results[path] = Result{Err: errors.New(errors.WorkerFailure, "parser init failed", err)}
	}
	return results
}
