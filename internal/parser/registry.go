package parser

import (
	"context"
	"fmt"
	"os"

	"codeplan/internal/lang"
	"codeplan/internal/logging"
)

// Strategy is one per-language extraction approach. Strategies are tried
// in priority order; the first non-nil analysis wins.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Supports reports whether the strategy can parse the language.
	Supports(l lang.Language) bool
	// Parse extracts a FileAnalysis from source. Returning (nil, nil)
	// means "cannot handle this file, try the next strategy".
	Parse(ctx context.Context, path string, source []byte, l lang.Language) (*FileAnalysis, error)
}

// metricsEnhancer is the optional enhanced-metrics capability: a strategy
// implementing it can recompute symbol complexity with higher precision.
type metricsEnhancer interface {
	EnhancesMetrics(l lang.Language) bool
	// ComplexityByName returns precise cyclomatic complexity keyed by
	// qualified symbol name.
	ComplexityByName(ctx context.Context, source []byte, l lang.Language) (map[string]int, error)
}

// Registry dispatches files to strategies and applies the failure policy:
// a parse error degrades to a minimal FileAnalysis, never an error to the
// caller.
type Registry struct {
	strategies  []Strategy
	maxFileSize int
	logger      *logging.Logger
}

// Options configures a Registry.
type Options struct {
	// MaxFileSizeBytes skips files larger than this. 0 means no limit.
	MaxFileSizeBytes int
	Logger           *logging.Logger
}

// NewRegistry builds the default strategy chain: structural tree-sitter
// parser first, the Go-native parser second, the line-heuristic fallback
// last. Grammar tables are validated once here.
func NewRegistry(opts Options) (*Registry, error) {
	if err := lang.ValidateTables(); err != nil {
		return nil, fmt.Errorf("grammar tables: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Registry{
		strategies: []Strategy{
			newTreeSitterStrategy(),
			newNativeStrategy(),
			newHeuristicStrategy(),
		},
		maxFileSize: opts.MaxFileSizeBytes,
		logger:      logger.With("parser"),
	}, nil
}

// HasEnhancedMetrics reports whether a precision-enhancing complexity
// pass is registered for the language. Its absence never changes
// correctness, only precision.
func (r *Registry) HasEnhancedMetrics(l lang.Language) bool {
	for _, s := range r.strategies {
		if e, ok := s.(metricsEnhancer); ok && e.EnhancesMetrics(l) {
			return true
		}
	}
	return false
}

// AnalyzeFile parses one file. Returns (nil, nil) for unsupported
// languages (the file is skipped, not an error). Parse failures degrade
// to a minimal FileAnalysis.
func (r *Registry) AnalyzeFile(ctx context.Context, path string) (*FileAnalysis, error) {
	l, ok := lang.FromPath(path)
	if !ok {
		return nil, nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		r.logger.Debug("Unreadable file degraded to minimal analysis", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return Minimal(path, l), nil
	}
	if r.maxFileSize > 0 && len(source) > r.maxFileSize {
		return Minimal(path, l), nil
	}

	return r.AnalyzeSource(ctx, path, source, l), nil
}

// AnalyzeSource runs the strategy chain over source bytes. Never returns
// nil for a supported language.
func (r *Registry) AnalyzeSource(ctx context.Context, path string, source []byte, l lang.Language) *FileAnalysis {
	for _, s := range r.strategies {
		if !s.Supports(l) {
			continue
		}

		fa, err := r.parseSafely(ctx, s, path, source, l)
		if err != nil {
			r.logger.Debug("Strategy failed, trying next", map[string]interface{}{
				"strategy": s.Name(),
				"path":     path,
				"error":    err.Error(),
			})
			continue
		}
		if fa == nil {
			continue
		}

		r.enhanceMetrics(ctx, s, fa, source, l)
		return fa
	}

	// Every applicable strategy failed.
	return Minimal(path, l)
}

// parseSafely shields the chain from panicking grammars.
func (r *Registry) parseSafely(ctx context.Context, s Strategy, path string, source []byte, l lang.Language) (fa *FileAnalysis, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fa = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), rec)
		}
	}()
	return s.Parse(ctx, path, source, l)
}

// enhanceMetrics overwrites symbol complexity with a more precise value
// when an enhancer other than the winning strategy covers the language.
func (r *Registry) enhanceMetrics(ctx context.Context, winner Strategy, fa *FileAnalysis, source []byte, l lang.Language) {
	for _, s := range r.strategies {
		if s == winner {
			continue
		}
		e, ok := s.(metricsEnhancer)
		if !ok || !e.EnhancesMetrics(l) {
			continue
		}

		precise, err := e.ComplexityByName(ctx, source, l)
		if err != nil || len(precise) == 0 {
			return
		}

		changed := false
		for i := range fa.Symbols {
			if c, ok := precise[fa.Symbols[i].Name]; ok && c >= 1 && c != fa.Symbols[i].Complexity {
				fa.Symbols[i].Complexity = c
				changed = true
			}
		}
		if changed {
			fa.Finish()
		}
		return
	}
}

// SupportedLanguages returns the languages at least one strategy handles.
func (r *Registry) SupportedLanguages() []lang.Language {
	var out []lang.Language
	for _, l := range lang.All() {
		for _, s := range r.strategies {
			if s.Supports(l) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
