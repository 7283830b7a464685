package cache

import (
	"context"
	"time"

	"codeplan/internal/logging"
	"codeplan/internal/parser"
)

// AnalysisNamespace keys FileAnalysis entries.
const AnalysisNamespace = "analysis"

// Backend is the storage contract shared by the durable and in-process
// backends. Keys are opaque; path is carried separately so a whole path
// can be invalidated across content hashes.
type Backend interface {
	Name() string
	Get(key string) ([]byte, bool, error)
	Set(key, path string, payload []byte, ttl time.Duration) error
	InvalidatePath(path string) error
	Clear(pattern string) error
	KeyCount() (int, error)
	Close() error
}

// Options configures a Store.
type Options struct {
	// DBPath locates the durable backend. Empty disables it and uses the
	// in-process backend directly.
	DBPath string
	// TTL governs FileAnalysis entries. Defaults to one hour.
	TTL time.Duration
	// MemoryMaxEntries bounds the fallback backend.
	MemoryMaxEntries int
	// OpTimeout bounds any single backend call. A timed-out get is a
	// miss, never an error.
	OpTimeout time.Duration
	Logger    *logging.Logger
}

// Stats describes the active backend.
type Stats struct {
	Backend  string `json:"backend"`
	KeyCount int    `json:"key_count"`
}

// Store fronts whichever backend is active. All failures degrade: a get
// error or timeout is a miss, a set error is logged and swallowed.
type Store struct {
	backend   Backend
	ttl       time.Duration
	opTimeout time.Duration
	logger    *logging.Logger
}

// NewStore opens the durable backend, falling back to the bounded
// in-process backend when it cannot be reached. Callers never branch on
// which backend is active.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("cache")

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	opTimeout := opts.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}

	var backend Backend
	if opts.DBPath != "" {
		sqlite, err := openSQLiteBackend(opts.DBPath)
		if err == nil {
			backend = sqlite
			_ = sqlite.CleanupExpired()
		} else {
			logger.Warn("Durable cache backend unavailable, using in-process cache", map[string]interface{}{
				"dbPath": opts.DBPath,
				"error":  err.Error(),
			})
		}
	}
	if backend == nil {
		backend = newMemoryBackend(opts.MemoryMaxEntries)
	}

	logger.Debug("Cache store ready", map[string]interface{}{
		"backend": backend.Name(),
		"ttl":     ttl.String(),
	})

	return &Store{
		backend:   backend,
		ttl:       ttl,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

// GetAnalysis fetches a cached FileAnalysis. Any backend or decode
// failure is a miss.
func (s *Store) GetAnalysis(ctx context.Context, path, hash string) (*parser.FileAnalysis, bool) {
	key := Key(AnalysisNamespace, path, hash)

	payload, ok, err := s.boundedGet(ctx, key)
	if err != nil {
		s.logger.Debug("Cache get treated as miss", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	fa, err := decodeAnalysis(payload)
	if err != nil {
		s.logger.Debug("Cache decode treated as miss", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return fa, true
}

// SetAnalysis persists a FileAnalysis. Best-effort: failures are logged
// and swallowed.
func (s *Store) SetAnalysis(ctx context.Context, path, hash string, fa *parser.FileAnalysis) {
	payload, err := encodeAnalysis(fa)
	if err != nil {
		s.logger.Warn("Cache encode failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return
	}

	key := Key(AnalysisNamespace, path, hash)
	if err := s.bounded(ctx, func() error {
		return s.backend.Set(key, path, payload, s.ttl)
	}); err != nil {
		s.logger.Warn("Cache set failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Invalidate removes every entry for the path across all content hashes.
func (s *Store) Invalidate(path string) error {
	return s.backend.InvalidatePath(path)
}

// Clear removes entries matching the pattern ('*' wildcards; empty
// clears everything).
func (s *Store) Clear(pattern string) error {
	return s.backend.Clear(pattern)
}

// Stats reports the active backend and its key count.
func (s *Store) Stats() Stats {
	count, err := s.backend.KeyCount()
	if err != nil {
		count = 0
	}
	return Stats{Backend: s.backend.Name(), KeyCount: count}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// boundedGet runs a backend get under the op timeout.
func (s *Store) boundedGet(ctx context.Context, key string) ([]byte, bool, error) {
	type result struct {
		payload []byte
		ok      bool
		err     error
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		p, ok, err := s.backend.Get(key)
		ch <- result{p, ok, err}
	}()

	select {
	case r := <-ch:
		return r.payload, r.ok, r.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// bounded runs a backend mutation under the op timeout.
func (s *Store) bounded(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	ch := make(chan error, 1)
	go func() { ch <- fn() }()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
