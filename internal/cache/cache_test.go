package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeplan/internal/lang"
	"codeplan/internal/parser"
)

func sampleAnalysis(path string) *parser.FileAnalysis {
	fa := &parser.FileAnalysis{
		Path:     path,
		Language: lang.Python,
		Symbols: []parser.Symbol{
			{Name: "handler", Kind: lang.KindFunction, Path: path, StartLine: 1, EndLine: 5, Complexity: 2},
		},
		Imports: []string{"os"},
	}
	fa.Finish()
	return fa
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash([]byte("def f(): pass"))
	b := ContentHash([]byte("def f(): pass"))
	c := ContentHash([]byte("def g(): pass"))

	if a != b {
		t.Error("identical content must hash identically")
	}
	if a == c {
		t.Error("different content must hash differently")
	}
	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(a))
	}
}

func TestKeyShape(t *testing.T) {
	key := Key(AnalysisNamespace, "src/a.py", "deadbeef")
	if key != "analysis:src/a.py:deadbeef" {
		t.Errorf("key = %q", key)
	}
}

func TestStoreRoundTripSQLite(t *testing.T) {
	store := NewStore(Options{
		DBPath: filepath.Join(t.TempDir(), "cache.db"),
		TTL:    time.Hour,
	})
	defer store.Close()

	if store.Stats().Backend != "sqlite" {
		t.Fatalf("backend = %s, want sqlite", store.Stats().Backend)
	}

	ctx := context.Background()
	fa := sampleAnalysis("src/a.py")
	hash := ContentHash([]byte("content"))

	if _, ok := store.GetAnalysis(ctx, "src/a.py", hash); ok {
		t.Fatal("unexpected hit before set")
	}

	store.SetAnalysis(ctx, "src/a.py", hash, fa)

	got, ok := store.GetAnalysis(ctx, "src/a.py", hash)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got.Path != fa.Path || len(got.Symbols) != 1 || got.Symbols[0].Name != "handler" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Symbols[0].Complexity != 2 {
		t.Errorf("complexity = %d, want 2", got.Symbols[0].Complexity)
	}
}

func TestStoreIdempotentSet(t *testing.T) {
	store := NewStore(Options{
		DBPath: filepath.Join(t.TempDir(), "cache.db"),
		TTL:    time.Hour,
	})
	defer store.Close()

	ctx := context.Background()
	fa := sampleAnalysis("src/a.py")
	hash := ContentHash([]byte("content"))

	store.SetAnalysis(ctx, "src/a.py", hash, fa)
	store.SetAnalysis(ctx, "src/a.py", hash, fa)

	if store.Stats().KeyCount != 1 {
		t.Errorf("key count = %d, want 1 after duplicate sets", store.Stats().KeyCount)
	}
}

func TestStoreDistinctHashesCoexist(t *testing.T) {
	store := NewStore(Options{
		DBPath: filepath.Join(t.TempDir(), "cache.db"),
		TTL:    time.Hour,
	})
	defer store.Close()

	ctx := context.Background()
	oldHash := ContentHash([]byte("v1"))
	newHash := ContentHash([]byte("v2"))
	store.SetAnalysis(ctx, "src/a.py", oldHash, sampleAnalysis("src/a.py"))
	store.SetAnalysis(ctx, "src/a.py", newHash, sampleAnalysis("src/a.py"))

	if _, ok := store.GetAnalysis(ctx, "src/a.py", oldHash); !ok {
		t.Error("old hash entry should still be readable")
	}
	if _, ok := store.GetAnalysis(ctx, "src/a.py", newHash); !ok {
		t.Error("new hash entry should be readable")
	}
}

func TestStoreInvalidatePath(t *testing.T) {
	store := NewStore(Options{
		DBPath: filepath.Join(t.TempDir(), "cache.db"),
		TTL:    time.Hour,
	})
	defer store.Close()

	ctx := context.Background()
	h1 := ContentHash([]byte("v1"))
	h2 := ContentHash([]byte("v2"))
	store.SetAnalysis(ctx, "src/a.py", h1, sampleAnalysis("src/a.py"))
	store.SetAnalysis(ctx, "src/a.py", h2, sampleAnalysis("src/a.py"))
	store.SetAnalysis(ctx, "src/b.py", h1, sampleAnalysis("src/b.py"))

	if err := store.Invalidate("src/a.py"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok := store.GetAnalysis(ctx, "src/a.py", h1); ok {
		t.Error("invalidated entry v1 still readable")
	}
	if _, ok := store.GetAnalysis(ctx, "src/a.py", h2); ok {
		t.Error("invalidated entry v2 still readable")
	}
	if _, ok := store.GetAnalysis(ctx, "src/b.py", h1); !ok {
		t.Error("other path should be untouched")
	}
}

func TestStoreFallsBackToMemory(t *testing.T) {
	// A db path whose parent is a file cannot be created.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(Options{
		DBPath: filepath.Join(blocker, "cache.db"),
		TTL:    time.Hour,
	})
	defer store.Close()

	if store.Stats().Backend != "memory" {
		t.Fatalf("backend = %s, want memory fallback", store.Stats().Backend)
	}

	// The store still works.
	ctx := context.Background()
	hash := ContentHash([]byte("x"))
	store.SetAnalysis(ctx, "a.py", hash, sampleAnalysis("a.py"))
	if _, ok := store.GetAnalysis(ctx, "a.py", hash); !ok {
		t.Error("memory fallback should serve reads")
	}
}

func TestMemoryBackendTTLExpiry(t *testing.T) {
	m := newMemoryBackend(16)
	current := time.Now()
	m.now = func() time.Time { return current }

	if err := m.Set("k", "a.py", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok, _ := m.Get("k"); ok {
		t.Error("expected miss after expiry")
	}
	if n, _ := m.KeyCount(); n != 0 {
		t.Errorf("expired entry should be dropped on read, count = %d", n)
	}
}

func TestMemoryBackendEviction(t *testing.T) {
	m := newMemoryBackend(10)
	base := time.Now()
	step := 0
	m.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	for i := 0; i < 11; i++ {
		key := Key(AnalysisNamespace, "f.py", string(rune('a'+i)))
		if err := m.Set(key, "f.py", []byte("v"), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	n, _ := m.KeyCount()
	if n > 10 {
		t.Errorf("count = %d, want <= 10 after eviction", n)
	}
	// The oldest entry is gone.
	if _, ok, _ := m.Get(Key(AnalysisNamespace, "f.py", "a")); ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestClearPattern(t *testing.T) {
	m := newMemoryBackend(64)
	_ = m.Set("analysis:src/a.py:h1", "src/a.py", []byte("v"), time.Hour)
	_ = m.Set("analysis:src/b.py:h1", "src/b.py", []byte("v"), time.Hour)
	_ = m.Set("analysis:lib/c.py:h1", "lib/c.py", []byte("v"), time.Hour)

	if err := m.Clear("analysis:src/*"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := m.Get("analysis:src/a.py:h1"); ok {
		t.Error("matching key should be cleared")
	}
	if _, ok, _ := m.Get("analysis:lib/c.py:h1"); !ok {
		t.Error("non-matching key should survive")
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	if _, err := decodeAnalysis([]byte("not zstd at all")); err == nil {
		t.Error("garbage payload should fail to decode")
	}
}
