package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryBackend is the bounded in-process fallback. Entries expire by
// TTL on read; once the entry count exceeds the cap, the oldest ~20% of
// entries are evicted.
type memoryBackend struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	payload   []byte
	path      string
	createdAt time.Time
	expiresAt time.Time
}

func newMemoryBackend(maxEntries int) *memoryBackend {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &memoryBackend{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *memoryBackend) Name() string { return "memory" }

func (m *memoryBackend) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (m *memoryBackend) Set(key, path string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = memoryEntry{
		payload:   payload,
		path:      path,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	if len(m.entries) > m.maxEntries {
		m.evictOldest()
	}
	return nil
}

// evictOldest drops the oldest fifth of entries by insertion time.
func (m *memoryBackend) evictOldest() {
	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(m.entries))
	for k, e := range m.entries {
		all = append(all, aged{k, e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })

	drop := len(all) / 5
	if drop < 1 {
		drop = 1
	}
	for _, a := range all[:drop] {
		delete(m.entries, a.key)
	}
}

func (m *memoryBackend) InvalidatePath(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.entries {
		if e.path == path {
			delete(m.entries, k)
		}
	}
	return nil
}

// Clear removes entries whose key matches the pattern, where '*' matches
// any run of characters. An empty pattern clears everything.
func (m *memoryBackend) Clear(pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pattern == "" || pattern == "*" {
		m.entries = make(map[string]memoryEntry)
		return nil
	}
	for k := range m.entries {
		if matchPattern(pattern, k) {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *memoryBackend) KeyCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *memoryBackend) Close() error { return nil }

// matchPattern implements glob-lite matching with '*' wildcards.
func matchPattern(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	return strings.HasSuffix(s, parts[len(parts)-1])
}
