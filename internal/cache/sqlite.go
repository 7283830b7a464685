package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteBackend is the durable shared backend. Multiple analyzer
// processes may write concurrently; writes are idempotent because a key
// embeds the content hash, so the same key always carries the same value.
type sqliteBackend struct {
	conn *sql.DB
}

func openSQLiteBackend(dbPath string) (*sqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS analysis_cache (
			key TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			payload BLOB NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_analysis_cache_path ON analysis_cache(path);
		CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires ON analysis_cache(expires_at);
	`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &sqliteBackend{conn: conn}, nil
}

func (s *sqliteBackend) Name() string { return "sqlite" }

func (s *sqliteBackend) Get(key string) ([]byte, bool, error) {
	var payload []byte
	var expiresAt string

	err := s.conn.QueryRow(`
		SELECT payload, expires_at FROM analysis_cache WHERE key = ?
	`, key).Scan(&payload, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	expiresAtTime, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, false, fmt.Errorf("invalid expires_at format: %w", err)
	}
	if time.Now().After(expiresAtTime) {
		_, _ = s.conn.Exec("DELETE FROM analysis_cache WHERE key = ?", key)
		return nil, false, nil
	}

	return payload, true, nil
}

func (s *sqliteBackend) Set(key, path string, payload []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO analysis_cache (key, path, payload, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, path, payload, now.Add(ttl).Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// InvalidatePath removes every entry for the path across all content
// hashes and namespaces.
func (s *sqliteBackend) InvalidatePath(path string) error {
	_, err := s.conn.Exec("DELETE FROM analysis_cache WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	return nil
}

// Clear removes entries whose key matches the pattern ('*' wildcards).
func (s *sqliteBackend) Clear(pattern string) error {
	if pattern == "" || pattern == "*" {
		_, err := s.conn.Exec("DELETE FROM analysis_cache")
		return err
	}
	like := strings.ReplaceAll(pattern, "*", "%")
	_, err := s.conn.Exec("DELETE FROM analysis_cache WHERE key LIKE ?", like)
	if err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	return nil
}

func (s *sqliteBackend) KeyCount() (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM analysis_cache").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("cache count failed: %w", err)
	}
	return count, nil
}

// CleanupExpired removes expired rows. Called opportunistically.
func (s *sqliteBackend) CleanupExpired() error {
	_, err := s.conn.Exec("DELETE FROM analysis_cache WHERE expires_at < ?",
		time.Now().Format(time.RFC3339))
	return err
}

func (s *sqliteBackend) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
