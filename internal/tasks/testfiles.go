package tasks

import (
	"path/filepath"
	"strings"
)

// testFileCandidates returns the conventional test file locations for a
// source file, across the supported language ecosystems. Callers probe
// each candidate; only analyzable hits are kept.
func testFileCandidates(path string) []string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var candidates []string

	// Python style: tests/test_foo.py next to foo.py.
	candidates = append(candidates, filepath.Join(dir, "test_"+base))

	// Mirror tree style: src/foo.js -> tests/foo.js.
	if strings.Contains(path, "src/") {
		candidates = append(candidates, strings.Replace(path, "src/", "tests/", 1))
	}

	// Suffix styles: foo_test.go, foo.test.ts.
	if ext != "" {
		candidates = append(candidates,
			filepath.Join(dir, stem+"_test"+ext),
			filepath.Join(dir, stem+".test"+ext),
		)
	}

	// Never suggest a file as its own test.
	out := candidates[:0]
	for _, c := range candidates {
		if c != path {
			out = append(out, c)
		}
	}
	return out
}
