// Package cache provides the content-addressed analysis cache: a durable
// sqlite backend with TTL, and a bounded in-process fallback used
// automatically when the durable backend cannot be opened. Callers never
// branch on which backend is active, and cache contents are disposable —
// never a source of truth.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"codeplan/internal/parser"
)

// ContentHash returns the cache hash of file content: a truncated BLAKE3
// digest. Entry validity is solely a function of (path, content hash),
// never of mtime.
func ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:16])
}

// Key builds the cache key "namespace:path:hash".
func Key(namespace, path, hash string) string {
	return namespace + ":" + path + ":" + hash
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeAnalysis serializes a FileAnalysis to its compressed wire form.
func encodeAnalysis(fa *parser.FileAnalysis) ([]byte, error) {
	data, err := json.Marshal(fa)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return zstdEncoder.EncodeAll(data, nil), nil
}

// decodeAnalysis deserializes a compressed FileAnalysis. Any failure is
// reported as an error the store treats as a miss.
func decodeAnalysis(payload []byte) (*parser.FileAnalysis, error) {
	data, err := zstdDecoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress analysis: %w", err)
	}
	var fa parser.FileAnalysis
	if err := json.Unmarshal(data, &fa); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &fa, nil
}
