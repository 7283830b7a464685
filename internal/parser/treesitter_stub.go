//go:build !cgo

package parser

import (
	"context"

	"codeplan/internal/lang"
)

// treeSitterStrategy is unavailable without cgo; the chain falls through
// to the native and heuristic strategies.
type treeSitterStrategy struct{}

func newTreeSitterStrategy() Strategy { return &treeSitterStrategy{} }

func (t *treeSitterStrategy) Name() string { return "treesitter" }

func (t *treeSitterStrategy) Supports(l lang.Language) bool { return false }

func (t *treeSitterStrategy) Parse(ctx context.Context, path string, source []byte, l lang.Language) (*FileAnalysis, error) {
	return nil, nil
}
