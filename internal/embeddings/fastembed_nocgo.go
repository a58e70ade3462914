//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned by binaries built without cgo, which
// cannot load the ONNX runtime.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available in a build without cgo; use the tei or openai provider")

// FastEmbedProvider cannot be constructed without cgo.
type FastEmbedProvider struct{}

// NewFastEmbedProvider always fails without cgo.
func NewFastEmbedProvider(FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (*FastEmbedProvider) Dimension() int { return 0 }

func (*FastEmbedProvider) Close() error { return nil }
