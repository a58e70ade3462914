package embeddings

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// countingProvider derives a deterministic vector from the full text and
// counts calls.
type countingProvider struct {
	calls atomic.Int64
	dim   int
}

func newCountingProvider(dim int) *countingProvider {
	return &countingProvider{dim: dim}
}

func (p *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, p.dim)
	for i := range vec {
		vec[i] = float32((seed>>uint(i%32))&0xff) / 255
	}
	return vec, nil
}

func (p *countingProvider) Dimension() int { return p.dim }
func (p *countingProvider) Close() error   { return nil }
