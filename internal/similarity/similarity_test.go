package similarity

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/fyrsmithlabs/retractd/internal/cache"
	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type staticProvider struct {
	vectors map[string][]float32
	calls   atomic.Int64
}

func (p *staticProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	v, ok := p.vectors[text]
	if !ok {
		return nil, embeddings.ErrEmbeddingFailed
	}
	return v, nil
}

func (p *staticProvider) Dimension() int { return 2 }
func (p *staticProvider) Close() error   { return nil }

type countingSource struct {
	candidates []Candidate
	calls      atomic.Int64
}

func (s *countingSource) Candidates(_ context.Context, _ Kind) ([]Candidate, error) {
	s.calls.Add(1)
	return s.candidates, nil
}

func abc() []Candidate {
	return []Candidate{
		{ID: "A", Vector: []float32{1, 0}},
		{ID: "B", Vector: []float32{0, 1}},
		{ID: "C", Vector: []float32{0.9, 0.1}},
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)

			rev, err := Cosine(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, got, rev, "cosine is symmetric")
		})
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2, 3}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCentroid(t *testing.T) {
	c, err := Centroid([][]float32{{1, 0}, nil, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, c)

	c, err = Centroid(nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = Centroid([][]float32{{1, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFindSimilar_Scenario(t *testing.T) {
	e := NewEngine(nil, nil)

	results, err := e.FindSimilar(context.Background(), []float32{1, 0}, abc(), 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].CandidateID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, 1, results[0].Rank)

	assert.Equal(t, "C", results[1].CandidateID)
	assert.InDelta(t, 0.994, results[1].Score, 1e-3)
	assert.Equal(t, 2, results[1].Rank)
}

func TestFindSimilar_Properties(t *testing.T) {
	e := NewEngine(nil, nil)
	ctx := context.Background()
	candidates := []Candidate{
		{ID: "tie-1", Vector: []float32{1, 1}},
		{ID: "missing"},
		{ID: "far", Vector: []float32{-1, 0}},
		{ID: "tie-2", Vector: []float32{2, 2}},
		{ID: "near", Vector: []float32{1, 0.1}},
		{ID: "tie-3", Vector: []float32{3, 3}},
	}

	for _, topK := range []int{1, 2, 3, 10} {
		for _, threshold := range []float64{-1, 0, 0.5, 0.9} {
			results, err := e.FindSimilar(ctx, []float32{1, 1}, candidates, topK, threshold)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(results), topK)
			for _, r := range results {
				assert.GreaterOrEqual(t, r.Score, threshold)
				assert.NotEqual(t, "missing", r.CandidateID, "vectorless candidates are skipped")
			}

			again, err := e.FindSimilar(ctx, []float32{1, 1}, candidates, topK, threshold)
			require.NoError(t, err)
			assert.Equal(t, results, again)
		}
	}

	results, err := e.FindSimilar(ctx, []float32{1, 1}, candidates, 3, 0.5)
	require.NoError(t, err)
	ids := []string{results[0].CandidateID, results[1].CandidateID, results[2].CandidateID}
	assert.Equal(t, []string{"tie-1", "tie-2", "tie-3"}, ids, "ties keep insertion order")
}

func TestFindSimilar_NoTruncation(t *testing.T) {
	results, err := NewEngine(nil, nil).FindSimilar(context.Background(), []float32{1, 0}, abc(), 0, NoThreshold)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFindSimilar_DimensionMismatch(t *testing.T) {
	candidates := append(abc(), Candidate{ID: "D", Vector: []float32{1, 0, 0}})
	_, err := NewEngine(nil, nil).FindSimilar(context.Background(), []float32{1, 0}, candidates, 10, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFindSimilar_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(nil, nil).FindSimilar(ctx, []float32{1, 0}, abc(), 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_CacheHitSkipsEmbedding(t *testing.T) {
	provider := &staticProvider{vectors: map[string][]float32{"query": {1, 0}}}
	source := &countingSource{candidates: abc()}
	e := NewEngine(provider, cache.New(cache.NewMemoryBackend(0)))
	ctx := context.Background()
	opts := SearchOptions{TopK: 2, Threshold: 0.5}

	first, err := e.Search(ctx, "query", source, opts)
	require.NoError(t, err)
	second, err := e.Search(ctx, "query", source, opts)
	require.NoError(t, err)

	assert.Equal(t, int64(1), provider.calls.Load())
	assert.Equal(t, int64(1), source.calls.Load())
	require.Len(t, second, 2)
	assert.Equal(t, []string{"A", "C"}, []string{second[0].CandidateID, second[1].CandidateID})
	assert.Equal(t, first[0].Score, second[0].Score)
	assert.Equal(t, QueryHash("query", 2, 0.5), second[0].QueryHash)

	_, err = e.Search(ctx, "query", source, SearchOptions{TopK: 3, Threshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, int64(2), provider.calls.Load(), "different parameters are a different query")
}

func TestSearch_NoCache(t *testing.T) {
	provider := &staticProvider{vectors: map[string][]float32{"query": {1, 0}}}
	e := NewEngine(provider, nil)

	for i := 0; i < 2; i++ {
		_, err := e.Search(context.Background(), "query", &countingSource{candidates: abc()}, SearchOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), provider.calls.Load())
}

func TestSearch_Errors(t *testing.T) {
	provider := &staticProvider{vectors: map[string][]float32{"query": {1, 0}}}
	e := NewEngine(provider, nil)
	ctx := context.Background()

	_, err := e.Search(ctx, "", &countingSource{}, SearchOptions{})
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)

	_, err = e.Search(ctx, "unknown", &countingSource{}, SearchOptions{})
	assert.ErrorIs(t, err, embeddings.ErrEmbeddingFailed)

	boom := errors.New("store offline")
	_, err = e.Search(ctx, "query", CandidateSourceFunc(func(context.Context, Kind) ([]Candidate, error) {
		return nil, boom
	}), SearchOptions{})
	assert.ErrorIs(t, err, boom)

	_, err = NewEngine(nil, nil).Search(ctx, "query", &countingSource{}, SearchOptions{})
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

func TestSearch_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	provider := &staticProvider{vectors: map[string][]float32{"query": {1, 0}}}
	e := NewEngine(provider, nil, WithTracerProvider(tp))

	_, err := e.Search(context.Background(), "query", &countingSource{candidates: abc()}, SearchOptions{Threshold: 0.5})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "similarity.search", spans[0].Name())
}

func TestFindSimilarEntities(t *testing.T) {
	provider := &staticProvider{vectors: map[string][]float32{"image duplication": {1, 0}}}
	var kinds []Kind
	source := CandidateSourceFunc(func(_ context.Context, kind Kind) ([]Candidate, error) {
		kinds = append(kinds, kind)
		return []Candidate{
			{ID: "e1", Vector: []float32{-1, 0}},
			{ID: "e2", Vector: []float32{1, 0}},
		}, nil
	})
	c := cache.New(cache.NewMemoryBackend(0))
	e := NewEngine(provider, c)

	results, err := e.FindSimilarEntities(context.Background(), "image duplication", source, 0)
	require.NoError(t, err)
	require.Len(t, results, 2, "entity search keeps negative scores")
	assert.Equal(t, "e2", results[0].CandidateID)
	assert.InDelta(t, -1.0, results[1].Score, 1e-9)
	assert.Equal(t, []Kind{KindEntity}, kinds)

	_, ok := c.Get(context.Background(), cache.NamespaceSimilarEntities,
		QueryHash("image duplication", DefaultEntityTopK, NoThreshold))
	assert.True(t, ok)
}

func TestQueryHash(t *testing.T) {
	assert.Equal(t, QueryHash("q", 10, 0.5), QueryHash("q", 10, 0.5))
	assert.NotEqual(t, QueryHash("q", 10, 0.5), QueryHash("q", 10, 0.6))
	assert.NotEqual(t, QueryHash("q", 10, 0.5), QueryHash("q", 5, 0.5))
	assert.Len(t, QueryHash("q", 10, 0.5), 64)
}
