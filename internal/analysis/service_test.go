package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fyrsmithlabs/retractd/internal/cache"
	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/fyrsmithlabs/retractd/internal/store"
	"github.com/fyrsmithlabs/retractd/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

// keywordProvider embeds texts onto one axis per keyword plus a constant
// axis so no vector has zero norm.
type keywordProvider struct {
	calls atomic.Int64
	fail  error
}

var keywords = []string{"duplicat", "plagiar", "error", "typo"}

func (p *keywordProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	if p.fail != nil {
		return nil, p.fail
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywords)+1)
	for i, k := range keywords {
		if strings.Contains(lower, k) {
			vec[i] = 1
		}
	}
	vec[len(keywords)] = 0.1
	return vec, nil
}

func (p *keywordProvider) Dimension() int { return len(keywords) + 1 }
func (p *keywordProvider) Close() error   { return nil }

type fakeGenerator struct {
	mu       sync.Mutex
	entities int
	chains   int
}

func (g *fakeGenerator) BreakDown(_ context.Context, problem string) ([]string, error) {
	return []string{problem}, nil
}

func (g *fakeGenerator) IdentifyEntities(_ context.Context, paperID, content string) ([]*retraction.Entity, error) {
	g.mu.Lock()
	g.entities++
	g.mu.Unlock()
	return []*retraction.Entity{
		{ID: retraction.NewID(), PaperID: paperID, Text: "duplicated figure panels", Category: retraction.CategoryQualityIndicator, RelevanceScore: 9, PotentialReason: 1},
		{ID: retraction.NewID(), PaperID: paperID, Text: "erratum notice", Category: retraction.CategoryAdministrative, RelevanceScore: 5, PotentialReason: 5},
	}, nil
}

func (g *fakeGenerator) BuildChains(_ context.Context, paperID string, entities []*retraction.Entity) ([]*retraction.Chain, error) {
	g.mu.Lock()
	g.chains++
	g.mu.Unlock()
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return []*retraction.Chain{{
		ID:              retraction.NewID(),
		PaperID:         paperID,
		EntityIDs:       ids,
		ReasoningSteps:  []string{"figures duplicated", "erratum followed"},
		ConfidenceScore: 8,
		SeverityLevel:   6,
		ReasonCodes:     []int{1},
	}}, nil
}

type fixture struct {
	svc      *Service
	store    *store.Store
	cache    *cache.Cache
	provider *keywordProvider
	gen      *fakeGenerator
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "retractd.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	c := cache.New(cache.NewMemoryBackend(0))
	provider := &keywordProvider{}
	gen := &fakeGenerator{}

	o := Options{
		Store:     st,
		Cache:     c,
		Embedder:  embeddings.NewCachedProvider(provider, c),
		Generator: gen,
		Config:    Config{ClusterMinSize: 2},
	}
	for _, opt := range opts {
		opt(&o)
	}
	svc, err := NewService(o)
	require.NoError(t, err)

	return &fixture{svc: svc, store: st, cache: c, provider: provider, gen: gen}
}

func seedPapers(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.svc.IndexPapers(context.Background(), []*retraction.Paper{
		{ID: "p1", Title: "Duplicated figures in western blots"},
		{ID: "p2", Title: "Plagiarized survey text"},
		{ID: "p3", Title: "Duplicated microscopy images"},
	}))
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)

	f := newFixture(t)
	assert.Equal(t, 10, f.svc.cfg.TopK)
	assert.Equal(t, 0.5, f.svc.cfg.Threshold)
	assert.Equal(t, 5, f.svc.cfg.EntityTopK)
	assert.Equal(t, DefaultConcurrency, f.svc.cfg.Concurrency)
	assert.Equal(t, DefaultClusterSimilarityThreshold, f.svc.cfg.ClusterSimilarityThreshold)
}

func TestIndexPapers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	papers := make([]*retraction.Paper, 20)
	for i := range papers {
		papers[i] = &retraction.Paper{Title: fmt.Sprintf("paper %d with a typo", i)}
	}
	papers[0].Vector = []float32{0, 0, 0, 1, 0.1}

	require.NoError(t, f.svc.IndexPapers(ctx, papers))

	stored, err := f.store.ListPapers(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 20)
	for _, p := range stored {
		assert.NotEmpty(t, p.ID)
		assert.Len(t, p.Vector, 5)
	}
	assert.Equal(t, int64(19), f.provider.calls.Load(), "papers with vectors are not re-embedded")
}

func TestIndexPapers_EmbeddingError(t *testing.T) {
	f := newFixture(t)
	f.provider.fail = errors.New("model unavailable")

	err := f.svc.IndexPapers(context.Background(), []*retraction.Paper{{ID: "p1", Title: "x"}})
	require.Error(t, err)

	papers, err := f.store.ListPapers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, papers, "nothing is saved when embedding fails")
}

func TestAnalyzePaper(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedPapers(t, f)

	got, err := f.svc.AnalyzePaper(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PaperID)
	require.Len(t, got.Entities, 2)
	require.Len(t, got.Chains, 1)
	assert.True(t, got.Chains[0].Found)
	assert.InDelta(t, 0.5, got.Chains[0].OverallConfidence, 1e-9, "a lone chain without signals is neutral")

	require.Len(t, got.SimilarPapers, 1, "the paper itself and dissimilar papers are excluded")
	assert.Equal(t, "p3", got.SimilarPapers[0].CandidateID)
	assert.Equal(t, 1, got.SimilarPapers[0].Rank)

	entities, err := f.store.ListEntities(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	for _, e := range entities {
		assert.NotEmpty(t, e.Vector, "entities are embedded during analysis")
	}

	again, err := f.svc.AnalyzePaper(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, got.Chains[0].Chain.ID, again.Chains[0].Chain.ID)
	assert.Equal(t, 1, f.gen.entities)
	assert.Equal(t, 1, f.gen.chains)
}

func TestReanalyze_ReusesStoredRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedPapers(t, f)

	first, err := f.svc.AnalyzePaper(ctx, "p1")
	require.NoError(t, err)

	second, err := f.svc.Reanalyze(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.Chains[0].Chain.ID, second.Chains[0].Chain.ID)
	assert.Equal(t, 1, f.gen.entities, "stored entities are not regenerated")
	assert.False(t, second.AnalyzedAt.Before(first.AnalyzedAt))
}

func TestAnalyzePaper_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AnalyzePaper(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPaperNotFound)

	noGen := newFixture(t, func(o *Options) { o.Generator = nil })
	seedPapers(t, noGen)
	_, err = noGen.svc.AnalyzePaper(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNoGenerator, "nothing stored to reuse")

	_, err = noGen.svc.AnalyzePaper(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestAnalyzePaper_StoredChainsWithoutGenerator(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Generator = nil })
	ctx := context.Background()

	require.NoError(t, f.svc.Import(ctx, Dataset{
		Papers: []*retraction.Paper{
			{ID: "p1", Title: "Duplicated figures in western blots"},
			{ID: "p2", Title: "Duplicated microscopy images"},
		},
		Entities: []*retraction.Entity{
			{ID: "e1", PaperID: "p1", Text: "duplicated figure", Category: retraction.CategoryContent, RelevanceScore: 8, PotentialReason: 1},
		},
		Chains: []*retraction.Chain{{ID: "c1", PaperID: "p1", EntityIDs: []string{"e1"}, ReasoningSteps: []string{"panels reused"}}},
	}))

	got, err := f.svc.AnalyzePaper(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got.Entities, 1)
	require.Len(t, got.Chains, 1)
	assert.Equal(t, "c1", got.Chains[0].Chain.ID)
	require.Len(t, got.SimilarPapers, 1)
	assert.Equal(t, "p2", got.SimilarPapers[0].CandidateID)

	require.NoError(t, f.svc.Import(ctx, Dataset{
		Entities: []*retraction.Entity{
			{ID: "e2", PaperID: "p2", Text: "duplicated image", Category: retraction.CategoryContent, RelevanceScore: 6, PotentialReason: 1},
		},
	}))
	_, err = f.svc.AnalyzePaper(ctx, "p2")
	assert.ErrorIs(t, err, ErrNoGenerator, "stored entities without chains still need the generator")
}

func TestAnalyzePaper_RecordsSpan(t *testing.T) {
	rec := telemetry.NewRecorder(t)
	f := newFixture(t, func(o *Options) { o.TracerProvider = rec.TracerProvider() })
	seedPapers(t, f)

	_, err := f.svc.AnalyzePaper(context.Background(), "p1")
	require.NoError(t, err)

	names := rec.SpanNames()
	assert.Contains(t, names, "analysis.analyze_paper")
	assert.Contains(t, names, "similarity.search")
	span, ok := rec.Span("analysis.analyze_paper")
	require.True(t, ok)
	assert.Contains(t, span.Attributes, attribute.String("paper.id", "p1"))
}

func TestSimilarPapersAndEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedPapers(t, f)

	results, err := f.svc.SimilarPapers(ctx, "duplicated data", 0, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"p1", "p3"}, []string{results[0].CandidateID, results[1].CandidateID})

	_, err = f.svc.AnalyzePaper(ctx, "p1")
	require.NoError(t, err)

	entities, err := f.svc.SimilarEntities(ctx, "plagiarism", 0)
	require.NoError(t, err)
	assert.Len(t, entities, 2, "entity search keeps every score")
}

func TestScoreChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedPapers(t, f)

	analysis, err := f.svc.AnalyzePaper(ctx, "p1")
	require.NoError(t, err)
	id := analysis.Chains[0].Chain.ID

	scored, err := f.svc.ScoreChain(ctx, "id", id, nil)
	require.NoError(t, err)
	assert.True(t, scored.Found)
	assert.Equal(t, 2, scored.ReasoningStepsCount)

	missing, err := f.svc.ScoreChain(ctx, "id", "nope", nil)
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Equal(t, retraction.VeryLow, missing.Level)
}
