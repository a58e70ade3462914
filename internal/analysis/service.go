package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/cache"
	"github.com/fyrsmithlabs/retractd/internal/cluster"
	"github.com/fyrsmithlabs/retractd/internal/confidence"
	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/fyrsmithlabs/retractd/internal/generator"
	"github.com/fyrsmithlabs/retractd/internal/logging"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/fyrsmithlabs/retractd/internal/similarity"
	"github.com/fyrsmithlabs/retractd/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/retractd/internal/analysis"

const (
	// DefaultConcurrency bounds parallel embedding calls during indexing.
	DefaultConcurrency = 4

	// DefaultClusterSimilarityThreshold is the centroid cosine needed to
	// join a similar-entities cluster.
	DefaultClusterSimilarityThreshold = 0.8
)

var (
	// ErrNoGenerator is returned when entities or chains must be generated
	// and no reasoning generator is configured.
	ErrNoGenerator = errors.New("no reasoning generator configured")

	// ErrPaperNotFound is returned when the paper is not in the store.
	ErrPaperNotFound = errors.New("paper not found")
)

// Store is the persistence the service needs.
type Store interface {
	similarity.CandidateSource

	SavePaper(ctx context.Context, p *retraction.Paper) error
	GetPaper(ctx context.Context, id string) (*retraction.Paper, error)
	ListPapers(ctx context.Context) ([]*retraction.Paper, error)
	SaveEntities(ctx context.Context, entities []*retraction.Entity) error
	SetEntityVector(ctx context.Context, id string, vec []float32) error
	ListEntities(ctx context.Context, paperID string) ([]*retraction.Entity, error)
	SaveChains(ctx context.Context, chains []*retraction.Chain) error
	ListChains(ctx context.Context, paperID string) ([]*retraction.Chain, error)
	DeletePaper(ctx context.Context, id string) error
	ReplaceClusters(ctx context.Context, clusters []retraction.Cluster) error
	ListClusters(ctx context.Context) ([]retraction.Cluster, error)
}

// Config holds the pipeline settings.
type Config struct {
	TopK       int
	Threshold  float64
	EntityTopK int

	ClusterMinSize             int
	ClusterSimilarityThreshold float64

	// AnalysisTTL is the paper_analysis entry lifetime; zero uses the cache default.
	AnalysisTTL time.Duration

	// Concurrency bounds parallel embedding calls.
	Concurrency int
}

// Options carries the collaborators of a Service.
type Options struct {
	Store      Store
	Cache      *cache.Cache
	Embedder   embeddings.Provider
	Engine     *similarity.Engine
	Aggregator *confidence.Aggregator
	Generator  generator.Generator
	Config     Config

	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
}

// Service runs retraction analysis over the stored paper population.
type Service struct {
	store      Store
	cache      *cache.Cache
	embedder   embeddings.Provider
	engine     *similarity.Engine
	aggregator *confidence.Aggregator
	generator  generator.Generator
	cfg        Config
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewService validates the collaborators and applies defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.Engine == nil {
		opts.Engine = similarity.NewEngine(opts.Embedder, opts.Cache,
			similarity.WithLogger(opts.Logger), similarity.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Aggregator == nil {
		agg, err := confidence.NewAggregator(confidence.WithLogger(opts.Logger))
		if err != nil {
			return nil, err
		}
		opts.Aggregator = agg
	}

	cfg := opts.Config
	if cfg.TopK <= 0 {
		cfg.TopK = similarity.DefaultTopK
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = similarity.DefaultThreshold
	}
	if cfg.EntityTopK <= 0 {
		cfg.EntityTopK = similarity.DefaultEntityTopK
	}
	if cfg.ClusterMinSize <= 0 {
		cfg.ClusterMinSize = cluster.DefaultMinSize
	}
	if cfg.ClusterSimilarityThreshold == 0 {
		cfg.ClusterSimilarityThreshold = DefaultClusterSimilarityThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &Service{
		store:      opts.Store,
		cache:      opts.Cache,
		embedder:   opts.Embedder,
		engine:     opts.Engine,
		aggregator: opts.Aggregator,
		generator:  opts.Generator,
		cfg:        cfg,
		logger:     opts.Logger.Named("analysis"),
		tracer:     opts.TracerProvider.Tracer(instrumentationName),
		now:        time.Now,
	}, nil
}

// PaperAnalysis is the cached outcome of analyzing one paper.
type PaperAnalysis struct {
	PaperID       string                   `json:"paper_id"`
	Title         string                   `json:"title"`
	Entities      []*retraction.Entity     `json:"entities"`
	Chains        []retraction.ScoredChain `json:"chains"`
	SimilarPapers []similarity.Result      `json:"similar_papers,omitempty"`
	AnalyzedAt    time.Time                `json:"analyzed_at"`
}

// AnalyzePaper returns the analysis of a stored paper, computing it on a
// cache miss.
func (s *Service) AnalyzePaper(ctx context.Context, paperID string) (*PaperAnalysis, error) {
	ctx = logging.WithPaperID(ctx, paperID)
	ctx, span := s.tracer.Start(ctx, "analysis.analyze_paper",
		trace.WithAttributes(attribute.String("paper.id", paperID)))
	defer span.End()

	var cached PaperAnalysis
	if s.cache.GetJSON(ctx, cache.NamespacePaperAnalysis, paperID, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	out, err := s.analyze(ctx, paperID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	s.cache.PutJSON(ctx, cache.NamespacePaperAnalysis, paperID, out, s.cfg.AnalysisTTL)
	return out, nil
}

// Reanalyze drops the cached analysis of a paper and recomputes it.
func (s *Service) Reanalyze(ctx context.Context, paperID string) (*PaperAnalysis, error) {
	s.InvalidatePaper(ctx, paperID)
	return s.AnalyzePaper(ctx, paperID)
}

// InvalidatePaper removes the cached analysis of a paper.
func (s *Service) InvalidatePaper(ctx context.Context, paperID string) bool {
	return s.cache.InvalidatePaper(ctx, paperID)
}

func (s *Service) analyze(ctx context.Context, paperID string) (*PaperAnalysis, error) {
	paper, err := s.store.GetPaper(ctx, paperID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, paperID)
	}
	if err != nil {
		return nil, err
	}

	entities, err := s.store.ListEntities(ctx, paper.ID)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		if s.generator == nil {
			return nil, ErrNoGenerator
		}
		entities, err = s.generator.IdentifyEntities(ctx, paper.ID, paperContent(paper))
		if err != nil {
			return nil, fmt.Errorf("identifying entities: %w", err)
		}
		if err := s.store.SaveEntities(ctx, entities); err != nil {
			return nil, err
		}
	}
	if err := s.embedEntities(ctx, entities); err != nil {
		return nil, err
	}

	chains, err := s.store.ListChains(ctx, paper.ID)
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 && len(entities) > 0 {
		if s.generator == nil {
			return nil, ErrNoGenerator
		}
		chains, err = s.generator.BuildChains(ctx, paper.ID, entities)
		if err != nil {
			return nil, fmt.Errorf("building chains: %w", err)
		}
		if err := s.store.SaveChains(ctx, chains); err != nil {
			return nil, err
		}
	}

	population, err := s.store.ListChains(ctx, "")
	if err != nil {
		return nil, err
	}
	scored := make([]retraction.ScoredChain, 0, len(chains))
	for _, c := range chains {
		scored = append(scored, s.aggregator.ScoreChain(c, population))
	}

	similar, err := s.engine.Search(ctx, paper.EmbeddingText(), s.store, similarity.SearchOptions{
		TopK:      s.cfg.TopK + 1,
		Threshold: s.cfg.Threshold,
		Kind:      similarity.KindPaper,
	})
	if err != nil {
		return nil, fmt.Errorf("finding similar papers: %w", err)
	}

	logging.For(ctx, s.logger).Info("paper analyzed",
		zap.Int("entities", len(entities)),
		zap.Int("chains", len(chains)))

	return &PaperAnalysis{
		PaperID:       paper.ID,
		Title:         paper.Title,
		Entities:      entities,
		Chains:        scored,
		SimilarPapers: withoutSelf(similar, paper.ID, s.cfg.TopK),
		AnalyzedAt:    s.now().UTC(),
	}, nil
}

// paperContent is the text handed to entity extraction: the "content"
// attribute when the paper carries its body, else title and abstract.
func paperContent(p *retraction.Paper) string {
	if body, ok := p.Attributes["content"].(string); ok && body != "" {
		return p.Title + "\n\n" + body
	}
	return p.EmbeddingText()
}

func withoutSelf(results []similarity.Result, id string, topK int) []similarity.Result {
	out := make([]similarity.Result, 0, len(results))
	for _, r := range results {
		if retraction.MatchID(r.CandidateID, id) {
			continue
		}
		r.Rank = len(out) + 1
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}
	return out
}
