package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/fyrsmithlabs/retractd/internal/cache"
	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/fyrsmithlabs/retractd/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/retractd/internal/similarity"

// Engine scores candidates against queries. It is safe for concurrent use.
type Engine struct {
	provider embeddings.Provider
	cache    *cache.Cache
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// NewEngine creates an engine. The provider is only needed by Search and
// FindSimilarEntities; a nil cache disables result caching.
func NewEngine(provider embeddings.Provider, c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		cache:    c,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("similarity")
	return e
}

// FindSimilar ranks candidates against query.
//
// Candidates without a vector are skipped. A candidate is kept when its
// score is at least threshold. Results are sorted by descending score with
// ties in input order, then truncated to topK (topK <= 0 keeps all).
func (e *Engine) FindSimilar(ctx context.Context, query []float32, candidates []Candidate, topK int, threshold float64) ([]Result, error) {
	return rank(ctx, query, candidates, topK, threshold)
}

func rank(ctx context.Context, query []float32, candidates []Candidate, topK int, threshold float64) ([]Result, error) {
	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(c.Vector) == 0 {
			continue
		}
		score, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("scoring candidate %s: %w", c.ID, err)
		}
		if score < threshold {
			continue
		}
		results = append(results, Result{CandidateID: c.ID, Candidate: c, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// QueryHash identifies a (text, topK, threshold) query.
func QueryHash(text string, topK int, threshold float64) string {
	sum := sha256.Sum256([]byte(text + "_" + strconv.Itoa(topK) + "_" + strconv.FormatFloat(threshold, 'g', -1, 64)))
	return hex.EncodeToString(sum[:])
}

func namespaceFor(kind Kind) string {
	if kind == KindEntity {
		return cache.NamespaceSimilarEntities
	}
	return cache.NamespaceSimilarPapers
}

// Search embeds text and ranks the source's candidates against it.
//
// Result sets are cached by QueryHash; a hit returns without embedding or
// reading the source. Embedding failures and dimension mismatches are
// returned to the caller; cache failures are not.
func (e *Engine) Search(ctx context.Context, text string, source CandidateSource, opts SearchOptions) ([]Result, error) {
	if opts.TopK == 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Kind == "" {
		opts.Kind = KindPaper
	}

	ctx, span := e.tracer.Start(ctx, "similarity.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(opts.Kind)),
		attribute.Int("top_k", opts.TopK),
		attribute.Float64("threshold", opts.Threshold),
	)

	results, err := e.search(ctx, text, source, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

func (e *Engine) search(ctx context.Context, text string, source CandidateSource, opts SearchOptions) ([]Result, error) {
	if text == "" {
		return nil, fmt.Errorf("query: %w", embeddings.ErrEmptyInput)
	}
	hash := QueryHash(text, opts.TopK, opts.Threshold)
	namespace := namespaceFor(opts.Kind)

	var cached []Result
	if e.cache.GetJSON(ctx, namespace, hash, &cached) {
		return cached, nil
	}

	if e.provider == nil {
		return nil, fmt.Errorf("%w: no embedding provider", embeddings.ErrInvalidConfig)
	}
	vector, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := source.Candidates(ctx, opts.Kind)
	if err != nil {
		return nil, fmt.Errorf("loading %s candidates: %w", opts.Kind, err)
	}

	results, err := rank(ctx, vector, candidates, opts.TopK, opts.Threshold)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].QueryHash = hash
	}

	logging.For(ctx, e.logger).Debug("similarity scan complete",
		zap.String("kind", string(opts.Kind)),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
		logging.Text("query", text))

	e.cache.PutJSON(ctx, namespace, hash, results, 0)
	return results, nil
}

// FindSimilarEntities returns the entities closest to text. Every score is
// kept; topK <= 0 uses DefaultEntityTopK.
func (e *Engine) FindSimilarEntities(ctx context.Context, text string, source CandidateSource, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultEntityTopK
	}
	return e.Search(ctx, text, source, SearchOptions{
		TopK:      topK,
		Threshold: NoThreshold,
		Kind:      KindEntity,
	})
}
