package embeddings

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string
	// Model defaults to text-embedding-3-small.
	Model  string
	Logger *zap.Logger
}

// OpenAIProvider embeds text through the OpenAI embeddings API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
	metrics   *Metrics
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key required", ErrInvalidConfig)
	}
	if cfg.Model == "" || cfg.Model == "sentence-transformers/all-MiniLM-L6-v2" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: detectDimensionFromModel(cfg.Model),
		metrics:   NewMetrics(cfg.Logger),
	}, nil
}

// Embed implements Provider.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (vec []float32, err error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "openai", time.Since(start), err)
	}()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding data returned", ErrEmbeddingFailed)
	}

	raw := resp.Data[0].Embedding
	vec = make([]float32, len(raw))
	for i := range raw {
		vec[i] = float32(raw[i])
	}
	return vec, nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the HTTP client needs no teardown.
func (p *OpenAIProvider) Close() error {
	return nil
}
