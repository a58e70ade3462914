package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TEIConfig configures a text-embeddings-inference client.
type TEIConfig struct {
	// BaseURL is the TEI server, e.g. http://localhost:8080.
	BaseURL string

	// Model is reported in metrics and used for dimension detection.
	Model string

	// Timeout bounds a single request. Defaults to 30s.
	Timeout time.Duration

	Logger *zap.Logger
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// TEIProvider embeds text through a TEI server's /embed endpoint.
type TEIProvider struct {
	config    TEIConfig
	client    *http.Client
	dimension atomic.Int64
	metrics   *Metrics
	logger    *zap.Logger
}

// NewTEIProvider creates a TEI-backed provider.
func NewTEIProvider(cfg TEIConfig) (*TEIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	p := &TEIProvider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger.Named("tei"),
	}
	p.dimension.Store(int64(detectDimensionFromModel(cfg.Model)))
	return p, nil
}

type teiRequest struct {
	Inputs   string `json:"inputs"`
	Truncate bool   `json:"truncate"`
}

// Embed implements Provider.
func (t *TEIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		t.metrics.RecordGeneration(ctx, t.config.Model, "tei", time.Since(start), genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	body, err := json.Marshal(teiRequest{Inputs: text, Truncate: true})
	if err != nil {
		genErr = fmt.Errorf("marshaling request: %w", err)
		return nil, genErr
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		genErr = fmt.Errorf("creating request: %w", err)
		return nil, genErr
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		genErr = fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
		return nil, genErr
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		genErr = fmt.Errorf("%w: decoding response: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		genErr = fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
		return nil, genErr
	}

	// The model name only gives a guess; the server is authoritative.
	if got := int64(len(vectors[0])); t.dimension.Swap(got) != got {
		t.logger.Debug("adopted server-reported dimension", zap.Int64("dimension", got))
	}
	return vectors[0], nil
}

// Dimension returns the embedding dimension.
func (t *TEIProvider) Dimension() int {
	return int(t.dimension.Load())
}

// Close is a no-op since TEI is reached over HTTP.
func (t *TEIProvider) Close() error {
	return nil
}
