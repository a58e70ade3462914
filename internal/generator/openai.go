package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/config"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultRPM         = 50
	defaultBurst       = 5
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = time.Second
)

// ErrGenerationFailed indicates the model could not be reached or returned
// no answer.
var ErrGenerationFailed = errors.New("generation failed")

// Generator produces retraction-analysis records from text.
type Generator interface {
	BreakDown(ctx context.Context, problem string) ([]string, error)
	IdentifyEntities(ctx context.Context, paperID, content string) ([]*retraction.Entity, error)
	BuildChains(ctx context.Context, paperID string, entities []*retraction.Entity) ([]*retraction.Chain, error)
}

// Config configures the OpenAI generator.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// RequestsPerMinute and Burst shape the request rate.
	RequestsPerMinute float64
	Burst             int

	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	Logger      *zap.Logger
}

// ConfigFromApp converts the configuration section.
func ConfigFromApp(cfg config.GeneratorConfig) Config {
	return Config{
		APIKey:            cfg.APIKey.Value(),
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Burst:             cfg.Burst,
		Timeout:           cfg.Timeout.Duration(),
	}
}

// OpenAI is a Generator backed by the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRPM
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), cfg.Burst),
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		logger:      cfg.Logger.Named("generator"),
	}, nil
}

// BreakDown splits a retraction question into sub-problems.
func (g *OpenAI) BreakDown(ctx context.Context, problem string) ([]string, error) {
	out, err := g.complete(ctx, breakdownSystem, breakdownPrompt(problem))
	if err != nil {
		return nil, err
	}
	return retraction.ParseProblems(out)
}

// IdentifyEntities extracts entities from paper content.
func (g *OpenAI) IdentifyEntities(ctx context.Context, paperID, content string) ([]*retraction.Entity, error) {
	out, err := g.complete(ctx, entitySystem, entityPrompt(content))
	if err != nil {
		return nil, err
	}
	return retraction.ParseEntities(out, paperID)
}

// BuildChains links entities into reasoning chains.
func (g *OpenAI) BuildChains(ctx context.Context, paperID string, entities []*retraction.Entity) ([]*retraction.Chain, error) {
	if len(entities) == 0 {
		return nil, retraction.ErrEmptyChainEntities
	}
	out, err := g.complete(ctx, chainSystem, chainPrompt(entities))
	if err != nil {
		return nil, err
	}
	return retraction.ParseChains(out, paperID, entities)
}

func (g *OpenAI) complete(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.baseBackoff * time.Duration(1<<(attempt-1))
			g.logger.Debug("retrying completion", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
				return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
	}
	return "", fmt.Errorf("%w: max retries exceeded: %w", ErrGenerationFailed, lastErr)
}

// isRetryable reports rate limiting and server errors.
func isRetryable(err error) bool {
	var status int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return false
	}
	return status == http.StatusTooManyRequests || status >= 500
}
