package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/retractd/internal/analysis"
	"github.com/fyrsmithlabs/retractd/internal/cache"
	"github.com/fyrsmithlabs/retractd/internal/confidence"
	"github.com/fyrsmithlabs/retractd/internal/config"
	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/fyrsmithlabs/retractd/internal/generator"
	"github.com/fyrsmithlabs/retractd/internal/logging"
	"github.com/fyrsmithlabs/retractd/internal/store"
	"github.com/fyrsmithlabs/retractd/internal/telemetry"
	"go.uber.org/zap"
)

// app holds the wired service and everything that must be closed with it.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	service *analysis.Service
	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		if configPath != "" {
			return nil, err
		}
		// Fall back to environment-only config
		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newCLILogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	logCfg, err := logging.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	logCfg.Output = logging.OutputStderr
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// openApp wires telemetry, the store, cache, embedding provider, generator
// and the analysis service from configuration.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newCLILogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zl := logger.Logger

	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	tel, err := telemetry.New(ctx, cfg.Telemetry, telemetry.WithLogger(zl))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		return tel.Shutdown(context.WithoutCancel(ctx))
	})

	st, err := store.Open(ctx, cfg.Store.Path, zl)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.closers = append(a.closers, st.Close)

	c, err := cache.Open(ctx, cfg.Cache, zl, cache.WithMeterProvider(tel.MeterProvider()))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	a.closers = append(a.closers, c.Close)

	provider, err := newEmbedder(cfg.Embeddings, zl)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings provider: %w", err)
	}
	a.closers = append(a.closers, provider.Close)

	keyMode, err := embeddings.ParseKeyMode(cfg.Embeddings.KeyMode)
	if err != nil {
		return nil, err
	}
	embedder := embeddings.NewCachedProvider(provider, c,
		embeddings.WithKeyMode(keyMode, cfg.Embeddings.PrefixLength),
		embeddings.WithCacheLogger(zl))

	agg, err := confidence.NewAggregator(
		confidence.WithWeights(confidence.WeightsFromConfig(cfg.Confidence)),
		confidence.WithHalfLife(cfg.Confidence.TemporalHalfLifeYears),
		confidence.WithLogger(zl))
	if err != nil {
		return nil, err
	}

	var gen generator.Generator
	if cfg.Generator.APIKey.IsSet() {
		genCfg := generator.ConfigFromApp(cfg.Generator)
		genCfg.Logger = zl
		g, err := generator.NewOpenAI(genCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		gen = g
	} else {
		zl.Debug("no generator API key; paper analysis is limited to stored chains")
	}

	svc, err := analysis.NewService(analysis.Options{
		Store:          st,
		Cache:          c,
		Embedder:       embedder,
		Aggregator:     agg,
		Generator:      gen,
		Logger:         zl,
		TracerProvider: tel.TracerProvider(),
		Config: analysis.Config{
			TopK:                       cfg.Similarity.TopK,
			Threshold:                  cfg.Similarity.Threshold,
			EntityTopK:                 cfg.Similarity.EntityTopK,
			ClusterMinSize:             cfg.Cluster.MinSize,
			ClusterSimilarityThreshold: cfg.Cluster.SimilarityThreshold,
			AnalysisTTL:                cfg.Cache.DefaultTTL.Duration(),
		},
	})
	if err != nil {
		return nil, err
	}
	a.service = svc
	ok = true
	return a, nil
}

func newEmbedder(cfg config.EmbeddingsConfig, logger *zap.Logger) (embeddings.Provider, error) {
	if cfg.Provider == "fastembed" || cfg.Provider == "" {
		path := embeddings.NewRuntimeInstaller(logger).LibraryPath()
		if path == "" {
			return nil, fmt.Errorf("ONNX runtime not found; run 'retractd init' or set ONNX_PATH")
		}
		if err := os.Setenv("ONNX_PATH", path); err != nil {
			return nil, err
		}
	}
	return embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey.Value(),
		CacheDir: cfg.CacheDir,
		Logger:   logger,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
