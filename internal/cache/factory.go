package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/retractd/internal/config"
	"go.uber.org/zap"
)

// Open builds a Cache from configuration. A disabled cache is returned as nil,
// which every Cache method treats as a permanent miss. An unreachable Redis
// is logged and also yields a nil Cache; callers run uncached.
func Open(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger, opts ...Option) (*Cache, error) {
	if cfg.Disabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var backend Backend
	switch cfg.Backend {
	case "redis", "":
		rb, err := NewRedisBackend(ctx, RedisConfig{
			Addr:        cfg.Addr,
			Password:    cfg.Password.Value(),
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout.Duration(),
		})
		if errors.Is(err, ErrBackend) {
			logger.Warn("cache backend unreachable, continuing uncached",
				zap.String("backend", "redis"), zap.String("addr", cfg.Addr), zap.Error(err))
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		backend = rb
	case "memory":
		backend = NewMemoryBackend(0)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	logger.Info("cache opened",
		zap.String("backend", cfg.Backend),
		zap.Duration("default_ttl", cfg.DefaultTTL.Duration()))

	opts = append([]Option{WithLogger(logger), WithDefaultTTL(cfg.DefaultTTL.Duration())}, opts...)
	return New(backend, opts...), nil
}
