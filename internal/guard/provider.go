package guard

import (
	"context"
	"fmt"

	"go-catalog-sync/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewGuard picks the backend named by GUARD_BACKEND
func NewGuard(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (Guard, error) {
	if cfg.Guard.Backend != "redis" {
		logger.Info("Using in-process tenant guard")
		return NewMemoryGuard(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Guard.RedisAddr,
		Password: cfg.Guard.RedisPassword,
		DB:       cfg.Guard.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			logger.Info("Using redis tenant guard", zap.String("addr", cfg.Guard.RedisAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return NewRedisGuard(rdb, cfg.Guard.TTL, logger), nil
}
