package catalog

import (
	"context"

	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewStore picks the backend named by CATALOG_BACKEND
func NewStore(lc fx.Lifecycle, cfg *config.Config, db *database.MongodbDB, logger *zap.Logger) (Store, error) {
	if cfg.Catalog.Backend == "postgres" {
		pg, err := NewPostgresStore(cfg.Catalog.PostgresDSN)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				logger.Info("Using postgres catalog store")
				return pg.EnsureIndexes(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return pg.Close()
			},
		})
		return pg, nil
	}

	store := NewMongoStore(db)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.EnsureIndexes(ctx)
		},
	})
	return store, nil
}
