package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "catalog-sync:run:"

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisGuard shares the guard across replicas. The TTL frees tenants whose holder crashed.
type RedisGuard struct {
	rdb       redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewRedisGuard(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisGuard {
	return &RedisGuard{
		rdb:       rdb,
		keyPrefix: defaultKeyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, tenantID string) (Release, error) {
	key := g.keyPrefix + tenantID
	owner := uuid.New().String()

	ok, err := g.rdb.SetNX(ctx, key, owner, g.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The run context may already be cancelled at this point
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			n, err := releaseScript.Run(relCtx, g.rdb, []string{key}, owner).Int64()
			if err != nil {
				g.logger.Error("Failed to release tenant guard", zap.String("tenant_id", tenantID), zap.Error(err))
				return
			}
			if n == 0 {
				g.logger.Warn("Tenant guard expired before release", zap.String("tenant_id", tenantID))
			}
		})
	}, nil
}
