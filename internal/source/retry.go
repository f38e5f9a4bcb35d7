package source

import (
	"context"
	"time"

	"go-catalog-sync/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const backoffMultiplier = 1.5

// RetryingClient retries transient and rate limited failures.
// The wait before attempt n+1 is baseDelay * 1.5^(n-1).
type RetryingClient struct {
	inner       Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

func NewRetryingClient(inner Client, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *RetryingClient {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingClient{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

func (c *RetryingClient) newPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseDelay
	exp.Multiplier = backoffMultiplier
	exp.RandomizationFactor = 0
	exp.MaxInterval = 10 * time.Minute
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxAttempts-1)), ctx)
}

func (c *RetryingClient) FetchAllProducts(ctx context.Context, creds Credentials) ([]Product, error) {
	attempt := 0
	op := func() ([]Product, error) {
		attempt++
		products, err := c.inner.FetchAllProducts(ctx, creds)
		if err != nil {
			metrics.SourceFetchAttempts.WithLabelValues(string(KindOf(err))).Inc()
			if !IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		metrics.SourceFetchAttempts.WithLabelValues("ok").Inc()
		return products, nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Product fetch failed, retrying",
			zap.String("store", creds.StoreName),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return backoff.RetryNotifyWithData(op, c.newPolicy(ctx), notify)
}
