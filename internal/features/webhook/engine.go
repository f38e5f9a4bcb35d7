package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/metrics"
	"go-catalog-sync/pkg/secrets"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrWebhookDelivery wraps the final failure of one webhook
var ErrWebhookDelivery = errors.New("webhook delivery failed")

const (
	maxResponseBody = 4 << 10
	redacted        = "[REDACTED]"
	userAgent       = "Catalog-Sync-Webhook/1.0"
)

// DeliveryResult summarises one webhook's delivery
type DeliveryResult struct {
	WebhookID primitive.ObjectID `json:"webhook_id"`
	Status    DeliveryStatus     `json:"status"`
	Attempts  int                `json:"attempts"`
	Err       error              `json:"-"`
}

type attemptResult struct {
	status       DeliveryStatus
	statusCode   *int
	responseBody string
	elapsed      time.Duration
	err          error
}

// Engine fans an event out to a tenant's webhooks
type Engine struct {
	repo           WebhookRepository
	logs           WebhookLogRepository
	codec          secrets.Codec
	client         *http.Client
	defaultTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewEngine(repo WebhookRepository, logs WebhookLogRepository, codec secrets.Codec, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		repo:           repo,
		logs:           logs,
		codec:          codec,
		client:         &http.Client{},
		defaultTimeout: cfg.Webhook.DefaultTimeout,
		logger:         logger,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

// Dispatch delivers event to every enabled webhook subscribed to it.
// Webhooks are delivered concurrently; one failing never affects another.
func (e *Engine) Dispatch(ctx context.Context, tenantID primitive.ObjectID, event Event) ([]DeliveryResult, error) {
	webhooks, err := e.repo.ListForEvent(ctx, tenantID, event.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	if len(webhooks) == 0 {
		return nil, nil
	}

	results := make([]DeliveryResult, len(webhooks))
	var wg sync.WaitGroup
	for i := range webhooks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.deliver(ctx, &webhooks[i], event)
		}(i)
	}
	wg.Wait()

	return results, nil
}

// SendTest runs the normal delivery path with a synthetic success event
func (e *Engine) SendTest(ctx context.Context, tenantID, webhookID primitive.ObjectID) (DeliveryResult, error) {
	wh, err := e.repo.Get(ctx, tenantID, webhookID)
	if err != nil {
		return DeliveryResult{}, err
	}
	return e.deliver(ctx, wh, NewTestEvent(tenantID, e.now())), nil
}

func (e *Engine) deliver(ctx context.Context, wh *Webhook, event Event) DeliveryResult {
	log := e.logger.With(
		zap.String("tenant_id", wh.TenantID.Hex()),
		zap.String("webhook_id", wh.ID.Hex()),
		zap.String("event", string(event.Event)),
	)
	result := DeliveryResult{WebhookID: wh.ID, Status: DeliveryFailed}

	body, err := BuildPayload(wh.Type, event)
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrWebhookDelivery, err)
		log.Error("Failed to build webhook payload", zap.Error(err))
		e.finish(ctx, wh, result, log)
		return result
	}

	headers := e.buildHeaders(wh, event, body, log)
	maxAttempts := wh.MaxAttempts()
	delay := time.Duration(wh.RetryDelayMs) * time.Millisecond

	var last attemptResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt
		last = e.attempt(ctx, wh, body, headers)
		e.writeLog(ctx, wh, event, attempt, maxAttempts, body, headers, last, log)

		if last.status == DeliverySuccess {
			result.Status = DeliverySuccess
			break
		}
		if attempt < maxAttempts {
			log.Warn("Webhook attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(last.err))
			if err := e.sleep(ctx, delay); err != nil {
				last.err = err
				break
			}
		}
	}

	if result.Status != DeliverySuccess {
		result.Err = fmt.Errorf("%w: %s after %d attempt(s): %v", ErrWebhookDelivery, wh.Name, result.Attempts, last.err)
	}
	e.finish(ctx, wh, result, log)
	return result
}

func (e *Engine) finish(ctx context.Context, wh *Webhook, result DeliveryResult, log *zap.Logger) {
	if err := e.repo.RecordDelivery(ctx, wh.ID, result.Status, e.now()); err != nil {
		log.Error("Failed to update webhook stats", zap.Error(err))
	}
	metrics.WebhookDeliveries.WithLabelValues(string(wh.Type), string(result.Status)).Inc()

	if result.Err != nil {
		log.Error("Webhook delivery failed", zap.Int("attempts", result.Attempts), zap.Error(result.Err))
		return
	}
	log.Info("Webhook delivered", zap.Int("attempts", result.Attempts))
}

func (e *Engine) attempt(ctx context.Context, wh *Webhook, body []byte, headers http.Header) attemptResult {
	timeout := e.defaultTimeout
	if wh.TimeoutMs > 0 {
		timeout = time.Duration(wh.TimeoutMs) * time.Millisecond
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := attemptResult{status: DeliveryFailed}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		res.err = err
		return res
	}
	req.Header = headers.Clone()

	start := time.Now()
	resp, err := e.client.Do(req)
	res.elapsed = time.Since(start)
	metrics.WebhookAttemptDuration.Observe(res.elapsed.Seconds())
	if err != nil {
		res.err = err
		metrics.WebhookAttempts.WithLabelValues(string(DeliveryFailed)).Inc()
		return res
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	res.statusCode = &code
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	res.responseBody = truncateBody(raw)

	if code >= 200 && code < 300 {
		res.status = DeliverySuccess
	} else {
		res.err = fmt.Errorf("unexpected status %d", code)
	}
	metrics.WebhookAttempts.WithLabelValues(string(res.status)).Inc()
	return res
}

// buildHeaders decrypts auth and signing material. A value that fails to
// decrypt is logged and left out; delivery continues unauthenticated.
// Custom headers never replace Content-Type, the signature, or an
// Authorization header derived from a configured auth type.
func (e *Engine) buildHeaders(wh *Webhook, event Event, body []byte, log *zap.Logger) http.Header {
	authConfigured := wh.AuthType == AuthBearer || wh.AuthType == AuthBasic
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("X-Sync-Event", string(event.Event))
	h.Set("X-Sync-Delivery", uuid.New().String())

	if authConfigured {
		value, err := e.codec.Decrypt(wh.AuthValue)
		switch {
		case err != nil:
			log.Error("Failed to decrypt webhook auth value, sending without Authorization", zap.Error(err))
		case wh.AuthType == AuthBearer:
			h.Set("Authorization", "Bearer "+value)
		default:
			h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(value)))
		}
	}

	if wh.SigningSecret != "" {
		secret, err := e.codec.Decrypt(wh.SigningSecret)
		if err != nil {
			log.Error("Failed to decrypt webhook signing secret, sending unsigned", zap.Error(err))
		} else {
			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write(body)
			h.Set("X-Sync-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
		}
	}

	for k, v := range wh.CustomHeaders {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization":
			if authConfigured {
				log.Warn("Ignoring custom Authorization header, webhook auth is configured")
				continue
			}
		case "X-Sync-Signature":
			continue
		}
		h.Set(k, v)
	}
	h.Set("Content-Type", "application/json")
	return h
}

func (e *Engine) writeLog(ctx context.Context, wh *Webhook, event Event, attempt, maxAttempts int, body []byte, headers http.Header, res attemptResult, log *zap.Logger) {
	entry := &WebhookLog{
		WebhookID:      wh.ID,
		TenantID:       wh.TenantID,
		Event:          string(event.Event),
		IsTest:         event.Test,
		Attempt:        attempt,
		MaxAttempts:    maxAttempts,
		RequestURL:     wh.URL,
		RequestMethod:  http.MethodPost,
		RequestBody:    string(body),
		RequestHeaders: serializeHeaders(headers),
		ResponseStatus: res.statusCode,
		ResponseBody:   res.responseBody,
		ResponseTimeMs: res.elapsed.Milliseconds(),
		Status:         res.status,
		CreatedAt:      e.now(),
	}
	if res.err != nil {
		entry.ErrorMessage = res.err.Error()
	}

	if err := e.logs.Create(ctx, entry); err != nil {
		log.Error("Failed to write webhook log", zap.Int("attempt", attempt), zap.Error(err))
	}
}

// serializeHeaders renders headers as JSON with credentials masked
func serializeHeaders(h http.Header) string {
	flat := make(map[string]string, len(h))
	for k := range h {
		v := h.Get(k)
		if strings.EqualFold(k, "Authorization") {
			v = redacted
		}
		flat[k] = v
	}
	out, _ := json.Marshal(flat)
	return string(out)
}

func truncateBody(raw []byte) string {
	if len(raw) > maxResponseBody {
		return string(raw[:maxResponseBody]) + "...[truncated]"
	}
	return string(raw)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
