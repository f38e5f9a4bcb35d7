package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/pkg/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memoryStore struct {
	mu       sync.Mutex
	webhooks []Webhook
	logs     []WebhookLog
	stats    map[primitive.ObjectID][]DeliveryStatus
}

func newMemoryStore(webhooks ...Webhook) *memoryStore {
	return &memoryStore{webhooks: webhooks, stats: map[primitive.ObjectID][]DeliveryStatus{}}
}

func (m *memoryStore) Create(ctx context.Context, webhook *Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	webhook.ID = primitive.NewObjectID()
	m.webhooks = append(m.webhooks, *webhook)
	return nil
}

func (m *memoryStore) Get(ctx context.Context, tenantID, id primitive.ObjectID) (*Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.webhooks {
		if w.ID == id && w.TenantID == tenantID {
			cp := w
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) List(ctx context.Context, tenantID primitive.ObjectID) ([]Webhook, error) {
	return m.ListForEvent(ctx, tenantID, "")
}

func (m *memoryStore) ListForEvent(ctx context.Context, tenantID primitive.ObjectID, event models.WebhookEvent) ([]Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Webhook
	for _, w := range m.webhooks {
		if w.TenantID != tenantID {
			continue
		}
		if event != "" {
			if !w.IsEnabled {
				continue
			}
			if event == models.EventSyncSuccess && !w.TriggerOnSuccess {
				continue
			}
			if event == models.EventSyncError && !w.TriggerOnError {
				continue
			}
		}
		out = append(out, w)
	}
	return out, nil
}

func (m *memoryStore) Update(ctx context.Context, webhook *Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.webhooks {
		if m.webhooks[i].ID == webhook.ID {
			m.webhooks[i] = *webhook
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) Delete(ctx context.Context, tenantID, id primitive.ObjectID) error {
	return nil
}

func (m *memoryStore) RecordDelivery(ctx context.Context, id primitive.ObjectID, status DeliveryStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[id] = append(m.stats[id], status)
	return nil
}

func (m *memoryStore) ListByWebhook(ctx context.Context, tenantID, webhookID primitive.ObjectID, status DeliveryStatus, page, limit int64) ([]WebhookLog, int64, error) {
	return m.logsFor(webhookID), 0, nil
}

func (m *memoryStore) logsFor(id primitive.ObjectID) []WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WebhookLog
	for _, l := range m.logs {
		if l.WebhookID == id {
			out = append(out, l)
		}
	}
	return out
}

// logSink adapts memoryStore to WebhookLogRepository
type logSink struct{ *memoryStore }

func (l logSink) Create(ctx context.Context, log *WebhookLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, *log)
	return nil
}

func newTestCodec(t *testing.T) secrets.Codec {
	t.Helper()
	codec, err := secrets.NewSecretBoxCodec("webhook-test-key")
	require.NoError(t, err)
	return codec
}

func newTestEngine(t *testing.T, store *memoryStore) *Engine {
	t.Helper()
	cfg := &config.Config{Webhook: config.WebhookConfig{DefaultTimeout: 2 * time.Second}}
	e := NewEngine(store, logSink{store}, newTestCodec(t), cfg, zap.NewNop())
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func newWebhook(tenantID primitive.ObjectID, url string) Webhook {
	return Webhook{
		ID:               primitive.NewObjectID(),
		TenantID:         tenantID,
		Name:             "hook",
		URL:              url,
		Type:             TypeCustom,
		IsEnabled:        true,
		TriggerOnSuccess: true,
		TriggerOnError:   true,
		AuthType:         AuthNone,
		RetryEnabled:     true,
		MaxRetries:       3,
		RetryDelayMs:     1,
	}
}

func successEvent(tenantID primitive.ObjectID) Event {
	return NewEvent(models.SyncOutcome{
		TenantID:    tenantID,
		StoreName:   "Acme",
		SyncType:    models.SyncTypeScheduled,
		Status:      models.SyncStatusSuccess,
		ItemsTotal:  3,
		ItemsSynced: 3,
		ErrorLog:    "should not leak",
		FinishedAt:  time.Now(),
	})
}

func TestDispatch_OnlyMatchingTriggers(t *testing.T) {
	var successHits, errorHits int32
	successSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&successHits, 1)
	}))
	defer successSrv.Close()
	errorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&errorHits, 1)
	}))
	defer errorSrv.Close()

	tenantID := primitive.NewObjectID()
	onSuccess := newWebhook(tenantID, successSrv.URL)
	onSuccess.TriggerOnError = false
	onError := newWebhook(tenantID, errorSrv.URL)
	onError.TriggerOnSuccess = false

	store := newMemoryStore(onSuccess, onError)
	results, err := newTestEngine(t, store).Dispatch(context.Background(), tenantID, successEvent(tenantID))
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, onSuccess.ID, results[0].WebhookID)
	assert.Equal(t, DeliverySuccess, results[0].Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&successHits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&errorHits))
	assert.Equal(t, []DeliveryStatus{DeliverySuccess}, store.stats[onSuccess.ID])
}

func TestDispatch_NoRetryWhenDisabled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tenantID := primitive.NewObjectID()
	wh := newWebhook(tenantID, srv.URL)
	wh.RetryEnabled = false

	store := newMemoryStore(wh)
	results, err := newTestEngine(t, store).Dispatch(context.Background(), tenantID, successEvent(tenantID))
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, DeliveryFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, ErrWebhookDelivery)
	assert.Equal(t, int32(1), hits)

	logs := store.logsFor(wh.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, DeliveryFailed, logs[0].Status)
	assert.Equal(t, 1, logs[0].MaxAttempts)
	require.NotNil(t, logs[0].ResponseStatus)
	assert.Equal(t, http.StatusInternalServerError, *logs[0].ResponseStatus)
	assert.Equal(t, []DeliveryStatus{DeliveryFailed}, store.stats[wh.ID])
}

func TestDispatch_AttemptsAreMaxRetriesPlusOne(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tenantID := primitive.NewObjectID()
	wh := newWebhook(tenantID, srv.URL)
	wh.MaxRetries = 2

	store := newMemoryStore(wh)
	results, err := newTestEngine(t, store).Dispatch(context.Background(), tenantID, successEvent(tenantID))
	require.NoError(t, err)

	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, int32(3), hits)

	logs := store.logsFor(wh.ID)
	require.Len(t, logs, 3)
	for i, l := range logs {
		assert.Equal(t, i+1, l.Attempt)
		assert.Equal(t, 3, l.MaxAttempts)
	}
	// stats are counted once per delivery
	assert.Len(t, store.stats[wh.ID], 1)
}

func TestDispatch_StopsOnFirstSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tenantID := primitive.NewObjectID()
	wh := newWebhook(tenantID, srv.URL)
	store := newMemoryStore(wh)

	results, err := newTestEngine(t, store).Dispatch(context.Background(), tenantID, successEvent(tenantID))
	require.NoError(t, err)
	assert.Equal(t, DeliverySuccess, results[0].Status)
	assert.Equal(t, 2, results[0].Attempts)
	assert.NoError(t, results[0].Err)

	logs := store.logsFor(wh.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, DeliveryFailed, logs[0].Status)
	assert.Equal(t, DeliverySuccess, logs[1].Status)
}

func TestDispatch_FailingSiblingDoesNotAffectOthers(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer okSrv.Close()

	tenantID := primitive.NewObjectID()
	good := newWebhook(tenantID, okSrv.URL)
	bad := newWebhook(tenantID, "http://127.0.0.1:1/unreachable")
	bad.RetryEnabled = false

	store := newMemoryStore(bad, good)
	results, err := newTestEngine(t, store).Dispatch(context.Background(), tenantID, successEvent(tenantID))
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, DeliveryFailed, results[0].Status)
	assert.Equal(t, DeliverySuccess, results[1].Status)
}

func TestBuildHeaders_Auth(t *testing.T) {
	codec := newTestCodec(t)
	enc, err := codec.Encrypt("tok-123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		authType AuthType
		value    string
		want     string
	}{
		{"bearer", AuthBearer, enc, "Bearer tok-123"},
		{"basic", AuthBasic, enc, "Basic " + base64.StdEncoding.EncodeToString([]byte("tok-123"))},
		{"none", AuthNone, enc, ""},
		{"undecryptable falls back to no header", AuthBearer, "v1:garbage", ""},
	}

	e := newTestEngine(t, newMemoryStore())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := newWebhook(primitive.NewObjectID(), "http://example.invalid")
			wh.AuthType = tt.authType
			wh.AuthValue = tt.value
			wh.CustomHeaders = map[string]string{"X-Team": "catalog", "Content-Type": "text/plain"}

			h := e.buildHeaders(&wh, successEvent(wh.TenantID), []byte("{}"), zap.NewNop())
			assert.Equal(t, tt.want, h.Get("Authorization"))
			assert.Equal(t, "application/json", h.Get("Content-Type"))
			assert.Equal(t, "catalog", h.Get("X-Team"))
		})
	}
}

func TestBuildHeaders_CustomAuthorizationOnlyWithoutConfiguredAuth(t *testing.T) {
	codec := newTestCodec(t)
	enc, err := codec.Encrypt("tok-123")
	require.NoError(t, err)
	e := newTestEngine(t, newMemoryStore())

	wh := newWebhook(primitive.NewObjectID(), "http://example.invalid")
	wh.AuthType = AuthBearer
	wh.AuthValue = enc
	wh.CustomHeaders = map[string]string{"authorization": "Token spoofed", "X-Sync-Signature": "sha256=forged"}

	h := e.buildHeaders(&wh, successEvent(wh.TenantID), []byte("{}"), zap.NewNop())
	assert.Equal(t, "Bearer tok-123", h.Get("Authorization"))
	assert.Empty(t, h.Get("X-Sync-Signature"))

	// undecryptable configured auth still does not fall back to the custom value
	wh.AuthValue = "v1:garbage"
	h = e.buildHeaders(&wh, successEvent(wh.TenantID), []byte("{}"), zap.NewNop())
	assert.Empty(t, h.Get("Authorization"))

	wh.AuthType = AuthNone
	h = e.buildHeaders(&wh, successEvent(wh.TenantID), []byte("{}"), zap.NewNop())
	assert.Equal(t, "Token spoofed", h.Get("Authorization"))
}

func TestDispatch_LogsRedactAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(strings.Repeat("x", maxResponseBody+100)))
	}))
	defer srv.Close()

	tenantID := primitive.NewObjectID()
	codec := newTestCodec(t)
	enc, err := codec.Encrypt("tok-123")
	require.NoError(t, err)

	wh := newWebhook(tenantID, srv.URL)
	wh.AuthType = AuthBearer
	wh.AuthValue = enc
	store := newMemoryStore(wh)
	e := newTestEngine(t, store)
	e.codec = codec

	_, err = e.Dispatch(context.Background(), tenantID, successEvent(tenantID))
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)

	logs := store.logsFor(wh.ID)
	require.Len(t, logs, 1)
	assert.NotContains(t, logs[0].RequestHeaders, "tok-123")
	assert.Contains(t, logs[0].RequestHeaders, redacted)
	assert.True(t, strings.HasSuffix(logs[0].ResponseBody, "...[truncated]"))
	assert.NotContains(t, logs[0].RequestBody, "should not leak")
}

func TestSendTest_UsesDeliveryPath(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	tenantID := primitive.NewObjectID()
	wh := newWebhook(tenantID, srv.URL)
	wh.IsEnabled = false
	store := newMemoryStore(wh)

	result, err := newTestEngine(t, store).SendTest(context.Background(), tenantID, wh.ID)
	require.NoError(t, err)
	assert.Equal(t, DeliverySuccess, result.Status)

	var ev Event
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.True(t, ev.Test)
	assert.Equal(t, models.EventSyncSuccess, ev.Event)

	logs := store.logsFor(wh.ID)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].IsTest)
	assert.Len(t, store.stats[wh.ID], 1)

	_, err = newTestEngine(t, store).SendTest(context.Background(), primitive.NewObjectID(), wh.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
