package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/events"
	"go-catalog-sync/internal/features/catalog"
	"go-catalog-sync/internal/features/credential"
	"go-catalog-sync/internal/features/notification"
	"go-catalog-sync/internal/features/schedule"
	"go-catalog-sync/internal/features/webhook"
	"go-catalog-sync/internal/guard"
	"go-catalog-sync/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeCredentials struct {
	creds source.Credentials
	err   error
}

func (f *fakeCredentials) Get(ctx context.Context, tenantID primitive.ObjectID) (*credential.CredentialView, error) {
	return nil, nil
}

func (f *fakeCredentials) Save(ctx context.Context, tenantID primitive.ObjectID, input credential.CredentialInput) (*credential.CredentialView, error) {
	return nil, nil
}

func (f *fakeCredentials) Resolve(ctx context.Context, tenantID primitive.ObjectID) (source.Credentials, error) {
	return f.creds, f.err
}

type fakeSchedules struct {
	sched    *schedule.SyncSchedule
	recorded []models.SyncStatus
	next     time.Time
}

func (f *fakeSchedules) Get(ctx context.Context, tenantID primitive.ObjectID) (*schedule.SyncSchedule, error) {
	if f.sched == nil {
		return nil, schedule.ErrNotFound
	}
	return f.sched, nil
}

func (f *fakeSchedules) Upsert(ctx context.Context, tenantID primitive.ObjectID, input schedule.ScheduleInput) (*schedule.SyncSchedule, error) {
	return nil, nil
}

func (f *fakeSchedules) SetEnabled(ctx context.Context, tenantID primitive.ObjectID, enabled bool) (*schedule.SyncSchedule, error) {
	return nil, nil
}

func (f *fakeSchedules) Delete(ctx context.Context, tenantID primitive.ObjectID) error { return nil }

func (f *fakeSchedules) ListDue(ctx context.Context, now time.Time, limit int) ([]schedule.SyncSchedule, error) {
	return nil, nil
}

func (f *fakeSchedules) RecordRun(ctx context.Context, s *schedule.SyncSchedule, status models.SyncStatus, finishedAt time.Time) (*time.Time, error) {
	f.recorded = append(f.recorded, status)
	return &f.next, nil
}

// scriptedSource returns the scripted errors in order, then the products
type scriptedSource struct {
	mu       sync.Mutex
	errs     []error
	products []source.Product
	calls    int
}

func (s *scriptedSource) FetchAllProducts(ctx context.Context, creds source.Credentials) ([]source.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.products, nil
}

type fakeStore struct {
	mu      sync.Mutex
	failFor map[string]error
	panicOn string
	written []string
}

func (s *fakeStore) UpsertByExternalID(ctx context.Context, tenantID primitive.ObjectID, externalID string, fields catalog.ProductFields) (*catalog.Product, error) {
	if externalID == s.panicOn {
		panic("store exploded")
	}
	if err, ok := s.failFor[externalID]; ok {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, externalID)
	return &catalog.Product{ExternalID: externalID, Title: fields.Title}, nil
}

func (s *fakeStore) CountByTenant(ctx context.Context, tenantID primitive.ObjectID) (int64, error) {
	return int64(len(s.written)), nil
}

type fakeLogs struct {
	logs []SyncLog
}

func (f *fakeLogs) Create(ctx context.Context, log *SyncLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeLogs) List(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]SyncLog, error) {
	return f.logs, nil
}

type fakeNotifier struct {
	outcomes []models.SyncOutcome
}

func (f *fakeNotifier) Notify(ctx context.Context, s *schedule.SyncSchedule, outcome models.SyncOutcome) error {
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

type fakeWebhooks struct {
	events []webhook.Event
}

func (f *fakeWebhooks) Dispatch(ctx context.Context, tenantID primitive.ObjectID, event webhook.Event) ([]webhook.DeliveryResult, error) {
	f.events = append(f.events, event)
	return nil, nil
}

type fakeAdmin struct {
	notes []notification.AdminNotification
}

func (f *fakeAdmin) Create(ctx context.Context, n notification.AdminNotification) {
	f.notes = append(f.notes, n)
}

type fakeFeed struct {
	calls int
	err   error
}

func (f *fakeFeed) Refresh(ctx context.Context, tenantID primitive.ObjectID) error {
	f.calls++
	return f.err
}

type harness struct {
	svc       *SyncServiceImpl
	guard     *guard.MemoryGuard
	source    *scriptedSource
	store     *fakeStore
	schedules *fakeSchedules
	logs      *fakeLogs
	notifier  *fakeNotifier
	webhooks  *fakeWebhooks
	admin     *fakeAdmin
	feed      *fakeFeed
	creds     *fakeCredentials
}

func newHarness(products ...source.Product) *harness {
	h := &harness{
		guard:     guard.NewMemoryGuard(),
		source:    &scriptedSource{products: products},
		store:     &fakeStore{failFor: map[string]error{}},
		schedules: &fakeSchedules{next: time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)},
		logs:      &fakeLogs{},
		notifier:  &fakeNotifier{},
		webhooks:  &fakeWebhooks{},
		admin:     &fakeAdmin{},
		feed:      &fakeFeed{},
		creds:     &fakeCredentials{creds: source.Credentials{StoreName: "Acme", APIURL: "https://acme.example"}},
	}
	h.svc = &SyncServiceImpl{
		guard:        h.guard,
		credentials:  h.creds,
		schedules:    h.schedules,
		source:       source.NewRetryingClient(h.source, 3, 0, zap.NewNop()),
		store:        h.store,
		logs:         h.logs,
		notifier:     h.notifier,
		webhooks:     h.webhooks,
		admin:        h.admin,
		publisher:    events.NopPublisher{},
		feed:         h.feed,
		batchSize:    5,
		dashboardURL: "https://dash.example",
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	return h
}

func products(ids ...string) []source.Product {
	out := make([]source.Product, len(ids))
	for i, id := range ids {
		out[i] = source.Product{ExternalID: id, Title: "Product " + id}
	}
	return out
}

func TestRunSync_Success(t *testing.T) {
	h := newHarness(products("a", "b", "c")...)
	h.schedules.sched = &schedule.SyncSchedule{Enabled: true, SyncProducts: true}
	tenantID := primitive.NewObjectID()

	outcome := h.svc.RunSync(context.Background(), tenantID, models.SyncTypeScheduled)

	assert.False(t, outcome.Skipped)
	assert.Equal(t, models.SyncStatusSuccess, outcome.Status)
	assert.Equal(t, "Acme", outcome.StoreName)
	assert.Equal(t, 3, outcome.ItemsTotal)
	assert.Equal(t, 3, outcome.ItemsSynced)
	assert.Empty(t, outcome.ErrorLog)
	require.NotNil(t, outcome.NextRunAt)
	assert.Equal(t, h.schedules.next, *outcome.NextRunAt)

	require.Len(t, h.logs.logs, 1)
	assert.Equal(t, models.SyncStatusSuccess, h.logs.logs[0].Status)
	assert.Equal(t, tenantID, h.logs.logs[0].TenantID)
	assert.Equal(t, []models.SyncStatus{models.SyncStatusSuccess}, h.schedules.recorded)

	require.Len(t, h.notifier.outcomes, 1)
	require.Len(t, h.webhooks.events, 1)
	assert.Equal(t, models.EventSyncSuccess, h.webhooks.events[0].Event)
	assert.Empty(t, h.admin.notes)
	assert.False(t, h.guard.IsRunning(tenantID.Hex()))
}

func TestRunSync_SkipsWhenTenantAlreadyRunning(t *testing.T) {
	h := newHarness(products("a")...)
	tenantID := primitive.NewObjectID()

	release, err := h.guard.Acquire(context.Background(), tenantID.Hex())
	require.NoError(t, err)
	defer release()

	outcome := h.svc.RunSync(context.Background(), tenantID, models.SyncTypeManual)

	assert.True(t, outcome.Skipped)
	assert.Zero(t, h.source.calls)
	assert.Empty(t, h.logs.logs)
	assert.Empty(t, h.webhooks.events)
	assert.Empty(t, h.notifier.outcomes)
}

func TestRunSync_PerItemFailuresAreIsolated(t *testing.T) {
	h := newHarness(products("a", "b", "c", "d")...)
	h.store.failFor["b"] = errors.New("duplicate sku")
	h.store.panicOn = "d"

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeManual)

	assert.Equal(t, models.SyncStatusPartial, outcome.Status)
	assert.Equal(t, 4, outcome.ItemsTotal)
	assert.Equal(t, 2, outcome.ItemsSynced)
	assert.Equal(t, 2, outcome.ItemsFailed)
	assert.Contains(t, outcome.ErrorLog, "b: duplicate sku")
	assert.Contains(t, outcome.ErrorLog, "d: panic: store exploded")
	assert.ElementsMatch(t, []string{"a", "c"}, h.store.written)

	require.Len(t, h.webhooks.events, 1)
	assert.Equal(t, models.EventSyncError, h.webhooks.events[0].Event)
}

func TestRunSync_AllItemsFailed(t *testing.T) {
	h := newHarness(products("a", "b")...)
	h.store.failFor["a"] = errors.New("x")
	h.store.failFor["b"] = errors.New("y")

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeManual)

	assert.Equal(t, models.SyncStatusFailed, outcome.Status)
	require.Len(t, h.admin.notes, 1)
	assert.Equal(t, notification.TypeSyncFailed, h.admin.notes[0].Type)
}

func TestRunSync_CredentialFailure(t *testing.T) {
	h := newHarness(products("a")...)
	h.creds.err = credential.ErrInactive
	h.schedules.sched = &schedule.SyncSchedule{Enabled: true, SyncProducts: true}

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeScheduled)

	assert.Equal(t, models.SyncStatusFailed, outcome.Status)
	assert.Zero(t, outcome.ItemsTotal)
	assert.Contains(t, outcome.ErrorLog, ErrCredential.Error())
	assert.Zero(t, h.source.calls)

	require.Len(t, h.logs.logs, 1)
	assert.Equal(t, models.SyncStatusFailed, h.logs.logs[0].Status)
	assert.Equal(t, []models.SyncStatus{models.SyncStatusFailed}, h.schedules.recorded)

	require.Len(t, h.admin.notes, 1)
	assert.Equal(t, notification.TypeCredentialError, h.admin.notes[0].Type)
	assert.Equal(t, notification.SeverityError, h.admin.notes[0].Severity)
}

func TestRunSync_CredentialStorageFailureIsNotACredentialAlert(t *testing.T) {
	h := newHarness(products("a")...)
	h.creds.err = fmt.Errorf("%w: %w", credential.ErrLookup, errors.New("server selection timeout"))
	h.schedules.sched = &schedule.SyncSchedule{Enabled: true, SyncProducts: true}

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeScheduled)

	assert.Equal(t, models.SyncStatusFailed, outcome.Status)
	assert.Contains(t, outcome.ErrorLog, ErrStorage.Error())
	assert.NotContains(t, outcome.ErrorLog, ErrCredential.Error())
	assert.Zero(t, h.source.calls)

	require.Len(t, h.admin.notes, 1)
	assert.Equal(t, notification.TypeStorageError, h.admin.notes[0].Type)
}

func TestRunSync_TransientErrorsRetriedThenSucceed(t *testing.T) {
	h := newHarness(products("a", "b")...)
	transient := &source.Error{Kind: source.KindTransient, StatusCode: 503, Err: errors.New("unavailable")}
	h.source.errs = []error{transient, transient}

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeManual)

	assert.Equal(t, 3, h.source.calls)
	assert.Equal(t, models.SyncStatusSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.ItemsSynced)
	require.Len(t, h.logs.logs, 1)
	assert.Empty(t, h.logs.logs[0].ErrorLog)
	assert.Empty(t, h.admin.notes)
}

func TestRunSync_UnauthorizedFailsWithoutRetry(t *testing.T) {
	h := newHarness(products("a")...)
	h.source.errs = []error{&source.Error{Kind: source.KindUnauthorized, StatusCode: 401, Err: errors.New("bad token")}}

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeManual)

	assert.Equal(t, 1, h.source.calls)
	assert.Equal(t, models.SyncStatusFailed, outcome.Status)
	assert.Contains(t, outcome.ErrorLog, ErrSourceFetch.Error())
	assert.NotContains(t, outcome.ErrorLog, ErrCredential.Error())

	require.Len(t, h.admin.notes, 1)
	assert.Equal(t, notification.TypeSourceFetchError, h.admin.notes[0].Type)
	assert.Equal(t, string(source.KindUnauthorized), h.admin.notes[0].Metadata["kind"])
}

func TestRunSync_ScheduledWithProductSyncDisabled(t *testing.T) {
	h := newHarness(products("a")...)
	h.schedules.sched = &schedule.SyncSchedule{Enabled: true, SyncProducts: false}

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeScheduled)

	assert.Equal(t, models.SyncStatusSuccess, outcome.Status)
	assert.Zero(t, outcome.ItemsTotal)
	assert.Zero(t, h.source.calls)
	assert.Len(t, h.logs.logs, 1)
}

func TestRunSync_FeedRefresh(t *testing.T) {
	h := newHarness(products("a")...)
	h.schedules.sched = &schedule.SyncSchedule{Enabled: true, SyncProducts: true, UpdateFeed: true}
	h.feed.err = errors.New("feed store offline")

	outcome := h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeScheduled)

	assert.Equal(t, 1, h.feed.calls)
	assert.Equal(t, models.SyncStatusSuccess, outcome.Status)
	assert.Contains(t, outcome.ErrorLog, "feed refresh: feed store offline")
}

func TestRunSync_FeedNotRefreshedAfterFailure(t *testing.T) {
	h := newHarness()
	h.schedules.sched = &schedule.SyncSchedule{Enabled: true, SyncProducts: true, UpdateFeed: true}
	h.creds.err = credential.ErrSecretMissing

	h.svc.RunSync(context.Background(), primitive.NewObjectID(), models.SyncTypeScheduled)
	assert.Zero(t, h.feed.calls)
}

func TestRunSync_ReleasesGuardAfterPanic(t *testing.T) {
	h := newHarness(products("a")...)
	h.svc.credentials = nil // Resolve on a nil interface panics inside the run
	tenantID := primitive.NewObjectID()

	outcome := h.svc.RunSync(context.Background(), tenantID, models.SyncTypeManual)

	assert.Equal(t, models.SyncStatusFailed, outcome.Status)
	assert.Contains(t, outcome.ErrorLog, "internal error")
	assert.False(t, h.guard.IsRunning(tenantID.Hex()))
	assert.Len(t, h.logs.logs, 1)
}

func TestListLogs_ClampsLimit(t *testing.T) {
	h := newHarness()
	logs := &limitRecorder{}
	h.svc.logs = logs

	_, _ = h.svc.ListLogs(context.Background(), primitive.NewObjectID(), 0)
	_, _ = h.svc.ListLogs(context.Background(), primitive.NewObjectID(), 5000)
	assert.Equal(t, []int64{defaultLogLimit, maxLogLimit}, logs.limits)
}

type limitRecorder struct {
	fakeLogs
	limits []int64
}

func (l *limitRecorder) List(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]SyncLog, error) {
	l.limits = append(l.limits, limit)
	return nil, nil
}

func TestExportLogs(t *testing.T) {
	h := newHarness()
	h.logs.logs = []SyncLog{{
		SyncType:   models.SyncTypeScheduled,
		Status:     models.SyncStatusPartial,
		ItemsTotal: 2, ItemsSynced: 1, ItemsFailed: 1,
		ErrorLog:  "b: duplicate sku",
		CreatedAt: time.Now(),
	}}
	tenantID := primitive.NewObjectID()

	data, filename, err := h.svc.ExportLogs(context.Background(), tenantID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, filename, tenantID.Hex())
	assert.Equal(t, "PK", string(data[:2]))
}
