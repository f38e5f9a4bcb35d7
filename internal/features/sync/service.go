package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/events"
	"go-catalog-sync/internal/features/catalog"
	"go-catalog-sync/internal/features/credential"
	"go-catalog-sync/internal/features/notification"
	"go-catalog-sync/internal/features/schedule"
	"go-catalog-sync/internal/features/webhook"
	"go-catalog-sync/internal/guard"
	"go-catalog-sync/internal/metrics"
	"go-catalog-sync/internal/source"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

// Notifier emails the schedule's recipient about a finished run
type Notifier interface {
	Notify(ctx context.Context, s *schedule.SyncSchedule, outcome models.SyncOutcome) error
}

// WebhookDispatcher fans an outcome event out to the tenant's webhooks
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, tenantID primitive.ObjectID, event webhook.Event) ([]webhook.DeliveryResult, error)
}

// FeedRefresher republishes the tenant feed after a successful catalog update
type FeedRefresher interface {
	Refresh(ctx context.Context, tenantID primitive.ObjectID) error
}

type SyncService interface {
	RunSync(ctx context.Context, tenantID primitive.ObjectID, syncType models.SyncType) models.SyncOutcome
	ListLogs(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]SyncLog, error)
	ExportLogs(ctx context.Context, tenantID primitive.ObjectID) ([]byte, string, error)
}

type SyncServiceImpl struct {
	guard        guard.Guard
	credentials  credential.CredentialService
	schedules    schedule.ScheduleService
	source       source.Client
	store        catalog.Store
	logs         SyncLogRepository
	notifier     Notifier
	webhooks     WebhookDispatcher
	admin        notification.AdminSink
	publisher    events.Publisher
	feed         FeedRefresher
	batchSize    int
	dashboardURL string
	logger       *zap.Logger
	now          func() time.Time
}

func NewSyncService(
	g guard.Guard,
	credentials credential.CredentialService,
	schedules schedule.ScheduleService,
	client source.Client,
	store catalog.Store,
	logs SyncLogRepository,
	notifier Notifier,
	webhooks WebhookDispatcher,
	admin notification.AdminSink,
	publisher events.Publisher,
	feed FeedRefresher,
	cfg *config.Config,
	logger *zap.Logger,
) SyncService {
	return &SyncServiceImpl{
		guard:        g,
		credentials:  credentials,
		schedules:    schedules,
		source:       client,
		store:        store,
		logs:         logs,
		notifier:     notifier,
		webhooks:     webhooks,
		admin:        admin,
		publisher:    publisher,
		feed:         feed,
		batchSize:    cfg.Source.ReconcileBatchSize,
		dashboardURL: strings.TrimRight(cfg.DashboardURL, "/"),
		logger:       logger,
		now:          time.Now,
	}
}

// RunSync executes one guarded run for the tenant. A run that finds the
// tenant already running returns a Skipped outcome and records nothing.
func (s *SyncServiceImpl) RunSync(ctx context.Context, tenantID primitive.ObjectID, syncType models.SyncType) (outcome models.SyncOutcome) {
	outcome = models.SyncOutcome{
		TenantID:  tenantID,
		SyncType:  syncType,
		StartedAt: s.now(),
	}
	log := s.logger.With(
		zap.String("tenant_id", tenantID.Hex()),
		zap.String("sync_type", string(syncType)),
	)

	release, err := s.guard.Acquire(ctx, tenantID.Hex())
	if err != nil {
		if errors.Is(err, guard.ErrAlreadyRunning) {
			log.Info("Sync already running for tenant, skipping")
		} else {
			log.Error("Failed to acquire sync guard, skipping", zap.Error(err))
		}
		metrics.SyncRunsSkipped.WithLabelValues(string(syncType)).Inc()
		outcome.Skipped = true
		return outcome
	}
	defer release()

	metrics.SyncRunsInFlight.Inc()
	defer metrics.SyncRunsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Sync run panicked during post-run stages", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	log.Info("Sync run started")

	sched := s.loadSchedule(ctx, tenantID, log)
	fatal := s.execute(ctx, sched, &outcome, log)

	outcome.Status = ClassifyStatus(outcome.ItemsTotal, outcome.ItemsSynced, outcome.ItemsFailed, fatal != nil)
	if fatal != nil {
		outcome.ErrorLog = appendErrorLog(fatal.Error(), outcome.ErrorLog)
	}

	// Post-run bookkeeping must land even when the run context was cancelled
	post := context.WithoutCancel(ctx)

	if sched != nil && sched.UpdateFeed && outcome.Status != models.SyncStatusFailed && s.feed != nil {
		if err := s.feed.Refresh(post, tenantID); err != nil {
			log.Warn("Feed refresh failed", zap.Error(err))
			outcome.ErrorLog = appendErrorLog(outcome.ErrorLog, "feed refresh: "+err.Error())
		}
	}

	outcome.FinishedAt = s.now()
	outcome.Duration = outcome.FinishedAt.Sub(outcome.StartedAt)

	s.finish(post, sched, &outcome, log)
	return outcome
}

func (s *SyncServiceImpl) loadSchedule(ctx context.Context, tenantID primitive.ObjectID, log *zap.Logger) *schedule.SyncSchedule {
	sched, err := s.schedules.Get(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, schedule.ErrNotFound) {
			log.Warn("Failed to load sync schedule", zap.Error(err))
		}
		return nil
	}
	return sched
}

// execute runs credentials, fetch and reconciliation. The returned error is
// run-fatal; per-item failures only land in the outcome counters.
func (s *SyncServiceImpl) execute(ctx context.Context, sched *schedule.SyncSchedule, outcome *models.SyncOutcome, log *zap.Logger) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Sync run panicked", zap.Any("panic", r), zap.Stack("stack"))
			fatal = fmt.Errorf("internal error: %v", r)
		}
	}()

	if outcome.SyncType == models.SyncTypeScheduled && sched != nil && !sched.SyncProducts {
		log.Info("Product sync disabled for schedule, nothing to fetch")
		return nil
	}

	creds, err := s.credentials.Resolve(ctx, outcome.TenantID)
	if err != nil && !credential.IsMisconfigured(err) {
		fatal = fmt.Errorf("%w: %w", ErrStorage, err)
		log.Error("Failed to load tenant credentials", zap.Error(err))
		s.alert(ctx, notification.TypeStorageError, "Catalog sync could not load tenant credentials", outcome, fatal, nil)
		return fatal
	}
	if err != nil {
		fatal = fmt.Errorf("%w: %w", ErrCredential, err)
		log.Error("Failed to resolve tenant credentials", zap.Error(err))
		s.alert(ctx, notification.TypeCredentialError, "Catalog sync credentials unavailable", outcome, fatal, nil)
		return fatal
	}
	outcome.StoreName = creds.StoreName

	products, err := s.source.FetchAllProducts(ctx, creds)
	if err != nil {
		fatal = fmt.Errorf("%w: %w", ErrSourceFetch, err)
		log.Error("Failed to fetch products from source", zap.String("kind", string(source.KindOf(err))), zap.Error(err))
		s.alert(ctx, notification.TypeSourceFetchError, "Catalog sync could not reach the store", outcome, fatal,
			map[string]interface{}{"kind": string(source.KindOf(err))})
		return fatal
	}

	outcome.ItemsTotal = len(products)
	synced, failed, itemErrs := s.reconcile(ctx, outcome.TenantID, products)
	outcome.ItemsSynced = synced
	outcome.ItemsFailed = failed
	outcome.ErrorLog = joinItemErrors(itemErrs)

	log.Info("Products reconciled",
		zap.Int("items_total", outcome.ItemsTotal),
		zap.Int("items_synced", synced),
		zap.Int("items_failed", failed))
	return nil
}

// reconcile upserts products with bounded concurrency. A failing item is
// counted and recorded; it never stops the rest of the batch.
func (s *SyncServiceImpl) reconcile(ctx context.Context, tenantID primitive.ObjectID, products []source.Product) (int, int, []itemError) {
	var (
		synced, failed atomic.Int64
		mu             sync.Mutex
		errs           []itemError
	)

	limit := s.batchSize
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for _, p := range products {
		p := p
		g.Go(func() error {
			if err := s.upsert(ctx, tenantID, p); err != nil {
				failed.Add(1)
				metrics.SyncItemsTotal.WithLabelValues("failed").Inc()
				mu.Lock()
				errs = append(errs, itemError{externalID: p.ExternalID, err: err})
				mu.Unlock()
				return nil
			}
			synced.Add(1)
			metrics.SyncItemsTotal.WithLabelValues("synced").Inc()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(errs, func(i, j int) bool { return errs[i].externalID < errs[j].externalID })
	return int(synced.Load()), int(failed.Load()), errs
}

func (s *SyncServiceImpl) upsert(ctx context.Context, tenantID primitive.ObjectID, p source.Product) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = s.store.UpsertByExternalID(ctx, tenantID, p.ExternalID, catalog.ProductFields{
		Title:      p.Title,
		SKU:        p.SKU,
		Price:      p.Price,
		Currency:   p.Currency,
		Inventory:  p.Inventory,
		Status:     p.Status,
		ImageURL:   p.ImageURL,
		Attributes: p.Attributes,
	})
	return err
}

// finish persists the run and fans the outcome out. Every stage is
// independent: a failure is logged and the next stage still runs.
func (s *SyncServiceImpl) finish(ctx context.Context, sched *schedule.SyncSchedule, outcome *models.SyncOutcome, log *zap.Logger) {
	log = log.With(zap.String("status", string(outcome.Status)))

	if err := s.logs.Create(ctx, newSyncLog(*outcome)); err != nil {
		log.Error("Failed to write sync log", zap.Error(err))
	}

	if sched != nil {
		next, err := s.schedules.RecordRun(ctx, sched, outcome.Status, outcome.FinishedAt)
		if err != nil {
			log.Error("Failed to record run on schedule", zap.Error(err))
		}
		outcome.NextRunAt = next
	}

	if outcome.Status == models.SyncStatusFailed && outcome.ItemsTotal > 0 {
		s.alert(ctx, notification.TypeSyncFailed, "Catalog sync failed for every product", outcome, errors.New(outcome.ErrorLog), nil)
	}

	metrics.SyncRunsTotal.WithLabelValues(string(outcome.SyncType), string(outcome.Status)).Inc()
	metrics.SyncRunDuration.WithLabelValues(string(outcome.SyncType)).Observe(outcome.Duration.Seconds())

	log.Info("Sync run finished",
		zap.Int("items_total", outcome.ItemsTotal),
		zap.Int("items_synced", outcome.ItemsSynced),
		zap.Int("items_failed", outcome.ItemsFailed),
		zap.Duration("duration", outcome.Duration))

	// Notification errors are already logged by the dispatcher
	_ = s.notifier.Notify(ctx, sched, *outcome)

	if _, err := s.webhooks.Dispatch(ctx, outcome.TenantID, webhook.NewEvent(*outcome)); err != nil {
		log.Error("Failed to dispatch webhooks", zap.Error(err))
	}

	if err := s.publisher.Publish(ctx, *outcome); err != nil {
		log.Warn("Failed to publish sync outcome", zap.Error(err))
	}
}

func (s *SyncServiceImpl) alert(ctx context.Context, kind, title string, outcome *models.SyncOutcome, cause error, extra map[string]interface{}) {
	metadata := map[string]interface{}{
		"tenant_id": outcome.TenantID.Hex(),
		"sync_type": string(outcome.SyncType),
	}
	for k, v := range extra {
		metadata[k] = v
	}

	s.admin.Create(ctx, notification.AdminNotification{
		Type:      kind,
		Title:     title,
		Message:   cause.Error(),
		Severity:  notification.SeverityError,
		Link:      s.dashboardURL + "/sync/logs",
		Metadata:  metadata,
		CreatedAt: s.now(),
	})
}

func (s *SyncServiceImpl) ListLogs(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]SyncLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return s.logs.List(ctx, tenantID, limit)
}
