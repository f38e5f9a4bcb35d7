package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/features/schedule"
	"go-catalog-sync/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DueLister returns enabled schedules whose next run has passed
type DueLister interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]schedule.SyncSchedule, error)
}

// Runner executes one tenant run
type Runner interface {
	RunSync(ctx context.Context, tenantID primitive.ObjectID, syncType models.SyncType) models.SyncOutcome
}

// Scheduler polls for due schedules on a fixed interval and starts their
// runs with at most maxConcurrent in flight. Schedules that find no free
// slot stay due and are picked up by a later tick. A tenant whose previous
// run is still in flight is skipped without taking a slot.
type Scheduler struct {
	schedules     DueLister
	runner        Runner
	interval      time.Duration
	runTimeout    time.Duration
	maxConcurrent int
	sem           *semaphore.Weighted
	mu            sync.Mutex
	inFlight      map[primitive.ObjectID]struct{}
	cron          *cron.Cron
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zap.Logger
	now           func() time.Time
}

func New(schedules DueLister, runner Runner, cfg *config.Config, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		schedules:     schedules,
		runner:        runner,
		interval:      cfg.Scheduler.Interval,
		runTimeout:    cfg.Scheduler.RunTimeout,
		maxConcurrent: cfg.Scheduler.MaxConcurrent,
		sem:           semaphore.NewWeighted(int64(cfg.Scheduler.MaxConcurrent)),
		inFlight:      make(map[primitive.ObjectID]struct{}),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
		now:           time.Now,
	}
}

// Start registers the polling tick and starts the cron driver
func (s *Scheduler) Start() error {
	clog := cronLogger{s.logger.Sugar()}
	s.cron = cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.Tick(s.ctx) }); err != nil {
		return fmt.Errorf("failed to register scheduler tick: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("max_concurrent", s.maxConcurrent),
		zap.Duration("run_timeout", s.runTimeout))
	return nil
}

// Stop halts polling and waits for in-flight runs. If ctx expires first the
// runs are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		s.logger.Warn("Sync scheduler stopped before in-flight runs finished")
		return ctx.Err()
	}
}

// Tick dispatches due schedules and returns how many runs were started
func (s *Scheduler) Tick(ctx context.Context) int {
	metrics.SchedulerTicks.Inc()

	// running tenants still look due until their run is recorded
	due, err := s.schedules.ListDue(ctx, s.now(), s.maxConcurrent+s.inFlightCount())
	if err != nil {
		s.logger.Error("Failed to list due schedules", zap.Error(err))
		return 0
	}

	dispatched, skipped := 0, 0
	for i := range due {
		tenantID := due[i].TenantID
		if !s.markInFlight(tenantID) {
			skipped++
			continue
		}

		if !s.sem.TryAcquire(1) {
			s.clearInFlight(tenantID)
			deferred := len(due) - i
			metrics.SchedulerDeferred.Add(float64(deferred))
			s.logger.Info("Concurrency limit reached, deferring due schedules",
				zap.Int("deferred", deferred))
			break
		}

		s.wg.Add(1)
		go s.run(ctx, tenantID)
		dispatched++
	}

	if skipped > 0 {
		s.logger.Debug("Skipped tenants with a run in flight", zap.Int("skipped", skipped))
	}

	if dispatched > 0 {
		metrics.SchedulerDispatched.Add(float64(dispatched))
		s.logger.Debug("Scheduler tick dispatched runs", zap.Int("dispatched", dispatched))
	}
	return dispatched
}

func (s *Scheduler) run(ctx context.Context, tenantID primitive.ObjectID) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer s.clearInFlight(tenantID)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled run panicked",
				zap.String("tenant_id", tenantID.Hex()),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	s.runner.RunSync(runCtx, tenantID, models.SyncTypeScheduled)
}

func (s *Scheduler) markInFlight(tenantID primitive.ObjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[tenantID]; ok {
		return false
	}
	s.inFlight[tenantID] = struct{}{}
	return true
}

func (s *Scheduler) clearInFlight(tenantID primitive.ObjectID) {
	s.mu.Lock()
	delete(s.inFlight, tenantID)
	s.mu.Unlock()
}

func (s *Scheduler) inFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Register ties the scheduler to the application lifecycle
func Register(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
