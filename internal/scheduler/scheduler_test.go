package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/features/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type staticDue struct {
	due       []schedule.SyncSchedule
	err       error
	lastLimit int
}

func (s *staticDue) ListDue(ctx context.Context, now time.Time, limit int) ([]schedule.SyncSchedule, error) {
	s.lastLimit = limit
	return s.due, s.err
}

type blockingRunner struct {
	mu       sync.Mutex
	ran      []primitive.ObjectID
	started  chan struct{}
	release  chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
	panicOn  primitive.ObjectID
	deadline bool
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (r *blockingRunner) RunSync(ctx context.Context, tenantID primitive.ObjectID, syncType models.SyncType) models.SyncOutcome {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r.mu.Lock()
	r.ran = append(r.ran, tenantID)
	_, r.deadline = ctx.Deadline()
	r.mu.Unlock()
	r.started <- struct{}{}

	if tenantID == r.panicOn {
		panic("run exploded")
	}
	<-r.release
	return models.SyncOutcome{TenantID: tenantID, SyncType: syncType, Status: models.SyncStatusSuccess}
}

func dueSchedules(n int) []schedule.SyncSchedule {
	out := make([]schedule.SyncSchedule, n)
	for i := range out {
		out[i] = schedule.SyncSchedule{TenantID: primitive.NewObjectID(), Enabled: true}
	}
	return out
}

func newTestScheduler(due DueLister, runner Runner, maxConcurrent int) *Scheduler {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		Interval:      time.Minute,
		MaxConcurrent: maxConcurrent,
		RunTimeout:    time.Minute,
	}}
	return New(due, runner, cfg, zap.NewNop())
}

func waitStarted(t *testing.T, r *blockingRunner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d runs started", i, n)
		}
	}
}

func TestTick_RespectsConcurrencyLimit(t *testing.T) {
	due := &staticDue{due: dueSchedules(3)}
	runner := newBlockingRunner()
	s := newTestScheduler(due, runner, 2)

	dispatched := s.Tick(context.Background())
	assert.Equal(t, 2, dispatched)
	assert.Equal(t, 2, due.lastLimit)
	waitStarted(t, runner, 2)

	// every slot is busy, so the next tick defers everything
	assert.Equal(t, 0, s.Tick(context.Background()))

	close(runner.release)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(2), runner.peak.Load())
	assert.True(t, runner.deadline)
}

func TestTick_ListErrorDispatchesNothing(t *testing.T) {
	due := &staticDue{err: errors.New("mongo down")}
	s := newTestScheduler(due, newBlockingRunner(), 2)
	assert.Equal(t, 0, s.Tick(context.Background()))
}

func TestTick_RunningTenantDoesNotStarveOthers(t *testing.T) {
	schedules := dueSchedules(2)
	long, waiting := schedules[0], schedules[1]
	due := &staticDue{due: []schedule.SyncSchedule{long}}
	runner := newBlockingRunner()
	s := newTestScheduler(due, runner, 2)

	require.Equal(t, 1, s.Tick(context.Background()))
	waitStarted(t, runner, 1)

	// the long run has not recorded yet, so it keeps coming back as due
	due.due = []schedule.SyncSchedule{long, waiting}
	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.Equal(t, 3, due.lastLimit)
	waitStarted(t, runner, 1)

	for i := 0; i < 20; i++ {
		assert.Equal(t, 0, s.Tick(context.Background()))
	}

	close(runner.release)
	require.NoError(t, s.Stop(context.Background()))

	runs := map[primitive.ObjectID]int{}
	for _, id := range runner.ran {
		runs[id]++
	}
	assert.Equal(t, 1, runs[long.TenantID])
	assert.Equal(t, 1, runs[waiting.TenantID])
	assert.True(t, s.sem.TryAcquire(2))
}

func TestTick_FinishedTenantCanRunAgain(t *testing.T) {
	due := &staticDue{due: dueSchedules(1)}
	runner := newBlockingRunner()
	close(runner.release)
	s := newTestScheduler(due, runner, 1)

	require.Equal(t, 1, s.Tick(context.Background()))
	waitStarted(t, runner, 1)
	s.wg.Wait()

	assert.Equal(t, 1, s.Tick(context.Background()))
	waitStarted(t, runner, 1)
	require.NoError(t, s.Stop(context.Background()))
	assert.Len(t, runner.ran, 2)
}

func TestTick_PanickingRunFreesItsSlot(t *testing.T) {
	schedules := dueSchedules(1)
	runner := newBlockingRunner()
	runner.panicOn = schedules[0].TenantID
	s := newTestScheduler(&staticDue{due: schedules}, runner, 1)

	require.Equal(t, 1, s.Tick(context.Background()))
	waitStarted(t, runner, 1)
	require.NoError(t, s.Stop(context.Background()))

	assert.True(t, s.sem.TryAcquire(1))
}

func TestStop_WaitsForInFlightRuns(t *testing.T) {
	runner := newBlockingRunner()
	s := newTestScheduler(&staticDue{due: dueSchedules(1)}, runner, 1)
	require.Equal(t, 1, s.Tick(context.Background()))
	waitStarted(t, runner, 1)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after runs finished")
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&staticDue{}, newBlockingRunner(), 1)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
}
