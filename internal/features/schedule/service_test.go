package schedule

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/middleware"
	"go-catalog-sync/pkg/nextrun"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memoryRepo struct {
	byTenant map[primitive.ObjectID]*SyncSchedule
	upserts  int
	recorded []recordedRun
}

type recordedRun struct {
	status    models.SyncStatus
	nextRunAt *time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byTenant: map[primitive.ObjectID]*SyncSchedule{}}
}

func (m *memoryRepo) Get(ctx context.Context, tenantID primitive.ObjectID) (*SyncSchedule, error) {
	s, ok := m.byTenant[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryRepo) Upsert(ctx context.Context, schedule *SyncSchedule) error {
	m.upserts++
	cp := *schedule
	m.byTenant[schedule.TenantID] = &cp
	return nil
}

func (m *memoryRepo) SetEnabled(ctx context.Context, tenantID primitive.ObjectID, enabled bool, nextRunAt *time.Time) error {
	s, ok := m.byTenant[tenantID]
	if !ok {
		return ErrNotFound
	}
	s.Enabled = enabled
	s.NextRunAt = nextRunAt
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, tenantID primitive.ObjectID) error {
	if _, ok := m.byTenant[tenantID]; !ok {
		return ErrNotFound
	}
	delete(m.byTenant, tenantID)
	return nil
}

func (m *memoryRepo) ListDue(ctx context.Context, now time.Time, limit int64) ([]SyncSchedule, error) {
	var out []SyncSchedule
	for _, s := range m.byTenant {
		if s.Enabled && (s.NextRunAt == nil || !s.NextRunAt.After(now)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memoryRepo) RecordRun(ctx context.Context, tenantID primitive.ObjectID, status models.SyncStatus, finishedAt time.Time, nextRunAt *time.Time) error {
	m.recorded = append(m.recorded, recordedRun{status: status, nextRunAt: nextRunAt})
	return nil
}

var fixedNow = time.Date(2024, 3, 10, 13, 2, 0, 0, time.UTC)

func newTestService() (*ScheduleServiceImpl, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewScheduleService(repo, nextrun.NewCronCalculator(), zap.NewNop()).(*ScheduleServiceImpl)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func TestUpsert_ComputesNextRun(t *testing.T) {
	svc, repo := newTestService()
	tenantID := primitive.NewObjectID()

	s, err := svc.Upsert(context.Background(), tenantID, ScheduleInput{ScheduleExpression: "0 */6 * * *"})
	require.NoError(t, err)

	require.NotNil(t, s.NextRunAt)
	assert.Equal(t, time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC), s.NextRunAt.UTC())
	assert.True(t, s.Enabled)
	assert.True(t, s.SyncProducts)
	assert.True(t, s.NotifyOnError)
	assert.Equal(t, 1, repo.upserts)
}

func TestUpsert_InvalidExpressionPersistsNothing(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Upsert(context.Background(), primitive.NewObjectID(), ScheduleInput{ScheduleExpression: "every tuesday"})
	assert.ErrorIs(t, err, nextrun.ErrInvalidScheduleExpression)

	_, err = svc.Upsert(context.Background(), primitive.NewObjectID(), ScheduleInput{ScheduleExpression: "0 * * * *", Timezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, nextrun.ErrInvalidScheduleExpression)

	assert.Equal(t, 0, repo.upserts)
}

func TestUpsert_DisabledClearsNextRun(t *testing.T) {
	svc, _ := newTestService()
	disabled := false

	s, err := svc.Upsert(context.Background(), primitive.NewObjectID(), ScheduleInput{ScheduleExpression: "0 * * * *", Enabled: &disabled})
	require.NoError(t, err)
	assert.Nil(t, s.NextRunAt)
}

func TestSetEnabled(t *testing.T) {
	svc, repo := newTestService()
	tenantID := primitive.NewObjectID()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, tenantID, ScheduleInput{ScheduleExpression: "30 * * * *"})
	require.NoError(t, err)

	s, err := svc.SetEnabled(ctx, tenantID, false)
	require.NoError(t, err)
	assert.Nil(t, s.NextRunAt)
	assert.Nil(t, repo.byTenant[tenantID].NextRunAt)

	s, err = svc.SetEnabled(ctx, tenantID, true)
	require.NoError(t, err)
	require.NotNil(t, s.NextRunAt)
	assert.Equal(t, time.Date(2024, 3, 10, 13, 30, 0, 0, time.UTC), s.NextRunAt.UTC())

	_, err = svc.SetEnabled(ctx, primitive.NewObjectID(), true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRun_NextFromCompletionTime(t *testing.T) {
	svc, repo := newTestService()
	schedule := &SyncSchedule{TenantID: primitive.NewObjectID(), Enabled: true, ScheduleExpression: "0 */6 * * *"}

	next, err := svc.RecordRun(context.Background(), schedule, models.SyncStatusFailed, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC), next.UTC())

	require.Len(t, repo.recorded, 1)
	assert.Equal(t, models.SyncStatusFailed, repo.recorded[0].status)
}

func TestRecordRun_UsesExpressionEditedDuringRun(t *testing.T) {
	svc, repo := newTestService()
	tenantID := primitive.NewObjectID()

	snapshot, err := svc.Upsert(context.Background(), tenantID, ScheduleInput{ScheduleExpression: "0 */6 * * *"})
	require.NoError(t, err)

	edited, err := svc.Upsert(context.Background(), tenantID, ScheduleInput{ScheduleExpression: "30 * * * *"})
	require.NoError(t, err)
	require.NotNil(t, edited.NextRunAt)

	next, err := svc.RecordRun(context.Background(), snapshot, models.SyncStatusSuccess, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 3, 10, 13, 30, 0, 0, time.UTC), next.UTC())
	assert.Equal(t, edited.NextRunAt.UTC(), next.UTC())

	require.Len(t, repo.recorded, 1)
	assert.Equal(t, next, repo.recorded[0].nextRunAt)
}

func TestRecordRun_DisabledDuringRunLeavesNextUnset(t *testing.T) {
	svc, repo := newTestService()
	tenantID := primitive.NewObjectID()

	snapshot, err := svc.Upsert(context.Background(), tenantID, ScheduleInput{ScheduleExpression: "0 */6 * * *"})
	require.NoError(t, err)
	_, err = svc.SetEnabled(context.Background(), tenantID, false)
	require.NoError(t, err)

	next, err := svc.RecordRun(context.Background(), snapshot, models.SyncStatusSuccess, fixedNow)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, repo.recorded, 1)
	assert.Nil(t, repo.recorded[0].nextRunAt)
}

func TestRecordRun_BadExpressionKeepsPreviousNext(t *testing.T) {
	svc, repo := newTestService()
	schedule := &SyncSchedule{TenantID: primitive.NewObjectID(), Enabled: true, ScheduleExpression: "bogus"}

	next, err := svc.RecordRun(context.Background(), schedule, models.SyncStatusSuccess, fixedNow)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, repo.recorded, 1)
	assert.Nil(t, repo.recorded[0].nextRunAt)
}

func TestRecordRunUpdate_Counters(t *testing.T) {
	next := fixedNow.Add(time.Hour)

	success := recordRunUpdate(models.SyncStatusSuccess, fixedNow, &next)
	assert.Equal(t, bson.M{"total_runs": 1, "success_runs": 1}, success["$inc"])
	assert.Equal(t, next, success["$set"].(bson.M)["next_run_at"])

	partial := recordRunUpdate(models.SyncStatusPartial, fixedNow, nil)
	assert.Equal(t, bson.M{"total_runs": 1, "failed_runs": 1}, partial["$inc"])
	_, hasNext := partial["$set"].(bson.M)["next_run_at"]
	assert.False(t, hasNext)
}

func TestDueFilter(t *testing.T) {
	f := dueFilter(fixedNow)
	assert.Equal(t, true, f["enabled"])
	assert.Len(t, f["$or"], 2)
}

func TestScheduleApi_InvalidExpressionIs400(t *testing.T) {
	svc, _ := newTestService()
	app := fiber.New()
	NewScheduleApi(NewScheduleController(svc), &config.Config{SkipAuth: true}).Setup(app)

	req := httptest.NewRequest("PUT", "/api/sync/schedule", strings.NewReader(`{"schedule_expression":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, primitive.NewObjectID().Hex())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/sync/schedule", nil)
	req.Header.Set(middleware.TenantHeader, primitive.NewObjectID().Hex())
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
