package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/pkg/nextrun"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ScheduleService interface {
	Get(ctx context.Context, tenantID primitive.ObjectID) (*SyncSchedule, error)
	Upsert(ctx context.Context, tenantID primitive.ObjectID, input ScheduleInput) (*SyncSchedule, error)
	SetEnabled(ctx context.Context, tenantID primitive.ObjectID, enabled bool) (*SyncSchedule, error)
	Delete(ctx context.Context, tenantID primitive.ObjectID) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]SyncSchedule, error)
	// RecordRun stores the run result and the next trigger computed from finishedAt
	RecordRun(ctx context.Context, schedule *SyncSchedule, status models.SyncStatus, finishedAt time.Time) (*time.Time, error)
}

type ScheduleServiceImpl struct {
	Repo       ScheduleRepository
	Calculator nextrun.Calculator
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

func NewScheduleService(repo ScheduleRepository, calculator nextrun.Calculator, logger *zap.Logger) ScheduleService {
	return &ScheduleServiceImpl{
		Repo:       repo,
		Calculator: calculator,
		validate:   validator.New(),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ScheduleServiceImpl) Get(ctx context.Context, tenantID primitive.ObjectID) (*SyncSchedule, error) {
	return s.Repo.Get(ctx, tenantID)
}

func (s *ScheduleServiceImpl) Upsert(ctx context.Context, tenantID primitive.ObjectID, input ScheduleInput) (*SyncSchedule, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if err := s.Calculator.Validate(input.ScheduleExpression, input.Timezone); err != nil {
		return nil, err
	}

	schedule, err := s.Repo.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		schedule = &SyncSchedule{
			TenantID:      tenantID,
			Enabled:       true,
			SyncProducts:  true,
			NotifyOnError: true,
		}
	} else if err != nil {
		return nil, err
	}

	schedule.ScheduleExpression = input.ScheduleExpression
	schedule.Timezone = input.Timezone
	schedule.NotifyEmail = input.NotifyEmail
	applyBool(&schedule.Enabled, input.Enabled)
	applyBool(&schedule.SyncProducts, input.SyncProducts)
	applyBool(&schedule.UpdateFeed, input.UpdateFeed)
	applyBool(&schedule.NotifyOnSuccess, input.NotifyOnSuccess)
	applyBool(&schedule.NotifyOnError, input.NotifyOnError)

	schedule.NextRunAt = nil
	if schedule.Enabled {
		next, err := s.Calculator.Next(schedule.ScheduleExpression, schedule.Timezone, s.now())
		if err != nil {
			return nil, err
		}
		schedule.NextRunAt = &next
	}

	if err := s.Repo.Upsert(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.Info("Sync schedule saved",
		zap.String("tenant_id", tenantID.Hex()),
		zap.String("expression", schedule.ScheduleExpression),
		zap.String("timezone", schedule.Timezone),
		zap.Bool("enabled", schedule.Enabled))
	return schedule, nil
}

func (s *ScheduleServiceImpl) SetEnabled(ctx context.Context, tenantID primitive.ObjectID, enabled bool) (*SyncSchedule, error) {
	schedule, err := s.Repo.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var next *time.Time
	if enabled {
		n, err := s.Calculator.Next(schedule.ScheduleExpression, schedule.Timezone, s.now())
		if err != nil {
			return nil, err
		}
		next = &n
	}

	if err := s.Repo.SetEnabled(ctx, tenantID, enabled, next); err != nil {
		return nil, err
	}

	schedule.Enabled = enabled
	schedule.NextRunAt = next
	return schedule, nil
}

func (s *ScheduleServiceImpl) Delete(ctx context.Context, tenantID primitive.ObjectID) error {
	return s.Repo.Delete(ctx, tenantID)
}

func (s *ScheduleServiceImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]SyncSchedule, error) {
	return s.Repo.ListDue(ctx, now, int64(limit))
}

// RecordRun stores the run result. The next run is computed from the stored
// schedule, not the snapshot taken when the run started, so an edit made
// mid-run keeps its own next_run_at.
func (s *ScheduleServiceImpl) RecordRun(ctx context.Context, snapshot *SyncSchedule, status models.SyncStatus, finishedAt time.Time) (*time.Time, error) {
	schedule, err := s.Repo.Get(ctx, snapshot.TenantID)
	switch {
	case errors.Is(err, ErrNotFound):
		schedule = snapshot
	case err != nil:
		s.logger.Warn("Failed to reload schedule, keeping next run",
			zap.String("tenant_id", snapshot.TenantID.Hex()),
			zap.Error(err))
		schedule = &SyncSchedule{TenantID: snapshot.TenantID}
	}

	var next *time.Time
	if schedule.Enabled {
		n, err := s.Calculator.Next(schedule.ScheduleExpression, schedule.Timezone, finishedAt)
		if err != nil {
			// Keep the previous next_run_at rather than writing garbage
			s.logger.Error("Failed to compute next run",
				zap.String("tenant_id", schedule.TenantID.Hex()),
				zap.String("expression", schedule.ScheduleExpression),
				zap.Error(err))
		} else {
			next = &n
		}
	}

	if err := s.Repo.RecordRun(ctx, schedule.TenantID, status, finishedAt, next); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return next, nil
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
