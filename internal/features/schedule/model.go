package schedule

import (
	"time"

	"go-catalog-sync/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultExpression = "0 */6 * * *"

type SyncSchedule struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID           primitive.ObjectID `json:"tenant_id" bson:"tenant_id"`
	Enabled            bool               `json:"enabled" bson:"enabled"`
	ScheduleExpression string             `json:"schedule_expression" bson:"schedule_expression"`
	Timezone           string             `json:"timezone" bson:"timezone"`
	SyncProducts       bool               `json:"sync_products" bson:"sync_products"`
	UpdateFeed         bool               `json:"update_feed" bson:"update_feed"`
	NotifyOnSuccess    bool               `json:"notify_on_success" bson:"notify_on_success"`
	NotifyOnError      bool               `json:"notify_on_error" bson:"notify_on_error"`
	NotifyEmail        string             `json:"notify_email,omitempty" bson:"notify_email,omitempty"`

	LastRunAt   *time.Time         `json:"last_run_at,omitempty" bson:"last_run_at,omitempty"`
	LastStatus  *models.SyncStatus `json:"last_status,omitempty" bson:"last_status,omitempty"`
	NextRunAt   *time.Time         `json:"next_run_at,omitempty" bson:"next_run_at,omitempty"`
	TotalRuns   int64              `json:"total_runs" bson:"total_runs"`
	SuccessRuns int64              `json:"success_runs" bson:"success_runs"`
	FailedRuns  int64              `json:"failed_runs" bson:"failed_runs"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ScheduleInput is the write shape; nil fields keep their current value
type ScheduleInput struct {
	Enabled            *bool  `json:"enabled"`
	ScheduleExpression string `json:"schedule_expression" validate:"required"`
	Timezone           string `json:"timezone"`
	SyncProducts       *bool  `json:"sync_products"`
	UpdateFeed         *bool  `json:"update_feed"`
	NotifyOnSuccess    *bool  `json:"notify_on_success"`
	NotifyOnError      *bool  `json:"notify_on_error"`
	NotifyEmail        string `json:"notify_email" validate:"omitempty,email"`
}
