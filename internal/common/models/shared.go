package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// IsFailure is true for FAILED and PARTIAL, which alert as errors
func (s SyncStatus) IsFailure() bool {
	return s == SyncStatusFailed || s == SyncStatusPartial
}

type SyncType string

const (
	SyncTypeScheduled SyncType = "SCHEDULED"
	SyncTypeManual    SyncType = "MANUAL"
)

type WebhookEvent string

const (
	EventSyncSuccess WebhookEvent = "sync.success"
	EventSyncError   WebhookEvent = "sync.error"
)

// EventForStatus maps a finished run onto the webhook event it fires
func EventForStatus(status SyncStatus) WebhookEvent {
	if status == SyncStatusSuccess {
		return EventSyncSuccess
	}
	return EventSyncError
}

// SyncOutcome is the result of one run, passed by value through the post-run stages
type SyncOutcome struct {
	TenantID    primitive.ObjectID `json:"tenant_id"`
	StoreName   string             `json:"store_name,omitempty"`
	SyncType    SyncType           `json:"sync_type"`
	Status      SyncStatus         `json:"status"`
	Skipped     bool               `json:"skipped,omitempty"`
	ItemsTotal  int                `json:"items_total"`
	ItemsSynced int                `json:"items_synced"`
	ItemsFailed int                `json:"items_failed"`
	ErrorLog    string             `json:"error_log,omitempty"`
	Duration    time.Duration      `json:"duration"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	NextRunAt   *time.Time         `json:"next_run_at,omitempty"`
}

// Event returns the webhook event matching the outcome
func (o SyncOutcome) Event() WebhookEvent {
	return EventForStatus(o.Status)
}
