package sync

import (
	"time"

	"go-catalog-sync/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncLog is the immutable record of one executed run
type SyncLog struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID    primitive.ObjectID `json:"tenant_id" bson:"tenant_id"`
	SyncType    models.SyncType    `json:"sync_type" bson:"sync_type"`
	Status      models.SyncStatus  `json:"status" bson:"status"`
	ItemsTotal  int                `json:"items_total" bson:"items_total"`
	ItemsSynced int                `json:"items_synced" bson:"items_synced"`
	ItemsFailed int                `json:"items_failed" bson:"items_failed"`
	ErrorLog    string             `json:"error_log,omitempty" bson:"error_log,omitempty"`
	DurationMs  int64              `json:"duration_ms" bson:"duration_ms"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

func newSyncLog(o models.SyncOutcome) *SyncLog {
	return &SyncLog{
		TenantID:    o.TenantID,
		SyncType:    o.SyncType,
		Status:      o.Status,
		ItemsTotal:  o.ItemsTotal,
		ItemsSynced: o.ItemsSynced,
		ItemsFailed: o.ItemsFailed,
		ErrorLog:    o.ErrorLog,
		DurationMs:  o.Duration.Milliseconds(),
		CreatedAt:   o.FinishedAt,
	}
}
