package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

const (
	TypeSyncFailed       = "SYNC_FAILED"
	TypeCredentialError  = "CREDENTIAL_ERROR"
	TypeSourceFetchError = "SOURCE_FETCH_ERROR"
	TypeStorageError     = "STORAGE_ERROR"
)

// AdminNotification is an operator-facing alert, independent of tenant notify settings
type AdminNotification struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Type      string                 `bson:"type" json:"type"`
	Title     string                 `bson:"title" json:"title"`
	Message   string                 `bson:"message" json:"message"`
	Severity  Severity               `bson:"severity" json:"severity"`
	Link      string                 `bson:"link,omitempty" json:"link,omitempty"`
	Metadata  map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IsRead    bool                   `bson:"is_read" json:"is_read"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
	ReadAt    *time.Time             `bson:"read_at,omitempty" json:"read_at,omitempty"`
}
