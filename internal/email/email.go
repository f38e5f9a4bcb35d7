package emails

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmailStatus string

const (
	EmailQueued EmailStatus = "queued"
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// Email is the audit record of one outbound message
type Email struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  primitive.ObjectID `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	From      string             `bson:"from" json:"from"`
	To        []string           `bson:"to" json:"to"`
	Subject   string             `bson:"subject" json:"subject"`
	HtmlBody  string             `bson:"htmlBody,omitempty" json:"htmlBody,omitempty"`
	Status    EmailStatus        `bson:"status" json:"status"`
	ErrorMsg  string             `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	SentAt    *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
}

// Sender delivers one HTML message
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}
