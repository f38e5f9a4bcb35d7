package webhook

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WebhookType string

const (
	TypeSlack   WebhookType = "SLACK"
	TypeDiscord WebhookType = "DISCORD"
	TypeCustom  WebhookType = "CUSTOM"
)

type AuthType string

const (
	AuthNone   AuthType = "NONE"
	AuthBearer AuthType = "BEARER"
	AuthBasic  AuthType = "BASIC"
)

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "SUCCESS"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// Webhook is a tenant's outbound channel for sync outcome events.
// AuthValue and SigningSecret are stored encrypted.
type Webhook struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID         primitive.ObjectID `json:"tenant_id" bson:"tenant_id"`
	Name             string             `json:"name" bson:"name"`
	URL              string             `json:"url" bson:"url"`
	Type             WebhookType        `json:"type" bson:"type"`
	IsEnabled        bool               `json:"is_enabled" bson:"is_enabled"`
	TriggerOnSuccess bool               `json:"trigger_on_success" bson:"trigger_on_success"`
	TriggerOnError   bool               `json:"trigger_on_error" bson:"trigger_on_error"`
	AuthType         AuthType           `json:"auth_type" bson:"auth_type"`
	AuthValue        string             `json:"-" bson:"auth_value,omitempty"`
	SigningSecret    string             `json:"-" bson:"signing_secret,omitempty"` // HMAC for CUSTOM payloads
	CustomHeaders    map[string]string  `json:"custom_headers,omitempty" bson:"custom_headers,omitempty"`
	RetryEnabled     bool               `json:"retry_enabled" bson:"retry_enabled"`
	MaxRetries       int                `json:"max_retries" bson:"max_retries"`
	RetryDelayMs     int                `json:"retry_delay_ms" bson:"retry_delay_ms"`
	TimeoutMs        int                `json:"timeout_ms" bson:"timeout_ms"`

	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty" bson:"last_triggered_at,omitempty"`
	LastStatus      *DeliveryStatus `json:"last_status,omitempty" bson:"last_status,omitempty"`
	TotalTriggers   int64           `json:"total_triggers" bson:"total_triggers"`
	SuccessTriggers int64           `json:"success_triggers" bson:"success_triggers"`
	FailedTriggers  int64           `json:"failed_triggers" bson:"failed_triggers"`

	CreatedBy string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// MaxAttempts is the total number of POSTs one delivery may make
func (w *Webhook) MaxAttempts() int {
	if w.RetryEnabled && w.MaxRetries > 0 {
		return w.MaxRetries + 1
	}
	return 1
}

// WebhookInput is the create/replace shape. Empty secrets keep the stored ones.
type WebhookInput struct {
	Name             string            `json:"name" validate:"required,max=120"`
	URL              string            `json:"url" validate:"required,url"`
	Type             WebhookType       `json:"type" validate:"required,oneof=SLACK DISCORD CUSTOM"`
	IsEnabled        *bool             `json:"is_enabled"`
	TriggerOnSuccess *bool             `json:"trigger_on_success"`
	TriggerOnError   *bool             `json:"trigger_on_error"`
	AuthType         AuthType          `json:"auth_type" validate:"omitempty,oneof=NONE BEARER BASIC"`
	AuthValue        string            `json:"auth_value"`
	SigningSecret    string            `json:"signing_secret"`
	CustomHeaders    map[string]string `json:"custom_headers"`
	RetryEnabled     *bool             `json:"retry_enabled"`
	MaxRetries       *int              `json:"max_retries" validate:"omitempty,gte=0,lte=10"`
	RetryDelayMs     *int              `json:"retry_delay_ms" validate:"omitempty,gte=0,lte=60000"`
	TimeoutMs        *int              `json:"timeout_ms" validate:"omitempty,gte=100,lte=60000"`
}

// WebhookLog is one delivery attempt
type WebhookLog struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	WebhookID      primitive.ObjectID `json:"webhook_id" bson:"webhook_id"`
	TenantID       primitive.ObjectID `json:"tenant_id" bson:"tenant_id"`
	Event          string             `json:"event" bson:"event"`
	IsTest         bool               `json:"is_test,omitempty" bson:"is_test,omitempty"`
	Attempt        int                `json:"attempt" bson:"attempt"`
	MaxAttempts    int                `json:"max_attempts" bson:"max_attempts"`
	RequestURL     string             `json:"request_url" bson:"request_url"`
	RequestMethod  string             `json:"request_method" bson:"request_method"`
	RequestBody    string             `json:"request_body" bson:"request_body"`
	RequestHeaders string             `json:"request_headers" bson:"request_headers"`
	ResponseStatus *int               `json:"response_status,omitempty" bson:"response_status,omitempty"`
	ResponseBody   string             `json:"response_body,omitempty" bson:"response_body,omitempty"`
	ResponseTimeMs int64              `json:"response_time_ms" bson:"response_time_ms"`
	Status         DeliveryStatus     `json:"status" bson:"status"`
	ErrorMessage   string             `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}
