package events

import (
	"context"
	"encoding/json"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Publisher announces finished sync runs to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, outcome models.SyncOutcome) error
	Close() error
}

// OutcomeEvent is the message value written for each finished run
type OutcomeEvent struct {
	ID          string              `json:"id"`
	Event       models.WebhookEvent `json:"event"`
	TenantID    string              `json:"tenant_id"`
	SyncType    models.SyncType     `json:"sync_type"`
	Status      models.SyncStatus   `json:"status"`
	ItemsTotal  int                 `json:"items_total"`
	ItemsSynced int                 `json:"items_synced"`
	ItemsFailed int                 `json:"items_failed"`
	DurationMs  int64               `json:"duration_ms"`
	NextRunAt   *time.Time          `json:"next_run_at,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

func newOutcomeEvent(o models.SyncOutcome) OutcomeEvent {
	ts := o.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return OutcomeEvent{
		ID:          uuid.NewString(),
		Event:       o.Event(),
		TenantID:    o.TenantID.Hex(),
		SyncType:    o.SyncType,
		Status:      o.Status,
		ItemsTotal:  o.ItemsTotal,
		ItemsSynced: o.ItemsSynced,
		ItemsFailed: o.ItemsFailed,
		DurationMs:  o.Duration.Milliseconds(),
		NextRunAt:   o.NextRunAt,
		Timestamp:   ts.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes outcome events keyed by tenant so a tenant's runs stay ordered
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, outcome models.SyncOutcome) error {
	event := newOutcomeEvent(outcome)
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.TenantID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Event)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
			{Key: "schema_version", Value: []byte("1.0")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish sync outcome",
			zap.String("tenant_id", event.TenantID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Published sync outcome",
		zap.String("tenant_id", event.TenantID),
		zap.String("status", string(event.Status)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.SyncOutcome) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

// NewPublisher selects Kafka when brokers are configured and closes the writer on stop
func NewPublisher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, sync outcome events disabled")
		return NopPublisher{}
	}

	p := NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.Close()
		},
	})
	logger.Info("Publishing sync outcomes to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic))
	return p
}
