package webhook

import (
	"context"
	"errors"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("webhook not found")

type WebhookRepository interface {
	Create(ctx context.Context, webhook *Webhook) error
	Get(ctx context.Context, tenantID, id primitive.ObjectID) (*Webhook, error)
	List(ctx context.Context, tenantID primitive.ObjectID) ([]Webhook, error)
	ListForEvent(ctx context.Context, tenantID primitive.ObjectID, event models.WebhookEvent) ([]Webhook, error)
	Update(ctx context.Context, webhook *Webhook) error
	Delete(ctx context.Context, tenantID, id primitive.ObjectID) error
	RecordDelivery(ctx context.Context, id primitive.ObjectID, status DeliveryStatus, at time.Time) error
}

type WebhookLogRepository interface {
	Create(ctx context.Context, log *WebhookLog) error
	ListByWebhook(ctx context.Context, tenantID, webhookID primitive.ObjectID, status DeliveryStatus, page, limit int64) ([]WebhookLog, int64, error)
}

type WebhookRepositoryImpl struct {
	collection *mongo.Collection
}

func NewWebhookRepository(db *database.MongodbDB) *WebhookRepositoryImpl {
	return &WebhookRepositoryImpl{
		collection: db.DB.Collection("webhooks"),
	}
}

func (r *WebhookRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "is_enabled", Value: 1}},
	})
	return err
}

func (r *WebhookRepositoryImpl) Create(ctx context.Context, webhook *Webhook) error {
	if webhook.ID.IsZero() {
		webhook.ID = primitive.NewObjectID()
	}
	webhook.CreatedAt = time.Now()
	webhook.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, webhook)
	return err
}

func (r *WebhookRepositoryImpl) Get(ctx context.Context, tenantID, id primitive.ObjectID) (*Webhook, error) {
	var webhook Webhook
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&webhook)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &webhook, nil
}

func (r *WebhookRepositoryImpl) List(ctx context.Context, tenantID primitive.ObjectID) ([]Webhook, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"tenant_id": tenantID}, opts)
}

func (r *WebhookRepositoryImpl) ListForEvent(ctx context.Context, tenantID primitive.ObjectID, event models.WebhookEvent) ([]Webhook, error) {
	filter := bson.M{
		"tenant_id":  tenantID,
		"is_enabled": true,
	}
	if event == models.EventSyncSuccess {
		filter["trigger_on_success"] = true
	} else {
		filter["trigger_on_error"] = true
	}

	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *WebhookRepositoryImpl) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Webhook, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	webhooks := []Webhook{}
	if err = cursor.All(ctx, &webhooks); err != nil {
		return nil, err
	}

	return webhooks, nil
}

// Update replaces configuration fields; delivery stats are left alone
func (r *WebhookRepositoryImpl) Update(ctx context.Context, webhook *Webhook) error {
	webhook.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": webhook.ID, "tenant_id": webhook.TenantID},
		bson.M{"$set": bson.M{
			"name":               webhook.Name,
			"url":                webhook.URL,
			"type":               webhook.Type,
			"is_enabled":         webhook.IsEnabled,
			"trigger_on_success": webhook.TriggerOnSuccess,
			"trigger_on_error":   webhook.TriggerOnError,
			"auth_type":          webhook.AuthType,
			"auth_value":         webhook.AuthValue,
			"signing_secret":     webhook.SigningSecret,
			"custom_headers":     webhook.CustomHeaders,
			"retry_enabled":      webhook.RetryEnabled,
			"max_retries":        webhook.MaxRetries,
			"retry_delay_ms":     webhook.RetryDelayMs,
			"timeout_ms":         webhook.TimeoutMs,
			"updated_at":         webhook.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WebhookRepositoryImpl) Delete(ctx context.Context, tenantID, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDelivery bumps counters once per delivery, not per attempt
func (r *WebhookRepositoryImpl) RecordDelivery(ctx context.Context, id primitive.ObjectID, status DeliveryStatus, at time.Time) error {
	_, err := r.collection.UpdateByID(ctx, id, deliveryUpdate(status, at))
	return err
}

func deliveryUpdate(status DeliveryStatus, at time.Time) bson.M {
	inc := bson.M{"total_triggers": 1}
	if status == DeliverySuccess {
		inc["success_triggers"] = 1
	} else {
		inc["failed_triggers"] = 1
	}
	return bson.M{
		"$inc": inc,
		"$set": bson.M{"last_triggered_at": at, "last_status": status},
	}
}

type WebhookLogRepositoryImpl struct {
	collection    *mongo.Collection
	retentionDays int
}

func NewWebhookLogRepository(db *database.MongodbDB, cfg *config.Config) *WebhookLogRepositoryImpl {
	return &WebhookLogRepositoryImpl{
		collection:    db.DB.Collection("webhook_logs"),
		retentionDays: cfg.LogRetentionDays,
	}
}

func (r *WebhookLogRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "webhook_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(database.RetentionTTL(r.retentionDays)),
		},
	})
	return err
}

func (r *WebhookLogRepositoryImpl) Create(ctx context.Context, log *WebhookLog) error {
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, log)
	return err
}

func (r *WebhookLogRepositoryImpl) ListByWebhook(ctx context.Context, tenantID, webhookID primitive.ObjectID, status DeliveryStatus, page, limit int64) ([]WebhookLog, int64, error) {
	filter := bson.M{"webhook_id": webhookID, "tenant_id": tenantID}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	logs := []WebhookLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
