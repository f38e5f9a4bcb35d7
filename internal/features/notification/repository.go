package notification

import (
	"context"
	"errors"
	"time"

	"go-catalog-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Create(ctx context.Context, n *AdminNotification) error
	List(ctx context.Context, unreadOnly bool, page, limit int64) ([]AdminNotification, int64, error)
	MarkAsRead(ctx context.Context, id primitive.ObjectID) error
	UnreadCount(ctx context.Context) (int64, error)
}

type NotificationRepositoryImpl struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *database.MongodbDB) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{
		collection: db.DB.Collection("admin_notifications"),
	}
}

func (r *NotificationRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_read", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *AdminNotification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

func (r *NotificationRepositoryImpl) List(ctx context.Context, unreadOnly bool, page, limit int64) ([]AdminNotification, int64, error) {
	filter := bson.M{}
	if unreadOnly {
		filter["is_read"] = false
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

	notifications := []AdminNotification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"is_read": true, "read_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) UnreadCount(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"is_read": false})
}
