package catalog

import (
	"context"
	"fmt"
	"time"

	"go-catalog-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// FeedSnapshot is the published summary of a tenant's catalog after a sync
type FeedSnapshot struct {
	TenantID     primitive.ObjectID `json:"tenant_id" bson:"tenant_id"`
	ProductCount int64              `json:"product_count" bson:"product_count"`
	RefreshedAt  time.Time          `json:"refreshed_at" bson:"refreshed_at"`
}

// FeedRefresher rebuilds the tenant feed from the current catalog
type FeedRefresher struct {
	store      Store
	collection *mongo.Collection
	logger     *zap.Logger
	now        func() time.Time
}

func NewFeedRefresher(store Store, db *database.MongodbDB, logger *zap.Logger) *FeedRefresher {
	return &FeedRefresher{
		store:      store,
		collection: db.DB.Collection("catalog_feeds"),
		logger:     logger,
		now:        time.Now,
	}
}

func (f *FeedRefresher) EnsureIndexes(ctx context.Context) error {
	_, err := f.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (f *FeedRefresher) Refresh(ctx context.Context, tenantID primitive.ObjectID) error {
	count, err := f.store.CountByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}

	snapshot := FeedSnapshot{TenantID: tenantID, ProductCount: count, RefreshedAt: f.now()}
	_, err = f.collection.UpdateOne(ctx,
		bson.M{"tenant_id": tenantID},
		bson.M{"$set": snapshot},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write feed snapshot: %w", err)
	}

	f.logger.Info("Catalog feed refreshed",
		zap.String("tenant_id", tenantID.Hex()),
		zap.Int64("product_count", count))
	return nil
}
