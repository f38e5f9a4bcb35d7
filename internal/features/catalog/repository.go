package catalog

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

// ErrEmptyExternalID rejects products the source sent without an id
var ErrEmptyExternalID = errors.New("product has no external id")

// Store persists reconciled products. Every write is scoped by tenant.
type Store interface {
	UpsertByExternalID(ctx context.Context, tenantID primitive.ObjectID, externalID string, fields ProductFields) (*Product, error)
	CountByTenant(ctx context.Context, tenantID primitive.ObjectID) (int64, error)
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *database.MongodbDB) *MongoStore {
	return &MongoStore{
		collection: db.DB.Collection("products"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) UpsertByExternalID(ctx context.Context, tenantID primitive.ObjectID, externalID string, fields ProductFields) (*Product, error) {
	if externalID == "" {
		return nil, ErrEmptyExternalID
	}

	now := time.Now()
	filter := bson.M{"tenant_id": tenantID, "external_id": externalID}
	update := bson.M{
		"$set": bson.M{
			"title":      fields.Title,
			"sku":        fields.SKU,
			"price":      fields.Price,
			"currency":   fields.Currency,
			"inventory":  fields.Inventory,
			"status":     fields.Status,
			"image_url":  fields.ImageURL,
			"attributes": fields.Attributes,
			"synced_at":  now,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var product Product
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *MongoStore) CountByTenant(ctx context.Context, tenantID primitive.ObjectID) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{"tenant_id": tenantID})
}
