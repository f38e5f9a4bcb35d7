package credential

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

var ErrNotFound = errors.New("credentials not configured")

type CredentialRepository interface {
	GetByTenant(ctx context.Context, tenantID primitive.ObjectID) (*TenantCredential, error)
	Upsert(ctx context.Context, cred *TenantCredential) error
}

type CredentialRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCredentialRepository(db *database.MongodbDB) *CredentialRepositoryImpl {
	return &CredentialRepositoryImpl{
		collection: db.DB.Collection("tenant_credentials"),
	}
}

func (r *CredentialRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *CredentialRepositoryImpl) GetByTenant(ctx context.Context, tenantID primitive.ObjectID) (*TenantCredential, error) {
	var cred TenantCredential
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepositoryImpl) Upsert(ctx context.Context, cred *TenantCredential) error {
	now := time.Now()
	cred.UpdatedAt = now

	update := bson.M{
		"$set": bson.M{
			"store_name":    cred.StoreName,
			"api_url":       cred.APIURL,
			"client_id":     cred.ClientID,
			"client_secret": cred.ClientSecret,
			"is_active":     cred.IsActive,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"tenant_id":  cred.TenantID,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return r.collection.FindOneAndUpdate(ctx, bson.M{"tenant_id": cred.TenantID}, update, opts).Decode(cred)
}
