package catalog

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID   primitive.ObjectID `json:"tenant_id" bson:"tenant_id"`
	ExternalID string             `json:"external_id" bson:"external_id"`
	Title      string             `json:"title" bson:"title"`
	SKU        string             `json:"sku" bson:"sku"`
	Price      float64            `json:"price" bson:"price"`
	Currency   string             `json:"currency" bson:"currency"`
	Inventory  int                `json:"inventory" bson:"inventory"`
	Status     string             `json:"status" bson:"status"`
	ImageURL   string             `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Attributes map[string]string  `json:"attributes,omitempty" bson:"attributes,omitempty"`
	SyncedAt   time.Time          `json:"synced_at" bson:"synced_at"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// ProductFields is the mutable part of a product written by a sync run
type ProductFields struct {
	Title      string
	SKU        string
	Price      float64
	Currency   string
	Inventory  int
	Status     string
	ImageURL   string
	Attributes map[string]string
}
