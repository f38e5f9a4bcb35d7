package credential

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TenantCredential is the per-tenant connection to the external store.
// ClientSecret is always stored encrypted.
type TenantCredential struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID     primitive.ObjectID `json:"tenant_id" bson:"tenant_id"`
	StoreName    string             `json:"store_name" bson:"store_name"`
	APIURL       string             `json:"api_url" bson:"api_url"`
	ClientID     string             `json:"client_id" bson:"client_id"`
	ClientSecret string             `json:"-" bson:"client_secret"`
	IsActive     bool               `json:"is_active" bson:"is_active"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// CredentialInput is the write shape; an empty ClientSecret keeps the stored one
type CredentialInput struct {
	StoreName    string `json:"store_name" validate:"required,max=120"`
	APIURL       string `json:"api_url" validate:"required,url"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret"`
	IsActive     *bool  `json:"is_active"`
}

// CredentialView is returned to the dashboard; the secret never leaves the service
type CredentialView struct {
	TenantCredential
	HasSecret bool `json:"has_secret"`
}
