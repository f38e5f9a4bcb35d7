package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const createProductsTable = `
CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	external_id TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	sku         TEXT NOT NULL DEFAULT '',
	price       NUMERIC(14,4) NOT NULL DEFAULT 0,
	currency    TEXT NOT NULL DEFAULT '',
	inventory   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	attributes  JSONB,
	synced_at   TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, external_id)
)`

const upsertProduct = `
INSERT INTO products (tenant_id, external_id, title, sku, price, currency, inventory, status, image_url, attributes, synced_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $11)
ON CONFLICT (tenant_id, external_id) DO UPDATE SET
	title = EXCLUDED.title,
	sku = EXCLUDED.sku,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	inventory = EXCLUDED.inventory,
	status = EXCLUDED.status,
	image_url = EXCLUDED.image_url,
	attributes = EXCLUDED.attributes,
	synced_at = EXCLUDED.synced_at,
	updated_at = EXCLUDED.updated_at
RETURNING created_at`

// PostgresStore keeps the catalog in a relational table for downstream reporting
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %v", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnsureIndexes(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %v", err)
	}
	_, err := s.db.ExecContext(ctx, createProductsTable)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) UpsertByExternalID(ctx context.Context, tenantID primitive.ObjectID, externalID string, fields ProductFields) (*Product, error) {
	if externalID == "" {
		return nil, ErrEmptyExternalID
	}

	var attrs []byte
	if len(fields.Attributes) > 0 {
		var err error
		if attrs, err = json.Marshal(fields.Attributes); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, upsertProduct,
		tenantID.Hex(), externalID, fields.Title, fields.SKU, fields.Price, fields.Currency,
		fields.Inventory, fields.Status, fields.ImageURL, nullableJSON(attrs), now,
	).Scan(&createdAt)
	if err != nil {
		return nil, err
	}

	return &Product{
		TenantID:   tenantID,
		ExternalID: externalID,
		Title:      fields.Title,
		SKU:        fields.SKU,
		Price:      fields.Price,
		Currency:   fields.Currency,
		Inventory:  fields.Inventory,
		Status:     fields.Status,
		ImageURL:   fields.ImageURL,
		Attributes: fields.Attributes,
		SyncedAt:   now,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) CountByTenant(ctx context.Context, tenantID primitive.ObjectID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE tenant_id = $1", tenantID.Hex()).Scan(&n)
	return n, err
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
