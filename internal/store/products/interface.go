package products

import (
	"context"

	"github.com/gstbill/gstbill/internal/models"
)

// Repository describes product persistence in the local store.
type Repository interface {
	// Upsert inserts or replaces a product by id.
	Upsert(ctx context.Context, p *models.Product) error

	// GetByID returns a product regardless of its tombstone state.
	GetByID(ctx context.Context, id string) (*models.Product, error)

	// GetAll returns all non-deleted products.
	GetAll(ctx context.Context) ([]models.Product, error)

	// MarkDeleted tombstones a product so the deletion can propagate.
	MarkDeleted(ctx context.Context, id string) error

	// MarkSynced flags a product as acknowledged by the remote backend.
	MarkSynced(ctx context.Context, id string) error

	// BulkUpsertSynced applies pulled remote rows, forcing is_synced=true
	// and deleted=false on every one of them.
	BulkUpsertSynced(ctx context.Context, rows []models.Product) error

	// Count returns the number of non-deleted products.
	Count(ctx context.Context) (int, error)
}
