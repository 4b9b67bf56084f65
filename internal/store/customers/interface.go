package customers

import (
	"context"

	"github.com/gstbill/gstbill/internal/models"
)

// Repository describes customer persistence in the local store. The contract
// mirrors the product repository: tombstone deletes, a synced flag, and a
// forced-synced bulk upsert for the pull path.
type Repository interface {
	Upsert(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	GetAll(ctx context.Context) ([]models.Customer, error)
	MarkDeleted(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id string) error
	BulkUpsertSynced(ctx context.Context, rows []models.Customer) error
	Count(ctx context.Context) (int, error)
}
