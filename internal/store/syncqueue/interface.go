package syncqueue

import (
	"context"

	"github.com/gstbill/gstbill/internal/models"
)

// Repository is the durable, append-only log of pending mutations. Only the
// UI path enqueues and only the sync manager dequeues, so the embedded
// store's per-call atomicity is the only locking required.
type Repository interface {
	// Enqueue appends an item durably.
	Enqueue(ctx context.Context, item *models.SyncQueueItem) error

	// Pending returns all items ordered by created_at ascending, preserving
	// the causal order of dependent writes.
	Pending(ctx context.Context) ([]models.SyncQueueItem, error)

	// Remove deletes an item after successful delivery or permanent drop.
	Remove(ctx context.Context, id string) error

	// BumpRetry increments an item's retry counter durably.
	BumpRetry(ctx context.Context, id string) error

	// Count returns the number of pending items.
	Count(ctx context.Context) (int, error)
}
