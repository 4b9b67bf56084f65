// Package services implements the caller-facing mutation surface. Every
// write commits the entity change and its sync-queue item in one local
// transaction, then publishes a saved event with fresh counts.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gstbill/gstbill/internal/dbx"
	"github.com/gstbill/gstbill/internal/events"
	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/store"
	"github.com/gstbill/gstbill/internal/store/syncqueue"
)

// enqueueTx appends a queue item in the caller's transaction. The payload is
// the full entity snapshot for creates and updates; deletes carry no payload.
func enqueueTx(ctx context.Context, tx dbx.DBTX, kind models.EntityKind, entityID string, action models.Action, payload any) error {
	data := json.RawMessage("{}")
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", kind, err)
		}
	}
	return syncqueue.NewSQLiteRepository(tx).Enqueue(ctx, &models.SyncQueueItem{
		ID:         uuid.NewString(),
		EntityType: kind,
		EntityID:   entityID,
		Action:     action,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	})
}

// notifySaved publishes the saved event for a committed mutation. Count
// failures only degrade the notification, never the mutation.
func notifySaved(ctx context.Context, repos *store.Repositories, notifier *events.Notifier, log logging.Logger, kind models.EntityKind, entityID string, action models.Action) {
	counts, err := repos.Counts(ctx)
	if err != nil {
		log.Warn(ctx, "failed to compute counts for saved event", "error", err)
	}
	notifier.Publish(events.Saved{
		Kind:     kind,
		EntityID: entityID,
		Action:   action,
		Counts:   counts,
	})
}
