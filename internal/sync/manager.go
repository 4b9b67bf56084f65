// Package sync orchestrates the push/pull cycle between the local store and
// the remote backend: draining the durable queue, reconciling pulls, retry
// accounting, and the connectivity-driven triggers.
package sync

import (
	"context"
	"sync/atomic"

	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/remote"
	"github.com/gstbill/gstbill/internal/store"
)

// MaxRetries is the per-item retry ceiling. An item whose retry count
// reaches it is dropped permanently so one poison mutation cannot block the
// queue forever.
const MaxRetries = 5

// Manager runs sync cycles. At most one cycle is in flight at a time; a
// trigger arriving mid-cycle is a no-op and the next timer tick picks up
// whatever that cycle missed.
type Manager struct {
	repos    *store.Repositories
	backend  remote.Backend
	log      logging.Logger
	handlers map[models.EntityKind]handler
	syncing  atomic.Bool
}

func NewManager(repos *store.Repositories, backend remote.Backend, log logging.Logger) *Manager {
	return &Manager{
		repos:    repos,
		backend:  backend,
		log:      log.With("component", "sync"),
		handlers: newRegistry(repos, backend),
	}
}

// Syncing reports whether a cycle is currently in flight.
func (m *Manager) Syncing() bool {
	return m.syncing.Load()
}

// Sync runs one full cycle: drain the queue, then pull remote state. Every
// cycle-level error is logged and swallowed; the next trigger retries from
// scratch, which is safe because upserts are idempotent and the queue is
// durable.
func (m *Manager) Sync(ctx context.Context) {
	if !m.syncing.CompareAndSwap(false, true) {
		m.log.Debug(ctx, "sync already in progress, skipping trigger")
		return
	}
	defer m.syncing.Store(false)

	if err := m.drain(ctx); err != nil {
		m.log.Error(ctx, "sync cycle aborted while draining", "error", err)
		return
	}
	if err := m.pull(ctx); err != nil {
		m.log.Error(ctx, "sync cycle aborted while pulling", "error", err)
	}
}

// drain pushes pending queue items sequentially in created_at order,
// preserving per-entity causal order. Item-level failures bump the retry
// counter; queue-level failures abort the cycle.
func (m *Manager) drain(ctx context.Context) error {
	items, err := m.repos.Queue.Pending(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	m.log.Info(ctx, "draining sync queue", "pending", len(items))

	for i := range items {
		item := &items[i]
		h, ok := m.handlers[item.EntityType]
		if !ok {
			// unknown kind cannot ever succeed; drop it
			m.log.Error(ctx, "dropping queue item of unknown entity type",
				"entity_type", item.EntityType, "entity_id", item.EntityID)
			if err := m.repos.Queue.Remove(ctx, item.ID); err != nil {
				return err
			}
			continue
		}

		if err := h.push(ctx, item); err != nil {
			m.recordFailure(ctx, item, err)
			continue
		}

		if err := m.repos.Queue.Remove(ctx, item.ID); err != nil {
			return err
		}
		if err := h.markSynced(ctx, item.EntityID); err != nil {
			m.log.Warn(ctx, "failed to mark entity synced",
				"entity_id", item.EntityID, "error", err)
		}
	}
	return nil
}

// recordFailure bumps the item's retry counter and evicts it permanently
// once the ceiling is reached.
func (m *Manager) recordFailure(ctx context.Context, item *models.SyncQueueItem, pushErr error) {
	item.RetryCount++
	if item.RetryCount >= MaxRetries {
		m.log.Error(ctx, "dropping queue item after retry ceiling",
			"entity_type", item.EntityType, "entity_id", item.EntityID,
			"action", item.Action, "retries", item.RetryCount, "error", pushErr)
		if err := m.repos.Queue.Remove(ctx, item.ID); err != nil {
			m.log.Error(ctx, "failed to drop poison queue item", "error", err)
		}
		return
	}

	m.log.Warn(ctx, "queue item push failed",
		"entity_type", item.EntityType, "entity_id", item.EntityID,
		"retries", item.RetryCount, "error", pushErr)
	if err := m.repos.Queue.BumpRetry(ctx, item.ID); err != nil {
		m.log.Error(ctx, "failed to bump retry count", "error", err)
	}
}

// pull reconciles every collection with a full-replace bulk upsert, forcing
// pulled rows to synced and not-deleted. A local tombstone whose delete has
// not been pushed yet can be briefly resurrected here; the next successful
// drain closes that window.
func (m *Manager) pull(ctx context.Context) error {
	for kind, h := range m.handlers {
		if err := h.pull(ctx); err != nil {
			return &pullError{kind: kind, err: err}
		}
	}
	return nil
}

type pullError struct {
	kind models.EntityKind
	err  error
}

func (e *pullError) Error() string {
	return "pull " + string(e.kind) + ": " + e.err.Error()
}

func (e *pullError) Unwrap() error {
	return e.err
}
