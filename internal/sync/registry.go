package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/remote"
	"github.com/gstbill/gstbill/internal/store"
)

// handler is the per-entity-kind capability the manager dispatches through.
// The registry below is the single place a new entity kind is wired in.
type handler interface {
	push(ctx context.Context, item *models.SyncQueueItem) error
	pull(ctx context.Context) error
	markSynced(ctx context.Context, entityID string) error
}

func newRegistry(repos *store.Repositories, backend remote.Backend) map[models.EntityKind]handler {
	return map[models.EntityKind]handler{
		models.KindProduct:  &productHandler{repos: repos, backend: backend},
		models.KindCustomer: &customerHandler{repos: repos, backend: backend},
		models.KindInvoice:  &invoiceHandler{repos: repos, backend: backend},
	}
}

type productHandler struct {
	repos   *store.Repositories
	backend remote.Backend
}

func (h *productHandler) push(ctx context.Context, item *models.SyncQueueItem) error {
	if item.Action == models.ActionDelete {
		return h.backend.DeleteProduct(ctx, item.EntityID)
	}
	var p models.Product
	if err := json.Unmarshal(item.Data, &p); err != nil {
		return fmt.Errorf("bad product snapshot: %w", err)
	}
	return h.backend.UpsertProducts(ctx, []models.Product{p})
}

func (h *productHandler) pull(ctx context.Context) error {
	rows, err := h.backend.SelectProducts(ctx)
	if err != nil {
		return err
	}
	return h.repos.Products.BulkUpsertSynced(ctx, rows)
}

func (h *productHandler) markSynced(ctx context.Context, entityID string) error {
	return h.repos.Products.MarkSynced(ctx, entityID)
}

type customerHandler struct {
	repos   *store.Repositories
	backend remote.Backend
}

func (h *customerHandler) push(ctx context.Context, item *models.SyncQueueItem) error {
	if item.Action == models.ActionDelete {
		return h.backend.DeleteCustomer(ctx, item.EntityID)
	}
	var c models.Customer
	if err := json.Unmarshal(item.Data, &c); err != nil {
		return fmt.Errorf("bad customer snapshot: %w", err)
	}
	return h.backend.UpsertCustomers(ctx, []models.Customer{c})
}

func (h *customerHandler) pull(ctx context.Context) error {
	rows, err := h.backend.SelectCustomers(ctx)
	if err != nil {
		return err
	}
	return h.repos.Customers.BulkUpsertSynced(ctx, rows)
}

func (h *customerHandler) markSynced(ctx context.Context, entityID string) error {
	return h.repos.Customers.MarkSynced(ctx, entityID)
}

type invoiceHandler struct {
	repos   *store.Repositories
	backend remote.Backend
}

// push sends the invoice snapshot, then replaces the remote line items with
// the items currently in the local store. Items are read fresh rather than
// from the queued snapshot so the remote set mirrors the latest local edits
// at the moment of successful sync.
func (h *invoiceHandler) push(ctx context.Context, item *models.SyncQueueItem) error {
	if item.Action == models.ActionDelete {
		return h.backend.DeleteInvoice(ctx, item.EntityID)
	}

	var inv models.Invoice
	if err := json.Unmarshal(item.Data, &inv); err != nil {
		return fmt.Errorf("bad invoice snapshot: %w", err)
	}
	if err := h.backend.UpsertInvoices(ctx, []models.Invoice{inv}); err != nil {
		return err
	}

	items, err := h.repos.Invoices.ItemsByInvoice(ctx, item.EntityID)
	if err != nil {
		return fmt.Errorf("failed to read current invoice items: %w", err)
	}
	if err := h.backend.DeleteInvoiceItems(ctx, item.EntityID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return h.backend.UpsertInvoiceItems(ctx, items)
}

func (h *invoiceHandler) pull(ctx context.Context) error {
	rows, err := h.backend.SelectInvoices(ctx)
	if err != nil {
		return err
	}
	if err := h.repos.Invoices.BulkUpsertSynced(ctx, rows); err != nil {
		return err
	}
	items, err := h.backend.SelectInvoiceItems(ctx)
	if err != nil {
		return err
	}
	return h.repos.Invoices.BulkUpsertItems(ctx, items)
}

func (h *invoiceHandler) markSynced(ctx context.Context, entityID string) error {
	return h.repos.Invoices.MarkSynced(ctx, entityID)
}
