package invoices

import (
	"context"

	"github.com/gstbill/gstbill/internal/models"
)

// Repository describes invoice and line-item persistence in the local store.
// Items belong to exactly one invoice; tombstoning an invoice tombstones its
// items in the same call.
type Repository interface {
	UpsertInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	GetAllInvoices(ctx context.Context) ([]models.Invoice, error)

	// ItemsByInvoice returns the current non-deleted items of an invoice.
	// The sync manager reads these fresh at push time instead of trusting
	// the queued snapshot, so remote items always mirror the latest local
	// state.
	ItemsByInvoice(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error)

	// ReplaceItems swaps the full item set of an invoice.
	ReplaceItems(ctx context.Context, invoiceID string, items []models.InvoiceItem) error

	MarkDeleted(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id string) error

	BulkUpsertSynced(ctx context.Context, rows []models.Invoice) error
	BulkUpsertItems(ctx context.Context, items []models.InvoiceItem) error

	Count(ctx context.Context) (int, error)
}
