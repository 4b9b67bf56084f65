// Package remote is the only component that speaks to the network. It
// exposes row-level CRUD on the remote relational backend, scoped to one
// authenticated tenant, with every error tagged with a Code.
package remote

import (
	"context"

	"github.com/gstbill/gstbill/internal/models"
)

// Backend is the remote adapter consumed by the sync manager and, through
// CounterStore, by the sequence generator. Upserts are idempotent on entity
// id and deletes are no-ops on missing ids, so at-least-once delivery from
// the queue is safe.
type Backend interface {
	CounterStore

	// Ping reports backend reachability; the connectivity watcher uses it.
	Ping(ctx context.Context) error

	UpsertProducts(ctx context.Context, rows []models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	SelectProducts(ctx context.Context) ([]models.Product, error)

	UpsertCustomers(ctx context.Context, rows []models.Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	SelectCustomers(ctx context.Context) ([]models.Customer, error)

	UpsertInvoices(ctx context.Context, rows []models.Invoice) error
	// DeleteInvoice removes the invoice and its line items together.
	DeleteInvoice(ctx context.Context, id string) error
	SelectInvoices(ctx context.Context) ([]models.Invoice, error)

	UpsertInvoiceItems(ctx context.Context, items []models.InvoiceItem) error
	DeleteInvoiceItems(ctx context.Context, invoiceID string) error
	SelectInvoiceItems(ctx context.Context) ([]models.InvoiceItem, error)
}

// CounterStore is the per-(store, day) counter protocol behind invoice
// numbering. The conditional update is the conflict-safety primitive: it
// matches only when the caller saw the latest value.
type CounterStore interface {
	// GetCounter returns the counter row for (storeID, date), or a
	// CodeNotFound error when no invoice has been issued that day yet.
	GetCounter(ctx context.Context, storeID, date string) (*models.SequenceCounter, error)

	// CreateCounter inserts a fresh counter row. A concurrent first-of-day
	// caller surfaces as a CodeDuplicateKey error; re-read instead of failing.
	CreateCounter(ctx context.Context, c *models.SequenceCounter) error

	// UpdateCounterValue persists value newValue on the row id, but only if
	// the row still holds oldValue. A lost race surfaces as CodeConflict.
	UpdateCounterValue(ctx context.Context, id string, oldValue, newValue int) error
}
