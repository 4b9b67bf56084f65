// Package models defines the entities persisted in the local store and
// mirrored to the remote backend.
package models

import "time"

// EntityKind identifies a syncable entity collection. The set is closed:
// the sync manager registers one handler per kind.
type EntityKind string

const (
	KindProduct  EntityKind = "product"
	KindCustomer EntityKind = "customer"
	KindInvoice  EntityKind = "invoice"
)

// Product is a sellable catalog item.
type Product struct {
	// ID is a globally unique, client-generated identifier.
	ID string

	// UserID is the owning tenant.
	UserID string

	// StoreID scopes the product to one store. Nil means the product
	// applies to every store of the tenant.
	StoreID *string

	Name    string
	HSNCode string
	Unit    string
	Price   float64
	GSTRate float64

	// IsSynced reports whether the remote backend has acknowledged the
	// latest local version of this row.
	IsSynced bool

	// Deleted marks the row as a tombstone kept for sync propagation.
	Deleted bool

	UpdatedAt time.Time
}

// Customer is a billing counterparty.
type Customer struct {
	ID      string
	UserID  string
	StoreID *string

	Name    string
	Phone   string
	Email   string
	GSTIN   string
	Address string

	IsSynced  bool
	Deleted   bool
	UpdatedAt time.Time
}

// Invoice is an issued bill. Line items live in InvoiceItem rows keyed by
// InvoiceID; the invoice row itself carries only the totals.
type Invoice struct {
	ID      string
	UserID  string
	StoreID *string

	// InvoiceNumber is the formatted, globally visible number awarded by
	// the sequence generator at creation time.
	InvoiceNumber string

	CustomerID   string
	EmployeeCode string
	IssuedAt     time.Time

	Subtotal  float64
	GSTAmount float64
	Total     float64

	IsSynced  bool
	Deleted   bool
	UpdatedAt time.Time
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID        string
	UserID    string
	InvoiceID string
	ProductID string

	Description string
	Quantity    float64
	Price       float64
	GSTRate     float64
	Amount      float64

	Deleted bool
}

// Counts summarizes the local collections for status display and for the
// saved-notification event.
type Counts struct {
	Products    int
	Customers   int
	Invoices    int
	PendingSync int
}
