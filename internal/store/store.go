// Package store wires the embedded SQLite database: migrations, the
// per-entity repositories, and the count summaries used by the saved event.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/store/customers"
	"github.com/gstbill/gstbill/internal/store/invoices"
	"github.com/gstbill/gstbill/internal/store/migrations"
	"github.com/gstbill/gstbill/internal/store/products"
	"github.com/gstbill/gstbill/internal/store/syncqueue"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories aggregates the local store. Every write committed through a
// repository is durable before the call returns; the store itself never
// touches the network.
type Repositories struct {
	Products  products.Repository
	Customers customers.Repository
	Invoices  invoices.Repository
	Queue     syncqueue.Repository

	db *sql.DB
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn, migrates it, and returns
// the repository aggregate.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Repositories{
		Products:  products.NewSQLiteRepository(db),
		Customers: customers.NewSQLiteRepository(db),
		Invoices:  invoices.NewSQLiteRepository(db),
		Queue:     syncqueue.NewSQLiteRepository(db),
		db:        db,
	}, nil
}

// DB exposes the underlying handle for transaction composition via dbx.WithTx.
func (r *Repositories) DB() *sql.DB {
	return r.db
}

// Close closes the underlying database.
func (r *Repositories) Close() error {
	return r.db.Close()
}

// Counts returns the per-collection totals for status display and the
// saved-notification event.
func (r *Repositories) Counts(ctx context.Context) (models.Counts, error) {
	var (
		c   models.Counts
		err error
	)
	if c.Products, err = r.Products.Count(ctx); err != nil {
		return c, err
	}
	if c.Customers, err = r.Customers.Count(ctx); err != nil {
		return c, err
	}
	if c.Invoices, err = r.Invoices.Count(ctx); err != nil {
		return c, err
	}
	if c.PendingSync, err = r.Queue.Count(ctx); err != nil {
		return c, err
	}
	return c, nil
}
