package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gstbill/gstbill/internal/dbx"
	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/remote/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// BackendConfig configures the Postgres adapter.
type BackendConfig struct {
	DSN string

	// Tenant is the authenticated user id every query is scoped to.
	Tenant string

	// Timeout bounds each remote call so a hung connection cannot stall a
	// sync cycle. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds remote calls when the config does not say otherwise.
const DefaultTimeout = 15 * time.Second

// Postgres implements Backend over a pgx-stdlib connection.
type Postgres struct {
	db      *sql.DB
	tenant  string
	timeout time.Duration
	log     logging.Logger
}

// NewPostgresBackend opens the remote database, applies the embedded schema
// migrations, and returns a tenant-scoped adapter.
func NewPostgresBackend(ctx context.Context, cfg BackendConfig, log logging.Logger) (*Postgres, error) {
	if cfg.Tenant == "" {
		return nil, errors.New("remote: tenant is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	p := &Postgres{db: db, tenant: cfg.Tenant, timeout: timeout, log: log}
	if err := p.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}
	p.log.Info(ctx, "remote backend ready", "tenant", cfg.Tenant)
	return p, nil
}

// RunMigrations applies the embedded goose migrations for the remote schema.
func (p *Postgres) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, p.db, ".")
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// classify maps a driver error to the adapter's error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := CodeInternal
		switch {
		case pgErr.Code == "23505":
			code = CodeDuplicateKey
		case pgErr.Code == "42501" || pgErr.Code == "28000":
			code = CodePermissionDenied
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"),
			pgErr.Code == "40001":
			code = CodeTransient
		}
		return &Error{Code: code, Op: op, Err: err}
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &Error{Code: CodeNotFound, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeTransient, Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Code: CodeTransient, Op: op, Err: err}
	}

	return &Error{Code: CodeInternal, Op: op, Err: err}
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return classify("ping", p.db.PingContext(ctx))
}

// -------- products --------

func (p *Postgres) UpsertProducts(ctx context.Context, rows []models.Product) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO products (id, user_id, store_id, name, hsn_code, unit, price, gst_rate, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			store_id = EXCLUDED.store_id,
			name = EXCLUDED.name,
			hsn_code = EXCLUDED.hsn_code,
			unit = EXCLUDED.unit,
			price = EXCLUDED.price,
			gst_rate = EXCLUDED.gst_rate,
			updated_at = EXCLUDED.updated_at
		WHERE products.user_id = EXCLUDED.user_id`
	for i := range rows {
		r := rows[i]
		_, err := p.db.ExecContext(ctx, query,
			r.ID, p.tenant, r.StoreID, r.Name, r.HSNCode, r.Unit, r.Price, r.GSTRate, updatedAt(r.UpdatedAt))
		if err != nil {
			return classify("upsert products", err)
		}
	}
	return nil
}

func (p *Postgres) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	_, err := p.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1 AND user_id = $2`, id, p.tenant)
	return classify("delete product", err)
}

func (p *Postgres) SelectProducts(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `SELECT id, user_id, store_id, name, hsn_code, unit, price, gst_rate, updated_at
		FROM products WHERE user_id = $1`
	rows, err := p.db.QueryContext(ctx, query, p.tenant)
	if err != nil {
		return nil, classify("select products", err)
	}
	defer rows.Close()

	var result []models.Product
	for rows.Next() {
		var (
			r       models.Product
			storeID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &storeID, &r.Name, &r.HSNCode, &r.Unit, &r.Price, &r.GSTRate, &r.UpdatedAt); err != nil {
			return nil, classify("select products", err)
		}
		if storeID.Valid {
			r.StoreID = &storeID.String
		}
		result = append(result, r)
	}
	return result, classify("select products", rows.Err())
}

// -------- customers --------

func (p *Postgres) UpsertCustomers(ctx context.Context, rows []models.Customer) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO customers (id, user_id, store_id, name, phone, email, gstin, address, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			store_id = EXCLUDED.store_id,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			gstin = EXCLUDED.gstin,
			address = EXCLUDED.address,
			updated_at = EXCLUDED.updated_at
		WHERE customers.user_id = EXCLUDED.user_id`
	for i := range rows {
		r := rows[i]
		_, err := p.db.ExecContext(ctx, query,
			r.ID, p.tenant, r.StoreID, r.Name, r.Phone, r.Email, r.GSTIN, r.Address, updatedAt(r.UpdatedAt))
		if err != nil {
			return classify("upsert customers", err)
		}
	}
	return nil
}

func (p *Postgres) DeleteCustomer(ctx context.Context, id string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	_, err := p.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1 AND user_id = $2`, id, p.tenant)
	return classify("delete customer", err)
}

func (p *Postgres) SelectCustomers(ctx context.Context) ([]models.Customer, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `SELECT id, user_id, store_id, name, phone, email, gstin, address, updated_at
		FROM customers WHERE user_id = $1`
	rows, err := p.db.QueryContext(ctx, query, p.tenant)
	if err != nil {
		return nil, classify("select customers", err)
	}
	defer rows.Close()

	var result []models.Customer
	for rows.Next() {
		var (
			r       models.Customer
			storeID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &storeID, &r.Name, &r.Phone, &r.Email, &r.GSTIN, &r.Address, &r.UpdatedAt); err != nil {
			return nil, classify("select customers", err)
		}
		if storeID.Valid {
			r.StoreID = &storeID.String
		}
		result = append(result, r)
	}
	return result, classify("select customers", rows.Err())
}

// -------- invoices --------

func (p *Postgres) UpsertInvoices(ctx context.Context, rows []models.Invoice) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO invoices (id, user_id, store_id, invoice_number, customer_id, employee_code, issued_at, subtotal, gst_amount, total, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			store_id = EXCLUDED.store_id,
			invoice_number = EXCLUDED.invoice_number,
			customer_id = EXCLUDED.customer_id,
			employee_code = EXCLUDED.employee_code,
			issued_at = EXCLUDED.issued_at,
			subtotal = EXCLUDED.subtotal,
			gst_amount = EXCLUDED.gst_amount,
			total = EXCLUDED.total,
			updated_at = EXCLUDED.updated_at
		WHERE invoices.user_id = EXCLUDED.user_id`
	for i := range rows {
		r := rows[i]
		_, err := p.db.ExecContext(ctx, query,
			r.ID, p.tenant, r.StoreID, r.InvoiceNumber, r.CustomerID, r.EmployeeCode,
			updatedAt(r.IssuedAt), r.Subtotal, r.GSTAmount, r.Total, updatedAt(r.UpdatedAt))
		if err != nil {
			return classify("upsert invoices", err)
		}
	}
	return nil
}

// DeleteInvoice removes the invoice row and its line items in one
// transaction, so a pushed delete can never leave orphan items behind.
func (p *Postgres) DeleteInvoice(ctx context.Context, id string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1 AND user_id = $2`, id, p.tenant); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1 AND user_id = $2`, id, p.tenant)
		return err
	})
	return classify("delete invoice", err)
}

func (p *Postgres) SelectInvoices(ctx context.Context) ([]models.Invoice, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `SELECT id, user_id, store_id, invoice_number, customer_id, employee_code, issued_at, subtotal, gst_amount, total, updated_at
		FROM invoices WHERE user_id = $1`
	rows, err := p.db.QueryContext(ctx, query, p.tenant)
	if err != nil {
		return nil, classify("select invoices", err)
	}
	defer rows.Close()

	var result []models.Invoice
	for rows.Next() {
		var (
			r       models.Invoice
			storeID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &storeID, &r.InvoiceNumber, &r.CustomerID,
			&r.EmployeeCode, &r.IssuedAt, &r.Subtotal, &r.GSTAmount, &r.Total, &r.UpdatedAt); err != nil {
			return nil, classify("select invoices", err)
		}
		if storeID.Valid {
			r.StoreID = &storeID.String
		}
		result = append(result, r)
	}
	return result, classify("select invoices", rows.Err())
}

func (p *Postgres) UpsertInvoiceItems(ctx context.Context, items []models.InvoiceItem) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO invoice_items (id, user_id, invoice_id, product_id, description, quantity, price, gst_rate, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			description = EXCLUDED.description,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			gst_rate = EXCLUDED.gst_rate,
			amount = EXCLUDED.amount
		WHERE invoice_items.user_id = EXCLUDED.user_id`
	for i := range items {
		it := items[i]
		_, err := p.db.ExecContext(ctx, query,
			it.ID, p.tenant, it.InvoiceID, it.ProductID, it.Description,
			it.Quantity, it.Price, it.GSTRate, it.Amount)
		if err != nil {
			return classify("upsert invoice items", err)
		}
	}
	return nil
}

func (p *Postgres) DeleteInvoiceItems(ctx context.Context, invoiceID string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	_, err := p.db.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1 AND user_id = $2`, invoiceID, p.tenant)
	return classify("delete invoice items", err)
}

func (p *Postgres) SelectInvoiceItems(ctx context.Context) ([]models.InvoiceItem, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `SELECT id, user_id, invoice_id, product_id, description, quantity, price, gst_rate, amount
		FROM invoice_items WHERE user_id = $1`
	rows, err := p.db.QueryContext(ctx, query, p.tenant)
	if err != nil {
		return nil, classify("select invoice items", err)
	}
	defer rows.Close()

	var result []models.InvoiceItem
	for rows.Next() {
		var it models.InvoiceItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.InvoiceID, &it.ProductID,
			&it.Description, &it.Quantity, &it.Price, &it.GSTRate, &it.Amount); err != nil {
			return nil, classify("select invoice items", err)
		}
		result = append(result, it)
	}
	return result, classify("select invoice items", rows.Err())
}

// -------- sequence counters --------

func (p *Postgres) GetCounter(ctx context.Context, storeID, date string) (*models.SequenceCounter, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `SELECT id, user_id, store_id, seq_date, value FROM sequence_counters
		WHERE store_id = $1 AND seq_date = $2 AND user_id = $3`
	var c models.SequenceCounter
	err := p.db.QueryRowContext(ctx, query, storeID, date, p.tenant).
		Scan(&c.ID, &c.UserID, &c.StoreID, &c.SeqDate, &c.Value)
	if err != nil {
		return nil, classify("get counter", err)
	}
	return &c, nil
}

func (p *Postgres) CreateCounter(ctx context.Context, c *models.SequenceCounter) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO sequence_counters (id, user_id, store_id, seq_date, value)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := p.db.ExecContext(ctx, query, c.ID, p.tenant, c.StoreID, c.SeqDate, c.Value)
	return classify("create counter", err)
}

func (p *Postgres) UpdateCounterValue(ctx context.Context, id string, oldValue, newValue int) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := `UPDATE sequence_counters SET value = $1 WHERE id = $2 AND value = $3 AND user_id = $4`
	res, err := p.db.ExecContext(ctx, query, newValue, id, oldValue, p.tenant)
	if err != nil {
		return classify("update counter", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("update counter", err)
	}
	if n == 0 {
		return &Error{Code: CodeConflict, Op: "update counter"}
	}
	return nil
}

func updatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
