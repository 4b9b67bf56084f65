package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gstbill/gstbill/internal/dbx"
	"github.com/gstbill/gstbill/internal/models"
)

var ErrNotFound = errors.New("invoice not found")

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertInvoice(ctx context.Context, inv *models.Invoice) error {
	query := `INSERT INTO invoices (id, user_id, store_id, invoice_number, customer_id, employee_code, issued_at, subtotal, gst_amount, total, is_synced, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_id = excluded.store_id,
			invoice_number = excluded.invoice_number,
			customer_id = excluded.customer_id,
			employee_code = excluded.employee_code,
			issued_at = excluded.issued_at,
			subtotal = excluded.subtotal,
			gst_amount = excluded.gst_amount,
			total = excluded.total,
			is_synced = excluded.is_synced,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.UserID, nullable(inv.StoreID), inv.InvoiceNumber, inv.CustomerID,
		inv.EmployeeCode, formatTime(inv.IssuedAt), inv.Subtotal, inv.GSTAmount,
		inv.Total, inv.IsSynced, inv.Deleted, formatTime(inv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert invoice: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	query := selectInvoiceColumns + ` FROM invoices WHERE id = ?`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

func (r *SQLiteRepository) GetAllInvoices(ctx context.Context) ([]models.Invoice, error) {
	query := selectInvoiceColumns + ` FROM invoices WHERE deleted = 0 ORDER BY issued_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select invoices: %w", err)
	}
	defer rows.Close()

	var result []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) ItemsByInvoice(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	query := `SELECT id, user_id, invoice_id, product_id, description, quantity, price, gst_rate, amount, deleted
		FROM invoice_items WHERE invoice_id = ? AND deleted = 0 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to select invoice items: %w", err)
	}
	defer rows.Close()

	var result []models.InvoiceItem
	for rows.Next() {
		var it models.InvoiceItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.InvoiceID, &it.ProductID,
			&it.Description, &it.Quantity, &it.Price, &it.GSTRate, &it.Amount, &it.Deleted); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) ReplaceItems(ctx context.Context, invoiceID string, items []models.InvoiceItem) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}
	for i := range items {
		if err := r.upsertItem(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) upsertItem(ctx context.Context, it *models.InvoiceItem) error {
	query := `INSERT INTO invoice_items (id, user_id, invoice_id, product_id, description, quantity, price, gst_rate, amount, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_id = excluded.product_id,
			description = excluded.description,
			quantity = excluded.quantity,
			price = excluded.price,
			gst_rate = excluded.gst_rate,
			amount = excluded.amount,
			deleted = excluded.deleted
	`
	_, err := r.db.ExecContext(ctx, query,
		it.ID, it.UserID, it.InvoiceID, it.ProductID, it.Description,
		it.Quantity, it.Price, it.GSTRate, it.Amount, it.Deleted)
	if err != nil {
		return fmt.Errorf("failed to upsert invoice item: %w", err)
	}
	return nil
}

// MarkDeleted tombstones the invoice and its items together.
func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string) error {
	query := `UPDATE invoices SET deleted = 1, is_synced = 0, updated_at = ? WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE invoice_items SET deleted = 1 WHERE invoice_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete invoice items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE invoices SET is_synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark invoice synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BulkUpsertSynced(ctx context.Context, rows []models.Invoice) error {
	for i := range rows {
		inv := rows[i]
		inv.IsSynced = true
		inv.Deleted = false
		if err := r.UpsertInvoice(ctx, &inv); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) BulkUpsertItems(ctx context.Context, items []models.InvoiceItem) error {
	for i := range items {
		it := items[i]
		it.Deleted = false
		if err := r.upsertItem(ctx, &it); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM invoices WHERE deleted = 0`).Scan(&n)
	return n, err
}

const selectInvoiceColumns = `SELECT id, user_id, store_id, invoice_number, customer_id, employee_code, issued_at, subtotal, gst_amount, total, is_synced, deleted, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		inv     models.Invoice
		storeID sql.NullString
		issued  string
		updated string
	)
	err := row.Scan(&inv.ID, &inv.UserID, &storeID, &inv.InvoiceNumber, &inv.CustomerID,
		&inv.EmployeeCode, &issued, &inv.Subtotal, &inv.GSTAmount, &inv.Total,
		&inv.IsSynced, &inv.Deleted, &updated)
	if err != nil {
		return nil, err
	}
	if storeID.Valid {
		inv.StoreID = &storeID.String
	}
	if inv.IssuedAt, err = time.Parse(time.RFC3339Nano, issued); err != nil {
		return nil, fmt.Errorf("bad issued_at value: %w", err)
	}
	if inv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("bad updated_at value: %w", err)
	}
	return &inv, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
