package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gstbill/gstbill/internal/dbx"
	"github.com/gstbill/gstbill/internal/models"
)

var ErrNotFound = errors.New("customer not found")

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.Customer) error {
	query := `INSERT INTO customers (id, user_id, store_id, name, phone, email, gstin, address, is_synced, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_id = excluded.store_id,
			name = excluded.name,
			phone = excluded.phone,
			email = excluded.email,
			gstin = excluded.gstin,
			address = excluded.address,
			is_synced = excluded.is_synced,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, nullable(c.StoreID), c.Name, c.Phone, c.Email, c.GSTIN,
		c.Address, c.IsSynced, c.Deleted, formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	query := selectColumns + ` FROM customers WHERE id = ?`
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Customer, error) {
	query := selectColumns + ` FROM customers WHERE deleted = 0 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select customers: %w", err)
	}
	defer rows.Close()

	var result []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string) error {
	query := `UPDATE customers SET deleted = 1, is_synced = 0, updated_at = ? WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE customers SET is_synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark customer synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BulkUpsertSynced(ctx context.Context, rows []models.Customer) error {
	for i := range rows {
		c := rows[i]
		c.IsSynced = true
		c.Deleted = false
		if err := r.Upsert(ctx, &c); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM customers WHERE deleted = 0`).Scan(&n)
	return n, err
}

const selectColumns = `SELECT id, user_id, store_id, name, phone, email, gstin, address, is_synced, deleted, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var (
		c       models.Customer
		storeID sql.NullString
		updated string
	)
	err := row.Scan(&c.ID, &c.UserID, &storeID, &c.Name, &c.Phone, &c.Email,
		&c.GSTIN, &c.Address, &c.IsSynced, &c.Deleted, &updated)
	if err != nil {
		return nil, err
	}
	if storeID.Valid {
		c.StoreID = &storeID.String
	}
	c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("bad updated_at value: %w", err)
	}
	return &c, nil
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
