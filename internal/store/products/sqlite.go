package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gstbill/gstbill/internal/dbx"
	"github.com/gstbill/gstbill/internal/models"
)

var ErrNotFound = errors.New("product not found")

// SQLiteRepository implements Repository over a dbx.DBTX
// (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Product) error {
	query := `INSERT INTO products (id, user_id, store_id, name, hsn_code, unit, price, gst_rate, is_synced, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_id = excluded.store_id,
			name = excluded.name,
			hsn_code = excluded.hsn_code,
			unit = excluded.unit,
			price = excluded.price,
			gst_rate = excluded.gst_rate,
			is_synced = excluded.is_synced,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, nullable(p.StoreID), p.Name, p.HSNCode, p.Unit,
		p.Price, p.GSTRate, p.IsSynced, p.Deleted, formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := selectColumns + ` FROM products WHERE id = ?`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	query := selectColumns + ` FROM products WHERE deleted = 0 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select products: %w", err)
	}
	defer rows.Close()

	var result []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string) error {
	query := `UPDATE products SET deleted = 1, is_synced = 0, updated_at = ? WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	query := `UPDATE products SET is_synced = 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark product synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BulkUpsertSynced(ctx context.Context, rows []models.Product) error {
	for i := range rows {
		p := rows[i]
		p.IsSynced = true
		p.Deleted = false
		if err := r.Upsert(ctx, &p); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM products WHERE deleted = 0`).Scan(&n)
	return n, err
}

const selectColumns = `SELECT id, user_id, store_id, name, hsn_code, unit, price, gst_rate, is_synced, deleted, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p       models.Product
		storeID sql.NullString
		updated string
	)
	err := row.Scan(&p.ID, &p.UserID, &storeID, &p.Name, &p.HSNCode, &p.Unit,
		&p.Price, &p.GSTRate, &p.IsSynced, &p.Deleted, &updated)
	if err != nil {
		return nil, err
	}
	if storeID.Valid {
		p.StoreID = &storeID.String
	}
	p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("bad updated_at value: %w", err)
	}
	return &p, nil
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
