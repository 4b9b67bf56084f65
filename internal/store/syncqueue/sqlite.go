package syncqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gstbill/gstbill/internal/dbx"
	"github.com/gstbill/gstbill/internal/models"
)

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, item *models.SyncQueueItem) error {
	query := `INSERT INTO sync_queue (id, entity_type, entity_id, action, data, created_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		item.ID, string(item.EntityType), item.EntityID, string(item.Action),
		[]byte(item.Data), item.CreatedAt.UTC().Format(time.RFC3339Nano), item.RetryCount)
	if err != nil {
		return fmt.Errorf("failed to enqueue sync item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]models.SyncQueueItem, error) {
	query := `SELECT id, entity_type, entity_id, action, data, created_at, retry_count
		FROM sync_queue ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync queue: %w", err)
	}
	defer rows.Close()

	var result []models.SyncQueueItem
	for rows.Next() {
		var (
			item       models.SyncQueueItem
			entityType string
			action     string
			data       []byte
			created    string
		)
		if err := rows.Scan(&item.ID, &entityType, &item.EntityID, &action, &data, &created, &item.RetryCount); err != nil {
			return nil, err
		}
		item.EntityType = models.EntityKind(entityType)
		item.Action = models.Action(action)
		item.Data = data
		if item.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("bad created_at value: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove sync item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BumpRetry(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET retry_count = retry_count + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to bump retry count: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM sync_queue`).Scan(&n)
	return n, err
}
