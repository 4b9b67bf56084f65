package products

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/gstbill/gstbill/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  store_id TEXT,
  name TEXT NOT NULL,
  hsn_code TEXT NOT NULL DEFAULT '',
  unit TEXT NOT NULL DEFAULT '',
  price REAL NOT NULL DEFAULT 0,
  gst_rate REAL NOT NULL DEFAULT 0,
  is_synced INTEGER NOT NULL DEFAULT 0,
  deleted INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func TestUpsert_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	storeID := "s1"
	p := &models.Product{
		ID:        "p1",
		UserID:    "u1",
		StoreID:   &storeID,
		Name:      "Steel Rod",
		HSNCode:   "7214",
		Price:     250,
		GSTRate:   18,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, r.Upsert(ctx, p))

	got, err := r.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Steel Rod", got.Name)
	require.NotNil(t, got.StoreID)
	assert.Equal(t, "s1", *got.StoreID)
	assert.False(t, got.IsSynced)

	p.Price = 260
	require.NoError(t, r.Upsert(ctx, p))

	got, err = r.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 260.0, got.Price)
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkDeleted_TombstonesAndHidesFromGetAll(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.Product{ID: "p1", UserID: "u1", Name: "A", IsSynced: true}))
	require.NoError(t, r.MarkDeleted(ctx, "p1"))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// tombstone is still readable by id, and unsynced again
	got, err := r.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.False(t, got.IsSynced)

	assert.ErrorIs(t, r.MarkDeleted(ctx, "p1"), ErrNotFound)
}

func TestBulkUpsertSynced_ForcesFlags(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rows := []models.Product{
		{ID: "p1", UserID: "u1", Name: "A", IsSynced: false, Deleted: true},
		{ID: "p2", UserID: "u1", Name: "B"},
	}
	require.NoError(t, r.BulkUpsertSynced(ctx, rows))

	for _, id := range []string{"p1", "p2"} {
		got, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.IsSynced, id)
		assert.False(t, got.Deleted, id)
	}

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
