package sync

import (
	"context"
	"encoding/json"
	"io"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/remote"
	"github.com/gstbill/gstbill/internal/store"
)

// fakeBackend is an in-memory remote.Backend recording every mutation it
// receives. pushErr, when set, fails all mutating calls; denied customers
// simulate row-level policy: their delete is rejected and they are hidden
// from selects.
type fakeBackend struct {
	mu        stdsync.Mutex
	products  map[string]models.Product
	customers map[string]models.Customer
	invoices  map[string]models.Invoice
	items     map[string]models.InvoiceItem

	ops          []string
	pushErr      error
	pingErr      error
	pushAttempts int
	denied       map[string]bool
	gate         chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products:  make(map[string]models.Product),
		customers: make(map[string]models.Customer),
		invoices:  make(map[string]models.Invoice),
		items:     make(map[string]models.InvoiceItem),
		denied:    make(map[string]bool),
	}
}

func (f *fakeBackend) push(op string) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushAttempts++
	f.ops = append(f.ops, op)
	return f.pushErr
}

func (f *fakeBackend) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushAttempts
}

func (f *fakeBackend) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeBackend) UpsertProducts(_ context.Context, rows []models.Product) error {
	if err := f.push("upsert_products"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.products[r.ID] = r
	}
	return nil
}

func (f *fakeBackend) DeleteProduct(_ context.Context, id string) error {
	if err := f.push("delete_product"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	return nil
}

func (f *fakeBackend) SelectProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, r := range f.products {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertCustomers(_ context.Context, rows []models.Customer) error {
	if err := f.push("upsert_customers"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.customers[r.ID] = r
	}
	return nil
}

func (f *fakeBackend) DeleteCustomer(_ context.Context, id string) error {
	f.mu.Lock()
	deny := f.denied[id]
	f.mu.Unlock()
	if deny {
		f.push("delete_customer")
		return &remote.Error{Code: remote.CodePermissionDenied, Op: "delete customer"}
	}
	if err := f.push("delete_customer"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.customers, id)
	return nil
}

func (f *fakeBackend) SelectCustomers(context.Context) ([]models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Customer
	for _, r := range f.customers {
		if f.denied[r.ID] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertInvoices(_ context.Context, rows []models.Invoice) error {
	if err := f.push("upsert_invoices"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.invoices[r.ID] = r
	}
	return nil
}

func (f *fakeBackend) DeleteInvoice(_ context.Context, id string) error {
	if err := f.push("delete_invoice"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.invoices, id)
	for itemID, it := range f.items {
		if it.InvoiceID == id {
			delete(f.items, itemID)
		}
	}
	return nil
}

func (f *fakeBackend) SelectInvoices(context.Context) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Invoice
	for _, r := range f.invoices {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertInvoiceItems(_ context.Context, items []models.InvoiceItem) error {
	if err := f.push("upsert_invoice_items"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		f.items[it.ID] = it
	}
	return nil
}

func (f *fakeBackend) DeleteInvoiceItems(_ context.Context, invoiceID string) error {
	if err := f.push("delete_invoice_items"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, it := range f.items {
		if it.InvoiceID == invoiceID {
			delete(f.items, id)
		}
	}
	return nil
}

func (f *fakeBackend) SelectInvoiceItems(context.Context) ([]models.InvoiceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InvoiceItem
	for _, it := range f.items {
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeBackend) GetCounter(context.Context, string, string) (*models.SequenceCounter, error) {
	return nil, &remote.Error{Code: remote.CodeNotFound, Op: "get counter"}
}

func (f *fakeBackend) CreateCounter(context.Context, *models.SequenceCounter) error { return nil }

func (f *fakeBackend) UpdateCounterValue(context.Context, string, int, int) error { return nil }

func setupManager(t *testing.T) (*store.Repositories, *fakeBackend, *Manager) {
	t.Helper()
	repos, err := store.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	fb := newFakeBackend()
	mgr := NewManager(repos, fb, logging.NewJSONLogger(io.Discard))
	return repos, fb, mgr
}

func enqueue(t *testing.T, repos *store.Repositories, kind models.EntityKind, action models.Action, entityID string, payload any, at time.Time) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, repos.Queue.Enqueue(context.Background(), &models.SyncQueueItem{
		ID:         uuid.NewString(),
		EntityType: kind,
		EntityID:   entityID,
		Action:     action,
		Data:       data,
		CreatedAt:  at,
	}))
}

func TestSync_DrainsQueueAndMarksSynced(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()

	p := models.Product{ID: "p1", UserID: "u1", Name: "Soap", Price: 25, UpdatedAt: time.Now()}
	require.NoError(t, repos.Products.Upsert(ctx, &p))
	enqueue(t, repos, models.KindProduct, models.ActionCreate, p.ID, p, time.Now())

	mgr.Sync(ctx)

	got, ok := fb.products["p1"]
	require.True(t, ok, "product must reach the remote backend")
	assert.Equal(t, "Soap", got.Name)

	n, err := repos.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	local, err := repos.Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, local.IsSynced)
}

func TestSync_PerEntityOrderPreserved(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()
	base := time.Now()

	p := models.Product{ID: "p1", UserID: "u1", Name: "Soap"}
	require.NoError(t, repos.Products.Upsert(ctx, &p))
	enqueue(t, repos, models.KindProduct, models.ActionCreate, p.ID, p, base)

	p.Name = "Soap Deluxe"
	require.NoError(t, repos.Products.Upsert(ctx, &p))
	enqueue(t, repos, models.KindProduct, models.ActionUpdate, p.ID, p, base.Add(time.Millisecond))

	mgr.Sync(ctx)

	assert.Equal(t, "Soap Deluxe", fb.products["p1"].Name,
		"the later mutation must win on the remote backend")
	assert.Equal(t, 2, fb.attempts())
}

func TestSync_RetryCeilingDropsPoisonItem(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()
	fb.pushErr = &remote.Error{Code: remote.CodePermissionDenied, Op: "upsert products"}

	p := models.Product{ID: "p1", UserID: "u1", Name: "Soap"}
	require.NoError(t, repos.Products.Upsert(ctx, &p))
	enqueue(t, repos, models.KindProduct, models.ActionCreate, p.ID, p, time.Now())

	for i := 0; i < MaxRetries; i++ {
		mgr.Sync(ctx)
	}

	n, err := repos.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "item must be evicted after the retry ceiling")
	assert.Equal(t, MaxRetries, fb.attempts())

	mgr.Sync(ctx)
	assert.Equal(t, MaxRetries, fb.attempts(), "a dropped item must never be retried")
}

func TestSync_InvoicePushReplacesItemsWithCurrentLocalSet(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()

	inv := models.Invoice{ID: "inv1", UserID: "u1", InvoiceNumber: "DEMO-DE01-20250115093000-001",
		CustomerID: "c1", IssuedAt: time.Now(), Total: 300}
	require.NoError(t, repos.Invoices.UpsertInvoice(ctx, &inv))
	original := []models.InvoiceItem{
		{ID: "i1", UserID: "u1", InvoiceID: "inv1", Description: "A", Quantity: 1, Price: 100, Amount: 100},
		{ID: "i2", UserID: "u1", InvoiceID: "inv1", Description: "B", Quantity: 1, Price: 100, Amount: 100},
		{ID: "i3", UserID: "u1", InvoiceID: "inv1", Description: "C", Quantity: 1, Price: 100, Amount: 100},
	}
	require.NoError(t, repos.Invoices.ReplaceItems(ctx, "inv1", original))
	enqueue(t, repos, models.KindInvoice, models.ActionCreate, "inv1", inv, time.Now())

	// two of the three items are edited before the first sync cycle runs
	edited := []models.InvoiceItem{
		original[0],
		{ID: "i4", UserID: "u1", InvoiceID: "inv1", Description: "B rev", Quantity: 2, Price: 100, Amount: 200},
		{ID: "i5", UserID: "u1", InvoiceID: "inv1", Description: "C rev", Quantity: 1, Price: 150, Amount: 150},
	}
	require.NoError(t, repos.Invoices.ReplaceItems(ctx, "inv1", edited))

	mgr.Sync(ctx)

	require.Len(t, fb.items, 3, "remote items must equal the current local set, not a union")
	for _, want := range edited {
		got, ok := fb.items[want.ID]
		require.True(t, ok, "missing item %s", want.ID)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Amount, got.Amount)
	}
	assert.Contains(t, fb.ops, "delete_invoice_items")
}

func TestSync_DeleteCustomerPolicyDenialDivergesAccepted(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()

	// the remote row exists but its policy rejects this tenant's delete
	fb.customers["c1"] = models.Customer{ID: "c1", UserID: "other", Name: "Protected"}
	fb.denied["c1"] = true

	c := models.Customer{ID: "c1", UserID: "u1", Name: "Protected"}
	require.NoError(t, repos.Customers.Upsert(ctx, &c))
	require.NoError(t, repos.Customers.MarkDeleted(ctx, "c1"))
	enqueue(t, repos, models.KindCustomer, models.ActionDelete, "c1", nil, time.Now())

	for i := 0; i < MaxRetries; i++ {
		mgr.Sync(ctx)
	}

	n, err := repos.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "poison delete must be evicted")

	_, stillRemote := fb.customers["c1"]
	assert.True(t, stillRemote, "remote row survives the rejected delete")

	visible, err := repos.Customers.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, visible, "local tombstone keeps the customer hidden")
}

func TestSync_PullForcesSyncedAndUndeleted(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()

	fb.products["p9"] = models.Product{ID: "p9", UserID: "u1", Name: "Pulled", Price: 9, UpdatedAt: time.Now()}

	mgr.Sync(ctx)

	local, err := repos.Products.GetByID(ctx, "p9")
	require.NoError(t, err)
	assert.True(t, local.IsSynced)
	assert.False(t, local.Deleted)
	assert.Equal(t, "Pulled", local.Name)
}

func TestSync_ConcurrentTriggerIsNoOp(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()
	fb.gate = make(chan struct{})

	p := models.Product{ID: "p1", UserID: "u1", Name: "Soap"}
	require.NoError(t, repos.Products.Upsert(ctx, &p))
	enqueue(t, repos, models.KindProduct, models.ActionCreate, p.ID, p, time.Now())

	done := make(chan struct{})
	go func() {
		mgr.Sync(ctx)
		close(done)
	}()

	require.Eventually(t, mgr.Syncing, time.Second, time.Millisecond)
	mgr.Sync(ctx) // rejected by the in-flight guard

	close(fb.gate)
	<-done

	assert.Equal(t, 1, fb.attempts(), "the overlapping trigger must not push again")
}

func TestSync_UnknownEntityKindIsDropped(t *testing.T) {
	repos, fb, mgr := setupManager(t)
	ctx := context.Background()

	enqueue(t, repos, models.EntityKind("report"), models.ActionCreate, "r1", nil, time.Now())

	mgr.Sync(ctx)

	n, err := repos.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, fb.attempts())
}
