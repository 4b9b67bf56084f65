package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gstbill/gstbill/internal/dbx"
	"github.com/gstbill/gstbill/internal/events"
	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/sequence"
	"github.com/gstbill/gstbill/internal/store"
	"github.com/gstbill/gstbill/internal/store/invoices"
)

// InvoiceService owns invoice issuance and mutation for one tenant on one
// store. The invoice number is awarded by the sequence generator before the
// local write, so a daily-cap failure aborts creation with nothing persisted.
type InvoiceService struct {
	repos    *store.Repositories
	notifier *events.Notifier
	seq      *sequence.Generator
	log      logging.Logger

	userID    string
	storeID   string
	storeCode string
}

func NewInvoiceService(repos *store.Repositories, notifier *events.Notifier, seq *sequence.Generator, log logging.Logger, userID, storeID, storeCode string) *InvoiceService {
	return &InvoiceService{
		repos:     repos,
		notifier:  notifier,
		seq:       seq,
		log:       log,
		userID:    userID,
		storeID:   storeID,
		storeCode: storeCode,
	}
}

// Create issues an invoice number, computes the line totals, and commits the
// invoice, its items, and the queue item in one transaction.
func (s *InvoiceService) Create(ctx context.Context, inv *models.Invoice, items []models.InvoiceItem) error {
	number, err := s.seq.Next(ctx, s.storeID, s.storeCode, inv.EmployeeCode)
	if err != nil {
		return fmt.Errorf("failed to issue invoice number: %w", err)
	}

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.UserID = s.userID
	inv.StoreID = &s.storeID
	inv.InvoiceNumber = number
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now().UTC()
	}
	s.total(inv, items)

	return s.save(ctx, inv, items, models.ActionCreate)
}

// Update recomputes totals and replaces the full item set. The invoice
// number is never reissued.
func (s *InvoiceService) Update(ctx context.Context, inv *models.Invoice, items []models.InvoiceItem) error {
	if inv.ID == "" {
		return fmt.Errorf("invoice id is required")
	}
	s.total(inv, items)
	return s.save(ctx, inv, items, models.ActionUpdate)
}

func (s *InvoiceService) save(ctx context.Context, inv *models.Invoice, items []models.InvoiceItem, action models.Action) error {
	inv.UserID = s.userID
	inv.IsSynced = false
	inv.Deleted = false
	inv.UpdatedAt = time.Now().UTC()

	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].UserID = s.userID
		items[i].InvoiceID = inv.ID
		items[i].Deleted = false
	}

	err := dbx.WithTx(ctx, s.repos.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := invoices.NewSQLiteRepository(tx)
		if err := repo.UpsertInvoice(ctx, inv); err != nil {
			return err
		}
		if err := repo.ReplaceItems(ctx, inv.ID, items); err != nil {
			return err
		}
		return enqueueTx(ctx, tx, models.KindInvoice, inv.ID, action, inv)
	})
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	notifySaved(ctx, s.repos, s.notifier, s.log, models.KindInvoice, inv.ID, action)
	return nil
}

func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.repos.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := invoices.NewSQLiteRepository(tx).MarkDeleted(ctx, id); err != nil {
			return err
		}
		return enqueueTx(ctx, tx, models.KindInvoice, id, models.ActionDelete, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}

	notifySaved(ctx, s.repos, s.notifier, s.log, models.KindInvoice, id, models.ActionDelete)
	return nil
}

func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	return s.repos.Invoices.GetInvoice(ctx, id)
}

func (s *InvoiceService) Items(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	return s.repos.Invoices.ItemsByInvoice(ctx, invoiceID)
}

func (s *InvoiceService) List(ctx context.Context) ([]models.Invoice, error) {
	return s.repos.Invoices.GetAllInvoices(ctx)
}

// total fills per-line amounts and the invoice totals from the item set.
func (s *InvoiceService) total(inv *models.Invoice, items []models.InvoiceItem) {
	var subtotal, gst float64
	for i := range items {
		items[i].Amount = items[i].Quantity * items[i].Price
		subtotal += items[i].Amount
		gst += items[i].Amount * items[i].GSTRate / 100
	}
	inv.Subtotal = subtotal
	inv.GSTAmount = gst
	inv.Total = subtotal + gst
}
