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
	"github.com/gstbill/gstbill/internal/store"
	"github.com/gstbill/gstbill/internal/store/products"
)

// ProductService owns catalog mutations for one tenant.
type ProductService struct {
	repos    *store.Repositories
	notifier *events.Notifier
	log      logging.Logger
	userID   string
}

func NewProductService(repos *store.Repositories, notifier *events.Notifier, log logging.Logger, userID string) *ProductService {
	return &ProductService{repos: repos, notifier: notifier, log: log, userID: userID}
}

func (s *ProductService) Create(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.save(ctx, p, models.ActionCreate)
}

func (s *ProductService) Update(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	return s.save(ctx, p, models.ActionUpdate)
}

func (s *ProductService) save(ctx context.Context, p *models.Product, action models.Action) error {
	p.UserID = s.userID
	p.IsSynced = false
	p.Deleted = false
	p.UpdatedAt = time.Now().UTC()

	err := dbx.WithTx(ctx, s.repos.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := products.NewSQLiteRepository(tx).Upsert(ctx, p); err != nil {
			return err
		}
		return enqueueTx(ctx, tx, models.KindProduct, p.ID, action, p)
	})
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	notifySaved(ctx, s.repos, s.notifier, s.log, models.KindProduct, p.ID, action)
	return nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.repos.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := products.NewSQLiteRepository(tx).MarkDeleted(ctx, id); err != nil {
			return err
		}
		return enqueueTx(ctx, tx, models.KindProduct, id, models.ActionDelete, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	notifySaved(ctx, s.repos, s.notifier, s.log, models.KindProduct, id, models.ActionDelete)
	return nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.repos.Products.GetByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	return s.repos.Products.GetAll(ctx)
}
