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
	"github.com/gstbill/gstbill/internal/store/customers"
)

// CustomerService owns customer mutations for one tenant.
type CustomerService struct {
	repos    *store.Repositories
	notifier *events.Notifier
	log      logging.Logger
	userID   string
}

func NewCustomerService(repos *store.Repositories, notifier *events.Notifier, log logging.Logger, userID string) *CustomerService {
	return &CustomerService{repos: repos, notifier: notifier, log: log, userID: userID}
}

func (s *CustomerService) Create(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.save(ctx, c, models.ActionCreate)
}

func (s *CustomerService) Update(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		return fmt.Errorf("customer id is required")
	}
	return s.save(ctx, c, models.ActionUpdate)
}

func (s *CustomerService) save(ctx context.Context, c *models.Customer, action models.Action) error {
	c.UserID = s.userID
	c.IsSynced = false
	c.Deleted = false
	c.UpdatedAt = time.Now().UTC()

	err := dbx.WithTx(ctx, s.repos.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := customers.NewSQLiteRepository(tx).Upsert(ctx, c); err != nil {
			return err
		}
		return enqueueTx(ctx, tx, models.KindCustomer, c.ID, action, c)
	})
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	notifySaved(ctx, s.repos, s.notifier, s.log, models.KindCustomer, c.ID, action)
	return nil
}

func (s *CustomerService) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.repos.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := customers.NewSQLiteRepository(tx).MarkDeleted(ctx, id); err != nil {
			return err
		}
		return enqueueTx(ctx, tx, models.KindCustomer, id, models.ActionDelete, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	notifySaved(ctx, s.repos, s.notifier, s.log, models.KindCustomer, id, models.ActionDelete)
	return nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, error) {
	return s.repos.Customers.GetByID(ctx, id)
}

func (s *CustomerService) List(ctx context.Context) ([]models.Customer, error) {
	return s.repos.Customers.GetAll(ctx)
}
