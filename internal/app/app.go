// Package app wires the daemon together: local store, remote backend, sync
// manager, connectivity watcher, scheduler, and the mutation services, with
// graceful shutdown on OS signals.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gstbill/gstbill/internal/config"
	"github.com/gstbill/gstbill/internal/events"
	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/remote"
	"github.com/gstbill/gstbill/internal/sequence"
	"github.com/gstbill/gstbill/internal/services"
	"github.com/gstbill/gstbill/internal/store"
	gsync "github.com/gstbill/gstbill/internal/sync"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	repos     *store.Repositories
	backend   remote.Backend
	manager   *gsync.Manager
	watcher   *gsync.Watcher
	scheduler *gsync.Scheduler
	notifier  *events.Notifier

	Products  *services.ProductService
	Customers *services.CustomerService
	Invoices  *services.InvoiceService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	var logger logging.Logger
	if cfg.LogFile != "" {
		logger = logging.NewRotatingFileLogger(cfg.LogFile)
	} else {
		logger = logging.NewJSONLogger(os.Stdout)
	}

	repos, err := store.InitDatabase(ctx, cfg.LocalDSN)
	if err != nil {
		return nil, fmt.Errorf("local store init error: %w", err)
	}

	userID, err := remote.UserIDFromToken(cfg.TenantToken, []byte(cfg.TokenSecret))
	if err != nil {
		return nil, fmt.Errorf("tenant token error: %w", err)
	}

	backend, err := remote.NewPostgresBackend(ctx, remote.BackendConfig{
		DSN:     cfg.RemoteDSN,
		Tenant:  userID,
		Timeout: cfg.RemoteTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("remote backend init error: %w", err)
	}

	manager := gsync.NewManager(repos, backend, logger)
	watcher := gsync.NewWatcher(backend, manager, logger, cfg.PingInterval)
	scheduler, err := gsync.NewScheduler(manager, watcher, logger, cfg.SyncInterval)
	if err != nil {
		return nil, err
	}

	notifier := events.NewNotifier()
	gen := sequence.New(backend, logger)

	return &App{
		config:    cfg,
		logger:    logger,
		repos:     repos,
		backend:   backend,
		manager:   manager,
		watcher:   watcher,
		scheduler: scheduler,
		notifier:  notifier,
		Products:  services.NewProductService(repos, notifier, logger, userID),
		Customers: services.NewCustomerService(repos, notifier, logger, userID),
		Invoices:  services.NewInvoiceService(repos, notifier, gen, logger, userID, cfg.StoreID, cfg.StoreCode),
	}, nil
}

// Notifier exposes the saved-event stream for UI subscribers.
func (app *App) Notifier() *events.Notifier {
	return app.notifier
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the watcher and the scheduler and blocks until ctx is cancelled
// or a termination signal arrives. An in-flight sync cycle is abandoned on
// shutdown; the durable queue lets the next start resume from the same
// pending items.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting sync daemon",
		"store_id", app.config.StoreID, "sync_interval", app.config.SyncInterval.String())

	app.initSignalHandler(cancelFunc)
	app.scheduler.Start()

	app.watcher.Run(ctx)

	app.scheduler.Stop()
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "failed to close local store", "error", err)
	}
	app.logger.Info(ctx, "sync daemon stopped")
}
