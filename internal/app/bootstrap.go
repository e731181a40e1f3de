package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stockflow/stockflow/internal/budget"
	"github.com/stockflow/stockflow/internal/datastore/memory"
	"github.com/stockflow/stockflow/internal/datastore/postgres"
	"github.com/stockflow/stockflow/internal/inventory"
	"github.com/stockflow/stockflow/internal/notify"
	"github.com/stockflow/stockflow/internal/observability"
	"github.com/stockflow/stockflow/internal/platform/cache"
	"github.com/stockflow/stockflow/internal/platform/db"
	"github.com/stockflow/stockflow/internal/shared"
	"github.com/stockflow/stockflow/internal/view"
	"github.com/stockflow/stockflow/jobs"
	"github.com/stockflow/stockflow/report"
)

// Datastore bundles the repositories of one backend.
type Datastore struct {
	Inventory inventory.Repositories
	Budget    budget.Repository
	Health    HealthCheck
	Close     func()
}

// OpenDatastore connects the backend selected by cfg.Datastore. Migrations
// run when migrate is set.
func OpenDatastore(ctx context.Context, cfg *Config, clock func() time.Time, migrate bool) (*Datastore, error) {
	switch cfg.Datastore {
	case DatastoreMemory:
		mem := memory.New(clock)
		return &Datastore{Inventory: mem.Inventory(), Budget: mem.Budget(), Close: func() {}}, nil
	case DatastorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, pool, "up"); err != nil {
				pool.Close()
				return nil, err
			}
		}
		pg := postgres.New(pool, clock)
		return &Datastore{
			Inventory: pg.Inventory(),
			Budget:    pg.Budget(),
			Health:    func(ctx context.Context) error { return pool.Ping(ctx) },
			Close:     pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown DATASTORE %q", cfg.Datastore)
}

// DirectSender builds the transport that talks to the mail provider itself.
func DirectSender(cfg *Config) (notify.Sender, error) {
	switch cfg.EmailTransport {
	case TransportEmailJS, TransportQueue:
		if cfg.EmailJSServiceID != "" && cfg.EmailJSPublicKey != "" {
			return notify.NewEmailJSClient(cfg.EmailJSEndpoint, notify.Credentials{
				PublicKey:  cfg.EmailJSPublicKey,
				PrivateKey: cfg.EmailJSPrivateKey,
			}), nil
		}
		if cfg.EmailTransport == TransportEmailJS {
			return nil, errors.New("emailjs credentials missing")
		}
		fallthrough
	case TransportSMTP:
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}), nil
	}
	return nil, fmt.Errorf("transport %q cannot send directly", cfg.EmailTransport)
}

// RedisClientOpt maps cfg onto asynq's Redis options.
func RedisClientOpt(cfg *Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	Redis     *redis.Client
	Datastore *Datastore
	Sender    notify.Sender
	Clock     func() time.Time
}

// Runtime owns the long-lived components of the API process.
type Runtime struct {
	Config     *Config
	Logger     *slog.Logger
	Handler    http.Handler
	Registry   *inventory.Registry
	Dispatcher *notify.Dispatcher
	Metrics    *observability.Metrics

	closers []func()
}

// Build wires every component named by cfg.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	redisClient := opts.Redis
	if redisClient == nil {
		client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fail(err)
		}
		redisClient = client
		rt.closers = append(rt.closers, func() { _ = client.Close() })
	}

	store := opts.Datastore
	if store == nil {
		opened, err := OpenDatastore(ctx, cfg, opts.Clock, cfg.PGMigrate)
		if err != nil {
			return fail(err)
		}
		store = opened
		rt.closers = append(rt.closers, opened.Close)
	}

	rt.Metrics = observability.NewMetrics()
	rt.Registry = inventory.NewRegistry(store.Inventory, logger, cfg.StoreIdleTTL, opts.Clock)
	rt.Metrics.TrackGauge("stockflow_inventory_stores", "Open per-session inventory stores.", func() float64 {
		return float64(rt.Registry.Len())
	})

	var jobHandler *jobs.Handler
	sender := opts.Sender
	if sender == nil {
		switch cfg.EmailTransport {
		case TransportNone:
		case TransportQueue:
			client := jobs.NewClient(RedisClientOpt(cfg))
			inspector := asynq.NewInspector(RedisClientOpt(cfg))
			rt.closers = append(rt.closers, func() { _ = client.Close(); _ = inspector.Close() })
			sender = jobs.NewQueueSender(client)
			jobHandler = jobs.NewHandler(inspector, logger)
		default:
			direct, err := DirectSender(cfg)
			if err != nil {
				return fail(err)
			}
			sender = direct
		}
	}
	if jobHandler == nil {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	var notifier budget.Notifier
	if sender != nil {
		rt.Dispatcher = notify.NewDispatcher(sender, logger, rt.Metrics, cfg.EmailTimeout)
		notifier = rt.Dispatcher
	}

	links := budget.NewLinks(budget.LinkConfig{
		BaseURL: cfg.ApprovalBaseURL,
		Secret:  cfg.DecisionLinkSecret,
		TTL:     cfg.DecisionLinkTTL,
		Clock:   opts.Clock,
	})
	budgetService := budget.NewService(store.Budget, notifier, links, logger, budget.ServiceConfig{
		Notification: budget.NotificationConfig{
			ServiceID:      cfg.EmailJSServiceID,
			TemplateID:     cfg.EmailJSTemplateID,
			ApproverName:   cfg.ApproverName,
			ApproverEmail:  cfg.ApproverEmail,
			CC:             cfg.ApprovalCC,
			Locale:         cfg.CurrencyLocale,
			CurrencySymbol: cfg.CurrencySymbol,
		},
		Clock: opts.Clock,
	})

	pages, err := view.NewEngine()
	if err != nil {
		return fail(err)
	}
	var pdf budget.PDFRenderer
	checks := map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	if store.Health != nil {
		checks["postgres"] = store.Health
	}
	if cfg.GotenbergURL != "" {
		client := report.NewClient(cfg.GotenbergURL, report.A4)
		pdf = client
		checks["gotenberg"] = client.Ping
	}

	rt.Handler = NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction()),
		CSRFManager:      shared.NewCSRFManager(cfg.CSRFSecret),
		Registry:         rt.Registry,
		InventoryHandler: inventory.NewHandler(logger, opts.Clock),
		BudgetHandler:    budget.NewHandler(logger, budgetService, pages, pdf),
		JobHandler:       jobHandler,
		Metrics:          rt.Metrics,
		HealthChecks:     checks,
	})
	return rt, nil
}

// Serve runs the HTTP server and the store sweeper until ctx ends, then
// drains in-flight requests and notification sends.
func (rt *Runtime) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         rt.Config.AppAddr,
		Handler:      rt.Handler,
		ReadTimeout:  rt.Config.AppReadTimeout,
		WriteTimeout: rt.Config.AppWriteTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go rt.Registry.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info("starting http server", slog.String("addr", rt.Config.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	rt.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.Logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if rt.Dispatcher != nil {
		if err := rt.Dispatcher.Close(shutdownCtx); err != nil {
			rt.Logger.Warn("notifications still in flight at shutdown", slog.Any("error", err))
		}
	}
	return nil
}

// Close releases stores and connections in reverse order of acquisition.
func (rt *Runtime) Close() {
	if rt.Registry != nil {
		rt.Registry.Shutdown()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
