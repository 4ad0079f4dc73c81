package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	httpadapter "github.com/kirillkom/compass-docsync/internal/adapters/http"
	"github.com/kirillkom/compass-docsync/internal/adapters/view"
	"github.com/kirillkom/compass-docsync/internal/config"
	"github.com/kirillkom/compass-docsync/internal/core/ports"
	"github.com/kirillkom/compass-docsync/internal/core/usecase"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/auth"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/backend"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/inspect"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/queue/nats"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/resilience"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/compass-docsync/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Backend    *backend.Client
	Collection *usecase.DocumentCollection
	Sync       *usecase.Synchronizer
	Uploads    *usecase.UploadController
	Formatter  *view.Formatter
	Storage    *localfs.Storage
	// Queue is nil when NATS_URL is empty.
	Queue *nats.Queue

	HTTPMetrics *metrics.HTTPServerMetrics
	SyncMetrics *metrics.SyncMetrics

	closeFn func()
}

// New validates cfg and wires the synchronizer stack. Postgres and NATS are
// optional and only dialled when configured.
func New(ctx context.Context, service string, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	key, err := auth.ParsePublishableKey(cfg.AuthPublishableKey)
	if err != nil {
		return nil, err
	}
	logger.Info("auth_configured", "frontend_api", key.Frontend, "live", key.Live, "token_file", cfg.AuthTokenFile != "")

	var tokens ports.TokenSource
	if strings.TrimSpace(cfg.AuthTokenFile) != "" {
		tokens = auth.NewFileTokenSource(cfg.AuthTokenFile)
	} else {
		tokens = auth.NewStaticTokenSource(cfg.AuthToken)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	syncMetrics := metrics.NewSyncMetrics(service, httpMetrics.Registry())

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.RetryMaxAttempts = cfg.BackendRetryAttempts
	resilienceCfg.BreakerEnabled = cfg.BackendBreakerEnabled
	executor := resilience.NewExecutor(resilienceCfg,
		resilience.WithLogger(logger),
		resilience.WithRetryHook(syncMetrics.ObserveRetry),
	)

	contract, err := backend.LoadContract(ctx)
	if err != nil {
		return nil, fmt.Errorf("load backend contract: %w", err)
	}
	client := backend.New(cfg.BackendURL, tokens, backend.Options{
		Timeout:        cfg.BackendTimeout,
		Executor:       executor,
		Contract:       contract,
		StrictContract: cfg.BackendContractStrict,
		Logger:         logger,
	})

	formatter, err := view.NewFormatter(cfg.DisplayLocale, cfg.DisplayTimezone)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init local storage: %w", err)
	}

	collectionOpts := usecase.CollectionOptions{
		SnapshotKey: cfg.SnapshotKey,
		Observer:    syncMetrics,
		Logger:      logger,
	}

	var db *sql.DB
	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		db, err = postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		snapshots := postgres.NewSnapshotRepository(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		collectionOpts.Snapshots = snapshots
	}

	var queue *nats.Queue
	if strings.TrimSpace(cfg.NATSURL) != "" {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		collectionOpts.Events = queue
	}

	collection := usecase.NewDocumentCollection(client, collectionOpts)
	if err := collection.Warm(ctx); err != nil {
		logger.Warn("warm_start_failed", "error", err)
	}

	synchronizer := usecase.NewSynchronizer(collection, cfg.PollInterval, logger)
	uploads := usecase.NewUploadController(client, synchronizer, usecase.UploadOptions{
		SettleDelay:  cfg.UploadSettleDelay,
		ErrorDismiss: cfg.UploadErrorDismiss,
		Inspector:    inspect.NewPDFInspector(logger),
		Observer:     syncMetrics,
		Logger:       logger,
	})

	return &App{
		Config:     cfg,
		Logger:     logger,
		Backend:    client,
		Collection: collection,
		Sync:       synchronizer,
		Uploads:    uploads,
		Formatter:  formatter,
		Storage:    storage,
		Queue:      queue,

		HTTPMetrics: httpMetrics,
		SyncMetrics: syncMetrics,

		closeFn: func() {
			uploads.Close()
			synchronizer.Stop()
			if queue != nil {
				queue.Close()
			}
			if db != nil {
				_ = db.Close()
			}
		},
	}, nil
}

// Router builds the local view API over the app's components.
func (a *App) Router() *httpadapter.Router {
	return httpadapter.NewRouter(a.Config, httpadapter.Services{
		Collection: a.Collection,
		Sync:       a.Sync,
		Uploads:    a.Uploads,
		Links:      a.Backend,
		Documents:  a.Backend,
		Formatter:  a.Formatter,
		Metrics:    a.HTTPMetrics,
		Logger:     a.Logger,
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
