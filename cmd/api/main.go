package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/compass-docsync/internal/bootstrap"
	"github.com/kirillkom/compass-docsync/internal/config"
	"github.com/kirillkom/compass-docsync/internal/observability/logging"
)

func main() {
	envErr := config.LoadEnvironment()
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Error("config_load_failed", "error", envErr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("api_stopped_with_error", "error", err)
		os.Exit(1)
	}
	logger.Info("api_stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := bootstrap.New(ctx, "api", cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		return fmt.Errorf("listen on :%s: %w", cfg.APIPort, err)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	server := &http.Server{
		Handler:      app.Router().Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
	return serve(ctx, server, listener, app.Sync, logger)
}

type syncLifecycle interface {
	Start(ctx context.Context)
	Stop()
}

const shutdownTimeout = 10 * time.Second

// serve runs the server and the synchronizer until ctx ends. The synchronizer
// is stopped only after the server has drained, so no in-flight request can
// refresh the collection once Stop has returned.
func serve(ctx context.Context, server *http.Server, listener net.Listener, sync syncLifecycle, logger *slog.Logger) error {
	drained := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sync.Start(gctx)
		<-drained
		sync.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer close(drained)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api_shutdown_incomplete", "error", err)
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
