// Package main is the entry point for the KYB dashboard server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/checks"
	"github.com/korubo/kybdash/internal/config"
	"github.com/korubo/kybdash/internal/directory"
	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/internal/runner"
	"github.com/korubo/kybdash/internal/store"
	"github.com/korubo/kybdash/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "kybdash", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Customer directory.
	dir, err := directory.Load(cfg.Directory.File)
	if err != nil {
		logger.Error("customer directory load failed", zap.Error(err))
		return 1
	}
	logger.Info("customer directory loaded",
		zap.String("file", cfg.Directory.File),
		zap.Int("customers", dir.Len()))

	// Dashboard store.
	dashStore, storeCloser, err := buildStore(ctx, cfg.Store, cfg.Run.HistoryLimit, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	// Run controller plumbing.
	checkClient := checks.NewHTTPCheckClient(cfg.Checks, logger, metrics)
	navigation := transport.NewNavigationSink()
	sessions := runner.NewSessions(runner.Deps{
		Directory:    dir,
		Store:        dashStore,
		Checks:       checkClient,
		Navigator:    navigation,
		Telemetry:    observability.NewEmitter(logger, metrics),
		Metrics:      metrics,
		Logger:       logger,
		StepInterval: cfg.Run.StepInterval,
	})

	jwks := transport.NewJWKSClient(cfg.Identity, logger)

	readinessChecks := observability.ReadinessChecks{
		DirectoryLoaded: func() bool { return dir.Len() > 0 },
	}
	if hc, ok := dashStore.(observability.HealthChecker); ok {
		readinessChecks.Store = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Sessions:     sessions,
		Store:        dashStore,
		Directory:    dir,
		Navigation:   navigation,
		Ready:        readinessChecks,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwks),
	})

	handler := observability.TracingMiddleware(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Duration("step_interval", cfg.Run.StepInterval),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests. Runs in
	// flight keep progressing on their own goroutines until the process
	// exits; their state is abandoned, not failed.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if storeCloser != nil {
		storeCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildStore creates the dashboard store based on config.
func buildStore(ctx context.Context, cfg config.StoreConfig, historyLimit int, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory dashboard store")
		return store.NewMemoryStore(historyLimit), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("store: ping: %w", err)
		}

		logger.Info("using postgres dashboard store")
		return store.NewPgStore(pool, historyLimit), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}
