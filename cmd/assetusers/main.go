package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/assetusers/internal/adapter/driven/probe"
	sqliteadapter "github.com/ericfisherdev/assetusers/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/assetusers/internal/adapter/driven/workerpool"
	httphandler "github.com/ericfisherdev/assetusers/internal/adapter/driving/http"
	"github.com/ericfisherdev/assetusers/internal/adapter/driving/seed"
	"github.com/ericfisherdev/assetusers/internal/application"
	"github.com/ericfisherdev/assetusers/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"probe_workers", cfg.ProbeWorkers,
		"probe_timeout", cfg.ProbeTimeout,
		"mfa_required", cfg.ViewAuthNeedMFA,
	)
	if !cfg.HasSecretKey() {
		logger.Warn("ASSETUSERS_SECRET_KEY not set, credential secrets cannot be stored or read")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(); err != nil {
		return err
	}
	logger.Info("database ready", "path", db.Path())

	// 4. Wire stores.
	inventory := sqliteadapter.NewInventoryRepo(db, cfg.SecretKey)
	bindings := sqliteadapter.NewBindingRepo(db, cfg.SecretKey)
	authBooks := sqliteadapter.NewAuthBookRepo(db, cfg.SecretKey)
	connectivity := sqliteadapter.NewConnectivityRepo(db)

	// 5. Optionally seed the inventory.
	if cfg.SeedFile != "" {
		if _, err := seed.LoadFile(ctx, cfg.SeedFile, inventory, logger); err != nil {
			return err
		}
	}

	// 6. Probers and the worker pool.
	sshProber, err := probe.NewSSHProber(cfg.KnownHostsPath)
	if err != nil {
		return err
	}
	if !sshProber.VerifiesHostKeys() {
		logger.Warn("ASSETUSERS_KNOWN_HOSTS not set, ssh host keys are not verified")
	}
	prober := probe.NewDispatcher(sshProber, probe.NewRDPProber())

	pool := workerpool.NewWorkerPool(workerpool.PoolOptions{
		WorkerCount:  cfg.ProbeWorkers,
		QueueSize:    cfg.ProbeQueueSize,
		ProbeTimeout: cfg.ProbeTimeout,
		JobTTL:       cfg.JobTTL,
		Logger:       logger.With("component", "workerpool"),
	})

	// 7. Application services.
	resolver := application.NewResolver(inventory, bindings, logger)
	assetUserSvc := application.NewAssetUserService(resolver, inventory, authBooks, bindings, connectivity, logger)
	connectivitySvc := application.NewConnectivityService(resolver, inventory, bindings, prober, pool, connectivity, logger)

	// 8. HTTP API.
	apiHandler := httphandler.NewHandler(assetUserSvc, connectivitySvc, httphandler.Options{
		APIToken:          cfg.APIToken,
		MFASecret:         cfg.MFASecret,
		NeedMFA:           cfg.ViewAuthNeedMFA,
		TestRatePerMinute: cfg.TestRatePerMinute,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 9. Run the pool and the server until a signal arrives or either fails.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Start(gctx)
	})
	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
