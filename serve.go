package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hermod-app/hermod/internal/client"
	"github.com/hermod-app/hermod/internal/db"
	"github.com/hermod-app/hermod/internal/handler"
	"github.com/hermod-app/hermod/internal/metrics"
	"github.com/hermod-app/hermod/internal/service"
	"github.com/hermod-app/hermod/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("migrate", true, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	workers, err := service.HashWorkers(cfg.Auth)
	if err != nil {
		return err
	}
	store := db.NewPostgres(pool)
	hashes := service.NewHashPool(service.NewPasswordHasher(), workers, m)

	tokens, err := service.NewTokenService(cfg.Auth, m)
	if err != nil {
		return err
	}
	mailer, err := client.NewPostmarkClient(cfg.Postmark)
	if err != nil {
		return err
	}
	if !mailer.IsConfigured() {
		logger.Warn("Postmark is not configured; password reset emails will not be sent")
	}
	accounts, err := service.NewAccountService(store, hashes, mailer, cfg.Auth, logger)
	if err != nil {
		return err
	}
	defer accounts.Wait()

	pruner := cron.New()
	if _, err := pruner.AddFunc(cfg.Auth.ResetPruneSchedule, func() {
		if _, err := accounts.PruneResetRequests(ctx); err != nil {
			logger.WithError(err).Error("failed to prune password reset requests")
		}
	}); err != nil {
		return fmt.Errorf("invalid RESET_PRUNE_SCHEDULE %q: %w", cfg.Auth.ResetPruneSchedule, err)
	}
	pruner.Start()
	defer func() {
		<-pruner.Stop().Done()
	}()

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	router := handler.NewRouter(handler.RouterConfig{
		Auth:           handler.NewAuthHandler(service.NewCredentialValidator(store, hashes, m, logger), tokens, accounts, logger),
		Authenticator:  service.NewRequestAuthorizer(tokens, store, logger),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           otelhttp.NewHandler(router, "hermod"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
