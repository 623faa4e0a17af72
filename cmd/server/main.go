// Package main is the entry point of the ledger server.
// It wires the services, serves the operational HTTP surface
// and runs the expiry sweeper until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payledger/internal/app"
	"payledger/internal/config"
	"payledger/internal/handlers"
	applog "payledger/internal/logger"
	"payledger/internal/repositories"
	"payledger/internal/routes"
	"payledger/internal/services/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables
	config.LoadEnv()
	cfg := config.Load()

	zl, err := applog.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Error("server stopped with error", zap.Error(err))
		_ = zl.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	if cfg.WebhookJWTSecret == "" {
		return errors.New("WEBHOOK_JWT_SECRET must be set")
	}

	a, err := app.New(cfg, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			zl.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	if err := repositories.Migrate(a.DB); err != nil {
		return err
	}

	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}

	server := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	server.Use(recover.New())
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	routes.SetupRoutes(server, routes.Dependencies{
		Payments: a.Payments,
		HealthChecks: map[string]handlers.Pinger{
			"database": sqlDB.PingContext,
			"redis":    a.Cache.HealthCheck,
		},
		Metrics:          a.Metrics.Handler(),
		WebhookSecret:    cfg.WebhookJWTSecret,
		WebhookRateLimit: config.GetIntEnv("WEBHOOK_RATE_LIMIT", 600),
		Logger:           zl,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("http server listening", zap.String("port", cfg.Port))
		return server.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		return payment.NewSweeper(a.Payments, cfg.Policy.SweepInterval, nil, zl).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		return server.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}
