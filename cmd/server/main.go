// Command server runs the HomeFinder messaging API: HTTP endpoints for
// conversations and messages plus the realtime websocket channel.
//
// @title                      HomeFinder Messaging API
// @version                    1.0
// @description                Owner/client conversations around property listings with ordered, idempotent messages and realtime delivery.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/homefinder-messaging/docs"
	"github.com/tbourn/homefinder-messaging/internal/config"
	httpapi "github.com/tbourn/homefinder-messaging/internal/http"
	"github.com/tbourn/homefinder-messaging/internal/observability"
	"github.com/tbourn/homefinder-messaging/internal/realtime"
	"github.com/tbourn/homefinder-messaging/internal/repo"
	"github.com/tbourn/homefinder-messaging/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log.Logger = sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr).Hook(observability.TraceHook{})
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if cfg.CatalogSeedPath != "" {
		n, err := repo.SeedProperties(ctx, db, cfg.CatalogSeedPath)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info().Int("properties", n).Str("path", cfg.CatalogSeedPath).Msg("catalog seeded")
	}
	if sysutil.IsTruthy(os.Getenv("MIGRATE_ONLY")) {
		log.Info().Msg("migrations applied, exiting")
		return nil
	}

	reg := realtime.NewRegistry(realtime.Options{
		IdleTimeout:     cfg.Realtime.SessionIdleTimeout,
		Buffer:          cfg.Realtime.SessionBuffer,
		DeliveryRetries: cfg.Realtime.DeliveryRetries,
		DeliveryBackoff: cfg.Realtime.DeliveryBackoff,
		Logger:          &log.Logger,
	})
	regDone := make(chan struct{})
	go func() {
		defer close(regDone)
		reg.Run(ctx)
	}()

	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = ver
	r := gin.New()
	httpapi.RegisterRoutes(r, db, reg, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		stop()
		<-regDone
		return fmt.Errorf("http server: %w", err)
	}

	// Websocket sessions are hijacked and not tracked by Shutdown; the
	// registry closes them with reason "shutdown" when ctx ends.
	<-regDone
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("stopped cleanly")
	return nil
}
