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

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fhsinchy/geb-deals/config"
	"github.com/fhsinchy/geb-deals/internal/app"
	httpDelivery "github.com/fhsinchy/geb-deals/internal/delivery/http"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/cache"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/metrics"
	"github.com/fhsinchy/geb-deals/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "geb-deals: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		return err
	}
	zerolog.DefaultContextLogger = &logger

	logger.Info().
		Str("version", httpDelivery.Version).
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("Starting geb-deals backend")

	// Initialize infrastructure dependencies
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	searchService, err := app.NewSearchService(cfg, m)
	if err != nil {
		return err
	}
	logger.Info().
		Str("base_url", cfg.Marketplace.BaseURL).
		Str("category", cfg.Marketplace.Category).
		Str("fingerprint", cfg.Marketplace.Fingerprint).
		Dur("timeout", cfg.Marketplace.Timeout).
		Msg("Marketplace configured")

	limiters := cache.NewMemoryStore[*rate.Limiter](cfg.RateLimit.IdleTTL, time.Minute)
	defer limiters.Close()

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(searchService)
	router := httpDelivery.SetupRouter(cfg, handler, httpDelivery.RouterOptions{
		Logger:   logger,
		Metrics:  m,
		Limiters: limiters,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Int("tracked_clients", limiters.Size()).Msg("Shutting down")

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
