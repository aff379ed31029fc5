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

	"github.com/harliandi/go-imgresize/internal/config"
	"github.com/harliandi/go-imgresize/internal/converter"
	"github.com/harliandi/go-imgresize/internal/handler"
	"github.com/harliandi/go-imgresize/internal/logging"
	"github.com/harliandi/go-imgresize/internal/middleware"
	"github.com/harliandi/go-imgresize/internal/presets"
)

const shutdownTimeout = 30 * time.Second

// app is the wired service
type app struct {
	server  *http.Server
	pool    *converter.WorkerPool
	presets *presets.Store
	limiter *middleware.RateLimiter
	logger  zerolog.Logger
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	store, err := presets.NewStore(cfg.PresetsFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}

	pool := converter.NewWorkerPool(converter.New(logger), cfg.WorkerCount, cfg.QueueSize, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)

	h := handler.New(pool, store, cfg.MaxUploadMB, cfg.JobTimeout, logger)
	router := handler.NewRouter(h, handler.RouterConfig{
		RateLimiter:   limiter,
		MaxConcurrent: cfg.MaxConcurrent,
	}, logger)

	// Timeouts guard against slowloris and hanging connections
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.JobTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &app{server: server, pool: pool, presets: store, limiter: limiter, logger: logger}, nil
}

// run serves until ctx is cancelled, then drains in-flight requests and jobs
func (a *app) run(ctx context.Context) error {
	a.pool.Start()
	defer a.shutdown()

	if err := a.presets.Watch(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("presets hot reload disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", a.server.Addr).Msg("starting image resize API")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *app) shutdown() {
	a.pool.Stop()
	a.limiter.Close()
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	logger.Info().
		Int("port", cfg.Port).
		Int("max_upload_mb", cfg.MaxUploadMB).
		Int("max_concurrent", cfg.MaxConcurrent).
		Int("rate_limit", cfg.RateLimitPerSec).
		Int("workers", cfg.WorkerCount).
		Int("queue", cfg.QueueSize).
		Dur("job_timeout", cfg.JobTimeout).
		Msg("configuration loaded")

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
