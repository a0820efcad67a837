// Package main is the entrypoint for the SiteBrief worker. It runs the HTTP
// API and the report job scheduler in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sitebrief/sitebrief/internal/ai"
	"github.com/sitebrief/sitebrief/internal/api"
	"github.com/sitebrief/sitebrief/internal/api/handler"
	mw "github.com/sitebrief/sitebrief/internal/api/middleware"
	"github.com/sitebrief/sitebrief/internal/api/response"
	"github.com/sitebrief/sitebrief/internal/artifact"
	"github.com/sitebrief/sitebrief/internal/cache"
	"github.com/sitebrief/sitebrief/internal/config"
	"github.com/sitebrief/sitebrief/internal/render"
	"github.com/sitebrief/sitebrief/internal/report"
	"github.com/sitebrief/sitebrief/internal/scheduler"
	"github.com/sitebrief/sitebrief/internal/store"
	"github.com/sitebrief/sitebrief/internal/trackyard"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"artifact_backend", cfg.Artifact.Backend,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Trackyard client, with read-through caching for notes and images
	tcHTTP := trackyard.NewHTTPClient(cfg.Trackyard.BaseURL, cfg.Trackyard.APIToken, cfg.Trackyard.Timeout)
	tc := trackyard.NewCachedClient(tcHTTP, redisCache, cfg.Trackyard.CacheTTL)

	// 6. Create AI provider
	aiProvider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 7. Artifact storage
	artifacts, err := newArtifactStore(cfg.Artifact)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}

	// 8. Create store and pipeline runner
	pgStore := store.NewPostgresStore(pool)

	runner := report.NewRunner(pgStore, tc, aiProvider, render.NewHTMLAssembler(), artifacts, report.Options{
		Thresholds: report.Thresholds{
			MinNotes:  cfg.Report.MinNotes,
			MinPhotos: cfg.Report.MinPhotos,
		},
		MaxCandidates:    cfg.Report.MaxCandidates,
		MinCandidates:    cfg.Report.MinCandidates,
		MaxImages:        cfg.Report.MaxImages,
		MaxSummaryWords:  cfg.Report.MaxSummaryWords,
		MaxPhotoDays:     cfg.Report.MaxPhotoDays,
		InferenceTimeout: cfg.AI.InferenceTimeout,
		WorkDir:          cfg.Scheduler.WorkDir,
	})

	sweeper := scheduler.NewSweeper(pgStore, artifacts, cfg.Scheduler.Retention)
	sched := scheduler.New(pgStore, runner, sweeper, redisCache,
		cfg.Scheduler.PollInterval, cfg.Scheduler.SweepInterval)

	// 9. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	reports := handler.NewReports(pgStore, redisCache)
	projects := handler.NewProjects(pgStore)

	router := api.NewRouter(api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		CreateProject: projects.Create,
		GetProject:    projects.Get,

		CreateReport: reports.Create,
		GetReport:    reports.Get,
		ListReports:  reports.List,
	})

	// 10. Start HTTP server and scheduler
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

func newArtifactStore(cfg config.ArtifactConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case "http":
		return artifact.NewHTTPStore(cfg.BaseURL, cfg.Token, cfg.Timeout), nil
	default:
		return artifact.NewFSStore(cfg.Dir)
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
