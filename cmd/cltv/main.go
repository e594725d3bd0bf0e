package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cltv-analytics/internal/config"
	"cltv-analytics/internal/ingest"
	"cltv-analytics/internal/lifetimes"
	"cltv-analytics/internal/middleware"
	"cltv-analytics/internal/observability"
	"cltv-analytics/internal/report"
	"cltv-analytics/internal/server"
	"cltv-analytics/internal/services"
	"cltv-analytics/internal/storage"
	"cltv-analytics/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	cacheMaxAge    = "public, max-age=300"
	dashboardTitle = "Customer Lifetime Value"
	limiterSweep   = time.Minute
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard(dashboardTitle).Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("cltv run failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"source", cfg.Source,
		"database", cfg.Database,
		"analysis", cfg.Analysis,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *storage.Store
	if cfg.Database.Enabled {
		if store, err = storage.Open(ctx, cfg.Database, logger); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer store.Close()
	}

	var txStore ingest.TransactionStore
	if store != nil {
		txStore = store
	}
	src, err := ingest.New(cfg.Source, cfg.Database.RetailTable, txStore, logger)
	if err != nil {
		return err
	}

	fitter := lifetimes.NewFitter(cfg.Analysis.FrequencyPenalizer, cfg.Analysis.MonetaryPenalizer)
	pipeline := services.NewPipeline(fitter, pipelineOptions(cfg.Analysis), logger)

	start := time.Now()
	result, err := pipeline.Run(ctx, src)
	if err != nil {
		return err
	}
	logger.Info("cltv run complete",
		"run_id", result.RunID,
		"customers", len(result.Projections),
		"duration", time.Since(start),
	)

	if err := report.WriteSummary(os.Stdout, result, cfg.Analysis.TopN); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if dir := cfg.Report.OutputDir; dir != "" {
		filename := report.TimestampedFilename(dir, "cltv", result.CompletedAt)
		if err := report.ExportJSON(filename, result); err != nil {
			return fmt.Errorf("export report: %w", err)
		}
		logger.Info("report exported", "filename", filename)
	}

	if store != nil {
		if table := cfg.Database.ResultsTable; table != "" {
			if _, err := store.SaveProjections(ctx, table, result.RunID, result.Projections); err != nil {
				return fmt.Errorf("save projections: %w", err)
			}
		}

		v, err := store.Verify(ctx, cfg.Database.RetailTable, cfg.Database.SampleLimit)
		if err != nil {
			return fmt.Errorf("verify database: %w", err)
		}
		logger.Info("database verified",
			"databases", v.Databases,
			"tables", v.Tables,
			"sample_rows", len(v.Sample),
		)
		for i, row := range v.Sample {
			logger.Debug("sample row", "index", i, "row", row)
		}
	}

	if !cfg.Server.Enabled {
		return nil
	}
	return serve(ctx, cfg, pipeline, logger)
}

func pipelineOptions(a config.AnalysisConfig) services.Options {
	return services.Options{
		Cutoff:       a.Cutoff,
		DiscountRate: a.DiscountRate,
		Clean: services.CleanOptions{
			CancellationMarker: a.CancellationMarker,
			Country:            a.Country,
			LowerQuantile:      a.LowerQuantile,
			UpperQuantile:      a.UpperQuantile,
		},
		CLVHorizons:      a.CLVHorizons,
		PurchaseHorizons: a.PurchaseHorizons,
		SegmentHorizon:   a.SegmentHorizon,
		TimeUnit:         lifetimes.TimeUnit(a.TimeUnit),
	}
}

func newHandler(cfg *config.Config, pipeline *services.Pipeline, logger *slog.Logger) (http.Handler, *middleware.RateLimiter) {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(pipeline, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv), rateLimiter
}

func serve(ctx context.Context, cfg *config.Config, pipeline *services.Pipeline, logger *slog.Logger) error {
	handler, rateLimiter := newHandler(cfg, pipeline, logger)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	go rateLimiter.Run(sweepCtx, limiterSweep)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping rate limiter sweep")
		cancelSweep()
		return nil
	})

	logger.Info("starting dashboard", "addr", cfg.Address())
	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		cancelSweep()
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}
