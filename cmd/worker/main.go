package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"siamwire/internal/config"
	pgRepo "siamwire/internal/infra/adapter/persistence/postgres"
	"siamwire/internal/infra/db"
	"siamwire/internal/infra/llm"
	workerPkg "siamwire/internal/infra/worker"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/enrich"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/publish"
	"siamwire/internal/usecase/similarity"
	"siamwire/internal/usecase/storyupdate"
	"siamwire/internal/usecase/timeline"
)

// announceClaimTTL bounds how long a publish claim blocks re-announcement.
const announceClaimTTL = 30 * time.Minute

// classifier is the full set of LLM-backed contracts the pipeline consumes.
// Both the Claude client and the no-op stand-in satisfy it.
type classifier interface {
	dedup.Verifier
	dedup.EntityExtractor
	storyupdate.Verifier
	merge.Synthesizer
	enrich.Enricher
}

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM articles LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loadGazetteer(logger)

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("sweep_timeout", workerConfig.SweepTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	svc := setupEnrichService(logger, database)

	startCronWorker(ctx, logger, svc, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes and returns a structured logger based on environment
// configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// loadGazetteer merges the optional on-disk gazetteer into the built-in
// similarity tables.
func loadGazetteer(logger *slog.Logger) {
	path := os.Getenv("GAZETTEER_FILE")
	if path == "" {
		path = "config/gazetteer.yaml"
	}
	if err := similarity.LoadGazetteerFile(path); err != nil {
		logger.Warn("failed to load gazetteer file, using built-ins",
			slog.String("path", path),
			slog.Any("error", err))
	}
}

// setupEnrichService wires the full story pipeline behind the enrichment
// coordinator.
func setupEnrichService(logger *slog.Logger, database *sql.DB) *enrich.Service {
	artRepo := pgRepo.NewArticleRepo(database)
	pipelineCfg := config.LoadPipelineConfig()

	cls, enabled := createClassifier(logger)

	timelineSvc := timeline.NewService(artRepo, pipelineCfg, logger)
	dedupSvc := dedup.NewService(artRepo, cls, cls, pipelineCfg, logger)
	updateSvc := storyupdate.NewService(artRepo, cls, cls, timelineSvc, pipelineCfg, logger)
	mergeSvc := merge.NewService(cls, logger)

	registry := publish.NewRegistry(announceClaimTTL)
	announcer := publish.NewAnnouncer(registry, &publish.LogPoster{Logger: logger}, logger)

	opts := []enrich.Option{enrich.WithPublisher(announcer)}
	if enabled {
		opts = append(opts, enrich.WithEnricher(cls))
	}

	return enrich.NewService(artRepo, dedupSvc, updateSvc, mergeSvc, timelineSvc,
		pipelineCfg, logger, opts...)
}

// createClassifier returns the Claude-backed classifier when an API key is
// configured and the no-op stand-in otherwise. The second return reports
// whether generic story enrichment should be enabled.
func createClassifier(logger *slog.Logger) (classifier, bool) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, LLM verification and synthesis disabled")
		return llm.Noop{}, false
	}
	logger.Info("Claude classifier initialized")
	return llm.NewClaude(apiKey, logger), true
}

// startMetricsServer exposes the Prometheus metrics endpoint.
func startMetricsServer(ctx context.Context, logger *slog.Logger) {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// startCronWorker starts the cron scheduler and runs the enrichment sweep
// periodically until the context is cancelled.
func startCronWorker(ctx context.Context, logger *slog.Logger, svc *enrich.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runSweepJob(logger, svc, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping scheduler")
	healthServer.SetReady(false)
	<-c.Stop().Done()
	logger.Info("worker stopped")
}

// runSweepJob executes a single enrichment sweep with timeout and metrics.
func runSweepJob(logger *slog.Logger, svc *enrich.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	logger.Info("enrichment sweep started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()

	result, err := svc.EnrichDevelopingStories(ctx)
	if err != nil {
		logger.Error("enrichment sweep failed", slog.Any("error", err))
		metrics.RecordSweepRun("failure")
		metrics.RecordSweepDuration(time.Since(startTime).Seconds())
		return
	}

	metrics.RecordSweepRun("success")
	metrics.RecordSweepDuration(time.Since(startTime).Seconds())
	metrics.RecordStoriesProcessed(result.Enriched + result.Completed + result.Failed)
	metrics.RecordLastSuccess()

	logger.Info("enrichment sweep completed",
		slog.Int("enriched", result.Enriched),
		slog.Int("completed", result.Completed),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", time.Since(startTime)),
	)
}
