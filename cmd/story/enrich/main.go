// Package main provides a CLI command for running one enrichment sweep over
// all developing stories, outside the cron worker's schedule.
// Usage: siamwire-story-enrich [--timeout 10m] [--output json]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"siamwire/internal/config"
	pgRepo "siamwire/internal/infra/adapter/persistence/postgres"
	"siamwire/internal/infra/db"
	"siamwire/internal/infra/llm"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/enrich"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/publish"
	"siamwire/internal/usecase/similarity"
	"siamwire/internal/usecase/storyupdate"
	"siamwire/internal/usecase/timeline"
)

// SweepOutput represents the JSON output format for sweep results.
type SweepOutput struct {
	Enriched  int    `json:"enriched"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Duration  string `json:"duration"`
}

func main() {
	var (
		timeout      time.Duration
		outputFormat string
	)

	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "Timeout for the sweep run")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	logger := initLogger()
	loadGazetteer(logger)

	database := db.Open()
	defer func() { _ = database.Close() }()

	svc := setupEnrichService(logger, database)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	logger.Info("enrichment sweep started")
	result, err := svc.EnrichDevelopingStories(ctx)
	if err != nil {
		logger.Error("enrichment sweep failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Sweep failed: %v\n", err)
		os.Exit(1)
	}

	out := SweepOutput{
		Enriched:  result.Enriched,
		Completed: result.Completed,
		Failed:    result.Failed,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to encode output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Enriched:  %d\n", out.Enriched)
	fmt.Printf("Completed: %d\n", out.Completed)
	fmt.Printf("Failed:    %d\n", out.Failed)
	fmt.Printf("Duration:  %s\n", out.Duration)
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

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

// classifier is the full set of LLM-backed contracts the pipeline consumes.
type classifier interface {
	dedup.Verifier
	dedup.EntityExtractor
	storyupdate.Verifier
	merge.Synthesizer
	enrich.Enricher
}

func setupEnrichService(logger *slog.Logger, database *sql.DB) *enrich.Service {
	artRepo := pgRepo.NewArticleRepo(database)
	pipelineCfg := config.LoadPipelineConfig()

	var cls classifier
	enabled := false
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		cls = llm.NewClaude(apiKey, logger)
		enabled = true
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, LLM verification and synthesis disabled")
		cls = llm.Noop{}
	}

	timelineSvc := timeline.NewService(artRepo, pipelineCfg, logger)
	dedupSvc := dedup.NewService(artRepo, cls, cls, pipelineCfg, logger)
	updateSvc := storyupdate.NewService(artRepo, cls, cls, timelineSvc, pipelineCfg, logger)
	mergeSvc := merge.NewService(cls, logger)

	registry := publish.NewRegistry(30 * time.Minute)
	announcer := publish.NewAnnouncer(registry, &publish.LogPoster{Logger: logger}, logger)

	opts := []enrich.Option{enrich.WithPublisher(announcer)}
	if enabled {
		opts = append(opts, enrich.WithEnricher(cls))
	}

	return enrich.NewService(artRepo, dedupSvc, updateSvc, mergeSvc, timelineSvc,
		pipelineCfg, logger, opts...)
}
