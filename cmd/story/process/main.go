// Package main provides a CLI command for running a single article through
// the story pipeline: duplicate detection, update detection and timeline
// auto-matching.
// Usage: siamwire-story-process --slug S --title-th T --content-file F [--output json]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	pgRepo "siamwire/internal/infra/adapter/persistence/postgres"
	"siamwire/internal/infra/db"
	"siamwire/internal/infra/embedding"
	"siamwire/internal/infra/llm"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/enrich"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/publish"
	"siamwire/internal/usecase/similarity"
	"siamwire/internal/usecase/storyupdate"
	"siamwire/internal/usecase/timeline"
)

// ProcessOutput represents the JSON output format for pipeline results.
type ProcessOutput struct {
	Outcome     string  `json:"outcome"`
	ArticleID   int64   `json:"article_id"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	SeriesID    string  `json:"series_id,omitempty"`
	AbsorbedIDs []int64 `json:"absorbed_ids,omitempty"`
}

func main() {
	var (
		slug         string
		title        string
		titleTh      string
		contentFile  string
		contentTh    string
		sourceName   string
		category     string
		interest     float64
		published    bool
		outputFormat string
	)

	flag.StringVar(&slug, "slug", "", "URL slug for the article (required)")
	flag.StringVar(&title, "title", "", "English title")
	flag.StringVar(&titleTh, "title-th", "", "Thai source title")
	flag.StringVar(&contentFile, "content-file", "-", "File with article content, - for stdin")
	flag.StringVar(&contentTh, "content-th-file", "", "File with Thai source content")
	flag.StringVar(&sourceName, "source", "", "Name of the originating Facebook page")
	flag.StringVar(&category, "category", "news", "Article category")
	flag.Float64Var(&interest, "interest", 5.0, "Interest score (0-10)")
	flag.BoolVar(&published, "published", false, "Create the article as published instead of draft")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	if slug == "" || (title == "" && titleTh == "") {
		fmt.Fprintln(os.Stderr, "Error: --slug and a title (--title or --title-th) are required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: siamwire-story-process --slug S --title-th T --content-file F [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  siamwire-story-process --slug patong-fire --title-th 'ไฟไหม้ป่าตอง' --content-file story.txt")
		fmt.Fprintln(os.Stderr, "  cat story.txt | siamwire-story-process --slug patong-fire --title 'Patong fire'")
		os.Exit(1)
	}

	logger := initLogger()

	content, err := readContent(contentFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read content: %v\n", err)
		os.Exit(1)
	}
	var contentThText string
	if contentTh != "" {
		contentThText, err = readContent(contentTh)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to read Thai content: %v\n", err)
			os.Exit(1)
		}
	}

	loadGazetteer(logger)
	database := db.Open()
	defer func() { _ = database.Close() }()

	status := entity.StatusDraft
	if published {
		status = entity.StatusPublished
	}
	article := &entity.Article{
		Slug:          slug,
		SourceName:    sourceName,
		Category:      category,
		Title:         title,
		Content:       content,
		TitleTh:       titleTh,
		ContentTh:     contentThText,
		InterestScore: interest,
		Status:        status,
		PublishedAt:   time.Now(),
		IsDeveloping:  true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	embedArticle(ctx, logger, article)

	svc := setupEnrichService(logger, database)
	result, err := svc.ProcessNewStory(ctx, article)
	if err != nil {
		logger.Error("pipeline failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Pipeline failed: %v\n", err)
		os.Exit(1)
	}

	out := ProcessOutput{
		Outcome:     string(result.Outcome),
		ArticleID:   result.Article.ID,
		Slug:        result.Article.Slug,
		Title:       result.Article.Title,
		SeriesID:    result.SeriesID,
		AbsorbedIDs: result.AbsorbedIDs,
	}
	printResult(out, outputFormat)
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

func readContent(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
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

// embedArticle computes the article embedding when an OpenAI key is
// configured. Without an embedding the article is excluded from similarity
// candidate pools but still flows through the pipeline.
func embedArticle(ctx context.Context, logger *slog.Logger, article *entity.Article) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, article will have no embedding")
		return
	}

	provider := embedding.NewOpenAI(apiKey, logger)
	title, content := article.MatchingText()
	vec, err := provider.Embed(ctx, title+"\n"+content)
	if err != nil {
		logger.Warn("embedding failed, continuing without one", slog.Any("error", err))
		return
	}
	article.Embedding = vec
}

// classifier is the full set of LLM-backed contracts the pipeline consumes.
type classifier interface {
	dedup.Verifier
	dedup.EntityExtractor
	storyupdate.Verifier
	merge.Synthesizer
	enrich.Enricher
}

func createClassifier(logger *slog.Logger) classifier {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, LLM verification and synthesis disabled")
		return llm.Noop{}
	}
	return llm.NewClaude(apiKey, logger)
}

// setupEnrichService wires the full story pipeline behind the enrichment
// coordinator.
func setupEnrichService(logger *slog.Logger, database *sql.DB) *enrich.Service {
	artRepo := pgRepo.NewArticleRepo(database)
	pipelineCfg := config.LoadPipelineConfig()
	cls := createClassifier(logger)

	timelineSvc := timeline.NewService(artRepo, pipelineCfg, logger)
	dedupSvc := dedup.NewService(artRepo, cls, cls, pipelineCfg, logger)
	updateSvc := storyupdate.NewService(artRepo, cls, cls, timelineSvc, pipelineCfg, logger)
	mergeSvc := merge.NewService(cls, logger)

	registry := publish.NewRegistry(30 * time.Minute)
	announcer := publish.NewAnnouncer(registry, &publish.LogPoster{Logger: logger}, logger)

	return enrich.NewService(artRepo, dedupSvc, updateSvc, mergeSvc, timelineSvc,
		pipelineCfg, logger, enrich.WithPublisher(announcer))
}

func printResult(out ProcessOutput, format string) {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to encode output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Outcome:    %s\n", out.Outcome)
	fmt.Printf("Article ID: %d\n", out.ArticleID)
	fmt.Printf("Slug:       %s\n", out.Slug)
	if out.Title != "" {
		fmt.Printf("Title:      %s\n", out.Title)
	}
	if out.SeriesID != "" {
		fmt.Printf("Series:     %s\n", out.SeriesID)
	}
	if len(out.AbsorbedIDs) > 0 {
		fmt.Printf("Absorbed:   %v\n", out.AbsorbedIDs)
	}
}
