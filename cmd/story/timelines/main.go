// Package main provides a CLI command for inspecting and editing story
// timelines.
// Usage: siamwire-story-timelines <show|create|add|remove|delete|suggest> [flags]
package main

import (
	"context"
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
	"siamwire/internal/usecase/timeline"
)

// StoryOutput represents one timeline member in JSON output.
type StoryOutput struct {
	ArticleID   int64  `json:"article_id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	IsParent    bool   `json:"is_parent"`
	PublishedAt string `json:"published_at"`
}

// SuggestionOutput represents one timeline suggestion in JSON output.
type SuggestionOutput struct {
	ArticleID  int64   `json:"article_id"`
	Slug       string  `json:"slug"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: siamwire-story-timelines <action> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Actions:")
	fmt.Fprintln(os.Stderr, "  show    --series ID              List the stories in a timeline")
	fmt.Fprintln(os.Stderr, "  create  --parent ID --title T    Create a timeline anchored at an article")
	fmt.Fprintln(os.Stderr, "  add     --article ID --series ID Attach an article to a timeline")
	fmt.Fprintln(os.Stderr, "  remove  --article ID             Detach an article from its timeline")
	fmt.Fprintln(os.Stderr, "  delete  --series ID              Dissolve a timeline, keeping the articles")
	fmt.Fprintln(os.Stderr, "  suggest --parent ID              Suggest related articles for a timeline")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	action := os.Args[1]

	fs := flag.NewFlagSet(action, flag.ExitOnError)
	var (
		seriesID     string
		parentID     int64
		articleID    int64
		title        string
		outputFormat string
	)
	fs.StringVar(&seriesID, "series", "", "Series ID of the timeline")
	fs.Int64Var(&parentID, "parent", 0, "Article ID of the timeline parent")
	fs.Int64Var(&articleID, "article", 0, "Article ID to attach or detach")
	fs.StringVar(&title, "title", "", "Display title for a new timeline")
	fs.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	_ = fs.Parse(os.Args[2:])

	logger := initLogger()
	database := db.Open()
	defer func() { _ = database.Close() }()

	artRepo := pgRepo.NewArticleRepo(database)
	svc := timeline.NewService(artRepo, config.LoadPipelineConfig(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch action {
	case "show":
		err = runShow(ctx, svc, seriesID, outputFormat)
	case "create":
		err = runCreate(ctx, svc, parentID, title)
	case "add":
		err = runAdd(ctx, svc, articleID, seriesID)
	case "remove":
		err = runRemove(ctx, svc, articleID)
	case "delete":
		err = runDelete(ctx, svc, seriesID)
	case "suggest":
		err = runSuggest(ctx, svc, parentID, outputFormat)
	default:
		usage()
	}
	if err != nil {
		logger.Error("timeline command failed", slog.String("action", action), slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
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

func runShow(ctx context.Context, svc *timeline.Service, seriesID, format string) error {
	if seriesID == "" {
		return fmt.Errorf("--series is required")
	}
	stories, err := svc.GetTimelineStories(ctx, seriesID)
	if err != nil {
		return err
	}

	out := make([]StoryOutput, 0, len(stories))
	for _, s := range stories {
		out = append(out, StoryOutput{
			ArticleID:   s.ID,
			Slug:        s.Slug,
			Title:       s.Title,
			IsParent:    s.IsParentStory,
			PublishedAt: s.PublishedAt.Format(time.RFC3339),
		})
	}

	if format == "json" {
		return printJSON(out)
	}
	for _, s := range out {
		marker := " "
		if s.IsParent {
			marker = "*"
		}
		fmt.Printf("%s %6d  %s  %s\n", marker, s.ArticleID, s.PublishedAt, s.Title)
	}
	return nil
}

func runCreate(ctx context.Context, svc *timeline.Service, parentID int64, title string) error {
	if parentID == 0 || title == "" {
		return fmt.Errorf("--parent and --title are required")
	}
	seriesID, err := svc.CreateStoryTimeline(ctx, parentID, title)
	if err != nil {
		return err
	}
	fmt.Printf("Created timeline %s\n", seriesID)
	return nil
}

func runAdd(ctx context.Context, svc *timeline.Service, articleID int64, seriesID string) error {
	if articleID == 0 || seriesID == "" {
		return fmt.Errorf("--article and --series are required")
	}
	if err := svc.AddArticleToTimeline(ctx, articleID, seriesID); err != nil {
		return err
	}
	fmt.Printf("Added article %d to timeline %s\n", articleID, seriesID)
	return nil
}

func runRemove(ctx context.Context, svc *timeline.Service, articleID int64) error {
	if articleID == 0 {
		return fmt.Errorf("--article is required")
	}
	if err := svc.RemoveArticleFromTimeline(ctx, articleID); err != nil {
		return err
	}
	fmt.Printf("Removed article %d from its timeline\n", articleID)
	return nil
}

func runDelete(ctx context.Context, svc *timeline.Service, seriesID string) error {
	if seriesID == "" {
		return fmt.Errorf("--series is required")
	}
	if err := svc.DeleteTimeline(ctx, seriesID); err != nil {
		return err
	}
	fmt.Printf("Deleted timeline %s\n", seriesID)
	return nil
}

func runSuggest(ctx context.Context, svc *timeline.Service, parentID int64, format string) error {
	if parentID == 0 {
		return fmt.Errorf("--parent is required")
	}
	suggestions, err := svc.SuggestRelatedArticles(ctx, parentID)
	if err != nil {
		return err
	}

	out := make([]SuggestionOutput, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, SuggestionOutput{
			ArticleID:  s.Article.ID,
			Slug:       s.Article.Slug,
			Title:      s.Article.Title,
			Similarity: s.Similarity,
			Reason:     s.Reason,
		})
	}

	if format == "json" {
		return printJSON(out)
	}
	if len(out) == 0 {
		fmt.Println("No suggestions")
		return nil
	}
	for _, s := range out {
		fmt.Printf("%6d  %.3f  %-32s  %s\n", s.ArticleID, s.Similarity, s.Reason, s.Title)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
