// Package timeline implements story timelines: series of articles tracking
// one incident over time, anchored by a single parent story. Unlike the
// fail-open matching pipeline, timeline mutations are editor-facing and fail
// loud on misuse.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	"siamwire/internal/observability/metrics"
	"siamwire/internal/repository"
	"siamwire/internal/usecase/similarity"
)

var (
	// ErrNotInTimeline is returned when removing an article that belongs to
	// no timeline.
	ErrNotInTimeline = errors.New("article is not part of a timeline")

	// ErrParentRemoval is returned when removing a parent from its own
	// timeline. Parents leave only by deleting the whole timeline.
	ErrParentRemoval = errors.New("parent story cannot be removed from its timeline")

	// ErrForeignParent is returned when attaching the parent of one timeline
	// to a different timeline.
	ErrForeignParent = errors.New("article is the parent of another timeline")
)

// Suggestion is a candidate addition to a timeline, with the similarity that
// produced it and a short editor-facing reason.
type Suggestion struct {
	Article    *entity.Article
	Similarity float64
	Reason     string
}

// Service manages story timelines.
type Service struct {
	articles repository.ArticleRepository
	cfg      config.PipelineConfig
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a timeline service.
func NewService(articles repository.ArticleRepository, cfg config.PipelineConfig, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		articles: articles,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateStoryTimeline starts a new timeline anchored at the given article and
// returns the series ID. Calling it on an article that already belongs to a
// timeline is idempotent and returns the existing series ID.
func (s *Service) CreateStoryTimeline(ctx context.Context, parentID int64, seriesTitle string) (string, error) {
	parent, err := s.articles.GetByID(ctx, parentID)
	if err != nil {
		return "", fmt.Errorf("CreateStoryTimeline: %w", err)
	}
	if parent.InTimeline() {
		return *parent.SeriesID, nil
	}

	seriesID := uuid.New().String()
	isParent := true
	zero := 0
	if _, err := s.articles.Update(ctx, parentID, repository.ArticlePatch{
		SeriesID:          &seriesID,
		StorySeriesTitle:  &seriesTitle,
		IsParentStory:     &isParent,
		SeriesUpdateCount: &zero,
	}); err != nil {
		return "", fmt.Errorf("CreateStoryTimeline: %w", err)
	}

	metrics.ActiveTimelines.Inc()
	s.logger.Info("timeline created",
		slog.String("series_id", seriesID),
		slog.Int64("parent_id", parentID),
		slog.String("series_title", seriesTitle))
	return seriesID, nil
}

// AddArticleToTimeline attaches an article to an existing timeline. The
// timeline's series title is copied onto the article and the parent's update
// count is incremented. An article that already belongs to another timeline is
// moved: the old parent's update count is decremented so both counts stay
// consistent. Attaching the parent of a different timeline is rejected with
// ErrForeignParent; re-attaching an existing member is a no-op.
func (s *Service) AddArticleToTimeline(ctx context.Context, articleID int64, seriesID string) error {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return fmt.Errorf("AddArticleToTimeline: %w", err)
	}
	if article.InTimeline() && *article.SeriesID == seriesID {
		return nil
	}
	if article.IsParentStory {
		return ErrForeignParent
	}
	previousSeries := ""
	if article.InTimeline() {
		previousSeries = *article.SeriesID
	}

	parent, err := s.articles.GetSeriesParent(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("AddArticleToTimeline: %w", err)
	}

	title := ""
	if parent.StorySeriesTitle != nil {
		title = *parent.StorySeriesTitle
	}
	if _, err := s.articles.Update(ctx, articleID, repository.ArticlePatch{
		SeriesID:         &seriesID,
		StorySeriesTitle: &title,
	}); err != nil {
		return fmt.Errorf("AddArticleToTimeline: %w", err)
	}

	if previousSeries != "" {
		if err := s.decrementParentCount(ctx, previousSeries); err != nil {
			return fmt.Errorf("AddArticleToTimeline: %w", err)
		}
	}

	count := parent.SeriesUpdateCount + 1
	if _, err := s.articles.Update(ctx, parent.ID, repository.ArticlePatch{
		SeriesUpdateCount: &count,
	}); err != nil {
		return fmt.Errorf("AddArticleToTimeline: update parent count: %w", err)
	}

	s.logger.Info("article attached to timeline",
		slog.Int64("article_id", articleID),
		slog.String("series_id", seriesID),
		slog.Int("series_update_count", count))
	return nil
}

// RemoveArticleFromTimeline detaches a child article from its timeline and
// decrements the parent's update count, never below zero. Removing the parent
// itself is rejected with ErrParentRemoval.
func (s *Service) RemoveArticleFromTimeline(ctx context.Context, articleID int64) error {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return fmt.Errorf("RemoveArticleFromTimeline: %w", err)
	}
	if !article.InTimeline() {
		return ErrNotInTimeline
	}
	if article.IsParentStory {
		return ErrParentRemoval
	}
	seriesID := *article.SeriesID

	if _, err := s.articles.Update(ctx, articleID, repository.ArticlePatch{
		ClearSeries: true,
	}); err != nil {
		return fmt.Errorf("RemoveArticleFromTimeline: %w", err)
	}

	if err := s.decrementParentCount(ctx, seriesID); err != nil {
		return fmt.Errorf("RemoveArticleFromTimeline: %w", err)
	}
	return nil
}

// decrementParentCount lowers the update count of a series parent, never
// below zero. A parentless timeline is inconsistent but the detach already
// happened, so it is logged and not an error.
func (s *Service) decrementParentCount(ctx context.Context, seriesID string) error {
	parent, err := s.articles.GetSeriesParent(ctx, seriesID)
	if err != nil {
		s.logger.Warn("detached article from parentless timeline",
			slog.String("series_id", seriesID))
		return nil
	}
	count := parent.SeriesUpdateCount - 1
	if count < 0 {
		count = 0
	}
	if _, err := s.articles.Update(ctx, parent.ID, repository.ArticlePatch{
		SeriesUpdateCount: &count,
	}); err != nil {
		return fmt.Errorf("update parent count: %w", err)
	}
	return nil
}

// DeleteTimeline dissolves a timeline: every member, parent included, has its
// series fields cleared. The articles themselves are untouched.
func (s *Service) DeleteTimeline(ctx context.Context, seriesID string) error {
	members, err := s.articles.ListBySeries(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("DeleteTimeline: %w", err)
	}
	if len(members) == 0 {
		return fmt.Errorf("DeleteTimeline: series %q: %w", seriesID, entity.ErrNotFound)
	}

	for _, member := range members {
		if _, err := s.articles.Update(ctx, member.ID, repository.ArticlePatch{
			ClearSeries: true,
		}); err != nil {
			return fmt.Errorf("DeleteTimeline: clear article %d: %w", member.ID, err)
		}
	}

	metrics.ActiveTimelines.Dec()
	s.logger.Info("timeline deleted",
		slog.String("series_id", seriesID),
		slog.Int("member_count", len(members)))
	return nil
}

// GetTimelineStories returns every member of a timeline, newest first.
func (s *Service) GetTimelineStories(ctx context.Context, seriesID string) ([]*entity.Article, error) {
	stories, err := s.articles.ListBySeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("GetTimelineStories: %w", err)
	}
	return stories, nil
}

// GetParentStory resolves a timeline parent from either a series ID or the
// slug of any member article.
func (s *Service) GetParentStory(ctx context.Context, ref string) (*entity.Article, error) {
	parent, err := s.articles.GetSeriesParent(ctx, ref)
	if err == nil {
		return parent, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("GetParentStory: %w", err)
	}

	article, err := s.articles.GetBySlug(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("GetParentStory: %w", err)
	}
	if article.IsParentStory {
		return article, nil
	}
	if !article.InTimeline() {
		return nil, fmt.Errorf("GetParentStory: article %q: %w", ref, ErrNotInTimeline)
	}
	parent, err = s.articles.GetSeriesParent(ctx, *article.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("GetParentStory: %w", err)
	}
	return parent, nil
}

// SuggestRelatedArticles proposes recent articles an editor might attach to
// the parent's timeline. Candidates come from the suggestion window, must
// clear the suggestion similarity threshold, and articles already in a
// timeline or merged away are excluded. Results are ordered by similarity
// and capped at the configured limit.
func (s *Service) SuggestRelatedArticles(ctx context.Context, parentID int64) ([]Suggestion, error) {
	parent, err := s.articles.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("SuggestRelatedArticles: %w", err)
	}
	if !parent.HasEmbedding() {
		return nil, nil
	}

	since := s.now().Add(-s.cfg.SuggestionWindow)
	corpus, err := s.articles.ListRecentWithEmbeddings(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("SuggestRelatedArticles: %w", err)
	}

	var suggestions []Suggestion
	for _, art := range corpus {
		if art.ID == parent.ID || art.InTimeline() || art.IsMerged() {
			continue
		}
		sim := similarity.CosineSimilarity(parent.Embedding, art.Embedding)
		if sim < s.cfg.SuggestionThreshold {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Article:    art,
			Similarity: sim,
			Reason:     suggestionReason(sim),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Similarity > suggestions[j].Similarity
	})
	if len(suggestions) > s.cfg.SuggestionLimit {
		suggestions = suggestions[:s.cfg.SuggestionLimit]
	}
	return suggestions, nil
}

// FindMatchingTimeline checks a new article against every auto-matching
// parent story's timeline tags. Matching is a case-insensitive substring
// search over the article's text in both languages; the first parent with any
// matching tag wins. Returns nil when no timeline matches.
func (s *Service) FindMatchingTimeline(ctx context.Context, article *entity.Article) (*entity.Article, error) {
	parents, err := s.articles.ListAutoMatchParents(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindMatchingTimeline: %w", err)
	}

	haystack := strings.ToLower(
		article.Title + " " + article.Content + " " + article.TitleTh + " " + article.ContentTh)

	for _, parent := range parents {
		if parent.ID == article.ID || !parent.InTimeline() {
			continue
		}
		for _, tag := range normalizeTags(parent.TimelineTags) {
			if strings.Contains(haystack, tag) {
				s.logger.Info("article matched timeline by tag",
					slog.Int64("article_id", article.ID),
					slog.String("series_id", *parent.SeriesID),
					slog.String("tag", tag))
				return parent, nil
			}
		}
	}
	return nil, nil
}

func suggestionReason(sim float64) string {
	switch {
	case sim >= 0.90:
		return "near-certain match for this story"
	case sim >= 0.80:
		return "strongly related coverage"
	default:
		return "possibly related coverage"
	}
}

// normalizeTags flattens stored tags into lowercase trimmed needles. Tags
// written through older admin tooling arrive as one comma-joined string, so
// every element is split on commas before use.
func normalizeTags(tags []string) []string {
	var out []string
	for _, raw := range tags {
		for _, part := range strings.Split(raw, ",") {
			tag := strings.ToLower(strings.TrimSpace(part))
			if tag != "" {
				out = append(out, tag)
			}
		}
	}
	return out
}
