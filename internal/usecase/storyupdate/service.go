// Package storyupdate implements the story update (progression) detector: it
// decides whether a new article is a later stage of an already-known incident
// ("missing" becoming "body found") rather than a duplicate report, and links
// confirmed updates into a story timeline.
package storyupdate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	"siamwire/internal/observability/metrics"
	"siamwire/internal/repository"
	"siamwire/internal/usecase/similarity"
)

// Result is the outcome of update detection for a candidate article.
type Result struct {
	IsUpdate bool
	// Original is the earlier-stage article this candidate updates.
	Original        *entity.Article
	Confidence      float64
	ProgressionType string
	Reasoning       string
}

// Pair carries the two texts an LLM update verifier compares. The verifier is
// asked whether the new article is a follow-up to the existing one, paying
// attention to person attributes (age, nationality, gender) and location
// continuity.
type Pair struct {
	ExistingTitle   string
	ExistingContent string
	NewTitle        string
	NewContent      string
}

// Answer is the structured verdict of an update verifier, on the model-facing
// 0-100 confidence scale.
type Answer struct {
	IsUpdate   bool
	Confidence int
	Reasoning  string
}

// Verifier asks a model whether a new article is an update to an existing one.
type Verifier interface {
	VerifyUpdate(ctx context.Context, pair Pair) (*Answer, error)
}

// EntityExtractor extracts typed entities from article text.
type EntityExtractor interface {
	Extract(ctx context.Context, title, content string) ([]entity.ExtractedEntity, error)
}

// TimelineCreator creates a story timeline anchored at a parent article and
// returns the new series ID.
type TimelineCreator interface {
	CreateStoryTimeline(ctx context.Context, parentID int64, seriesTitle string) (string, error)
}

// LinkResult is the outcome of linking a new article as an update: the series
// it now belongs to and the content with the update notice prepended. The
// caller persists both.
type LinkResult struct {
	SeriesID string
	Content  string
}

// Service is the story update detector.
type Service struct {
	articles  repository.ArticleRepository
	verifier  Verifier
	extractor EntityExtractor
	timelines TimelineCreator
	cfg       config.PipelineConfig
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a story update detector.
func NewService(articles repository.ArticleRepository, verifier Verifier, extractor EntityExtractor, timelines TimelineCreator, cfg config.PipelineConfig, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		articles:  articles,
		verifier:  verifier,
		extractor: extractor,
		timelines: timelines,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetectStoryUpdate decides whether the candidate is a later stage of an
// existing story. It operates on the moderate similarity band
// [UpdateBandLow, UpdateBandHigh): below the band is unrelated, at or above
// it is duplicate-detection territory and deliberately not claimed here.
//
// Every progression-pattern match, and independently every in-band candidate
// with similarity at or above UpdateVerifyFloor, goes to LLM verification.
// The first accepted match wins; update linking is one-to-one per new
// article, so enumeration stops there.
func (s *Service) DetectStoryUpdate(ctx context.Context, candidate *entity.Article) (*Result, error) {
	log := s.logger.With(slog.Int64("candidate_id", candidate.ID))

	if !candidate.HasEmbedding() {
		return &Result{}, nil
	}

	since := s.now().AddDate(0, 0, -s.cfg.DuplicateWindowDays)
	corpus, err := s.articles.ListRecentWithEmbeddings(ctx, since)
	if err != nil {
		log.Error("corpus fetch failed, treating as no update", slog.Any("error", err))
		return &Result{}, nil
	}

	band := s.inBandCandidates(candidate, corpus)
	newTitle, newContent := candidate.MatchingText()

	for _, sc := range band {
		existingTitle, existingContent := sc.article.MatchingText()

		progression, patternHit := matchProgression(
			existingTitle+" "+existingContent,
			newTitle+" "+newContent)

		if !patternHit && sc.similarity < s.cfg.UpdateVerifyFloor {
			continue
		}

		answer, err := s.verifier.VerifyUpdate(ctx, Pair{
			ExistingTitle:   existingTitle,
			ExistingContent: existingContent,
			NewTitle:        newTitle,
			NewContent:      newContent,
		})
		if err != nil {
			log.Warn("update verification failed, dropping candidate",
				slog.Int64("existing_id", sc.article.ID),
				slog.Any("error", err))
			continue
		}

		if answer.IsUpdate && answer.Confidence >= s.cfg.VerifyMinConfidence {
			metrics.RecordStoryUpdate(true)
			if progression == "" {
				progression = "similarity"
			}
			log.Info("story update confirmed",
				slog.Int64("original_id", sc.article.ID),
				slog.String("progression", progression),
				slog.Int("confidence", answer.Confidence))
			return &Result{
				IsUpdate:        true,
				Original:        sc.article,
				Confidence:      float64(answer.Confidence) / 100,
				ProgressionType: progression,
				Reasoning:       answer.Reasoning,
			}, nil
		}
	}

	metrics.RecordStoryUpdate(false)
	return &Result{}, nil
}

// FindRelatedStories returns all moderately similar recent articles that pass
// entity filtering against the anchor. This is the broader search used by the
// enrichment sweep, which merges everything it finds rather than linking a
// single update.
func (s *Service) FindRelatedStories(ctx context.Context, anchor *entity.Article) ([]*entity.Article, error) {
	if !anchor.HasEmbedding() {
		return nil, nil
	}

	since := s.now().AddDate(0, 0, -s.cfg.DuplicateWindowDays)
	corpus, err := s.articles.ListRecentWithEmbeddings(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("FindRelatedStories: %w", err)
	}

	band := s.inBandCandidates(anchor, corpus)
	if len(band) == 0 {
		return nil, nil
	}

	title, content := anchor.MatchingText()
	extracted, err := s.extractor.Extract(ctx, title, content)
	if err != nil || len(extracted) == 0 {
		// No entities to filter on; the band stands as-is.
		related := make([]*entity.Article, 0, len(band))
		for _, sc := range band {
			related = append(related, sc.article)
		}
		return related, nil
	}

	locs := entity.FilterByType(extracted, entity.EntityLocation)
	others := append(
		entity.FilterByType(extracted, entity.EntityEvent),
		entity.FilterByType(extracted, entity.EntityPerson)...)

	var related []*entity.Article
	for _, sc := range band {
		if entityMatch(sc.article, locs, others) {
			related = append(related, sc.article)
		}
	}
	return related, nil
}

// LinkAsUpdate prepends an update notice linking back to the original story
// and ensures the original anchors a timeline, creating one with a generated
// series title when needed. The returned content and series ID are for the
// caller to persist; this method only writes through the timeline creator.
func (s *Service) LinkAsUpdate(ctx context.Context, newArticle, original *entity.Article) (*LinkResult, error) {
	seriesID := ""
	if original.InTimeline() {
		seriesID = *original.SeriesID
	} else {
		title := generateSeriesTitle(original.Title, original.Content)
		created, err := s.timelines.CreateStoryTimeline(ctx, original.ID, title)
		if err != nil {
			return nil, fmt.Errorf("LinkAsUpdate: create timeline: %w", err)
		}
		seriesID = created
		s.logger.Info("created timeline for updated story",
			slog.Int64("parent_id", original.ID),
			slog.String("series_id", seriesID),
			slog.String("series_title", title))
	}

	notice := buildUpdateNotice(original)
	return &LinkResult{
		SeriesID: seriesID,
		Content:  notice + newArticle.Content,
	}, nil
}

// buildUpdateNotice renders the HTML block prepended to update articles.
func buildUpdateNotice(original *entity.Article) string {
	return fmt.Sprintf(
		`<div class="story-update-notice"><p><strong>Update:</strong> This story is a follow-up to <a href="/news/%s">%s</a>.</p></div>`+"\n",
		original.Slug, original.Title)
}

type scored struct {
	article    *entity.Article
	similarity float64
}

func (s *Service) inBandCandidates(candidate *entity.Article, corpus []*entity.Article) []scored {
	var band []scored
	for _, art := range corpus {
		if art.ID == candidate.ID || art.IsMerged() {
			continue
		}
		sim := similarity.CosineSimilarity(candidate.Embedding, art.Embedding)
		if sim >= s.cfg.UpdateBandLow && sim < s.cfg.UpdateBandHigh {
			band = append(band, scored{article: art, similarity: sim})
		}
	}
	sort.SliceStable(band, func(i, j int) bool { return band[i].similarity > band[j].similarity })
	return band
}

// entityMatch mirrors the duplicate engine's entity rule: any shared location,
// or at least 30% of event/person entities present in the text.
func entityMatch(art *entity.Article, locations, others []string) bool {
	title, content := art.MatchingText()
	haystack := strings.ToLower(title + " " + content)

	for _, loc := range locations {
		if strings.Contains(haystack, strings.ToLower(loc)) {
			return true
		}
	}
	if len(others) == 0 {
		return false
	}
	hits := 0
	for _, v := range others {
		if strings.Contains(haystack, strings.ToLower(v)) {
			hits++
		}
	}
	return float64(hits)/float64(len(others)) >= 0.3
}
