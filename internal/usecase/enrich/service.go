// Package enrich coordinates the story pipeline. It routes every new article
// through duplicate detection, update detection and timeline auto-matching,
// and runs the periodic sweep that keeps developing stories enriched until
// they go stale.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	"siamwire/internal/observability/logging"
	"siamwire/internal/observability/metrics"
	"siamwire/internal/repository"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/storyupdate"
)

// ProcessOutcome classifies what happened to a new article.
type ProcessOutcome string

const (
	// OutcomeMerged means the article reported an already-known incident and
	// was merged with the existing coverage.
	OutcomeMerged ProcessOutcome = "merged"
	// OutcomeUpdate means the article is a later stage of an existing story
	// and was linked into its timeline.
	OutcomeUpdate ProcessOutcome = "update"
	// OutcomeCreated means the article is new coverage.
	OutcomeCreated ProcessOutcome = "created"
)

// ProcessResult reports how a new article entered the corpus.
type ProcessResult struct {
	Outcome ProcessOutcome
	// Article is the surviving article: the merge primary for OutcomeMerged,
	// otherwise the processed article itself.
	Article *entity.Article
	// SeriesID is set when the article ended up in a timeline.
	SeriesID string
	// AbsorbedIDs lists articles merged away, primary excluded.
	AbsorbedIDs []int64
}

// SweepResult summarizes one enrichment sweep.
type SweepResult struct {
	Enriched  int
	Completed int
	Failed    int
}

// DuplicateFinder finds already-published duplicates of a candidate article.
type DuplicateFinder interface {
	FindDuplicates(ctx context.Context, candidate *entity.Article) ([]dedup.Verdict, error)
}

// UpdateDetector finds and links story progressions.
type UpdateDetector interface {
	DetectStoryUpdate(ctx context.Context, candidate *entity.Article) (*storyupdate.Result, error)
	FindRelatedStories(ctx context.Context, anchor *entity.Article) ([]*entity.Article, error)
	LinkAsUpdate(ctx context.Context, newArticle, original *entity.Article) (*storyupdate.LinkResult, error)
}

// Merger synthesizes one article from overlapping reports.
type Merger interface {
	MergeStories(ctx context.Context, stories []*entity.Article) (*merge.SynthesisResult, error)
}

// TimelineMatcher matches new articles into tag-driven timelines.
type TimelineMatcher interface {
	FindMatchingTimeline(ctx context.Context, article *entity.Article) (*entity.Article, error)
	AddArticleToTimeline(ctx context.Context, articleID int64, seriesID string) error
}

// Enricher re-synthesizes a developing story when the sweep finds no new
// sibling coverage to merge. Implementations may return nil with no error to
// signal that nothing new could be added.
type Enricher interface {
	EnrichStory(ctx context.Context, story *entity.Article) (*merge.SynthesisResult, error)
}

// Publisher announces an enriched or merged story to downstream channels.
// Announcement failures are logged, never propagated; publishing state is
// tracked by the announcer itself.
type Publisher interface {
	AnnounceUpdate(ctx context.Context, article *entity.Article) error
}

// Service is the enrichment coordinator.
type Service struct {
	articles  repository.ArticleRepository
	dups      DuplicateFinder
	updates   UpdateDetector
	merger    Merger
	timelines TimelineMatcher
	enricher  Enricher
	publisher Publisher
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

// WithEnricher enables generic story enrichment in the sweep.
func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

// WithPublisher enables downstream announcements for enriched stories.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates an enrichment coordinator.
func NewService(
	articles repository.ArticleRepository,
	dups DuplicateFinder,
	updates UpdateDetector,
	merger Merger,
	timelines TimelineMatcher,
	cfg config.PipelineConfig,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		articles:  articles,
		dups:      dups,
		updates:   updates,
		merger:    merger,
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

// ProcessNewStory persists a new article and routes it through the pipeline.
//
// Duplicate detection runs first; an article is only offered to update
// detection when it is not a duplicate. Confirmed duplicates are merged into
// a single primary article; confirmed updates are linked into the original
// story's timeline; everything else is checked against tag-driven timelines
// and otherwise stands alone.
func (s *Service) ProcessNewStory(ctx context.Context, article *entity.Article) (*ProcessResult, error) {
	if err := article.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessNewStory: %w", err)
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("ProcessNewStory: %w", err)
	}
	log := logging.WithArticle(s.logger, article.ID, article.Title)

	verdicts, err := s.dups.FindDuplicates(ctx, article)
	if err != nil {
		return nil, fmt.Errorf("ProcessNewStory: %w", err)
	}
	if len(verdicts) > 0 {
		return s.mergeDuplicates(ctx, log, article, verdicts)
	}

	update, err := s.updates.DetectStoryUpdate(ctx, article)
	if err != nil {
		return nil, fmt.Errorf("ProcessNewStory: %w", err)
	}
	if update.IsUpdate {
		return s.linkUpdate(ctx, log, article, update)
	}

	return s.createStandalone(ctx, log, article)
}

// mergeDuplicates merges the new article with its confirmed duplicates into
// a single primary article and redirects the rest.
func (s *Service) mergeDuplicates(ctx context.Context, log *slog.Logger, article *entity.Article, verdicts []dedup.Verdict) (*ProcessResult, error) {
	group := make([]*entity.Article, 0, len(verdicts)+1)
	group = append(group, article)
	for _, v := range verdicts {
		group = append(group, v.Matched)
	}
	primary := selectPrimary(group)

	synthesis, err := s.merger.MergeStories(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("mergeDuplicates: %w", err)
	}

	now := s.now()
	count := primary.EnrichmentCount + 1
	updated, err := s.articles.Update(ctx, primary.ID, repository.ArticlePatch{
		Title:           &synthesis.Title,
		Content:         &synthesis.Content,
		Excerpt:         &synthesis.Excerpt,
		IsDeveloping:    &synthesis.IsDeveloping,
		EnrichmentCount: &count,
		LastEnrichedAt:  &now,
	})
	if err != nil {
		return nil, fmt.Errorf("mergeDuplicates: update primary: %w", err)
	}

	var absorbed []int64
	for _, member := range group {
		if member.ID == primary.ID {
			continue
		}
		if _, err := s.articles.Update(ctx, member.ID, repository.ArticlePatch{
			MergedIntoID: &primary.ID,
		}); err != nil {
			return nil, fmt.Errorf("mergeDuplicates: redirect article %d: %w", member.ID, err)
		}
		absorbed = append(absorbed, member.ID)
	}

	log.Info("new article merged into existing coverage",
		slog.Int64("primary_id", primary.ID),
		slog.Int("absorbed_count", len(absorbed)))
	s.announce(ctx, log, updated)

	return &ProcessResult{
		Outcome:     OutcomeMerged,
		Article:     updated,
		AbsorbedIDs: absorbed,
	}, nil
}

// linkUpdate attaches the new article to the original story's timeline with
// an update notice pointing back at it.
func (s *Service) linkUpdate(ctx context.Context, log *slog.Logger, article *entity.Article, update *storyupdate.Result) (*ProcessResult, error) {
	link, err := s.updates.LinkAsUpdate(ctx, article, update.Original)
	if err != nil {
		return nil, fmt.Errorf("linkUpdate: %w", err)
	}

	developing := true
	updated, err := s.articles.Update(ctx, article.ID, repository.ArticlePatch{
		Content:      &link.Content,
		IsDeveloping: &developing,
	})
	if err != nil {
		return nil, fmt.Errorf("linkUpdate: %w", err)
	}
	if err := s.timelines.AddArticleToTimeline(ctx, article.ID, link.SeriesID); err != nil {
		return nil, fmt.Errorf("linkUpdate: %w", err)
	}

	log.Info("new article linked as story update",
		slog.Int64("original_id", update.Original.ID),
		slog.String("series_id", link.SeriesID),
		slog.String("progression", update.ProgressionType))

	return &ProcessResult{
		Outcome:  OutcomeUpdate,
		Article:  updated,
		SeriesID: link.SeriesID,
	}, nil
}

// createStandalone leaves the article as fresh coverage, attaching it to a
// tag-matched timeline when one claims it.
func (s *Service) createStandalone(ctx context.Context, log *slog.Logger, article *entity.Article) (*ProcessResult, error) {
	result := &ProcessResult{Outcome: OutcomeCreated, Article: article}

	parent, err := s.timelines.FindMatchingTimeline(ctx, article)
	if err != nil {
		log.Warn("timeline auto-match failed, article stands alone",
			slog.Any("error", err))
		return result, nil
	}
	if parent == nil {
		return result, nil
	}

	if err := s.timelines.AddArticleToTimeline(ctx, article.ID, *parent.SeriesID); err != nil {
		log.Warn("timeline attach failed, article stands alone",
			slog.String("series_id", *parent.SeriesID),
			slog.Any("error", err))
		return result, nil
	}
	result.SeriesID = *parent.SeriesID
	log.Info("new article auto-matched into timeline",
		slog.String("series_id", result.SeriesID))
	return result, nil
}

// EnrichDevelopingStories is the periodic sweep over developing stories.
//
// Per story, in order: a human edit permanently ends automation, staleness
// ends the developing state, a recent enrichment defers the story to a later
// sweep. Otherwise the sweep merges any newly found sibling coverage, or
// falls back to generic enrichment when there is none. A pass that produces
// nothing new leaves the story untouched so it can still go stale. Failures
// are isolated per story; one bad story never stops the sweep.
func (s *Service) EnrichDevelopingStories(ctx context.Context) (*SweepResult, error) {
	stories, err := s.articles.ListDeveloping(ctx)
	if err != nil {
		return nil, fmt.Errorf("EnrichDevelopingStories: %w", err)
	}

	result := &SweepResult{}
	now := s.now()
	for _, story := range stories {
		log := logging.WithArticle(s.logger, story.ID, story.Title)

		if story.ManuallyEdited() {
			if s.endDeveloping(ctx, log, story, "manually edited") {
				result.Completed++
			} else {
				result.Failed++
			}
			continue
		}

		lastActivity := story.PublishedAt
		if story.LastEnrichedAt != nil {
			lastActivity = *story.LastEnrichedAt
		}
		if now.Sub(lastActivity) > s.cfg.StaleAfter {
			if s.endDeveloping(ctx, log, story, "stale") {
				result.Completed++
			} else {
				result.Failed++
			}
			continue
		}
		if story.LastEnrichedAt != nil && now.Sub(*story.LastEnrichedAt) < s.cfg.EnrichCooldown {
			metrics.RecordSweepOutcome("skipped")
			continue
		}

		switch s.enrichOne(ctx, log, story, now) {
		case sweepEnriched:
			result.Enriched++
		case sweepIdle:
			// Nothing new; the staleness clock keeps running.
		case sweepFailed:
			result.Failed++
		}
	}

	s.logger.Info("enrichment sweep finished",
		slog.Int("developing", len(stories)),
		slog.Int("enriched", result.Enriched),
		slog.Int("completed", result.Completed),
		slog.Int("failed", result.Failed))
	return result, nil
}

// sweepOutcome classifies one story's pass through the sweep.
type sweepOutcome int

const (
	sweepEnriched sweepOutcome = iota
	sweepIdle
	sweepFailed
)

// enrichOne enriches a single developing story. A pass that produces no
// synthesis writes nothing at all: stamping LastEnrichedAt on a quiet story
// would reset the staleness clock and keep it developing forever.
func (s *Service) enrichOne(ctx context.Context, log *slog.Logger, story *entity.Article, now time.Time) sweepOutcome {
	related, err := s.updates.FindRelatedStories(ctx, story)
	if err != nil {
		log.Error("related story search failed", slog.Any("error", err))
		metrics.RecordSweepOutcome("failed")
		return sweepFailed
	}

	var synthesis *merge.SynthesisResult
	if len(related) > 0 {
		group := append([]*entity.Article{story}, related...)
		synthesis, err = s.merger.MergeStories(ctx, group)
		if err != nil {
			log.Error("sibling merge failed", slog.Any("error", err))
			metrics.RecordSweepOutcome("failed")
			return sweepFailed
		}
	} else if s.enricher != nil {
		synthesis, err = s.enricher.EnrichStory(ctx, story)
		if err != nil {
			log.Error("story enrichment failed", slog.Any("error", err))
			metrics.RecordSweepOutcome("failed")
			return sweepFailed
		}
	}

	if synthesis == nil {
		metrics.RecordSweepOutcome("idle")
		log.Debug("no new coverage for developing story")
		return sweepIdle
	}

	count := story.EnrichmentCount + 1
	updated, err := s.articles.Update(ctx, story.ID, repository.ArticlePatch{
		Title:           &synthesis.Title,
		Content:         &synthesis.Content,
		Excerpt:         &synthesis.Excerpt,
		IsDeveloping:    &synthesis.IsDeveloping,
		EnrichmentCount: &count,
		LastEnrichedAt:  &now,
	})
	if err != nil {
		log.Error("enrichment write failed", slog.Any("error", err))
		metrics.RecordSweepOutcome("failed")
		return sweepFailed
	}

	for _, sibling := range related {
		if _, err := s.articles.Update(ctx, sibling.ID, repository.ArticlePatch{
			MergedIntoID: &story.ID,
		}); err != nil {
			log.Error("sibling redirect failed",
				slog.Int64("sibling_id", sibling.ID),
				slog.Any("error", err))
			metrics.RecordSweepOutcome("failed")
			return sweepFailed
		}
	}

	s.announce(ctx, log, updated)
	metrics.RecordSweepOutcome("enriched")
	log.Info("developing story enriched",
		slog.Int("merged_siblings", len(related)),
		slog.Int("enrichment_count", count))
	return sweepEnriched
}

// endDeveloping clears the developing flag and reports success.
func (s *Service) endDeveloping(ctx context.Context, log *slog.Logger, story *entity.Article, reason string) bool {
	developing := false
	if _, err := s.articles.Update(ctx, story.ID, repository.ArticlePatch{
		IsDeveloping: &developing,
	}); err != nil {
		log.Error("failed to end developing state", slog.Any("error", err))
		metrics.RecordSweepOutcome("failed")
		return false
	}
	metrics.RecordSweepOutcome("completed")
	log.Info("developing story completed", slog.String("reason", reason))
	return true
}

// announce notifies downstream channels about an enriched article.
func (s *Service) announce(ctx context.Context, log *slog.Logger, article *entity.Article) {
	if s.publisher == nil || article == nil {
		return
	}
	if err := s.publisher.AnnounceUpdate(ctx, article); err != nil {
		log.Warn("downstream announcement failed", slog.Any("error", err))
	}
}

// selectPrimary picks the surviving article of a merge group: published
// beats draft, then higher interest score, then the earliest publish time.
func selectPrimary(group []*entity.Article) *entity.Article {
	primary := group[0]
	for _, candidate := range group[1:] {
		if betterPrimary(candidate, primary) {
			primary = candidate
		}
	}
	return primary
}

func betterPrimary(a, b *entity.Article) bool {
	aPublished := a.Status == entity.StatusPublished
	bPublished := b.Status == entity.StatusPublished
	if aPublished != bPublished {
		return aPublished
	}
	if a.InterestScore != b.InterestScore {
		return a.InterestScore > b.InterestScore
	}
	return a.PublishedAt.Before(b.PublishedAt)
}
