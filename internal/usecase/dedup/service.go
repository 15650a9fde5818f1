// Package dedup implements the multi-layer duplicate detection engine. Given
// a freshly translated article it decides which recently published articles
// report the same incident, layering cheap filters (embedding similarity,
// title bigram similarity, entity overlap) before the expensive LLM
// verification step.
package dedup

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	"siamwire/internal/observability/metrics"
	"siamwire/internal/repository"
	"siamwire/internal/usecase/similarity"
)

// Verdict is the outcome of duplicate detection for one matched article.
type Verdict struct {
	IsDuplicate bool
	// Confidence is normalized to [0, 1] regardless of which layer produced
	// the verdict.
	Confidence float64
	Matched    *entity.Article
	Reason     string
}

// Pair carries the two texts an LLM verifier compares.
type Pair struct {
	CandidateTitle   string
	CandidateContent string
	ExistingTitle    string
	ExistingContent  string
}

// Answer is the structured verdict returned by an LLM duplicate verifier.
// Confidence uses the model-facing 0-100 scale.
type Answer struct {
	IsSameIncident bool
	Confidence     int
	Reason         string
}

// Verifier asks a model whether two articles report the same incident.
type Verifier interface {
	VerifyDuplicate(ctx context.Context, pair Pair) (*Answer, error)
}

// EntityExtractor extracts typed entities from article text.
// Implementations must return an empty slice, not an error, on malformed
// model output.
type EntityExtractor interface {
	Extract(ctx context.Context, title, content string) ([]entity.ExtractedEntity, error)
}

// Service is the duplicate detection engine. It is read-only: verdicts are
// returned to the caller, which applies them.
type Service struct {
	articles  repository.ArticleRepository
	extractor EntityExtractor
	verifier  Verifier
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

// NewService creates a duplicate detection engine.
func NewService(articles repository.ArticleRepository, extractor EntityExtractor, verifier Verifier, cfg config.PipelineConfig, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		articles:  articles,
		extractor: extractor,
		verifier:  verifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scored is an embedding-layer survivor with its cosine similarity.
type scored struct {
	article    *entity.Article
	similarity float64
}

// FindDuplicates runs the four-layer pipeline for a candidate article and
// returns confirmed duplicates, best match first.
//
// Layer order is a strict precedence pipeline: embedding similarity bounds
// the candidate set, a title-similarity short circuit confirms textual
// near-identity without an LLM call, entity filtering narrows the rest, and
// LLM verification decides the remainder. A short-circuit verdict is final;
// later layers never run for it.
//
// Failure semantics are fail-open: a corpus read failure or a per-candidate
// verification failure shrinks the result toward "no duplicates found", it
// never blocks the caller from publishing.
func (s *Service) FindDuplicates(ctx context.Context, candidate *entity.Article) ([]Verdict, error) {
	log := s.logger.With(slog.Int64("candidate_id", candidate.ID))

	if !candidate.HasEmbedding() {
		log.Debug("candidate has no embedding, skipping duplicate detection")
		return nil, nil
	}

	// Layer 1: embedding similarity over the recent published corpus.
	since := s.now().AddDate(0, 0, -s.cfg.DuplicateWindowDays)
	corpus, err := s.articles.ListRecentWithEmbeddings(ctx, since)
	if err != nil {
		log.Error("corpus fetch failed, treating as no duplicates",
			slog.Any("error", err))
		return nil, nil
	}

	survivors := s.embeddingLayer(candidate, corpus)
	if len(survivors) == 0 {
		return nil, nil
	}
	log.Info("embedding layer matched candidates",
		slog.Int("count", len(survivors)))

	// Layer 2: title-similarity short circuit. Textual near-identity is
	// trusted outright; skipping verification trades a little precision for
	// a lot of cost and latency.
	if verdicts := s.titleShortCircuit(candidate, survivors); len(verdicts) > 0 {
		log.Info("title similarity short-circuit confirmed duplicates",
			slog.Int("count", len(verdicts)))
		return verdicts, nil
	}

	// Layer 3: entity filter.
	survivors = s.entityFilter(ctx, log, candidate, survivors)

	// Layer 4: LLM verification.
	return s.verifyLayer(ctx, log, candidate, survivors), nil
}

func (s *Service) embeddingLayer(candidate *entity.Article, corpus []*entity.Article) []scored {
	var survivors []scored
	for _, art := range corpus {
		if art.ID == candidate.ID || art.IsMerged() {
			continue
		}
		sim := similarity.CosineSimilarity(candidate.Embedding, art.Embedding)
		if sim >= s.cfg.DuplicateEmbeddingThreshold {
			survivors = append(survivors, scored{article: art, similarity: sim})
		}
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].similarity > survivors[j].similarity
	})
	return survivors
}

func (s *Service) titleShortCircuit(candidate *entity.Article, survivors []scored) []Verdict {
	candTitle, _ := candidate.MatchingText()

	var verdicts []Verdict
	for _, sc := range survivors {
		title, _ := sc.article.MatchingText()
		score := similarity.TitleSimilarity(candTitle, title)
		if score >= s.cfg.TitleShortCircuitThreshold {
			metrics.RecordDuplicateVerdict("title_short_circuit", true)
			verdicts = append(verdicts, Verdict{
				IsDuplicate: true,
				Confidence:  score,
				Matched:     sc.article,
				Reason:      "near-identical title",
			})
		}
	}
	return verdicts
}

// entityFilter keeps candidates that share extracted entities with the new
// article. Entity extraction yielding nothing degrades to the unfiltered set;
// filtering away every candidate falls back to the top five. Layer 1 found
// matches, so layer 3 must never reduce the set to zero on its own.
func (s *Service) entityFilter(ctx context.Context, log *slog.Logger, candidate *entity.Article, survivors []scored) []scored {
	title, content := candidate.MatchingText()
	extracted, err := s.extractor.Extract(ctx, title, content)
	if err != nil {
		log.Warn("entity extraction failed, passing all candidates",
			slog.Any("error", err))
		return survivors
	}
	if len(extracted) == 0 {
		return survivors
	}

	locs := entity.FilterByType(extracted, entity.EntityLocation)
	others := append(
		entity.FilterByType(extracted, entity.EntityEvent),
		entity.FilterByType(extracted, entity.EntityPerson)...)

	var filtered []scored
	for _, sc := range survivors {
		if matchesEntities(sc.article, locs, others) {
			filtered = append(filtered, sc)
		}
	}

	if len(filtered) == 0 {
		const fallbackSize = 5
		if len(survivors) > fallbackSize {
			return survivors[:fallbackSize]
		}
		return survivors
	}
	return filtered
}

// matchesEntities reports whether the article text contains any extracted
// location, or at least 30% of the extracted event/person entities.
func matchesEntities(art *entity.Article, locations, others []string) bool {
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

// verifyLayer asks the LLM verifier about each surviving candidate with
// bounded concurrency. Per-candidate failures drop that candidate only; the
// result order follows the embedding-layer ranking regardless of completion
// order so side effects downstream stay deterministic.
func (s *Service) verifyLayer(ctx context.Context, log *slog.Logger, candidate *entity.Article, survivors []scored) []Verdict {
	candTitle, candContent := candidate.MatchingText()

	answers := make([]*Answer, len(survivors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.VerifyConcurrency)

	for i, sc := range survivors {
		i, sc := i, sc
		g.Go(func() error {
			title, content := sc.article.MatchingText()
			answer, err := s.verifier.VerifyDuplicate(gctx, Pair{
				CandidateTitle:   candTitle,
				CandidateContent: candContent,
				ExistingTitle:    title,
				ExistingContent:  content,
			})
			if err != nil {
				log.Warn("duplicate verification failed, dropping candidate",
					slog.Int64("matched_id", sc.article.ID),
					slog.Any("error", err))
				return nil
			}
			answers[i] = answer
			return nil
		})
	}
	// Goroutines never return errors; Wait only orders completion.
	_ = g.Wait()

	var verdicts []Verdict
	for i, answer := range answers {
		if answer == nil {
			continue
		}
		accepted := answer.IsSameIncident && answer.Confidence >= s.cfg.VerifyMinConfidence
		metrics.RecordDuplicateVerdict("llm_verified", accepted)
		if !accepted {
			continue
		}
		verdicts = append(verdicts, Verdict{
			IsDuplicate: true,
			Confidence:  float64(answer.Confidence) / 100,
			Matched:     survivors[i].article,
			Reason:      answer.Reason,
		})
	}
	return verdicts
}
