// Package merge implements story merging: given several overlapping reports
// of one incident it synthesizes a single comprehensive article via an LLM,
// with a deterministic fallback so that merging never fails the caller.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"siamwire/internal/domain/entity"
	"siamwire/internal/observability/metrics"
	"siamwire/internal/utils/text"
)

// ErrNoStories is returned when MergeStories is called with an empty input.
// An empty merge is a caller bug, not an environmental failure.
var ErrNoStories = errors.New("no stories to merge")

// sourceContentLimit bounds each story's content inside the synthesis prompt.
const sourceContentLimit = 1800

// SourceStory is one input story prepared for synthesis: original-language
// text truncated for the prompt, with provenance and recency so the model can
// weigh disagreeing sources.
type SourceStory struct {
	Title      string
	Content    string
	SourceName string
	Age        string
}

// SynthesisRequest carries the prepared stories to a synthesizer.
type SynthesisRequest struct {
	Stories []SourceStory
}

// SynthesisResult is the structured output of merge synthesis.
type SynthesisResult struct {
	Title           string
	Content         string
	Excerpt         string
	IsDeveloping    bool
	CombinedDetails string
}

// Synthesizer produces one comprehensive article from several overlapping
// reports. Implementations are instructed to preserve every unique fact
// (names, ages, quantities, times, locations), reconcile synonymous terms,
// prefer the more specific value when sources disagree, and mark the story
// developing only if material facts are still missing.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}

// Service is the story merger.
type Service struct {
	synthesizer Synthesizer
	logger      *slog.Logger
	now         func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a story merger.
func NewService(synthesizer Synthesizer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		synthesizer: synthesizer,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MergeStories merges overlapping reports of one incident.
//
// A single story passes through untouched with no synthesizer call. Two or
// more stories are synthesized; if the synthesizer fails for any reason the
// merger falls back deterministically to the longest-content input story,
// flagged as developing so the sweep keeps watching it. Merging never
// returns an error except for the empty-input caller bug.
func (s *Service) MergeStories(ctx context.Context, stories []*entity.Article) (*SynthesisResult, error) {
	if len(stories) == 0 {
		return nil, ErrNoStories
	}

	if len(stories) == 1 {
		only := stories[0]
		metrics.RecordMerge("passthrough")
		return &SynthesisResult{
			Title:        only.Title,
			Content:      only.Content,
			Excerpt:      only.Excerpt,
			IsDeveloping: only.IsDeveloping,
		}, nil
	}

	req := s.buildRequest(stories)
	result, err := s.synthesizer.Synthesize(ctx, req)
	if err != nil {
		s.logger.Warn("merge synthesis failed, falling back to longest story",
			slog.Int("story_count", len(stories)),
			slog.Any("error", err))
		metrics.RecordMerge("fallback")
		return fallbackResult(stories), nil
	}

	metrics.RecordMerge("synthesized")
	s.logger.Info("stories merged",
		slog.Int("story_count", len(stories)),
		slog.Bool("is_developing", result.IsDeveloping))
	return result, nil
}

// buildRequest prepares each story for the prompt: original-language text,
// truncated, with source name and recency.
func (s *Service) buildRequest(stories []*entity.Article) SynthesisRequest {
	now := s.now()
	req := SynthesisRequest{Stories: make([]SourceStory, 0, len(stories))}
	for _, story := range stories {
		title, content := story.MatchingText()
		req.Stories = append(req.Stories, SourceStory{
			Title:      title,
			Content:    text.Truncate(content, sourceContentLimit),
			SourceName: story.SourceName,
			Age:        text.RelativeAge(story.PublishedAt, now),
		})
	}
	return req
}

// fallbackResult picks the longest-content input story as the merged result.
// IsDeveloping is forced true: a failed merge means facts were left on the
// table, so the sweep must keep tracking the story.
func fallbackResult(stories []*entity.Article) *SynthesisResult {
	longest := stories[0]
	for _, story := range stories[1:] {
		if len(story.Content) > len(longest.Content) {
			longest = story
		}
	}
	return &SynthesisResult{
		Title:           longest.Title,
		Content:         longest.Content,
		Excerpt:         longest.Excerpt,
		IsDeveloping:    true,
		CombinedDetails: fmt.Sprintf("merge synthesis unavailable; kept longest of %d overlapping reports", len(stories)),
	}
}
