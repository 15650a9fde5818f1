package llm

import (
	"context"
	"errors"

	"siamwire/internal/domain/entity"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/storyupdate"
)

// ErrDisabled is returned by Noop for operations that have no meaningful
// degraded behaviour.
var ErrDisabled = errors.New("llm classifier disabled")

// Noop is the classifier used when no API key is configured. Verification
// and extraction degrade to their fail-open defaults; synthesis reports
// ErrDisabled so callers use their deterministic fallbacks.
type Noop struct{}

// VerifyDuplicate never confirms a duplicate.
func (Noop) VerifyDuplicate(_ context.Context, _ dedup.Pair) (*dedup.Answer, error) {
	return &dedup.Answer{Reason: "classifier disabled"}, nil
}

// VerifyUpdate never confirms an update.
func (Noop) VerifyUpdate(_ context.Context, _ storyupdate.Pair) (*storyupdate.Answer, error) {
	return &storyupdate.Answer{Reasoning: "classifier disabled"}, nil
}

// Extract returns no entities, degrading entity filtering to a pass-through.
func (Noop) Extract(_ context.Context, _, _ string) ([]entity.ExtractedEntity, error) {
	return nil, nil
}

// Synthesize reports ErrDisabled so the merger falls back deterministically.
func (Noop) Synthesize(_ context.Context, _ merge.SynthesisRequest) (*merge.SynthesisResult, error) {
	return nil, ErrDisabled
}

// EnrichStory reports ErrDisabled so the sweep only updates bookkeeping.
func (Noop) EnrichStory(_ context.Context, _ *entity.Article) (*merge.SynthesisResult, error) {
	return nil, ErrDisabled
}
