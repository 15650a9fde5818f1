package merge_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siamwire/internal/domain/entity"
	"siamwire/internal/usecase/merge"
	"siamwire/tests/fixtures"
)

type stubSynthesizer struct {
	result  *merge.SynthesisResult
	err     error
	calls   int
	lastReq merge.SynthesisRequest
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req merge.SynthesisRequest) (*merge.SynthesisResult, error) {
	s.calls++
	s.lastReq = req
	return s.result, s.err
}

func TestMergeStories_EmptyInputIsError(t *testing.T) {
	svc := merge.NewService(&stubSynthesizer{}, slog.Default())

	_, err := svc.MergeStories(context.Background(), nil)

	assert.ErrorIs(t, err, merge.ErrNoStories)
}

func TestMergeStories_SingleStoryPassesThroughWithoutLLM(t *testing.T) {
	synth := &stubSynthesizer{}
	svc := merge.NewService(synth, slog.Default())

	story := fixtures.NewTestArticle(1,
		fixtures.WithTitle("Fire at Chalong warehouse"),
		fixtures.WithContent("Firefighters responded overnight."),
		fixtures.WithDeveloping())
	story.Excerpt = "Fire overnight"

	result, err := svc.MergeStories(context.Background(), []*entity.Article{story})

	require.NoError(t, err)
	assert.Equal(t, "Fire at Chalong warehouse", result.Title)
	assert.Equal(t, "Firefighters responded overnight.", result.Content)
	assert.Equal(t, "Fire overnight", result.Excerpt)
	assert.True(t, result.IsDeveloping)
	assert.Zero(t, synth.calls)
}

func TestMergeStories_SynthesizesMultipleStories(t *testing.T) {
	synth := &stubSynthesizer{result: &merge.SynthesisResult{
		Title:        "Combined report",
		Content:      "Merged content with all facts.",
		Excerpt:      "Merged",
		IsDeveloping: true,
	}}
	svc := merge.NewService(synth, slog.Default(),
		merge.WithClock(func() time.Time { return fixtures.BaseTime }))

	stories := []*entity.Article{
		fixtures.NewTestArticle(1,
			fixtures.WithTitle("Two injured in Kathu crash"),
			fixtures.WithContent("Two people were injured.")),
		fixtures.NewTestArticle(2,
			fixtures.WithTitle("Motorbike collision in Kathu"),
			fixtures.WithContent("A motorbike and a pickup collided.")),
	}

	result, err := svc.MergeStories(context.Background(), stories)

	require.NoError(t, err)
	assert.Equal(t, "Combined report", result.Title)
	assert.Equal(t, 1, synth.calls)
	require.Len(t, synth.lastReq.Stories, 2)
	assert.Equal(t, "1h ago", synth.lastReq.Stories[0].Age)
}

func TestMergeStories_FallsBackToLongestOnFailure(t *testing.T) {
	synth := &stubSynthesizer{err: errors.New("model unavailable")}
	svc := merge.NewService(synth, slog.Default())

	stories := []*entity.Article{
		fixtures.NewTestArticle(1, fixtures.WithContent("short")),
		fixtures.NewTestArticle(2,
			fixtures.WithTitle("Longer report"),
			fixtures.WithContent("a much longer piece of content with more detail")),
	}

	result, err := svc.MergeStories(context.Background(), stories)

	require.NoError(t, err)
	assert.Equal(t, "Longer report", result.Title)
	assert.True(t, result.IsDeveloping)
	assert.Contains(t, result.CombinedDetails, "merge synthesis unavailable")
}
