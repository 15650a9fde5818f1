package storyupdate

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	"siamwire/tests/fixtures"
)

type stubVerifier struct {
	answer Answer
	err    error
	calls  int
}

func (s *stubVerifier) VerifyUpdate(_ context.Context, _ Pair) (*Answer, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	answer := s.answer
	return &answer, nil
}

type stubExtractor struct {
	entities []entity.ExtractedEntity
}

func (s *stubExtractor) Extract(_ context.Context, _, _ string) ([]entity.ExtractedEntity, error) {
	return s.entities, nil
}

type stubTimelineCreator struct {
	seriesID string
	calls    int
	parentID int64
	title    string
}

func (s *stubTimelineCreator) CreateStoryTimeline(_ context.Context, parentID int64, seriesTitle string) (string, error) {
	s.calls++
	s.parentID = parentID
	s.title = seriesTitle
	return s.seriesID, nil
}

func newTestService(repo *fixtures.MemoryRepo, verifier *stubVerifier, creator *stubTimelineCreator) *Service {
	return NewService(repo, verifier, &stubExtractor{}, creator, config.DefaultPipelineConfig(), slog.Default(),
		WithClock(func() time.Time { return fixtures.BaseTime }))
}

func TestDetectStoryUpdate_ProgressionPatternConfirmed(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithTitle("Search continues for missing tourist at Kata Beach"),
			fixtures.WithContent("Rescue teams are searching for a missing tourist last seen swimming at Kata."),
			fixtures.WithEmbedding(fixtures.VecSimilarity(0.6))),
	)
	verifier := &stubVerifier{answer: Answer{IsUpdate: true, Confidence: 85, Reasoning: "same person"}}
	svc := newTestService(repo, verifier, &stubTimelineCreator{})

	candidate := fixtures.NewTestArticle(100,
		fixtures.WithTitle("Body found in sea off Kata Beach"),
		fixtures.WithContent("The body of the tourist was found by fishermen this morning."),
		fixtures.WithEmbedding(fixtures.VecAngle(0)))

	result, err := svc.DetectStoryUpdate(context.Background(), candidate)

	require.NoError(t, err)
	assert.True(t, result.IsUpdate)
	require.NotNil(t, result.Original)
	assert.Equal(t, int64(1), result.Original.ID)
	assert.Equal(t, "missing_person", result.ProgressionType)
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
}

func TestDetectStoryUpdate_UnrelatedArticlesRejected(t *testing.T) {
	// Similarity below the band floor: never even reaches the verifier.
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithTitle("New bus route opens in Phuket Town"),
			fixtures.WithContent("The municipality launched a new bus route today."),
			fixtures.WithEmbedding(fixtures.VecSimilarity(0.1))),
	)
	verifier := &stubVerifier{answer: Answer{IsUpdate: true, Confidence: 99}}
	svc := newTestService(repo, verifier, &stubTimelineCreator{})

	candidate := fixtures.NewTestArticle(100,
		fixtures.WithTitle("Jet ski crash injures two off Bang Tao"),
		fixtures.WithContent("Two tourists were hurt in a jet ski collision."),
		fixtures.WithEmbedding(fixtures.VecAngle(0)))

	result, err := svc.DetectStoryUpdate(context.Background(), candidate)

	require.NoError(t, err)
	assert.False(t, result.IsUpdate)
	assert.Zero(t, verifier.calls)
}

func TestDetectStoryUpdate_DuplicateBandExcluded(t *testing.T) {
	// Similarity at 0.9 is duplicate-detection territory, not an update.
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithTitle("Missing swimmer search at Surin"),
			fixtures.WithContent("Search for a missing swimmer continues."),
			fixtures.WithEmbedding(fixtures.VecSimilarity(0.9))),
	)
	verifier := &stubVerifier{answer: Answer{IsUpdate: true, Confidence: 99}}
	svc := newTestService(repo, verifier, &stubTimelineCreator{})

	candidate := fixtures.NewTestArticle(100,
		fixtures.WithTitle("Swimmer found safe at Surin"),
		fixtures.WithContent("The swimmer was found safe."),
		fixtures.WithEmbedding(fixtures.VecAngle(0)))

	result, err := svc.DetectStoryUpdate(context.Background(), candidate)

	require.NoError(t, err)
	assert.False(t, result.IsUpdate)
	assert.Zero(t, verifier.calls)
}

func TestDetectStoryUpdate_LowConfidenceRejected(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithTitle("Search for missing fisherman off Rawai"),
			fixtures.WithContent("A fisherman went missing in rough seas."),
			fixtures.WithEmbedding(fixtures.VecSimilarity(0.6))),
	)
	verifier := &stubVerifier{answer: Answer{IsUpdate: true, Confidence: 50}}
	svc := newTestService(repo, verifier, &stubTimelineCreator{})

	candidate := fixtures.NewTestArticle(100,
		fixtures.WithTitle("Body recovered near Rawai pier"),
		fixtures.WithContent("A body was found near the pier."),
		fixtures.WithEmbedding(fixtures.VecAngle(0)))

	result, err := svc.DetectStoryUpdate(context.Background(), candidate)

	require.NoError(t, err)
	assert.False(t, result.IsUpdate)
	assert.Equal(t, 1, verifier.calls)
}

func TestLinkAsUpdate_CreatesTimelineWhenOriginalHasNone(t *testing.T) {
	original := fixtures.NewTestArticle(1,
		fixtures.WithTitle("Tourist missing at Patong Beach"),
		fixtures.WithContent("A 34-year-old Russian tourist went missing while swimming at Patong Beach."))
	original.Slug = "tourist-missing-patong"

	creator := &stubTimelineCreator{seriesID: "series-abc"}
	svc := newTestService(fixtures.NewMemoryRepo(), &stubVerifier{}, creator)

	newArticle := fixtures.NewTestArticle(2,
		fixtures.WithTitle("Body found at Patong"),
		fixtures.WithContent("The missing tourist's body was recovered."))

	result, err := svc.LinkAsUpdate(context.Background(), newArticle, original)

	require.NoError(t, err)
	assert.Equal(t, "series-abc", result.SeriesID)
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, int64(1), creator.parentID)
	assert.Contains(t, result.Content, `href="/news/tourist-missing-patong"`)
	assert.Contains(t, result.Content, "The missing tourist's body was recovered.")
	assert.Contains(t, creator.title, "Developing")
}

func TestLinkAsUpdate_ReusesExistingSeries(t *testing.T) {
	original := fixtures.NewTestArticle(1,
		fixtures.WithTitle("Fire at Patong nightclub"),
		fixtures.WithSeries("series-existing", "Patong Fire - Developing", true))

	creator := &stubTimelineCreator{seriesID: "should-not-be-used"}
	svc := newTestService(fixtures.NewMemoryRepo(), &stubVerifier{}, creator)

	newArticle := fixtures.NewTestArticle(2, fixtures.WithContent("Damage is estimated at two million baht."))

	result, err := svc.LinkAsUpdate(context.Background(), newArticle, original)

	require.NoError(t, err)
	assert.Equal(t, "series-existing", result.SeriesID)
	assert.Zero(t, creator.calls)
}

func TestGenerateSeriesTitle(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		content  string
		expected string
	}{
		{
			name:     "event, victim and location",
			title:    "Tourist drowned at Patong Beach",
			content:  "A 34-year-old Russian tourist drowned while swimming at Patong Beach.",
			expected: "Drowning: 34-year-old Russian in Patong Beach - Developing",
		},
		{
			name:     "event and location only",
			title:    "Fire destroys warehouse in Chalong",
			content:  "Firefighters battled the blaze for hours.",
			expected: "Fire in Chalong - Developing",
		},
		{
			name:     "no event type falls back to cleaned title",
			title:    "BREAKING: Ferry service suspended over rough seas - The Phuket Express",
			content:  "Service will resume when conditions improve.",
			expected: "Ferry service suspended over rough seas - Developing",
		},
		{
			name:     "nothing usable",
			title:    "",
			content:  "",
			expected: "Developing Story",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateSeriesTitle(tt.title, tt.content))
		})
	}
}

func TestMatchProgression(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		updated  string
		incident string
		ok       bool
	}{
		{
			name:     "missing to found",
			existing: "Search for missing tourist continues",
			updated:  "Body found by fishermen",
			incident: "missing_person",
			ok:       true,
		},
		{
			name:     "wanted to arrested",
			existing: "Police launch manhunt for suspect",
			updated:  "Suspect arrested at border checkpoint",
			incident: "arrest",
			ok:       true,
		},
		{
			name:     "no stage transition",
			existing: "New park opens in Kathu",
			updated:  "Park proves popular with families",
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incident, ok := matchProgression(tt.existing, tt.updated)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.incident, incident)
		})
	}
}
