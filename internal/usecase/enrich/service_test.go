package enrich_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/enrich"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/storyupdate"
	"siamwire/tests/fixtures"
)

type stubDups struct {
	verdicts []dedup.Verdict
}

func (s *stubDups) FindDuplicates(_ context.Context, _ *entity.Article) ([]dedup.Verdict, error) {
	return s.verdicts, nil
}

type stubUpdates struct {
	result  *storyupdate.Result
	related []*entity.Article
	link    *storyupdate.LinkResult
}

func (s *stubUpdates) DetectStoryUpdate(_ context.Context, _ *entity.Article) (*storyupdate.Result, error) {
	if s.result == nil {
		return &storyupdate.Result{}, nil
	}
	return s.result, nil
}

func (s *stubUpdates) FindRelatedStories(_ context.Context, _ *entity.Article) ([]*entity.Article, error) {
	return s.related, nil
}

func (s *stubUpdates) LinkAsUpdate(_ context.Context, _, _ *entity.Article) (*storyupdate.LinkResult, error) {
	return s.link, nil
}

type stubMerger struct {
	result *merge.SynthesisResult
	calls  int
}

func (s *stubMerger) MergeStories(_ context.Context, stories []*entity.Article) (*merge.SynthesisResult, error) {
	s.calls++
	if s.result != nil {
		return s.result, nil
	}
	return &merge.SynthesisResult{
		Title:   stories[0].Title,
		Content: stories[0].Content,
	}, nil
}

type stubTimelines struct {
	parent        *entity.Article
	attachedID    int64
	attachedTo    string
	attachedCalls int
}

func (s *stubTimelines) FindMatchingTimeline(_ context.Context, _ *entity.Article) (*entity.Article, error) {
	return s.parent, nil
}

func (s *stubTimelines) AddArticleToTimeline(_ context.Context, articleID int64, seriesID string) error {
	s.attachedCalls++
	s.attachedID = articleID
	s.attachedTo = seriesID
	return nil
}

type stubEnricher struct {
	result *merge.SynthesisResult
	calls  int
}

func (s *stubEnricher) EnrichStory(_ context.Context, _ *entity.Article) (*merge.SynthesisResult, error) {
	s.calls++
	return s.result, nil
}

type stubPublisher struct {
	calls int
}

func (s *stubPublisher) AnnounceUpdate(_ context.Context, _ *entity.Article) error {
	s.calls++
	return nil
}

type deps struct {
	repo      *fixtures.MemoryRepo
	dups      *stubDups
	updates   *stubUpdates
	merger    *stubMerger
	timelines *stubTimelines
}

func newTestService(d deps, opts ...enrich.Option) *enrich.Service {
	if d.repo == nil {
		d.repo = fixtures.NewMemoryRepo()
	}
	if d.dups == nil {
		d.dups = &stubDups{}
	}
	if d.updates == nil {
		d.updates = &stubUpdates{}
	}
	if d.merger == nil {
		d.merger = &stubMerger{}
	}
	if d.timelines == nil {
		d.timelines = &stubTimelines{}
	}
	opts = append(opts, enrich.WithClock(func() time.Time { return fixtures.BaseTime }))
	return enrich.NewService(d.repo, d.dups, d.updates, d.merger, d.timelines,
		config.DefaultPipelineConfig(), slog.Default(), opts...)
}

func TestProcessNewStory_MergesDuplicateIntoPublishedPrimary(t *testing.T) {
	existing := fixtures.NewTestArticle(1,
		fixtures.WithTitle("Fire at Chalong warehouse"),
		fixtures.WithContent("A warehouse caught fire overnight."))
	repo := fixtures.NewMemoryRepo(existing)

	merger := &stubMerger{result: &merge.SynthesisResult{
		Title:        "Fire at Chalong warehouse",
		Content:      "Combined account with casualty figures.",
		Excerpt:      "Combined account",
		IsDeveloping: true,
	}}
	publisher := &stubPublisher{}
	svc := newTestService(deps{
		repo:   repo,
		dups:   &stubDups{verdicts: []dedup.Verdict{{IsDuplicate: true, Confidence: 0.9, Matched: existing}}},
		merger: merger,
	}, enrich.WithPublisher(publisher))

	incoming := fixtures.NewTestArticle(0,
		fixtures.WithStatus(entity.StatusDraft),
		fixtures.WithTitle("Chalong warehouse blaze"),
		fixtures.WithContent("Fresh details on the warehouse fire."))

	result, err := svc.ProcessNewStory(context.Background(), incoming)

	require.NoError(t, err)
	assert.Equal(t, enrich.OutcomeMerged, result.Outcome)
	assert.Equal(t, int64(1), result.Article.ID)
	assert.Equal(t, []int64{incoming.ID}, result.AbsorbedIDs)
	assert.Equal(t, 1, merger.calls)
	assert.Equal(t, 1, publisher.calls)

	primary, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, "Combined account with casualty figures.", primary.Content)
	assert.True(t, primary.IsDeveloping)
	assert.Equal(t, 1, primary.EnrichmentCount)
	require.NotNil(t, primary.LastEnrichedAt)

	absorbed, _ := repo.GetByID(context.Background(), incoming.ID)
	require.NotNil(t, absorbed.MergedIntoID)
	assert.Equal(t, int64(1), *absorbed.MergedIntoID)
}

func TestProcessNewStory_LinksConfirmedUpdate(t *testing.T) {
	original := fixtures.NewTestArticle(1,
		fixtures.WithTitle("Tourist missing at Kata"))
	timelines := &stubTimelines{}
	repo := fixtures.NewMemoryRepo(original)
	svc := newTestService(deps{
		repo: repo,
		updates: &stubUpdates{
			result: &storyupdate.Result{IsUpdate: true, Original: original, Confidence: 0.85},
			link: &storyupdate.LinkResult{
				SeriesID: "series-abc",
				Content:  "<div>notice</div>\nThe body was found.",
			},
		},
		timelines: timelines,
	})

	incoming := fixtures.NewTestArticle(0,
		fixtures.WithTitle("Body found at Kata"),
		fixtures.WithContent("The body was found."))

	result, err := svc.ProcessNewStory(context.Background(), incoming)

	require.NoError(t, err)
	assert.Equal(t, enrich.OutcomeUpdate, result.Outcome)
	assert.Equal(t, "series-abc", result.SeriesID)
	assert.Equal(t, 1, timelines.attachedCalls)
	assert.Equal(t, incoming.ID, timelines.attachedID)

	stored, _ := repo.GetByID(context.Background(), incoming.ID)
	assert.Contains(t, stored.Content, "<div>notice</div>")
	assert.True(t, stored.IsDeveloping)
}

func TestProcessNewStory_AutoMatchesTimelineTags(t *testing.T) {
	parent := fixtures.NewTestArticle(1,
		fixtures.WithSeries("series-tags", "Patong Fire", true))
	timelines := &stubTimelines{parent: parent}
	svc := newTestService(deps{timelines: timelines})

	incoming := fixtures.NewTestArticle(0, fixtures.WithTitle("More on the Patong fire"))

	result, err := svc.ProcessNewStory(context.Background(), incoming)

	require.NoError(t, err)
	assert.Equal(t, enrich.OutcomeCreated, result.Outcome)
	assert.Equal(t, "series-tags", result.SeriesID)
	assert.Equal(t, incoming.ID, timelines.attachedID)
}

func TestProcessNewStory_StandaloneWhenNothingMatches(t *testing.T) {
	svc := newTestService(deps{})

	incoming := fixtures.NewTestArticle(0, fixtures.WithTitle("New park opens"))

	result, err := svc.ProcessNewStory(context.Background(), incoming)

	require.NoError(t, err)
	assert.Equal(t, enrich.OutcomeCreated, result.Outcome)
	assert.Empty(t, result.SeriesID)
	assert.NotZero(t, incoming.ID)
}

func TestEnrichDevelopingStories_ManualEditEndsAutomation(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithDeveloping(),
			fixtures.WithManualEdit(fixtures.BaseTime.Add(-time.Hour))))
	svc := newTestService(deps{repo: repo})

	result, err := svc.EnrichDevelopingStories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
	assert.Zero(t, result.Enriched)

	story, _ := repo.GetByID(context.Background(), 1)
	assert.False(t, story.IsDeveloping)
}

func TestEnrichDevelopingStories_StaleStoryCompleted(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithDeveloping(),
			fixtures.WithLastEnrichedAt(fixtures.BaseTime.Add(-7*time.Hour))))
	svc := newTestService(deps{repo: repo})

	result, err := svc.EnrichDevelopingStories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)

	story, _ := repo.GetByID(context.Background(), 1)
	assert.False(t, story.IsDeveloping)
}

func TestEnrichDevelopingStories_CooldownDefersStory(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithDeveloping(),
			fixtures.WithLastEnrichedAt(fixtures.BaseTime.Add(-5*time.Minute))))
	svc := newTestService(deps{repo: repo})

	result, err := svc.EnrichDevelopingStories(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Enriched)
	assert.Zero(t, result.Completed)
	assert.Zero(t, result.Failed)
	assert.Zero(t, repo.UpdateCalls)
}

func TestEnrichDevelopingStories_MergesSiblingCoverage(t *testing.T) {
	story := fixtures.NewTestArticle(1,
		fixtures.WithDeveloping(),
		fixtures.WithTitle("Search for missing fisherman"))
	sibling := fixtures.NewTestArticle(2,
		fixtures.WithTitle("Fisherman search widens"))
	repo := fixtures.NewMemoryRepo(story, sibling)

	merger := &stubMerger{result: &merge.SynthesisResult{
		Title:        "Search for missing fisherman",
		Content:      "Combined coverage of the search.",
		IsDeveloping: true,
	}}
	svc := newTestService(deps{
		repo:    repo,
		updates: &stubUpdates{related: []*entity.Article{sibling}},
		merger:  merger,
	})

	result, err := svc.EnrichDevelopingStories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Enriched)
	assert.Equal(t, 1, merger.calls)

	enriched, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, "Combined coverage of the search.", enriched.Content)
	assert.Equal(t, 1, enriched.EnrichmentCount)
	assert.True(t, enriched.IsDeveloping)

	absorbed, _ := repo.GetByID(context.Background(), 2)
	require.NotNil(t, absorbed.MergedIntoID)
	assert.Equal(t, int64(1), *absorbed.MergedIntoID)
}

func TestEnrichDevelopingStories_QuietPassWritesNothing(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithDeveloping(),
			fixtures.WithContent("Original content.")))
	svc := newTestService(deps{repo: repo})

	result, err := svc.EnrichDevelopingStories(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Enriched)
	assert.Zero(t, result.Completed)
	assert.Zero(t, result.Failed)
	assert.Zero(t, repo.UpdateCalls)

	story, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, "Original content.", story.Content)
	assert.Zero(t, story.EnrichmentCount)
	assert.Nil(t, story.LastEnrichedAt)
}

func TestEnrichDevelopingStories_QuietStoryRetiresAfterStaleness(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithDeveloping(),
			fixtures.WithPublishedAt(fixtures.BaseTime)))

	now := fixtures.BaseTime
	svc := enrich.NewService(repo, &stubDups{}, &stubUpdates{}, &stubMerger{}, &stubTimelines{},
		config.DefaultPipelineConfig(), slog.Default(),
		enrich.WithClock(func() time.Time { return now }),
		enrich.WithEnricher(&stubEnricher{}))

	// Sweeps inside the staleness window find nothing and must not touch the
	// story, or the staleness clock would never run out.
	for _, offset := range []time.Duration{time.Hour, 3 * time.Hour, 5 * time.Hour} {
		now = fixtures.BaseTime.Add(offset)
		result, err := svc.EnrichDevelopingStories(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.Enriched)
		assert.Zero(t, result.Completed)
	}
	assert.Zero(t, repo.UpdateCalls)

	now = fixtures.BaseTime.Add(7 * time.Hour)
	result, err := svc.EnrichDevelopingStories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)

	story, _ := repo.GetByID(context.Background(), 1)
	assert.False(t, story.IsDeveloping)
}

func TestProcessNewStory_PrimaryTieBreaksOnEarliestPublish(t *testing.T) {
	earlier := fixtures.NewTestArticle(1,
		fixtures.WithTitle("Jetski crash at Bangtao"),
		fixtures.WithInterestScore(6),
		fixtures.WithPublishedAt(fixtures.BaseTime.Add(-3*time.Hour)))
	later := fixtures.NewTestArticle(2,
		fixtures.WithTitle("Bangtao jetski collision"),
		fixtures.WithInterestScore(6),
		fixtures.WithPublishedAt(fixtures.BaseTime.Add(-1*time.Hour)))
	repo := fixtures.NewMemoryRepo(earlier, later)

	svc := newTestService(deps{
		repo: repo,
		dups: &stubDups{verdicts: []dedup.Verdict{
			{IsDuplicate: true, Confidence: 0.9, Matched: later},
			{IsDuplicate: true, Confidence: 0.9, Matched: earlier},
		}},
	})

	incoming := fixtures.NewTestArticle(0,
		fixtures.WithStatus(entity.StatusDraft),
		fixtures.WithTitle("Two hurt in jetski crash"),
		fixtures.WithInterestScore(6),
		fixtures.WithPublishedAt(fixtures.BaseTime))

	result, err := svc.ProcessNewStory(context.Background(), incoming)

	require.NoError(t, err)
	assert.Equal(t, enrich.OutcomeMerged, result.Outcome)
	assert.Equal(t, int64(1), result.Article.ID)
	assert.ElementsMatch(t, []int64{2, incoming.ID}, result.AbsorbedIDs)
}
