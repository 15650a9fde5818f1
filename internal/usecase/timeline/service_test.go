package timeline_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siamwire/internal/config"
	"siamwire/internal/domain/entity"
	"siamwire/internal/usecase/timeline"
	"siamwire/tests/fixtures"
)

func newTestService(repo *fixtures.MemoryRepo) *timeline.Service {
	return timeline.NewService(repo, config.DefaultPipelineConfig(), slog.Default(),
		timeline.WithClock(func() time.Time { return fixtures.BaseTime }))
}

func TestCreateStoryTimeline_SetsParentFields(t *testing.T) {
	repo := fixtures.NewMemoryRepo(fixtures.NewTestArticle(1))
	svc := newTestService(repo)

	seriesID, err := svc.CreateStoryTimeline(context.Background(), 1, "Kata Drowning - Developing")

	require.NoError(t, err)
	assert.NotEmpty(t, seriesID)

	parent, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, parent.IsParentStory)
	require.NotNil(t, parent.SeriesID)
	assert.Equal(t, seriesID, *parent.SeriesID)
	require.NotNil(t, parent.StorySeriesTitle)
	assert.Equal(t, "Kata Drowning - Developing", *parent.StorySeriesTitle)
	assert.Zero(t, parent.SeriesUpdateCount)
}

func TestCreateStoryTimeline_IdempotentForExistingMember(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Existing", true)))
	svc := newTestService(repo)

	seriesID, err := svc.CreateStoryTimeline(context.Background(), 1, "New Title")

	require.NoError(t, err)
	assert.Equal(t, "series-1", seriesID)
	assert.Zero(t, repo.UpdateCalls)
}

func TestAddArticleToTimeline_CopiesTitleAndBumpsParentCount(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Patong Fire - Developing", true)),
		fixtures.NewTestArticle(2),
	)
	svc := newTestService(repo)

	require.NoError(t, svc.AddArticleToTimeline(context.Background(), 2, "series-1"))

	child, _ := repo.GetByID(context.Background(), 2)
	require.NotNil(t, child.SeriesID)
	assert.Equal(t, "series-1", *child.SeriesID)
	require.NotNil(t, child.StorySeriesTitle)
	assert.Equal(t, "Patong Fire - Developing", *child.StorySeriesTitle)
	assert.False(t, child.IsParentStory)

	parent, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, 1, parent.SeriesUpdateCount)
}

func TestAddArticleToTimeline_RejectsForeignParent(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Fire", true)),
		fixtures.NewTestArticle(2, fixtures.WithSeries("series-2", "Drowning", true)),
	)
	svc := newTestService(repo)

	err := svc.AddArticleToTimeline(context.Background(), 2, "series-1")

	assert.ErrorIs(t, err, timeline.ErrForeignParent)
}

func TestAddArticleToTimeline_ExistingMemberIsNoOp(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Fire", true)),
		fixtures.NewTestArticle(2, fixtures.WithSeries("series-1", "Fire", false)),
	)
	svc := newTestService(repo)

	require.NoError(t, svc.AddArticleToTimeline(context.Background(), 2, "series-1"))
	assert.Zero(t, repo.UpdateCalls)
}

func TestAddArticleToTimeline_MoveAdjustsBothParentCounts(t *testing.T) {
	oldParent := fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Fire", true))
	oldParent.SeriesUpdateCount = 2
	newParent := fixtures.NewTestArticle(2, fixtures.WithSeries("series-2", "Drowning", true))
	repo := fixtures.NewMemoryRepo(
		oldParent,
		newParent,
		fixtures.NewTestArticle(3, fixtures.WithSeries("series-1", "Fire", false)),
	)
	svc := newTestService(repo)

	require.NoError(t, svc.AddArticleToTimeline(context.Background(), 3, "series-2"))

	moved, _ := repo.GetByID(context.Background(), 3)
	require.NotNil(t, moved.SeriesID)
	assert.Equal(t, "series-2", *moved.SeriesID)
	require.NotNil(t, moved.StorySeriesTitle)
	assert.Equal(t, "Drowning", *moved.StorySeriesTitle)

	old, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, 1, old.SeriesUpdateCount)

	updated, _ := repo.GetByID(context.Background(), 2)
	assert.Equal(t, 1, updated.SeriesUpdateCount)
}

func TestRemoveArticleFromTimeline(t *testing.T) {
	parent := fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Fire", true))
	parent.SeriesUpdateCount = 1
	repo := fixtures.NewMemoryRepo(
		parent,
		fixtures.NewTestArticle(2, fixtures.WithSeries("series-1", "Fire", false)),
	)
	svc := newTestService(repo)

	require.NoError(t, svc.RemoveArticleFromTimeline(context.Background(), 2))

	child, _ := repo.GetByID(context.Background(), 2)
	assert.Nil(t, child.SeriesID)
	assert.Nil(t, child.StorySeriesTitle)

	updated, _ := repo.GetByID(context.Background(), 1)
	assert.Zero(t, updated.SeriesUpdateCount)
}

func TestRemoveArticleFromTimeline_RejectsParent(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Fire", true)))
	svc := newTestService(repo)

	err := svc.RemoveArticleFromTimeline(context.Background(), 1)

	assert.ErrorIs(t, err, timeline.ErrParentRemoval)
}

func TestRemoveArticleFromTimeline_RejectsNonMember(t *testing.T) {
	repo := fixtures.NewMemoryRepo(fixtures.NewTestArticle(1))
	svc := newTestService(repo)

	err := svc.RemoveArticleFromTimeline(context.Background(), 1)

	assert.ErrorIs(t, err, timeline.ErrNotInTimeline)
}

func TestDeleteTimeline_ClearsEveryMember(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Fire", true)),
		fixtures.NewTestArticle(2, fixtures.WithSeries("series-1", "Fire", false)),
		fixtures.NewTestArticle(3, fixtures.WithSeries("series-1", "Fire", false)),
	)
	svc := newTestService(repo)

	require.NoError(t, svc.DeleteTimeline(context.Background(), "series-1"))

	for _, id := range []int64{1, 2, 3} {
		art, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, art.SeriesID, "article %d", id)
		assert.False(t, art.IsParentStory, "article %d", id)
	}
}

func TestDeleteTimeline_UnknownSeries(t *testing.T) {
	svc := newTestService(fixtures.NewMemoryRepo())

	err := svc.DeleteTimeline(context.Background(), "no-such-series")

	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestGetParentStory_BySeriesIDAndByChildSlug(t *testing.T) {
	child := fixtures.NewTestArticle(2, fixtures.WithSeries("series-1", "Fire", false))
	child.Slug = "warehouse-fire-update"
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1, fixtures.WithSeries("series-1", "Fire", true)),
		child,
	)
	svc := newTestService(repo)

	bySeries, err := svc.GetParentStory(context.Background(), "series-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bySeries.ID)

	bySlug, err := svc.GetParentStory(context.Background(), "warehouse-fire-update")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bySlug.ID)
}

func TestSuggestRelatedArticles(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithSeries("series-1", "Fire", true),
			fixtures.WithEmbedding(fixtures.VecAngle(0))),
		fixtures.NewTestArticle(2,
			fixtures.WithEmbedding(fixtures.VecSimilarity(0.82))),
		fixtures.NewTestArticle(3,
			fixtures.WithEmbedding(fixtures.VecSimilarity(0.6))),
		fixtures.NewTestArticle(4,
			fixtures.WithSeries("series-2", "Other", false),
			fixtures.WithEmbedding(fixtures.VecSimilarity(0.95))),
	)
	svc := newTestService(repo)

	suggestions, err := svc.SuggestRelatedArticles(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, int64(2), suggestions[0].Article.ID)
	assert.Equal(t, "strongly related coverage", suggestions[0].Reason)
}

func TestFindMatchingTimeline_CommaJoinedTagsMatchThaiText(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithSeries("series-1", "Patong Fire", true),
			fixtures.WithTimelineTags(true, "Patong fire, ไฟไหม้")),
	)
	svc := newTestService(repo)

	article := fixtures.NewTestArticle(10,
		fixtures.WithThaiText("ไฟไหม้ที่ป่าตอง", "เกิดเหตุไฟไหม้อาคารพาณิชย์ในป่าตอง"))

	parent, err := svc.FindMatchingTimeline(context.Background(), article)

	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, int64(1), parent.ID)
}

func TestFindMatchingTimeline_NoMatchReturnsNil(t *testing.T) {
	repo := fixtures.NewMemoryRepo(
		fixtures.NewTestArticle(1,
			fixtures.WithSeries("series-1", "Patong Fire", true),
			fixtures.WithTimelineTags(true, "patong fire")),
		fixtures.NewTestArticle(2,
			fixtures.WithSeries("series-2", "Quiet Story", true),
			fixtures.WithTimelineTags(false, "bus route")),
	)
	svc := newTestService(repo)

	article := fixtures.NewTestArticle(10,
		fixtures.WithTitle("New bus route opens"),
		fixtures.WithContent("The municipality launched a new bus route."))

	parent, err := svc.FindMatchingTimeline(context.Background(), article)

	require.NoError(t, err)
	assert.Nil(t, parent)
}
