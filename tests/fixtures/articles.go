// Package fixtures provides reusable test data builders and an in-memory
// article repository for pipeline tests. This package eliminates test data
// duplication and keeps similarity setups consistent across test suites.
package fixtures

import (
	"time"

	"siamwire/internal/domain/entity"
)

// BaseTime is the fixed reference time used by article fixtures so tests are
// independent of the wall clock.
var BaseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// ArticleOption is a functional option for customizing test articles.
type ArticleOption func(*entity.Article)

// NewTestArticle creates a published article with sensible defaults.
// Use functional options to customize it for specific test cases.
//
// Example:
//
//	art := fixtures.NewTestArticle(1,
//	    fixtures.WithTitle("Tourist missing at Patong Beach"),
//	    fixtures.WithEmbedding(fixtures.VecAngle(0)))
func NewTestArticle(id int64, opts ...ArticleOption) *entity.Article {
	a := &entity.Article{
		ID:          id,
		Slug:        "test-article",
		SourceName:  "Test Source",
		Category:    "news",
		Title:       "Test article",
		Content:     "Test content",
		Status:      entity.StatusPublished,
		PublishedAt: BaseTime.Add(-1 * time.Hour),
		CreatedAt:   BaseTime.Add(-1 * time.Hour),
		UpdatedAt:   BaseTime.Add(-1 * time.Hour),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithTitle sets both the translated and source-language title.
func WithTitle(title string) ArticleOption {
	return func(a *entity.Article) {
		a.Title = title
		a.TitleTh = title
	}
}

// WithContent sets both the translated and source-language content.
func WithContent(content string) ArticleOption {
	return func(a *entity.Article) {
		a.Content = content
		a.ContentTh = content
	}
}

// WithThaiText sets the source-language text independently of the translation.
func WithThaiText(title, content string) ArticleOption {
	return func(a *entity.Article) {
		a.TitleTh = title
		a.ContentTh = content
	}
}

// WithEmbedding sets the article's embedding vector.
func WithEmbedding(vec []float32) ArticleOption {
	return func(a *entity.Article) {
		a.Embedding = vec
	}
}

// WithPublishedAt sets the publish timestamp.
func WithPublishedAt(t time.Time) ArticleOption {
	return func(a *entity.Article) {
		a.PublishedAt = t
	}
}

// WithStatus sets the publication status.
func WithStatus(status entity.ArticleStatus) ArticleOption {
	return func(a *entity.Article) {
		a.Status = status
	}
}

// WithInterestScore sets the interest score used in primary selection.
func WithInterestScore(score float64) ArticleOption {
	return func(a *entity.Article) {
		a.InterestScore = score
	}
}

// WithDeveloping flags the article as a developing story.
func WithDeveloping() ArticleOption {
	return func(a *entity.Article) {
		a.IsDeveloping = true
	}
}

// WithSeries places the article in a timeline.
func WithSeries(seriesID, seriesTitle string, parent bool) ArticleOption {
	return func(a *entity.Article) {
		a.SeriesID = &seriesID
		a.StorySeriesTitle = &seriesTitle
		a.IsParentStory = parent
	}
}

// WithTimelineTags sets parent-story auto-match tags.
func WithTimelineTags(enabled bool, tags ...string) ArticleOption {
	return func(a *entity.Article) {
		a.AutoMatchEnabled = enabled
		a.TimelineTags = tags
	}
}

// WithMergedInto marks the article as absorbed by another.
func WithMergedInto(primaryID int64) ArticleOption {
	return func(a *entity.Article) {
		a.MergedIntoID = &primaryID
	}
}

// WithLastEnrichedAt sets the enrichment bookkeeping timestamp.
func WithLastEnrichedAt(t time.Time) ArticleOption {
	return func(a *entity.Article) {
		a.LastEnrichedAt = &t
	}
}

// WithManualEdit marks the article as human-edited.
func WithManualEdit(t time.Time) ArticleOption {
	return func(a *entity.Article) {
		a.LastManualEditAt = &t
	}
}
