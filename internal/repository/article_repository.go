// Package repository defines the persistence interfaces consumed by the use
// case layer. Concrete implementations live under internal/infra/adapter.
package repository

import (
	"context"
	"time"

	"siamwire/internal/domain/entity"
)

// ArticlePatch describes a partial update to an article. Nil fields are left
// untouched. The patch is applied as a single last-writer-wins row update.
type ArticlePatch struct {
	Title             *string
	Content           *string
	Excerpt           *string
	IsDeveloping      *bool
	IsParentStory     *bool
	SeriesID          *string
	StorySeriesTitle  *string
	SeriesUpdateCount *int
	MergedIntoID      *int64
	EnrichmentCount   *int
	LastEnrichedAt    *time.Time
	TimelineTags      *[]string
	AutoMatchEnabled  *bool

	// ClearSeries removes the article from its timeline: series_id,
	// story_series_title and is_parent_story are reset in the same update.
	ClearSeries bool
}

// IsEmpty reports whether the patch would change nothing.
func (p ArticlePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Excerpt == nil &&
		p.IsDeveloping == nil && p.IsParentStory == nil && p.SeriesID == nil &&
		p.StorySeriesTitle == nil && p.SeriesUpdateCount == nil &&
		p.MergedIntoID == nil && p.EnrichmentCount == nil &&
		p.LastEnrichedAt == nil && p.TimelineTags == nil &&
		p.AutoMatchEnabled == nil && !p.ClearSeries
}

// ArticleRepository is the corpus access contract for the story pipeline.
//
// Rows returned by the candidate-pool queries (ListRecentWithEmbeddings,
// ListDeveloping, ListAutoMatchParents) carry the original-language title and
// content alongside the translation; matching fidelity depends on the source
// text, not the translated text.
type ArticleRepository interface {
	// Create persists a new article and assigns its ID.
	Create(ctx context.Context, article *entity.Article) error

	// GetByID returns the article with the given ID, or entity.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*entity.Article, error)

	// GetBySlug returns the article with the given slug, or entity.ErrNotFound.
	GetBySlug(ctx context.Context, slug string) (*entity.Article, error)

	// Update applies a partial update to the article and returns the updated
	// row. Returns entity.ErrNotFound if the article does not exist.
	Update(ctx context.Context, id int64, patch ArticlePatch) (*entity.Article, error)

	// ListRecentWithEmbeddings returns published articles from the given time
	// onward that have an embedding and have not been merged away, newest
	// first. Articles without embeddings are silently absent.
	ListRecentWithEmbeddings(ctx context.Context, since time.Time) ([]*entity.Article, error)

	// ListDeveloping returns all articles currently flagged as developing,
	// excluding merged articles, oldest first so long-running stories are
	// handled before fresh ones in a sweep.
	ListDeveloping(ctx context.Context) ([]*entity.Article, error)

	// ListBySeries returns every member of a timeline, newest first.
	// Returns an empty slice (not nil) for an unknown series.
	ListBySeries(ctx context.Context, seriesID string) ([]*entity.Article, error)

	// GetSeriesParent returns the unique parent article of a timeline.
	// Returns entity.ErrNotFound if the series does not exist or has no parent.
	GetSeriesParent(ctx context.Context, seriesID string) (*entity.Article, error)

	// ListAutoMatchParents returns all parent stories with auto-matching
	// enabled, for tag-based timeline matching of new articles.
	ListAutoMatchParents(ctx context.Context) ([]*entity.Article, error)
}
