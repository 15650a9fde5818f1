package fixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"siamwire/internal/domain/entity"
	"siamwire/internal/repository"
)

// MemoryRepo is an in-memory implementation of repository.ArticleRepository
// for use in pipeline tests. It applies patches with the same semantics as
// the Postgres adapter (last writer wins, ClearSeries resets series fields).
type MemoryRepo struct {
	mu       sync.Mutex
	articles map[int64]*entity.Article
	nextID   int64

	// UpdateCalls counts Update invocations, letting tests assert that a
	// guarded sweep performed no redundant writes.
	UpdateCalls int
}

// NewMemoryRepo creates an in-memory repository seeded with the given articles.
func NewMemoryRepo(articles ...*entity.Article) *MemoryRepo {
	repo := &MemoryRepo{
		articles: make(map[int64]*entity.Article),
		nextID:   1,
	}
	for _, a := range articles {
		cp := *a
		repo.articles[a.ID] = &cp
		if a.ID >= repo.nextID {
			repo.nextID = a.ID + 1
		}
	}
	return repo
}

// Create persists a new article and assigns its ID.
func (r *MemoryRepo) Create(_ context.Context, article *entity.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if article.ID == 0 {
		article.ID = r.nextID
		r.nextID++
	}
	cp := *article
	r.articles[article.ID] = &cp
	return nil
}

// GetByID returns a copy of the stored article.
func (r *MemoryRepo) GetByID(_ context.Context, id int64) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.articles[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetBySlug returns the article with the given slug.
func (r *MemoryRepo) GetBySlug(_ context.Context, slug string) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.articles {
		if a.Slug == slug {
			cp := *a
			return &cp, nil
		}
	}
	return nil, entity.ErrNotFound
}

// Update applies a partial update and returns the updated article.
func (r *MemoryRepo) Update(_ context.Context, id int64, patch repository.ArticlePatch) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.UpdateCalls++

	a, ok := r.articles[id]
	if !ok {
		return nil, entity.ErrNotFound
	}

	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Content != nil {
		a.Content = *patch.Content
	}
	if patch.Excerpt != nil {
		a.Excerpt = *patch.Excerpt
	}
	if patch.IsDeveloping != nil {
		a.IsDeveloping = *patch.IsDeveloping
	}
	if patch.IsParentStory != nil {
		a.IsParentStory = *patch.IsParentStory
	}
	if patch.SeriesID != nil {
		seriesID := *patch.SeriesID
		a.SeriesID = &seriesID
	}
	if patch.StorySeriesTitle != nil {
		title := *patch.StorySeriesTitle
		a.StorySeriesTitle = &title
	}
	if patch.SeriesUpdateCount != nil {
		a.SeriesUpdateCount = *patch.SeriesUpdateCount
	}
	if patch.MergedIntoID != nil {
		mergedInto := *patch.MergedIntoID
		a.MergedIntoID = &mergedInto
	}
	if patch.EnrichmentCount != nil {
		a.EnrichmentCount = *patch.EnrichmentCount
	}
	if patch.LastEnrichedAt != nil {
		t := *patch.LastEnrichedAt
		a.LastEnrichedAt = &t
	}
	if patch.TimelineTags != nil {
		a.TimelineTags = append([]string(nil), (*patch.TimelineTags)...)
	}
	if patch.AutoMatchEnabled != nil {
		a.AutoMatchEnabled = *patch.AutoMatchEnabled
	}
	if patch.ClearSeries {
		a.SeriesID = nil
		a.StorySeriesTitle = nil
		a.IsParentStory = false
		a.SeriesUpdateCount = 0
	}
	a.UpdatedAt = time.Now()

	cp := *a
	return &cp, nil
}

// ListRecentWithEmbeddings returns published, embedded, non-merged articles
// published at or after since, newest first.
func (r *MemoryRepo) ListRecentWithEmbeddings(_ context.Context, since time.Time) ([]*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Article
	for _, a := range r.articles {
		if a.Status != entity.StatusPublished || !a.HasEmbedding() || a.IsMerged() {
			continue
		}
		if a.PublishedAt.Before(since) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

// ListDeveloping returns developing, non-merged articles, oldest first.
func (r *MemoryRepo) ListDeveloping(_ context.Context) ([]*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Article
	for _, a := range r.articles {
		if !a.IsDeveloping || a.IsMerged() {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, nil
}

// ListBySeries returns every member of a timeline, newest first.
func (r *MemoryRepo) ListBySeries(_ context.Context, seriesID string) ([]*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entity.Article, 0)
	for _, a := range r.articles {
		if a.SeriesID != nil && *a.SeriesID == seriesID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

// GetSeriesParent returns the unique parent of a timeline.
func (r *MemoryRepo) GetSeriesParent(_ context.Context, seriesID string) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.articles {
		if a.IsParentStory && a.SeriesID != nil && *a.SeriesID == seriesID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, entity.ErrNotFound
}

// ListAutoMatchParents returns parent stories with auto-matching enabled.
func (r *MemoryRepo) ListAutoMatchParents(_ context.Context) ([]*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Article
	for _, a := range r.articles {
		if a.IsParentStory && a.AutoMatchEnabled {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
