// Package postgres implements the persistence interfaces against PostgreSQL.
// Embeddings are stored in a pgvector column on the articles table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"siamwire/internal/domain/entity"
	"siamwire/internal/repository"
)

// articleColumns is the canonical column list; scanArticle must stay in sync.
const articleColumns = `
	id, slug, source_name, category, title, content, excerpt,
	title_th, content_th, embedding, interest_score, status,
	published_at, created_at, updated_at,
	is_developing, is_parent_story, series_id, story_series_title,
	series_update_count, merged_into_id, enrichment_count, last_enriched_at,
	timeline_tags, auto_match_enabled, last_manual_edit_at`

// ArticleRepo implements repository.ArticleRepository for PostgreSQL.
type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo creates a PostgreSQL-backed article repository.
func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

func (repo *ArticleRepo) Create(ctx context.Context, article *entity.Article) error {
	if err := article.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	const query = `
INSERT INTO articles
	(slug, source_name, category, title, content, excerpt,
	 title_th, content_th, embedding, interest_score, status,
	 published_at, is_developing, timeline_tags, auto_match_enabled,
	 created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
RETURNING id, created_at, updated_at`

	var embedding interface{}
	if article.HasEmbedding() {
		embedding = pgvector.NewVector(article.Embedding)
	}

	err := repo.db.QueryRowContext(ctx, query,
		article.Slug, article.SourceName, article.Category,
		article.Title, article.Content, article.Excerpt,
		article.TitleTh, article.ContentTh, embedding,
		article.InterestScore, string(article.Status),
		article.PublishedAt, article.IsDeveloping,
		pq.Array(article.TimelineTags), article.AutoMatchEnabled,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *ArticleRepo) GetByID(ctx context.Context, id int64) (*entity.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE id = $1 LIMIT 1`, articleColumns)
	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return article, nil
}

func (repo *ArticleRepo) GetBySlug(ctx context.Context, slug string) (*entity.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE slug = $1 LIMIT 1`, articleColumns)
	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetBySlug: %w", err)
	}
	return article, nil
}

// Update applies a partial update as a single dynamically built statement and
// returns the updated row.
func (repo *ArticleRepo) Update(ctx context.Context, id int64, patch repository.ArticlePatch) (*entity.Article, error) {
	if patch.IsEmpty() {
		return repo.GetByID(ctx, id)
	}

	sets := make([]string, 0, 14)
	args := make([]interface{}, 0, 14)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.Excerpt != nil {
		add("excerpt", *patch.Excerpt)
	}
	if patch.IsDeveloping != nil {
		add("is_developing", *patch.IsDeveloping)
	}
	if patch.IsParentStory != nil {
		add("is_parent_story", *patch.IsParentStory)
	}
	if patch.SeriesID != nil {
		add("series_id", *patch.SeriesID)
	}
	if patch.StorySeriesTitle != nil {
		add("story_series_title", *patch.StorySeriesTitle)
	}
	if patch.SeriesUpdateCount != nil {
		add("series_update_count", *patch.SeriesUpdateCount)
	}
	if patch.MergedIntoID != nil {
		add("merged_into_id", *patch.MergedIntoID)
	}
	if patch.EnrichmentCount != nil {
		add("enrichment_count", *patch.EnrichmentCount)
	}
	if patch.LastEnrichedAt != nil {
		add("last_enriched_at", *patch.LastEnrichedAt)
	}
	if patch.TimelineTags != nil {
		add("timeline_tags", pq.Array(*patch.TimelineTags))
	}
	if patch.AutoMatchEnabled != nil {
		add("auto_match_enabled", *patch.AutoMatchEnabled)
	}
	if patch.ClearSeries {
		sets = append(sets,
			"series_id = NULL",
			"story_series_title = NULL",
			"is_parent_story = FALSE",
			"series_update_count = 0")
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE articles SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), articleColumns)

	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	return article, nil
}

func (repo *ArticleRepo) ListRecentWithEmbeddings(ctx context.Context, since time.Time) ([]*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s FROM articles
WHERE status = 'published'
  AND embedding IS NOT NULL
  AND merged_into_id IS NULL
  AND published_at >= $1
ORDER BY published_at DESC`, articleColumns)

	return repo.list(ctx, "ListRecentWithEmbeddings", query, since)
}

func (repo *ArticleRepo) ListDeveloping(ctx context.Context) ([]*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s FROM articles
WHERE is_developing
  AND merged_into_id IS NULL
ORDER BY published_at ASC`, articleColumns)

	return repo.list(ctx, "ListDeveloping", query)
}

func (repo *ArticleRepo) ListBySeries(ctx context.Context, seriesID string) ([]*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s FROM articles
WHERE series_id = $1
ORDER BY published_at DESC`, articleColumns)

	return repo.list(ctx, "ListBySeries", query, seriesID)
}

func (repo *ArticleRepo) GetSeriesParent(ctx context.Context, seriesID string) (*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s FROM articles
WHERE series_id = $1 AND is_parent_story
LIMIT 1`, articleColumns)

	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, seriesID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSeriesParent: %w", err)
	}
	return article, nil
}

func (repo *ArticleRepo) ListAutoMatchParents(ctx context.Context) ([]*entity.Article, error) {
	query := fmt.Sprintf(`
SELECT %s FROM articles
WHERE is_parent_story
  AND auto_match_enabled
ORDER BY id`, articleColumns)

	return repo.list(ctx, "ListAutoMatchParents", query)
}

func (repo *ArticleRepo) list(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Article, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 50)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: Scan: %w", op, err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return articles, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanArticle.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src interface{}) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func scanArticle(row rowScanner) (*entity.Article, error) {
	var (
		article          entity.Article
		embedding        nullVector
		status           string
		seriesID         sql.NullString
		seriesTitle      sql.NullString
		mergedIntoID     sql.NullInt64
		lastEnrichedAt   sql.NullTime
		lastManualEditAt sql.NullTime
		tags             pq.StringArray
	)

	err := row.Scan(
		&article.ID, &article.Slug, &article.SourceName, &article.Category,
		&article.Title, &article.Content, &article.Excerpt,
		&article.TitleTh, &article.ContentTh, &embedding,
		&article.InterestScore, &status,
		&article.PublishedAt, &article.CreatedAt, &article.UpdatedAt,
		&article.IsDeveloping, &article.IsParentStory, &seriesID, &seriesTitle,
		&article.SeriesUpdateCount, &mergedIntoID, &article.EnrichmentCount, &lastEnrichedAt,
		&tags, &article.AutoMatchEnabled, &lastManualEditAt,
	)
	if err != nil {
		return nil, err
	}

	article.Status = entity.ArticleStatus(status)
	if embedding.valid {
		article.Embedding = embedding.vec.Slice()
	}
	if seriesID.Valid {
		article.SeriesID = &seriesID.String
	}
	if seriesTitle.Valid {
		article.StorySeriesTitle = &seriesTitle.String
	}
	if mergedIntoID.Valid {
		article.MergedIntoID = &mergedIntoID.Int64
	}
	if lastEnrichedAt.Valid {
		article.LastEnrichedAt = &lastEnrichedAt.Time
	}
	if lastManualEditAt.Valid {
		article.LastManualEditAt = &lastManualEditAt.Time
	}
	article.TimelineTags = []string(tags)
	return &article, nil
}
