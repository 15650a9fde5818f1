// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article and ExtractedEntity, along
// with their validation rules and domain-specific errors.
package entity

import "time"

// ArticleStatus represents the publication state of an article.
type ArticleStatus string

const (
	// StatusDraft marks an article that has been translated but not yet published.
	StatusDraft ArticleStatus = "draft"
	// StatusPublished marks an article that is live on the site.
	StatusPublished ArticleStatus = "published"
)

// IsValid reports whether the status is one of the known publication states.
func (s ArticleStatus) IsValid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Article represents a news article in the system. Articles carry dual-language
// text: the Thai source text scraped from Facebook (TitleTh/ContentTh) and the
// translated English text that is published (Title/Content/Excerpt).
//
// Similarity matching (duplicate detection, update detection, timeline
// suggestions) runs against the Thai source text and the dense Embedding
// vector. An article without an embedding is silently excluded from every
// similarity candidate pool; that is a degraded state, not an error.
type Article struct {
	ID            int64
	Slug          string
	SourceName    string
	Category      string
	Title         string
	Content       string
	Excerpt       string
	TitleTh       string
	ContentTh     string
	Embedding     []float32
	InterestScore float64
	Status        ArticleStatus
	PublishedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Story lifecycle fields.

	// IsDeveloping is true while the incident is still unfolding and the
	// enrichment sweep should keep working on the article.
	IsDeveloping bool
	// IsParentStory is true if this article anchors a timeline. At most one
	// article per SeriesID may carry this flag.
	IsParentStory bool
	// SeriesID groups articles into one timeline. Nil means the article does
	// not belong to any timeline.
	SeriesID *string
	// StorySeriesTitle is the display title for the timeline, set on the
	// parent and copied onto children when they are attached.
	StorySeriesTitle *string
	// SeriesUpdateCount on a parent equals the number of non-parent articles
	// attached to its series. Never negative.
	SeriesUpdateCount int
	// MergedIntoID is set when this article has been absorbed into another
	// article (the primary). Absorbed articles are never deleted, only
	// redirected, and are excluded from all future candidate pools.
	MergedIntoID *int64
	// EnrichmentCount tracks how many times the sweep has enriched the article.
	EnrichmentCount int
	// LastEnrichedAt is the timestamp of the last enrichment pass.
	LastEnrichedAt *time.Time
	// TimelineTags are keyword tags on a parent story that drive automatic
	// matching of future articles into its timeline.
	TimelineTags []string
	// AutoMatchEnabled controls whether TimelineTags are consulted at all.
	AutoMatchEnabled bool
	// LastManualEditAt marks a human edit. Once set, automation must never
	// touch the article again.
	LastManualEditAt *time.Time
}

// HasEmbedding reports whether the article can participate in similarity search.
func (a *Article) HasEmbedding() bool {
	return len(a.Embedding) > 0
}

// InTimeline reports whether the article belongs to a story timeline.
func (a *Article) InTimeline() bool {
	return a.SeriesID != nil && *a.SeriesID != ""
}

// IsMerged reports whether the article has been absorbed into another article.
// Merged articles are logically inert for further matching.
func (a *Article) IsMerged() bool {
	return a.MergedIntoID != nil
}

// ManuallyEdited reports whether a human has edited the article. Human edits
// permanently disable auto-enrichment.
func (a *Article) ManuallyEdited() bool {
	return a.LastManualEditAt != nil
}

// MatchingText returns the title and content used for similarity and entity
// matching. Matching runs against the Thai source text for fidelity; the
// translated text is a fallback for articles ingested before the scraper
// preserved the original.
func (a *Article) MatchingText() (title, content string) {
	title, content = a.TitleTh, a.ContentTh
	if title == "" {
		title = a.Title
	}
	if content == "" {
		content = a.Content
	}
	return title, content
}

// Validate checks the article for structural problems before persistence.
func (a *Article) Validate() error {
	if a.Title == "" && a.TitleTh == "" {
		return &ValidationError{Field: "Title", Message: "article must have a title in at least one language"}
	}
	if a.Status != "" && !a.Status.IsValid() {
		return ErrInvalidStatus
	}
	if a.SeriesUpdateCount < 0 {
		return &ValidationError{Field: "SeriesUpdateCount", Message: "series update count cannot be negative"}
	}
	if a.MergedIntoID != nil && *a.MergedIntoID == a.ID {
		return ErrSelfMerge
	}
	return nil
}
