package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArticleValidate(t *testing.T) {
	tests := []struct {
		name    string
		article Article
		wantErr bool
	}{
		{
			name:    "english title only is valid",
			article: Article{Title: "Patong fire"},
			wantErr: false,
		},
		{
			name:    "thai title only is valid",
			article: Article{TitleTh: "ไฟไหม้ป่าตอง"},
			wantErr: false,
		},
		{
			name:    "no title in either language",
			article: Article{Content: "body"},
			wantErr: true,
		},
		{
			name:    "unknown status",
			article: Article{Title: "t", Status: "archived"},
			wantErr: true,
		},
		{
			name:    "empty status is tolerated",
			article: Article{Title: "t", Status: ""},
			wantErr: false,
		},
		{
			name:    "negative series update count",
			article: Article{Title: "t", SeriesUpdateCount: -1},
			wantErr: true,
		},
		{
			name:    "merged into itself",
			article: Article{ID: 7, Title: "t", MergedIntoID: ptr(int64(7))},
			wantErr: true,
		},
		{
			name:    "merged into another article",
			article: Article{ID: 7, Title: "t", MergedIntoID: ptr(int64(8))},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.article.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestArticleStateHelpers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var plain Article
	assert.False(t, plain.HasEmbedding())
	assert.False(t, plain.InTimeline())
	assert.False(t, plain.IsMerged())
	assert.False(t, plain.ManuallyEdited())

	embedded := Article{Embedding: []float32{0.1, 0.2}}
	assert.True(t, embedded.HasEmbedding())

	series := "series-1"
	inTimeline := Article{SeriesID: &series}
	assert.True(t, inTimeline.InTimeline())

	empty := ""
	blankSeries := Article{SeriesID: &empty}
	assert.False(t, blankSeries.InTimeline())

	merged := Article{ID: 2, MergedIntoID: ptr(int64(1))}
	assert.True(t, merged.IsMerged())

	edited := Article{LastManualEditAt: &now}
	assert.True(t, edited.ManuallyEdited())
}

func TestMatchingTextPrefersThaiSource(t *testing.T) {
	article := Article{
		Title:     "Patong fire",
		Content:   "A fire broke out.",
		TitleTh:   "ไฟไหม้ป่าตอง",
		ContentTh: "เกิดเหตุไฟไหม้",
	}

	title, content := article.MatchingText()
	assert.Equal(t, "ไฟไหม้ป่าตอง", title)
	assert.Equal(t, "เกิดเหตุไฟไหม้", content)
}

func TestMatchingTextFallsBackPerField(t *testing.T) {
	article := Article{
		Title:     "Patong fire",
		Content:   "A fire broke out.",
		ContentTh: "เกิดเหตุไฟไหม้",
	}

	title, content := article.MatchingText()
	assert.Equal(t, "Patong fire", title)
	assert.Equal(t, "เกิดเหตุไฟไหม้", content)
}

func TestFilterByType(t *testing.T) {
	entities := []ExtractedEntity{
		{Type: EntityLocation, Value: "Patong"},
		{Type: EntityPerson, Value: "somchai"},
		{Type: EntityLocation, Value: "Karon"},
	}

	assert.Equal(t, []string{"Patong", "Karon"}, FilterByType(entities, EntityLocation))
	assert.Empty(t, FilterByType(entities, EntityEvent))
}

func ptr[T any](v T) *T { return &v }
