package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"identical vectors", []float32{0.5, 0.5, 0.7}, []float32{0.5, 0.5, 0.7}, 1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"dimension mismatch returns zero", []float32{1, 0, 0}, []float32{1, 0}, 0.0},
		{"zero magnitude returns zero", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"both empty returns zero", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	v := []float32{0.12, -0.98, 0.33, 0.41}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestTokenizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected []string
	}{
		{
			name:     "lowercases and drops stop words",
			title:    "Tourist Drowned After Storm at Patong Beach",
			expected: []string{"tourist", "drowned", "storm", "patong", "beach"},
		},
		{
			name:     "drops short tokens",
			title:    "Man, 34, in ICU",
			expected: []string{"man", "icu"},
		},
		{
			name:     "empty title",
			title:    "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TokenizeTitle(tt.title))
		})
	}
}

func TestBigrams_InjectsKeyTermSingletons(t *testing.T) {
	tokens := TokenizeTitle("Fire destroys Patong nightclub")
	set := Bigrams(tokens)

	assert.Contains(t, set, "fire destroys")
	assert.Contains(t, set, "destroys patong")
	// key terms appear as singleton pseudo-bigrams
	assert.Contains(t, set, "fire")
	assert.Contains(t, set, "patong")
	assert.NotContains(t, set, "destroys")
	assert.NotContains(t, set, "nightclub")
}

func TestJaccardSimilarity(t *testing.T) {
	setA := Bigrams([]string{"tourist", "drowned", "patong"})
	setB := Bigrams([]string{"tourist", "drowned", "patong"})

	t.Run("identical sets score one", func(t *testing.T) {
		assert.InDelta(t, 1.0, JaccardSimilarity(setA, setB), 1e-9)
	})

	t.Run("both empty score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, JaccardSimilarity(map[string]struct{}{}, map[string]struct{}{}))
	})

	t.Run("disjoint sets score zero", func(t *testing.T) {
		a := map[string]struct{}{"x y": {}}
		b := map[string]struct{}{"z w": {}}
		assert.Equal(t, 0.0, JaccardSimilarity(a, b))
	})
}

func TestKeyTermOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "shared location and event",
			a:        "Fire guts shop in Patong overnight",
			b:        "Patong fire under control says chief",
			expected: 1.0,
		},
		{
			name:     "no gazetteer terms on one side",
			a:        "Council approves new budget",
			b:        "Fire in Patong",
			expected: 0.0,
		},
		{
			name:     "partial overlap uses smaller set",
			a:        "Drowning at Karon",
			b:        "Karon and Kata lifeguards warn swimmers",
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := KeyTermOverlap(TokenizeTitle(tt.a), TokenizeTitle(tt.b))
			assert.InDelta(t, tt.expected, score, 1e-9)
		})
	}
}

func TestTitleSimilarity_NearIdenticalTitles(t *testing.T) {
	score := TitleSimilarity(
		"Tourist drowned at Patong Beach during storm",
		"Tourist drowned at Patong Beach during heavy storm",
	)
	assert.Greater(t, score, 0.65)
}

func TestTitleSimilarity_UnrelatedTitles(t *testing.T) {
	score := TitleSimilarity(
		"Airport reopens after runway repairs",
		"Two arrested in Chalong drug raid",
	)
	assert.Less(t, score, 0.2)
}
