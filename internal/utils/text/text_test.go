package text_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"siamwire/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"ASCII text", "hello", 5},
		{"Thai text", "ภูเก็ต", 6},
		{"mixed text", "Phuket ภูเก็ต", 13},
		{"empty string", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, text.CountRunes(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", text.Truncate("hello", 10))
	})

	t.Run("cuts at word boundary", func(t *testing.T) {
		got := text.Truncate("the quick brown fox jumps", 15)
		assert.Equal(t, "the quick...", got)
	})

	t.Run("hard cut when no space", func(t *testing.T) {
		got := text.Truncate("aaaaaaaaaaaaaaaaaaaa", 10)
		assert.Equal(t, "aaaaaaaaaa...", got)
	})

	t.Run("zero max returns empty", func(t *testing.T) {
		assert.Equal(t, "", text.Truncate("hello", 0))
	})
}

func TestRelativeAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		at       time.Time
		expected string
	}{
		{"minutes", now.Add(-25 * time.Minute), "25m ago"},
		{"hours", now.Add(-5 * time.Hour), "5h ago"},
		{"days", now.Add(-49 * time.Hour), "2d ago"},
		{"future clamps to zero", now.Add(time.Minute), "0m ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, text.RelativeAge(tt.at, now))
		})
	}
}
