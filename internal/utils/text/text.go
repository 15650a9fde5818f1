// Package text provides utilities for text processing shared by the story
// pipeline: rune-aware counting and truncation, and human-readable recency
// formatting for LLM prompts.
package text

import (
	"fmt"
	"strings"
	"time"
)

// CountRunes counts the number of Unicode characters in the given text.
// Thai text is multi-byte in UTF-8, so byte length drastically overstates
// prompt budgets; all truncation limits in this codebase are in runes.
func CountRunes(s string) int {
	return len([]rune(s))
}

// Truncate cuts s to at most max runes, appending "..." when anything was
// removed. The cut prefers the last space inside the limit so words are not
// split mid-way, falling back to a hard cut when no space is close enough.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// RelativeAge formats how long ago t was relative to now, in the compact
// style used inside merge prompts: "5m ago", "3h ago", "2d ago".
func RelativeAge(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
