package storyupdate

import (
	"fmt"
	"regexp"
	"strings"
)

// Series titles are generated best-effort from the parent story's text. The
// heuristic chain tries progressively weaker signals: a location phrase, a
// victim descriptor, an event-type keyword, then a cleaned version of the
// original title, then the literal "Developing Story".

var (
	locationPattern = regexp.MustCompile(`(?:\bin|\bat|\bnear|\boff)\s+([A-Z][A-Za-z']+(?:\s+(?:Beach|Bay|Road|Town|Island|Pier|District|Hill))?)`)
	agePattern      = regexp.MustCompile(`(\d{1,2})-year-old\s*([A-Za-z]+)?`)
	nationality     = regexp.MustCompile(`\b(Thai|Russian|Chinese|British|German|French|Australian|American|Indian|Swedish|Israeli|Korean|Japanese|Burmese|Myanmar|Italian|Dutch|Swiss|Canadian|Ukrainian|Polish)\b`)

	// Phrases stripped from titles before they are reused as series titles.
	titleNoise = regexp.MustCompile(`(?i)^(breaking|update[d]?|urgent|just in|developing|watch|video|live)[:\s-]+`)
	// Trailing source attribution: " - The Phuket Express", " | Phuket News".
	attribution = regexp.MustCompile(`\s+[-|–]\s+[A-Z][\w\s]*$`)
)

// eventTypeLabels maps incident keywords to series-title display labels.
// First match in order wins; more specific terms come before generic ones.
var eventTypeLabels = []struct {
	keyword string
	label   string
}{
	{"shooting", "Shooting"},
	{"shot", "Shooting"},
	{"stabbing", "Stabbing"},
	{"stabbed", "Stabbing"},
	{"drowning", "Drowning"},
	{"drowned", "Drowning"},
	{"murder", "Murder Case"},
	{"missing", "Missing Person"},
	{"fire", "Fire"},
	{"blaze", "Fire"},
	{"crash", "Traffic Accident"},
	{"collision", "Traffic Accident"},
	{"accident", "Traffic Accident"},
	{"drug", "Drug Case"},
	{"robbery", "Robbery"},
	{"theft", "Theft Case"},
	{"rescue", "Rescue Operation"},
	{"flood", "Flooding"},
	{"storm", "Storm"},
}

// generateSeriesTitle builds a display title for a new timeline from the
// parent story's title and content.
func generateSeriesTitle(title, content string) string {
	searchText := title + " " + content

	location := findLocation(searchText)
	victim := findVictim(searchText)
	eventType := findEventType(strings.ToLower(searchText))

	if eventType != "" {
		parts := eventType
		if victim != "" {
			parts += ": " + victim
		}
		if location != "" {
			parts += " in " + location
		}
		return parts + " - Developing"
	}

	if cleaned := cleanTitle(title); cleaned != "" {
		return cleaned + " - Developing"
	}

	return "Developing Story"
}

func findLocation(text string) string {
	m := locationPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// findVictim composes a short descriptor from nationality and/or age, e.g.
// "Russian tourist", "34-year-old man", "34-year-old Russian".
func findVictim(text string) string {
	nat := ""
	if m := nationality.FindStringSubmatch(text); len(m) > 1 {
		nat = m[1]
	}

	if m := agePattern.FindStringSubmatch(text); len(m) > 1 {
		if nat != "" {
			return fmt.Sprintf("%s-year-old %s", m[1], nat)
		}
		if len(m) > 2 && m[2] != "" {
			return fmt.Sprintf("%s-year-old %s", m[1], strings.ToLower(m[2]))
		}
		return m[1] + "-year-old"
	}

	if nat != "" {
		return nat + " national"
	}
	return ""
}

func findEventType(lowerText string) string {
	for _, e := range eventTypeLabels {
		if strings.Contains(lowerText, e.keyword) {
			return e.label
		}
	}
	return ""
}

// cleanTitle strips breaking/update prefixes and trailing source
// attributions, then truncates to roughly 80 characters at a word break.
func cleanTitle(title string) string {
	cleaned := titleNoise.ReplaceAllString(strings.TrimSpace(title), "")
	cleaned = attribution.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	const maxLen = 80
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	cut := string(runes[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut
}
