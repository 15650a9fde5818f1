package storyupdate

import "strings"

// progressionPattern describes one recurring incident type as a pair of
// keyword stages: an existing article containing a "from" keyword followed by
// a new article containing a "to" keyword suggests the story has progressed.
//
// The table is declarative data, not control flow; extend the rows, not the
// matcher.
type progressionPattern struct {
	Incident string
	From     []string
	To       []string
}

var progressionPatterns = []progressionPattern{
	{
		Incident: "missing_person",
		From:     []string{"missing", "search", "disappeared", "last seen", "vanished"},
		To:       []string{"found", "body", "dead", "rescued", "located", "safe", "recovered"},
	},
	{
		Incident: "accident",
		From:     []string{"crash", "collision", "injured", "hospital", "critical condition"},
		To:       []string{"died", "dead", "succumbed", "charged", "recovered", "identified"},
	},
	{
		Incident: "fire",
		From:     []string{"fire", "blaze", "burning", "evacuated"},
		To:       []string{"extinguished", "under control", "damage estimated", "cause", "arson"},
	},
	{
		Incident: "arrest",
		From:     []string{"suspect", "wanted", "manhunt", "fled", "at large"},
		To:       []string{"arrested", "caught", "custody", "charged", "surrendered", "extradited"},
	},
	{
		Incident: "rescue",
		From:     []string{"trapped", "stranded", "clinging", "adrift", "distress"},
		To:       []string{"rescued", "saved", "airlifted", "brought ashore", "pronounced"},
	},
	{
		Incident: "weather",
		From:     []string{"warning", "approaching", "heavy rain", "rough seas"},
		To:       []string{"flooded", "flooding", "landslide", "damage", "subsided", "cancelled"},
	},
}

// matchProgression reports whether the existing article's text contains a
// "from" stage keyword and the new article's text contains a "to" stage
// keyword of the same incident row. Returns the incident type of the first
// matching row.
func matchProgression(existingText, newText string) (string, bool) {
	existing := strings.ToLower(existingText)
	updated := strings.ToLower(newText)

	for _, p := range progressionPatterns {
		if containsAny(existing, p.From) && containsAny(updated, p.To) {
			return p.Incident, true
		}
	}
	return "", false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
