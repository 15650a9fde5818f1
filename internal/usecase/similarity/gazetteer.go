package similarity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// The gazetteers are declarative data, not control flow. They cover the
// coverage area of the site (Phuket and the Andaman coast) plus the incident
// vocabulary that dominates local news. Matching algorithms never reference
// individual terms; extend the tables, not the code.

// stopWords are dropped during title tokenization.
var stopWords = wordSet(
	"the", "and", "for", "are", "was", "were", "has", "have", "had",
	"with", "from", "that", "this", "they", "their", "there", "been",
	"will", "would", "after", "before", "into", "over", "under", "out",
	"about", "near", "who", "what", "when", "where", "why", "how", "its",
	"his", "her", "him", "she", "but", "not", "than", "then", "them",
	"say", "says", "said", "per", "via", "amid", "among", "off", "onto",
)

// locations is the place-name gazetteer used by key-term overlap.
var locations = wordSet(
	"phuket", "patong", "kata", "karon", "kamala", "rawai", "chalong",
	"kathu", "thalang", "cherngtalay", "bangtao", "surin", "naiharn",
	"naiyang", "maikhao", "layan", "sakhu", "srisoonthorn", "wichit",
	"ratsada", "koh", "racha", "similan", "phiphi", "krabi", "phangnga",
	"bangla", "chillva", "saphanhin", "sarasin",
)

// eventTypes is the incident-type gazetteer used by key-term overlap.
var eventTypes = wordSet(
	"fire", "blaze", "accident", "crash", "collision", "drowning",
	"drowned", "rescue", "rescued", "missing", "murder", "shooting",
	"shot", "stabbing", "stabbed", "robbery", "theft", "arrest",
	"arrested", "drugs", "overdose", "flood", "flooding", "landslide",
	"storm", "sinking", "capsized", "electrocuted", "assault", "raid",
	"crackdown", "scam", "fraud", "jetski", "motorbike",
)

// keyTerms are injected as singleton pseudo-bigrams to boost their weight in
// bigram similarity: sharing an incident keyword or a named beach is stronger
// evidence than sharing an arbitrary adjacent word pair.
var keyTerms = mergeSets(locations, eventTypes)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func mergeSets(sets ...map[string]struct{}) map[string]struct{} {
	merged := make(map[string]struct{})
	for _, s := range sets {
		for k := range s {
			merged[k] = struct{}{}
		}
	}
	return merged
}

// gazetteerFile is the on-disk override format for extending the built-in
// tables without a rebuild.
type gazetteerFile struct {
	Locations  []string `yaml:"locations"`
	EventTypes []string `yaml:"event_types"`
	StopWords  []string `yaml:"stop_words"`
}

// LoadGazetteerFile merges additional terms from a YAML file into the
// built-in tables. Missing file is not an error; the built-ins stand alone.
func LoadGazetteerFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("LoadGazetteerFile: %w", err)
	}

	var file gazetteerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("LoadGazetteerFile: parse %s: %w", path, err)
	}

	for _, w := range file.Locations {
		locations[normalizeTerm(w)] = struct{}{}
		keyTerms[normalizeTerm(w)] = struct{}{}
	}
	for _, w := range file.EventTypes {
		eventTypes[normalizeTerm(w)] = struct{}{}
		keyTerms[normalizeTerm(w)] = struct{}{}
	}
	for _, w := range file.StopWords {
		stopWords[normalizeTerm(w)] = struct{}{}
	}
	return nil
}

func normalizeTerm(w string) string {
	out := make([]rune, 0, len(w))
	for _, r := range w {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if isWordRune(r) {
			out = append(out, r)
		}
	}
	return string(out)
}
