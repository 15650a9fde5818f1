// Package similarity provides the pure matching primitives used by duplicate
// detection, update detection and timeline suggestion: vector cosine
// similarity, title tokenization, bigram Jaccard similarity and gazetteer
// based key-term overlap. Nothing in this package performs I/O.
package similarity

import (
	"math"
	"strings"
)

// CosineSimilarity returns the cosine similarity of two vectors in [-1, 1].
//
// If the vectors have different lengths it returns 0 instead of an error.
// Embedding model generations have different dimensionality, and old and new
// vectors coexist in storage during a migration; a length mismatch means "not
// comparable", never a crash. Zero-magnitude vectors also score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TokenizeTitle splits a title into lowercase tokens, dropping stop words and
// tokens of two characters or fewer. Token order is preserved so callers can
// build positional bigrams.
func TokenizeTitle(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !isWordRune(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) <= 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '-' || r == '\'' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}

// Bigrams returns the set of adjacent token pairs, joined with a space.
// Tokens from the key-term vocabulary (incident types and known locations)
// are additionally injected as singleton pseudo-bigrams so that a shared
// "drowning" or "patong" counts toward similarity even when its neighbours
// differ between two titles.
func Bigrams(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for i := 0; i+1 < len(tokens); i++ {
		set[tokens[i]+" "+tokens[i+1]] = struct{}{}
	}
	for _, tok := range tokens {
		if _, key := keyTerms[tok]; key {
			set[tok] = struct{}{}
		}
	}
	return set
}

// JaccardSimilarity returns |A ∩ B| / |A ∪ B| in [0, 1].
// Two empty sets score 0, not 1: no evidence is not agreement.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// KeyTermOverlap restricts both token lists to the gazetteer of locations and
// event types and returns |A ∩ B| / min(|A|, |B|). If either restricted set
// is empty the score is 0.
func KeyTermOverlap(tokensA, tokensB []string) float64 {
	setA := restrictToGazetteer(tokensA)
	setB := restrictToGazetteer(tokensB)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			intersection++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(intersection) / float64(smaller)
}

func restrictToGazetteer(tokens []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokens {
		if _, loc := locations[tok]; loc {
			set[tok] = struct{}{}
			continue
		}
		if _, ev := eventTypes[tok]; ev {
			set[tok] = struct{}{}
		}
	}
	return set
}

// TitleSimilarity returns the combined title score used by duplicate
// detection: max(bigram Jaccard, 0.7*bigram Jaccard + 0.3*key-term overlap).
// The blended form lets strong location/event agreement lift titles whose
// phrasing differs; the plain form keeps near-identical titles at full score.
func TitleSimilarity(titleA, titleB string) float64 {
	tokensA := TokenizeTitle(titleA)
	tokensB := TokenizeTitle(titleB)

	bigram := JaccardSimilarity(Bigrams(tokensA), Bigrams(tokensB))
	keyTerm := KeyTermOverlap(tokensA, tokensB)

	blended := 0.7*bigram + 0.3*keyTerm
	if bigram > blended {
		return bigram
	}
	return blended
}
