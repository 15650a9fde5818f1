package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"siamwire/internal/domain/entity"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/storyupdate"
)

// Verdict parsing is tolerant by design: a malformed or truncated model reply
// degrades to the negative verdict (not a duplicate, not an update, no
// entities) so the pipeline fails open instead of blocking publication.

// extractJSON strips markdown code fences and surrounding prose from a model
// reply, returning the first JSON value found.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(s, "]"); end > arrStart {
			return s[arrStart : end+1]
		}
	}
	if objStart >= 0 {
		if end := strings.LastIndex(s, "}"); end > objStart {
			return s[objStart : end+1]
		}
	}
	return s
}

func parseDuplicateAnswer(raw string) *dedup.Answer {
	var parsed struct {
		IsSameIncident bool   `json:"is_same_incident"`
		Confidence     int    `json:"confidence"`
		Reason         string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return &dedup.Answer{Reason: "unparseable verifier reply"}
	}
	return &dedup.Answer{
		IsSameIncident: parsed.IsSameIncident,
		Confidence:     clampConfidence(parsed.Confidence),
		Reason:         parsed.Reason,
	}
}

func parseUpdateAnswer(raw string) *storyupdate.Answer {
	var parsed struct {
		IsUpdate   bool   `json:"is_update"`
		Confidence int    `json:"confidence"`
		Reasoning  string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return &storyupdate.Answer{Reasoning: "unparseable verifier reply"}
	}
	return &storyupdate.Answer{
		IsUpdate:   parsed.IsUpdate,
		Confidence: clampConfidence(parsed.Confidence),
		Reasoning:  parsed.Reasoning,
	}
}

func parseEntities(raw string) []entity.ExtractedEntity {
	var parsed []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return nil
	}

	var out []entity.ExtractedEntity
	for _, e := range parsed {
		t := entity.EntityType(strings.ToLower(strings.TrimSpace(e.Type)))
		v := strings.TrimSpace(e.Value)
		if !t.IsValid() || v == "" {
			continue
		}
		out = append(out, entity.ExtractedEntity{Type: t, Value: v})
	}
	return out
}

// parseSynthesis parses a merge or enrichment reply. Unlike verdict parsing
// this returns an error on malformed output: the caller has its own fallback
// and must know synthesis did not happen. A missing is_developing field
// defaults to true; an incomplete story description means the incident is
// still moving.
func parseSynthesis(raw string) (*merge.SynthesisResult, error) {
	var parsed struct {
		Title           string `json:"title"`
		Content         string `json:"content"`
		Excerpt         string `json:"excerpt"`
		IsDeveloping    *bool  `json:"is_developing"`
		CombinedDetails string `json:"combined_details"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse synthesis reply: %w", err)
	}
	if parsed.Title == "" || parsed.Content == "" {
		return nil, fmt.Errorf("synthesis reply missing title or content")
	}

	developing := true
	if parsed.IsDeveloping != nil {
		developing = *parsed.IsDeveloping
	}
	return &merge.SynthesisResult{
		Title:           parsed.Title,
		Content:         parsed.Content,
		Excerpt:         parsed.Excerpt,
		IsDeveloping:    developing,
		CombinedDetails: parsed.CombinedDetails,
	}, nil
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
