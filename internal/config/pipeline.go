// Package config holds runtime configuration for the story pipeline.
// Values are loaded from environment variables with validated ranges and
// warn-and-default behaviour; a bad value never prevents startup.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// PipelineConfig collects the tuning parameters of the duplicate detection,
// update detection and enrichment pipelines.
//
// The similarity thresholds are empirically tuned and carry no documented
// derivation; they are configuration precisely so they can be re-tuned
// against a labelled dataset without a rebuild.
type PipelineConfig struct {
	// DuplicateEmbeddingThreshold is the minimum cosine similarity for an
	// article to survive the embedding layer of duplicate detection.
	// Deliberately permissive; the later layers refine precision.
	// Env: DEDUP_EMBEDDING_THRESHOLD. Default: 0.55. Range: (0, 1).
	DuplicateEmbeddingThreshold float64

	// TitleShortCircuitThreshold is the combined title score at which a
	// candidate is confirmed as a duplicate without LLM verification.
	// Env: DEDUP_TITLE_THRESHOLD. Default: 0.65. Range: (0, 1).
	TitleShortCircuitThreshold float64

	// DuplicateWindowDays bounds the candidate corpus for duplicate search.
	// Env: DEDUP_WINDOW_DAYS. Default: 3. Range: 1-30.
	DuplicateWindowDays int

	// VerifyMinConfidence is the minimum model-reported confidence (0-100)
	// for an LLM duplicate or update verdict to be accepted.
	// Env: VERIFY_MIN_CONFIDENCE. Default: 70. Range: 1-100.
	VerifyMinConfidence int

	// UpdateBandLow / UpdateBandHigh bound the similarity band in which a
	// candidate is considered for update (progression) detection. Below the
	// band is unrelated; at or above it is duplicate territory.
	// Env: UPDATE_BAND_LOW / UPDATE_BAND_HIGH. Defaults: 0.35 / 0.85.
	UpdateBandLow  float64
	UpdateBandHigh float64

	// UpdateVerifyFloor is the similarity above which a candidate is sent to
	// LLM update verification even without a lexical progression match.
	// Env: UPDATE_VERIFY_FLOOR. Default: 0.50.
	UpdateVerifyFloor float64

	// StaleAfter is how long a developing story may go without enrichment
	// before the sweep marks it complete.
	// Env: ENRICH_STALE_AFTER. Default: 6h.
	StaleAfter time.Duration

	// EnrichCooldown is the minimum interval between enrichment passes on
	// the same article. Keeps a tight sweep schedule from burning LLM calls.
	// Env: ENRICH_COOLDOWN. Default: 10m.
	EnrichCooldown time.Duration

	// VerifyConcurrency bounds parallel LLM verification calls per batch.
	// Env: VERIFY_CONCURRENCY. Default: 3. Range: 1-10.
	VerifyConcurrency int

	// SuggestionThreshold is the minimum cosine similarity for an article to
	// be suggested as a timeline addition. Stricter than the duplicate
	// threshold because suggestions surface to editors without verification.
	// Env: TIMELINE_SUGGEST_THRESHOLD. Default: 0.75. Range: (0, 1).
	SuggestionThreshold float64

	// SuggestionLimit caps how many timeline suggestions are returned.
	// Env: TIMELINE_SUGGEST_LIMIT. Default: 10. Range: 1-50.
	SuggestionLimit int

	// SuggestionWindow bounds how far back timeline suggestions look.
	// Env: TIMELINE_SUGGEST_WINDOW. Default: 72h.
	SuggestionWindow time.Duration
}

// DefaultPipelineConfig returns the production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		DuplicateEmbeddingThreshold: 0.55,
		TitleShortCircuitThreshold:  0.65,
		DuplicateWindowDays:         3,
		VerifyMinConfidence:         70,
		UpdateBandLow:               0.35,
		UpdateBandHigh:              0.85,
		UpdateVerifyFloor:           0.50,
		StaleAfter:                  6 * time.Hour,
		EnrichCooldown:              10 * time.Minute,
		VerifyConcurrency:           3,
		SuggestionThreshold:         0.75,
		SuggestionLimit:             10,
		SuggestionWindow:            72 * time.Hour,
	}
}

// LoadPipelineConfig reads the pipeline configuration from environment
// variables, falling back to defaults for unset or out-of-range values.
func LoadPipelineConfig() PipelineConfig {
	cfg := DefaultPipelineConfig()

	cfg.DuplicateEmbeddingThreshold = floatEnv("DEDUP_EMBEDDING_THRESHOLD", cfg.DuplicateEmbeddingThreshold, 0, 1)
	cfg.TitleShortCircuitThreshold = floatEnv("DEDUP_TITLE_THRESHOLD", cfg.TitleShortCircuitThreshold, 0, 1)
	cfg.DuplicateWindowDays = intEnv("DEDUP_WINDOW_DAYS", cfg.DuplicateWindowDays, 1, 30)
	cfg.VerifyMinConfidence = intEnv("VERIFY_MIN_CONFIDENCE", cfg.VerifyMinConfidence, 1, 100)
	cfg.UpdateBandLow = floatEnv("UPDATE_BAND_LOW", cfg.UpdateBandLow, 0, 1)
	cfg.UpdateBandHigh = floatEnv("UPDATE_BAND_HIGH", cfg.UpdateBandHigh, 0, 1)
	cfg.UpdateVerifyFloor = floatEnv("UPDATE_VERIFY_FLOOR", cfg.UpdateVerifyFloor, 0, 1)
	cfg.StaleAfter = durationEnv("ENRICH_STALE_AFTER", cfg.StaleAfter)
	cfg.EnrichCooldown = durationEnv("ENRICH_COOLDOWN", cfg.EnrichCooldown)
	cfg.VerifyConcurrency = intEnv("VERIFY_CONCURRENCY", cfg.VerifyConcurrency, 1, 10)
	cfg.SuggestionThreshold = floatEnv("TIMELINE_SUGGEST_THRESHOLD", cfg.SuggestionThreshold, 0, 1)
	cfg.SuggestionLimit = intEnv("TIMELINE_SUGGEST_LIMIT", cfg.SuggestionLimit, 1, 50)
	cfg.SuggestionWindow = durationEnv("TIMELINE_SUGGEST_WINDOW", cfg.SuggestionWindow)

	if cfg.UpdateBandLow >= cfg.UpdateBandHigh {
		slog.Warn("update band is inverted, using defaults",
			slog.Float64("low", cfg.UpdateBandLow),
			slog.Float64("high", cfg.UpdateBandHigh))
		cfg.UpdateBandLow = 0.35
		cfg.UpdateBandHigh = 0.85
	}

	return cfg
}

func floatEnv(key string, def, min, max float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= min || parsed >= max {
		slog.Warn("invalid float config, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Float64("default", def))
		return def
	}
	return parsed
}

func intEnv(key string, def, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < min || parsed > max {
		slog.Warn("invalid int config, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Int("default", def))
		return def
	}
	return parsed
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		slog.Warn("invalid duration config, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Duration("default", def))
		return def
	}
	return parsed
}
