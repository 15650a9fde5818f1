package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadPipelineConfig_Defaults(t *testing.T) {
	cfg := LoadPipelineConfig()

	assert.Equal(t, 0.55, cfg.DuplicateEmbeddingThreshold)
	assert.Equal(t, 0.65, cfg.TitleShortCircuitThreshold)
	assert.Equal(t, 3, cfg.DuplicateWindowDays)
	assert.Equal(t, 70, cfg.VerifyMinConfidence)
	assert.Equal(t, 0.35, cfg.UpdateBandLow)
	assert.Equal(t, 0.85, cfg.UpdateBandHigh)
	assert.Equal(t, 6*time.Hour, cfg.StaleAfter)
	assert.Equal(t, 10*time.Minute, cfg.EnrichCooldown)
}

func TestLoadPipelineConfig_EnvOverride(t *testing.T) {
	t.Setenv("DEDUP_EMBEDDING_THRESHOLD", "0.6")
	t.Setenv("DEDUP_WINDOW_DAYS", "7")
	t.Setenv("ENRICH_COOLDOWN", "5m")

	cfg := LoadPipelineConfig()

	assert.Equal(t, 0.6, cfg.DuplicateEmbeddingThreshold)
	assert.Equal(t, 7, cfg.DuplicateWindowDays)
	assert.Equal(t, 5*time.Minute, cfg.EnrichCooldown)
}

func TestLoadPipelineConfig_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric threshold", "DEDUP_EMBEDDING_THRESHOLD", "high"},
		{"threshold out of range", "DEDUP_EMBEDDING_THRESHOLD", "1.5"},
		{"negative window", "DEDUP_WINDOW_DAYS", "-1"},
		{"zero cooldown", "ENRICH_COOLDOWN", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := LoadPipelineConfig()
			assert.Equal(t, 0.55, cfg.DuplicateEmbeddingThreshold)
			assert.Equal(t, 3, cfg.DuplicateWindowDays)
			assert.Equal(t, 10*time.Minute, cfg.EnrichCooldown)
		})
	}
}

func TestLoadPipelineConfig_InvertedBandResets(t *testing.T) {
	t.Setenv("UPDATE_BAND_LOW", "0.9")
	t.Setenv("UPDATE_BAND_HIGH", "0.4")

	cfg := LoadPipelineConfig()

	assert.Equal(t, 0.35, cfg.UpdateBandLow)
	assert.Equal(t, 0.85, cfg.UpdateBandHigh)
}
