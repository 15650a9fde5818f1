package llm

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// ClaudeConfig holds configuration parameters for the Claude classifier
// client. Configuration is loaded from environment variables with fallback
// to defaults.
type ClaudeConfig struct {
	// Model is the Claude API model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration of a single classifier call.
	Timeout time.Duration

	// RequestsPerMinute caps the sustained call rate across all classifier
	// operations. Loaded from LLM_REQUESTS_PER_MINUTE.
	// Valid range: 1-600. Default: 30.
	RequestsPerMinute int
}

// LoadClaudeConfig loads configuration from environment variables.
//
// Environment variables:
//   - LLM_REQUESTS_PER_MINUTE: sustained call rate cap (default: 30, range: 1-600)
func LoadClaudeConfig() ClaudeConfig {
	const (
		defaultRPM = 30
		minRPM     = 1
		maxRPM     = 600
	)

	rpm := defaultRPM
	if envRPM := os.Getenv("LLM_REQUESTS_PER_MINUTE"); envRPM != "" {
		parsed, err := strconv.Atoi(envRPM)
		if err != nil || parsed < minRPM || parsed > maxRPM {
			slog.Warn("invalid LLM_REQUESTS_PER_MINUTE, using default",
				slog.String("value", envRPM),
				slog.Int("default", defaultRPM))
		} else {
			rpm = parsed
		}
	}

	return ClaudeConfig{
		Model:             "claude-sonnet-4-5-20250929",
		MaxTokens:         1024,
		Timeout:           60 * time.Second,
		RequestsPerMinute: rpm,
	}
}
