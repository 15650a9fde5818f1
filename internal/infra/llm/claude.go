// Package llm provides the Claude-backed classifier adapters for the story
// pipeline: duplicate verification, update verification, entity extraction,
// merge synthesis and story enrichment. All adapters share one rate-limited
// client wrapped in circuit breaker and retry logic.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"siamwire/internal/domain/entity"
	"siamwire/internal/observability/metrics"
	"siamwire/internal/resilience/circuitbreaker"
	"siamwire/internal/resilience/retry"
	"siamwire/internal/usecase/dedup"
	"siamwire/internal/usecase/merge"
	"siamwire/internal/usecase/storyupdate"
	"siamwire/internal/utils/text"
)

// promptTextLimit bounds each article text embedded in a classifier prompt.
const promptTextLimit = 4000

// Claude is the Anthropic-backed classifier client. It implements the
// pipeline's Verifier, EntityExtractor, Synthesizer and Enricher contracts.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	limiter        *rate.Limiter
	config         ClaudeConfig
	logger         *slog.Logger
}

// NewClaude creates a Claude classifier client with the given API key.
// Circuit breaker, retry and rate limiting are configured automatically.
func NewClaude(apiKey string, logger *slog.Logger) *Claude {
	config := LoadClaudeConfig()

	logger.Info("initialized claude classifier client",
		slog.String("model", config.Model),
		slog.Int("requests_per_minute", config.RequestsPerMinute))

	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.LLMAPIConfig(),
		limiter:        rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 5),
		config:         config,
		logger:         logger,
	}
}

// VerifyDuplicate asks whether two articles report the same incident.
func (c *Claude) VerifyDuplicate(ctx context.Context, pair dedup.Pair) (*dedup.Answer, error) {
	prompt := fmt.Sprintf(`Two Thai news articles follow. Decide whether they report the SAME real-world incident (same event, same people, same place, same time), not merely similar incidents.

Article A title: %s
Article A text: %s

Article B title: %s
Article B text: %s

Respond with only a JSON object:
{"is_same_incident": true/false, "confidence": 0-100, "reason": "one sentence"}`,
		pair.CandidateTitle, text.Truncate(pair.CandidateContent, promptTextLimit),
		pair.ExistingTitle, text.Truncate(pair.ExistingContent, promptTextLimit))

	raw, err := c.complete(ctx, "verify_duplicate", prompt)
	if err != nil {
		return nil, err
	}
	return parseDuplicateAnswer(raw), nil
}

// VerifyUpdate asks whether a new article is a follow-up stage of an
// existing story.
func (c *Claude) VerifyUpdate(ctx context.Context, pair storyupdate.Pair) (*storyupdate.Answer, error) {
	prompt := fmt.Sprintf(`An earlier Thai news article and a newer one follow. Decide whether the newer article is a FOLLOW-UP to the earlier story: a later stage of the same continuing incident (for example a missing person being found, a suspect being arrested). Pay close attention to person attributes (age, nationality, gender) and location continuity. A similar but separate incident is not a follow-up.

Earlier title: %s
Earlier text: %s

Newer title: %s
Newer text: %s

Respond with only a JSON object:
{"is_update": true/false, "confidence": 0-100, "reasoning": "one sentence"}`,
		pair.ExistingTitle, text.Truncate(pair.ExistingContent, promptTextLimit),
		pair.NewTitle, text.Truncate(pair.NewContent, promptTextLimit))

	raw, err := c.complete(ctx, "verify_update", prompt)
	if err != nil {
		return nil, err
	}
	return parseUpdateAnswer(raw), nil
}

// Extract pulls typed entities from article text. Malformed model output
// degrades to an empty slice, never an error, per the extractor contract.
func (c *Claude) Extract(ctx context.Context, title, content string) ([]entity.ExtractedEntity, error) {
	prompt := fmt.Sprintf(`Extract the key entities from this Thai news article. Use entity types: location, person, organization, event. For persons, prefer descriptors over names when names are absent (e.g. "34-year-old Russian tourist"). Keep values in the article's language.

Title: %s
Text: %s

Respond with only a JSON array:
[{"type": "location", "value": "..."}, ...]`,
		title, text.Truncate(content, promptTextLimit))

	raw, err := c.complete(ctx, "extract_entities", prompt)
	if err != nil {
		return nil, err
	}
	return parseEntities(raw), nil
}

// Synthesize merges several overlapping reports into one article.
func (c *Claude) Synthesize(ctx context.Context, req merge.SynthesisRequest) (*merge.SynthesisResult, error) {
	var sb strings.Builder
	for i, story := range req.Stories {
		fmt.Fprintf(&sb, "Source %d (%s, %s):\nTitle: %s\nText: %s\n\n",
			i+1, story.SourceName, story.Age, story.Title, story.Content)
	}

	prompt := fmt.Sprintf(`The following news reports cover the same incident. Write one comprehensive English article that preserves every unique fact (names, ages, quantities, times, locations). Reconcile synonymous terms; when sources disagree on a value, prefer the more specific one and note the disagreement. Set is_developing true only if material facts are clearly still missing.

%sRespond with only a JSON object:
{"title": "...", "content": "...", "excerpt": "1-2 sentence summary", "is_developing": true/false, "combined_details": "one sentence on what each source contributed"}`,
		sb.String())

	raw, err := c.complete(ctx, "synthesize_merge", prompt)
	if err != nil {
		return nil, err
	}
	result, err := parseSynthesis(raw)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}
	return result, nil
}

// EnrichStory rewrites a developing story from its own accumulated text,
// tightening structure without inventing facts.
func (c *Claude) EnrichStory(ctx context.Context, story *entity.Article) (*merge.SynthesisResult, error) {
	prompt := fmt.Sprintf(`The following is a developing news story. Rewrite it as a clean, well-structured English article. Do not invent facts; only reorganize and clarify what is present. Set is_developing true only if material facts are clearly still missing.

Title: %s
Text: %s

Respond with only a JSON object:
{"title": "...", "content": "...", "excerpt": "1-2 sentence summary", "is_developing": true/false}`,
		story.Title, text.Truncate(story.Content, promptTextLimit))

	raw, err := c.complete(ctx, "enrich_story", prompt)
	if err != nil {
		return nil, err
	}
	result, err := parseSynthesis(raw)
	if err != nil {
		return nil, fmt.Errorf("EnrichStory: %w", err)
	}
	return result, nil
}

// complete performs one rate-limited classifier call with retry and circuit
// breaker protection and returns the raw text of the model's reply.
func (c *Claude) complete(ctx context.Context, operation, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: rate limit wait: %w", operation, err)
	}

	var result string
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doComplete(ctx, operation, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				c.logger.Warn("claude api circuit breaker open, request rejected",
					slog.String("operation", operation),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("%s failed after retries: %w", operation, retryErr)
	}
	return result, nil
}

// doComplete performs the actual API call without retry or circuit breaker.
func (c *Claude) doComplete(ctx context.Context, operation, prompt string) (string, error) {
	requestID := uuid.New().String()

	c.logger.InfoContext(ctx, "starting classifier call",
		slog.String("operation", operation),
		slog.String("request_id", requestID),
		slog.Int("prompt_length", text.CountRunes(prompt)))

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	duration := time.Since(start)
	metrics.RecordLLMCall(operation, duration, err)

	if err != nil {
		c.logger.ErrorContext(ctx, "classifier call failed",
			slog.String("operation", operation),
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	c.logger.InfoContext(ctx, "classifier call completed",
		slog.String("operation", operation),
		slog.String("request_id", requestID),
		slog.Duration("duration", duration))
	return textBlock.Text, nil
}
