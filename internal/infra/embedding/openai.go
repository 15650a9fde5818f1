// Package embedding provides the dense vector provider used for similarity
// matching. Articles are embedded from their original-language text.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"siamwire/internal/resilience/circuitbreaker"
	"siamwire/internal/resilience/retry"
)

// Provider produces a dense embedding for a piece of text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAI implements Provider using OpenAI's embedding API with circuit
// breaker and retry protection.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          openai.EmbeddingModel
	logger         *slog.Logger
}

// NewOpenAI creates an embedding provider with the given API key.
func NewOpenAI(apiKey string, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig()),
		retryConfig:    retry.EmbeddingAPIConfig(),
		model:          openai.SmallEmbedding3,
		logger:         logger,
	}
}

// Embed returns the embedding vector for the given text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stay well under the embedding model's token limit.
	const maxChars = 8000
	if len(text) > maxChars {
		text = text[:maxChars]
	}

	var result []float32
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doEmbed(ctx, text)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				o.logger.Warn("embedding api circuit breaker open, request rejected",
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("embedding api unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.([]float32)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("embed failed after retries: %w", retryErr)
	}
	return result, nil
}

// doEmbed performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doEmbed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: o.model,
	})
	duration := time.Since(start)

	if err != nil {
		o.logger.ErrorContext(ctx, "embedding call failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("embedding api error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding api returned empty response")
	}
	return resp.Data[0].Embedding, nil
}
