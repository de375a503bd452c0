package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider generates text for the assistant and resume review features.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete runs one chat completion.
	Complete(ctx context.Context, params CompletionParams) (*Completion, error)
}

// CompletionParams contains parameters for a chat completion
type CompletionParams struct {
	System    string    // System prompt
	Prompt    string    // User message
	MaxTokens int       // Upper bound on generated tokens; 0 uses the provider default
	UserID    uuid.UUID // User ID for tracking
}

// Completion is a generated reply.
type Completion struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// TotalTokens is what gets stored on the usage record.
func (u UsageInfo) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// WithDefaults fills zero fields.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 1 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	return c
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidRequest indicates the prompt was rejected as malformed
	EAIInvalidRequest = errors.New("invalid ai request")

	// EAIContentPolicy indicates the prompt violates content policy
	EAIContentPolicy = errors.New("prompt violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIEmptyResponse indicates the provider returned no choices
	EAIEmptyResponse = errors.New("ai provider returned an empty response")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or
// MaxRetries attempts are used. Backoff is base * 2^(attempt-1).
func Retry[T any](ctx context.Context, cfg ProviderConfig, onRetry func(attempt int, delay time.Duration, err error), fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
