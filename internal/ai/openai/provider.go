// Package openai implements ai.Provider on any OpenAI-compatible chat
// completion API (OpenAI, Groq, local gateways).
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/talentgate/internal/ai"
	"github.com/DukeRupert/talentgate/internal/metrics"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "llama-3.1-8b-instant"

	// DefaultMaxTokens bounds replies when the caller sets no limit
	DefaultMaxTokens = 1024
)

// Config contains configuration for the OpenAI-compatible provider
type Config struct {
	APIKey         string
	BaseURL        string // empty uses api.openai.com
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider with github.com/sashabaranov/go-openai.
type Provider struct {
	config Config
	client *goopenai.Client
	logger *slog.Logger
}

// New creates a new provider.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	cc := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}
	cc.HTTPClient = &http.Client{Timeout: config.ProviderConfig.RequestTimeout}

	return &Provider{
		config: config,
		client: goopenai.NewClientWithConfig(cc),
		logger: logger,
	}, nil
}

// Name returns "openai".
func (p *Provider) Name() string {
	return "openai"
}

// Complete sends the system and user messages and returns the first choice.
func (p *Provider) Complete(ctx context.Context, params ai.CompletionParams) (*ai.Completion, error) {
	start := time.Now()

	if params.Prompt == "" {
		return nil, ai.WrapError("complete", ai.EAIInvalidRequest)
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	req := goopenai.ChatCompletionRequest{
		Model:     p.config.Model,
		MaxTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: params.System},
			{Role: goopenai.ChatMessageRoleUser, Content: params.Prompt},
		},
	}

	onRetry := func(attempt int, delay time.Duration, err error) {
		p.logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)
	}
	resp, err := ai.Retry(ctx, p.config.ProviderConfig, onRetry, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return resp, mapError(err)
		}
		return resp, nil
	})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("complete", err)
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()

	if len(resp.Choices) == 0 {
		return nil, ai.WrapError("complete", ai.EAIEmptyResponse)
	}

	usage := ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Duration:     time.Since(start),
	}
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))

	p.logger.Debug("AI completion",
		"user_id", params.UserID,
		"model", usage.Model,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration", usage.Duration,
	)

	return &ai.Completion{
		Text:  resp.Choices[0].Message.Content,
		Usage: usage,
	}, nil
}

// mapError maps API status codes to the ai error set.
func mapError(err error) error {
	var status int

	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ai.EAITimeout, err)
	default:
		// Network errors are typically retryable
		return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ai.EAIUnauthorized, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ai.EAIRateLimit, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %v", ai.EAITimeout, err)
	case status >= 500:
		return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	case status == http.StatusBadRequest:
		if apiErr != nil && apiErr.Code == "content_filter" {
			return fmt.Errorf("%w: %v", ai.EAIContentPolicy, err)
		}
		return fmt.Errorf("%w: %v", ai.EAIInvalidRequest, err)
	}
	return err
}

var _ ai.Provider = (*Provider)(nil)
