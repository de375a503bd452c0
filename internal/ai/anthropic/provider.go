// Package anthropic implements ai.Provider on the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/talentgate/internal/ai"
	"github.com/DukeRupert/talentgate/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-haiku-20241022"

	// DefaultMaxTokens bounds replies when the caller sets no limit
	DefaultMaxTokens = 1024
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // empty uses APIBaseURL
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using Anthropic's Messages API.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Name returns "anthropic".
func (p *Provider) Name() string {
	return "anthropic"
}

// Complete sends one user turn with the system prompt and returns the
// concatenated text blocks of the reply.
func (p *Provider) Complete(ctx context.Context, params ai.CompletionParams) (*ai.Completion, error) {
	start := time.Now()

	if params.Prompt == "" {
		return nil, ai.WrapError("complete", ai.EAIInvalidRequest)
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(apiRequest{
		Model:     p.config.Model,
		MaxTokens: maxTokens,
		System:    params.System,
		Messages:  []apiMessage{{Role: "user", Content: params.Prompt}},
	})
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	onRetry := func(attempt int, delay time.Duration, err error) {
		p.logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)
	}
	// Each attempt builds a fresh request since the body is consumed.
	resp, err := ai.Retry(ctx, p.config.ProviderConfig, onRetry, func(ctx context.Context) (*apiResponse, error) {
		return p.executeRequest(ctx, body)
	})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("complete", err)
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ai.WrapError("complete", ai.EAIEmptyResponse)
	}

	usage := ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
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

	return &ai.Completion{Text: text.String(), Usage: usage}, nil
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ai.EAITimeout, err)
		}
		// Network errors are typically retryable
		return nil, fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to the ai error set.
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)
	msg := errResp.Error.Message

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ai.EAIUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ai.EAIRateLimit, msg)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ai.EAITimeout, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ai.EAIInvalidRequest, msg)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusInternalServerError, 529:
		// 529 is Anthropic's "overloaded"
		return fmt.Errorf("%w: %s", ai.EAIUnavailable, msg)
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, msg)
	}
}

// =============================================================================
// Wire types
// =============================================================================

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var _ ai.Provider = (*Provider)(nil)
