package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/talentgate/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	Response string
	Err      error

	// Call tracking for testing
	Calls      int
	LastParams ai.CompletionParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Name returns "mock".
func (p *Provider) Name() string {
	return "mock"
}

// Complete returns a canned reply that echoes the prompt.
func (p *Provider) Complete(ctx context.Context, params ai.CompletionParams) (*ai.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls++
	p.LastParams = params

	if p.Err != nil {
		return nil, p.Err
	}

	text := p.Response
	if text == "" {
		text = fmt.Sprintf("Here is some guidance on %q. Keep your answers specific and tie them to outcomes.", firstLine(params.Prompt))
	}

	p.logger.Debug("mock AI completion", "user_id", params.UserID)

	return &ai.Completion{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  len(strings.Fields(params.System + " " + params.Prompt)),
			OutputTokens: len(strings.Fields(text)),
			Duration:     5 * time.Millisecond,
		},
	}, nil
}

// CallCount returns the number of Complete calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

var _ ai.Provider = (*Provider)(nil)
