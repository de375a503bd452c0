package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/talentgate/internal/ai"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
)

// MaxAssistantMessageLength bounds a single assistant question.
const MaxAssistantMessageLength = 4000

// AssistantService answers career questions with the AI provider.
type AssistantService interface {
	// Ask gates on ai_request, calls the provider and records the usage
	// only after a successful reply, so failed calls cost nothing.
	Ask(ctx context.Context, user *domain.User, page, message string) (*domain.AssistantReply, error)
}

type assistantService struct {
	store        repository.Store
	entitlements EntitlementService
	provider     ai.Provider
	logger       *slog.Logger
}

// NewAssistantService creates a new AssistantService. provider may be nil
// when AI is not configured; Ask then fails with EUNAVAILABLE.
func NewAssistantService(store repository.Store, entitlements EntitlementService, provider ai.Provider, logger *slog.Logger) AssistantService {
	return &assistantService{
		store:        store,
		entitlements: entitlements,
		provider:     provider,
		logger:       logger,
	}
}

func (s *assistantService) Ask(ctx context.Context, user *domain.User, page, message string) (*domain.AssistantReply, error) {
	const op = "AssistantService.Ask"

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.Invalid(op, "Message is required")
	}
	if len(message) > MaxAssistantMessageLength {
		return nil, domain.Invalid(op, "Message is too long")
	}

	d, err := s.entitlements.Check(ctx, user, domain.ResourceAIRequest)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, domain.QuotaExceeded(op, d)
	}

	completion, err := complete(ctx, s.provider, op, ai.CompletionParams{
		System: ai.AssistantSystemPrompt(page),
		Prompt: message,
		UserID: user.ID,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.store.CreateAiRequest(ctx, repository.CreateAiRequestParams{
		UserID:     user.ID,
		Page:       page,
		TokensUsed: int32(completion.Usage.TotalTokens()),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to record AI usage")
	}

	if !d.Unlimited {
		d.Used++
	}
	return &domain.AssistantReply{Reply: completion.Text, Decision: d}, nil
}

// complete calls the provider and converts its errors to domain errors.
func complete(ctx context.Context, provider ai.Provider, op string, params ai.CompletionParams) (*ai.Completion, error) {
	if provider == nil {
		return nil, domain.Unavailable(nil, op, "AI features are not configured")
	}

	c, err := provider.Complete(ctx, params)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, ai.EAIRateLimit):
		return nil, domain.Wrap(err, domain.ERATELIMIT, op, "The AI service is busy. Please try again shortly.")
	case errors.Is(err, ai.EAIInvalidRequest), errors.Is(err, ai.EAIContentPolicy):
		return nil, domain.Wrap(err, domain.EINVALID, op, "The AI service could not process this request.")
	default:
		return nil, domain.Unavailable(err, op, "The AI service is unavailable. Please try again later.")
	}
}

var _ AssistantService = (*assistantService)(nil)
