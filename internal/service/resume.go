package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/talentgate/internal/ai"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
)

const (
	// MinResumeLength rejects empty or placeholder submissions
	MinResumeLength = 50

	// MaxResumeLength keeps prompts within provider context limits
	MaxResumeLength = 20000

	resumeReviewMaxTokens = 2048
)

// ResumeService reviews pasted resume text.
type ResumeService interface {
	// Review gates on the quota for the level, prompts the provider with the
	// user's experience level and stores the feedback.
	Review(ctx context.Context, user *domain.User, level domain.ResumeReviewLevel, resume string) (*domain.ResumeReview, error)
}

type resumeService struct {
	store        repository.Store
	entitlements EntitlementService
	provider     ai.Provider
	logger       *slog.Logger
}

// NewResumeService creates a new ResumeService.
func NewResumeService(store repository.Store, entitlements EntitlementService, provider ai.Provider, logger *slog.Logger) ResumeService {
	return &resumeService{
		store:        store,
		entitlements: entitlements,
		provider:     provider,
		logger:       logger,
	}
}

func (s *resumeService) Review(ctx context.Context, user *domain.User, level domain.ResumeReviewLevel, resume string) (*domain.ResumeReview, error) {
	const op = "ResumeService.Review"

	kind, ok := level.ResourceKind()
	if !ok {
		return nil, domain.Invalid(op, "Review level must be basic or advanced")
	}
	resume = strings.TrimSpace(resume)
	if len(resume) < MinResumeLength {
		return nil, domain.Invalid(op, "Please paste your full resume text")
	}
	if len(resume) > MaxResumeLength {
		return nil, domain.Invalid(op, "Resume is too long")
	}

	d, err := s.entitlements.Check(ctx, user, kind)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, domain.QuotaExceeded(op, d)
	}

	experience := domain.ExperienceLevel(user.YearsExperience)
	system, prompt := ai.ResumeReviewPrompts(level == domain.ResumeReviewAdvanced, experience, resume)

	completion, err := complete(ctx, s.provider, op, ai.CompletionParams{
		System:    system,
		Prompt:    prompt,
		MaxTokens: resumeReviewMaxTokens,
		UserID:    user.ID,
	})
	if err != nil {
		return nil, err
	}

	row, err := s.store.CreateResumeReview(ctx, repository.CreateResumeReviewParams{
		UserID:     user.ID,
		Level:      string(level),
		Experience: experience,
		Feedback:   completion.Text,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to save review")
	}

	s.logger.Info("resume reviewed", "user_id", user.ID, "level", level, "experience", experience)

	return repoReviewToDomain(row), nil
}

var _ ResumeService = (*resumeService)(nil)
