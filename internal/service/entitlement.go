// Package service contains the business logic layer.
//
// This file implements the entitlement gate: every metered action asks
// Check before it creates its usage record.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/metrics"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService decides whether a user may perform a metered action.
//
// Check and the caller's subsequent insert are not atomic: two concurrent
// requests at used = limit-1 may both be allowed. The overshoot is bounded by
// request concurrency per user and is accepted.
type EntitlementService interface {
	// Check evaluates the quota for kind against the user's effective plan.
	// A denial is returned as a Decision, not an error. Errors mean the
	// usage count could not be read.
	Check(ctx context.Context, user *domain.User, kind domain.ResourceKind) (domain.Decision, error)

	// CheckWith is Check against an explicit querier, for callers that
	// already hold a transaction.
	CheckWith(ctx context.Context, q repository.Querier, user *domain.User, kind domain.ResourceKind) (domain.Decision, error)

	// Summary evaluates every kind for the usage dashboard.
	Summary(ctx context.Context, user *domain.User) (*domain.UsageSummary, error)
}

// usageCounter counts the records of one kind created since a window start.
type usageCounter func(ctx context.Context, q repository.Querier, userID uuid.UUID, since time.Time) (int64, error)

// usageCounters derives usage from the records each feature writes. There is
// no running counter to drift or reset.
var usageCounters = map[domain.ResourceKind]usageCounter{
	domain.ResourceJobApplication: func(ctx context.Context, q repository.Querier, userID uuid.UUID, since time.Time) (int64, error) {
		return q.CountJobApplicationsSince(ctx, repository.CountJobApplicationsSinceParams{UserID: userID, Since: since})
	},
	domain.ResourceAIRequest: func(ctx context.Context, q repository.Querier, userID uuid.UUID, since time.Time) (int64, error) {
		return q.CountAiRequestsSince(ctx, repository.CountAiRequestsSinceParams{UserID: userID, Since: since})
	},
	domain.ResourceConsultation: func(ctx context.Context, q repository.Querier, userID uuid.UUID, since time.Time) (int64, error) {
		return q.CountConsultationSessionsSince(ctx, repository.CountConsultationSessionsSinceParams{UserID: userID, Since: since})
	},
	domain.ResourceResumeReviewBasic: func(ctx context.Context, q repository.Querier, userID uuid.UUID, since time.Time) (int64, error) {
		return q.CountResumeReviewsSince(ctx, repository.CountResumeReviewsSinceParams{UserID: userID, Level: string(domain.ResumeReviewBasic), Since: since})
	},
	domain.ResourceResumeReviewAdvanced: func(ctx context.Context, q repository.Querier, userID uuid.UUID, since time.Time) (int64, error) {
		return q.CountResumeReviewsSince(ctx, repository.CountResumeReviewsSinceParams{UserID: userID, Level: string(domain.ResumeReviewAdvanced), Since: since})
	},
	// Any enrollment, paid or free, uses up the one-time benefit.
	domain.ResourceFreeTraining: func(ctx context.Context, q repository.Querier, userID uuid.UUID, _ time.Time) (int64, error) {
		return q.CountEnrollmentsByUser(ctx, userID)
	},
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(store repository.Store, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *entitlementService) Check(ctx context.Context, user *domain.User, kind domain.ResourceKind) (domain.Decision, error) {
	return s.CheckWith(ctx, s.store, user, kind)
}

// CheckWith follows the gate algorithm:
//  1. resolve the effective plan (anything not active is Free)
//  2. unlimited policies allow without counting
//  3. limit 0 denies without counting
//  4. otherwise count records since the window start and compare
func (s *entitlementService) CheckWith(ctx context.Context, q repository.Querier, user *domain.User, kind domain.ResourceKind) (domain.Decision, error) {
	const op = "EntitlementService.Check"

	plan := user.EffectivePlan()
	policy := domain.PolicyFor(plan, kind)

	d := domain.Decision{
		Kind:  kind,
		Plan:  plan,
		Limit: policy.Limit,
	}

	switch {
	case policy.IsUnlimited():
		d.Allowed = true
		d.Unlimited = true
	case policy.Limit <= 0:
		d.Allowed = false
		d.Limit = 0
	default:
		counter, ok := usageCounters[kind]
		if !ok {
			return d, domain.Errorf(domain.EINTERNAL, op, "no usage counter for %s", kind)
		}

		now := s.now()
		since := policy.Window.Start(now)
		used, err := counter(ctx, q, user.ID, since)
		if err != nil {
			return d, domain.Internal(err, op, "Failed to read usage")
		}
		metrics.UsageCountQueries.WithLabelValues(string(kind)).Inc()

		d.Used = int(used)
		d.Allowed = d.Used < policy.Limit
		if policy.Window == domain.WindowCalendarMonth {
			resets := since.AddDate(0, 1, 0)
			d.ResetsAt = &resets
		}
	}

	metrics.GateDecision(string(plan), string(kind), d.Allowed)
	if !d.Allowed {
		s.logger.Debug("entitlement denied",
			"user_id", user.ID,
			"plan", plan,
			"kind", kind,
			"used", d.Used,
			"limit", d.Limit,
		)
	}

	return d, nil
}

// Summary counts all kinds concurrently. The first failure cancels the rest.
func (s *entitlementService) Summary(ctx context.Context, user *domain.User) (*domain.UsageSummary, error) {
	decisions := make([]domain.Decision, len(domain.ResourceKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range domain.ResourceKinds {
		g.Go(func() error {
			d, err := s.Check(gctx, user, kind)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.UsageSummary{
		Plan:          user.Plan,
		PlanStatus:    user.PlanStatus,
		EffectivePlan: user.EffectivePlan(),
		PlanEnd:       user.PlanEnd,
		Decisions:     decisions,
	}, nil
}

var _ EntitlementService = (*entitlementService)(nil)
