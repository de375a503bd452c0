package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/metrics"
	"github.com/DukeRupert/talentgate/internal/repository"
)

// DefaultSweepBatchSize bounds one page of the batch sweep.
const DefaultSweepBatchSize = 500

// ExpiryService downgrades paid plans whose end date has passed.
//
// The transition is a compare-and-set on plan_status <> 'expired', so any
// number of concurrent sweeps for the same account fire at most once, and an
// expired account is never moved back to active by a sweep.
type ExpiryService interface {
	// Sweep expires user's plan if it has lapsed. fired is true only for the
	// call that performed the transition. user is updated in place to the
	// stored state whenever it may have changed.
	Sweep(ctx context.Context, user *domain.User) (fired bool, err error)

	// SweepLapsed expires every lapsed account, batchSize rows at a time.
	// It returns the number of accounts this call expired.
	SweepLapsed(ctx context.Context, batchSize int) (int, error)
}

type expiryService struct {
	store         repository.Store
	notifications NotificationService
	logger        *slog.Logger
	now           func() time.Time
}

// NewExpiryService creates a new ExpiryService. notifications may be nil.
func NewExpiryService(store repository.Store, notifications NotificationService, logger *slog.Logger) ExpiryService {
	return &expiryService{
		store:         store,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *expiryService) Sweep(ctx context.Context, user *domain.User) (bool, error) {
	fired, err := s.sweep(ctx, user)
	if fired {
		metrics.PlanExpirationsTotal.WithLabelValues("request").Inc()
	}
	return fired, err
}

func (s *expiryService) sweep(ctx context.Context, user *domain.User) (bool, error) {
	const op = "ExpiryService.Sweep"

	now := s.now()
	if !user.PlanExpired(now) {
		return false, nil
	}

	previous := user.Plan
	rows, err := s.store.ExpireUserPlan(ctx, repository.ExpireUserPlanParams{ID: user.ID, Now: now})
	if err != nil {
		return false, domain.Internal(err, op, "Failed to expire plan")
	}

	if rows == 0 {
		// Lost the race to a concurrent sweep (or the plan was renewed in
		// between). Reload so the caller gates on the stored state.
		fresh, err := s.store.GetUserByID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, domain.NotFound(op, "user", user.ID.String())
			}
			return false, domain.Internal(err, op, "Failed to reload user")
		}
		reloaded := repoUserToDomain(fresh)
		reloaded.PasswordHash = user.PasswordHash
		*user = *reloaded
		return false, nil
	}

	user.Expire()

	s.logger.Info("plan expired",
		"user_id", user.ID,
		"previous_plan", previous,
	)
	notifyQuietly(ctx, s.notifications, s.logger, user.ID, domain.NotifyPlanExpired, domain.ExpiryNotice,
		map[string]any{"previous_plan": string(previous)})

	return true, nil
}

func (s *expiryService) SweepLapsed(ctx context.Context, batchSize int) (int, error) {
	const op = "ExpiryService.SweepLapsed"

	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		rows, err := s.store.ListUsersWithLapsedPlans(ctx, repository.ListUsersWithLapsedPlansParams{
			Now:   s.now(),
			Limit: int32(batchSize),
		})
		if err != nil {
			return total, domain.Internal(err, op, "Failed to list lapsed plans")
		}

		fired := 0
		for _, row := range rows {
			ok, err := s.sweep(ctx, repoUserToDomain(row))
			if err != nil {
				return total, err
			}
			if ok {
				fired++
				metrics.PlanExpirationsTotal.WithLabelValues("batch").Inc()
			}
		}
		total += fired

		// A short page, or a page where nothing fired, means no progress is
		// left to make.
		if len(rows) < batchSize || fired == 0 {
			return total, nil
		}
	}
}

var _ ExpiryService = (*expiryService)(nil)
