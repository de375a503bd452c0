package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/talentgate/internal/billing"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/metrics"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/google/uuid"
)

// FreeTrainingPaymentID is the gateway payment id of a user's one-time free
// training. Being unique per user, the payment ledger itself guarantees the
// benefit is granted at most once.
func FreeTrainingPaymentID(userID uuid.UUID) string {
	return "free-training:" + userID.String()
}

// errEnrollRace rolls back a free grant when a concurrent request enrolled
// the user in the same training first.
var errEnrollRace = errors.New("enrollment created concurrently")

// TrainingService enrolls users in trainings.
type TrainingService interface {
	// Enroll is idempotent per (user, training). Free trainings enroll
	// directly; a PRO_PLUS user's first enrollment is granted free with a
	// zero-amount payment record; anything else returns RequiresPayment and
	// the caller starts the order phase with a training purchase.
	Enroll(ctx context.Context, user *domain.User, trainingID uuid.UUID) (*domain.EnrollmentResult, error)
}

type trainingService struct {
	store         repository.Store
	entitlements  EntitlementService
	notifications NotificationService
	currency      string
	logger        *slog.Logger
}

// NewTrainingService creates a new TrainingService.
func NewTrainingService(store repository.Store, entitlements EntitlementService, notifications NotificationService, currency string, logger *slog.Logger) TrainingService {
	return &trainingService{
		store:         store,
		entitlements:  entitlements,
		notifications: notifications,
		currency:      currency,
		logger:        logger,
	}
}

func (s *trainingService) Enroll(ctx context.Context, user *domain.User, trainingID uuid.UUID) (*domain.EnrollmentResult, error) {
	const op = "TrainingService.Enroll"

	t, err := s.store.GetTraining(ctx, trainingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "training", trainingID.String())
		}
		return nil, domain.Internal(err, op, "Failed to load training")
	}
	training := repoTrainingToDomain(t)
	if !training.IsActive {
		return nil, domain.Invalid(op, "This training is no longer offered")
	}

	if existing, ok, err := s.existing(ctx, user.ID, trainingID); err != nil {
		return nil, err
	} else if ok {
		return &domain.EnrollmentResult{Enrollment: existing, Training: training}, nil
	}

	if training.Fee == 0 {
		e, err := s.store.CreateEnrollmentIfAbsent(ctx, repository.CreateEnrollmentIfAbsentParams{
			UserID:     user.ID,
			TrainingID: trainingID,
		})
		if errors.Is(err, sql.ErrNoRows) {
			return s.alreadyEnrolled(ctx, user.ID, training)
		}
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to create enrollment")
		}
		s.enrolled(ctx, user, training)
		return &domain.EnrollmentResult{Enrollment: repoEnrollmentToDomain(e), Created: true, Training: training}, nil
	}

	var (
		granted    bool
		enrollment repository.Enrollment
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		d, err := s.entitlements.CheckWith(ctx, q, user, domain.ResourceFreeTraining)
		if err != nil {
			return err
		}
		if !d.Allowed {
			return nil
		}

		rec, err := q.InsertPaymentRecordIfAbsent(ctx, repository.InsertPaymentRecordIfAbsentParams{
			UserID:           user.ID,
			GatewayPaymentID: FreeTrainingPaymentID(user.ID),
			Provider:         billing.ProviderInternal,
			Kind:             string(domain.PurchaseTraining),
			TrainingID:       uuid.NullUUID{UUID: trainingID, Valid: true},
			Amount:           0,
			Currency:         s.currency,
			Status:           string(domain.PaymentSuccess),
		})
		if errors.Is(err, sql.ErrNoRows) {
			// Benefit already consumed by an earlier or concurrent grant.
			return nil
		}
		if err != nil {
			return domain.Internal(err, op, "Failed to record free training")
		}

		enrollment, err = q.CreateEnrollmentIfAbsent(ctx, repository.CreateEnrollmentIfAbsentParams{
			UserID:     user.ID,
			TrainingID: trainingID,
			PaymentID:  uuid.NullUUID{UUID: rec.ID, Valid: true},
		})
		if errors.Is(err, sql.ErrNoRows) {
			return errEnrollRace
		}
		if err != nil {
			return domain.Internal(err, op, "Failed to create enrollment")
		}
		granted = true
		return nil
	})
	if errors.Is(err, errEnrollRace) {
		return s.alreadyEnrolled(ctx, user.ID, training)
	}
	if err != nil {
		return nil, err
	}

	if !granted {
		return &domain.EnrollmentResult{RequiresPayment: true, Training: training}, nil
	}

	metrics.FreeTrainingsGranted.Inc()
	s.logger.Info("free training granted", "user_id", user.ID, "training_id", trainingID)
	s.enrolled(ctx, user, training)

	return &domain.EnrollmentResult{
		Enrollment: repoEnrollmentToDomain(enrollment),
		Created:    true,
		Free:       true,
		Training:   training,
	}, nil
}

func (s *trainingService) existing(ctx context.Context, userID, trainingID uuid.UUID) (*domain.Enrollment, bool, error) {
	e, err := s.store.GetEnrollment(ctx, repository.GetEnrollmentParams{UserID: userID, TrainingID: trainingID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.Internal(err, "TrainingService.Enroll", "Failed to check enrollment")
	}
	return repoEnrollmentToDomain(e), true, nil
}

func (s *trainingService) alreadyEnrolled(ctx context.Context, userID uuid.UUID, training *domain.Training) (*domain.EnrollmentResult, error) {
	e, ok, err := s.existing(ctx, userID, training.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.EINTERNAL, "TrainingService.Enroll", "enrollment vanished for training %s", training.ID)
	}
	return &domain.EnrollmentResult{Enrollment: e, Training: training}, nil
}

func (s *trainingService) enrolled(ctx context.Context, user *domain.User, training *domain.Training) {
	notifyQuietly(ctx, s.notifications, s.logger, user.ID, domain.NotifyEnrollment,
		fmt.Sprintf("You are enrolled in %s.", training.Title),
		map[string]any{"training_id": training.ID.String()})
}

var _ TrainingService = (*trainingService)(nil)
