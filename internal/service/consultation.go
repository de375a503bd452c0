package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
)

// MaxConsultationTopicLength bounds the free-text topic.
const MaxConsultationTopicLength = 500

// ConsultationService books career consultations.
type ConsultationService interface {
	// Request checks the consultation quota and records a session. PRO_PLUS
	// requests are flagged priority and alert staff. A denied quota returns an
	// EPAYMENT error.
	Request(ctx context.Context, user *domain.User, topic string) (*domain.ConsultationSession, error)
}

type consultationService struct {
	store         repository.Store
	entitlements  EntitlementService
	notifications NotificationService
	logger        *slog.Logger
}

// NewConsultationService creates a new ConsultationService.
func NewConsultationService(store repository.Store, entitlements EntitlementService, notifications NotificationService, logger *slog.Logger) ConsultationService {
	return &consultationService{
		store:         store,
		entitlements:  entitlements,
		notifications: notifications,
		logger:        logger,
	}
}

func (s *consultationService) Request(ctx context.Context, user *domain.User, topic string) (*domain.ConsultationSession, error) {
	const op = "ConsultationService.Request"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, domain.Invalid(op, "Please describe what you would like to discuss")
	}
	if len(topic) > MaxConsultationTopicLength {
		return nil, domain.Invalid(op, fmt.Sprintf("Topic must be %d characters or fewer", MaxConsultationTopicLength))
	}

	d, err := s.entitlements.Check(ctx, user, domain.ResourceConsultation)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, domain.QuotaExceeded(op, d)
	}

	priority := d.Plan == domain.PlanProPlus
	row, err := s.store.CreateConsultationSession(ctx, repository.CreateConsultationSessionParams{
		UserID:   user.ID,
		Topic:    topic,
		Priority: priority,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to book consultation")
	}
	session := repoConsultationToDomain(row)

	s.logger.Info("consultation requested", "user_id", user.ID, "priority", priority, "used", d.Used+1, "limit", d.Limit)

	notifyQuietly(ctx, s.notifications, s.logger, user.ID, domain.NotifyConsultation,
		"Your consultation request was received. We will contact you to schedule it.",
		map[string]any{"consultation_id": session.ID.String()})
	if priority {
		alertAdminsQuietly(ctx, s.notifications, s.logger, domain.NotifyConsultation,
			fmt.Sprintf("Priority consultation requested by %s.", user.Email),
			map[string]any{"consultation_id": session.ID.String(), "user_id": user.ID.String()})
	}

	return session, nil
}

var _ ConsultationService = (*consultationService)(nil)
