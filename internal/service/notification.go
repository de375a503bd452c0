package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// NotificationService records in-app notifications. Delivery is pull-only:
// clients poll GET /api/notifications.
type NotificationService interface {
	// Notify addresses one user.
	Notify(ctx context.Context, userID uuid.UUID, kind domain.NotificationKind, message string, data map[string]any) error

	// AlertAdmins addresses all staff accounts. Staff share one inbox, so
	// marking an alert read clears it for everyone.
	AlertAdmins(ctx context.Context, kind domain.NotificationKind, message string, data map[string]any) error

	ListUnread(ctx context.Context, user *domain.User) ([]*domain.Notification, error)
	MarkAllRead(ctx context.Context, user *domain.User) error
}

type notificationService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store repository.Store, logger *slog.Logger) NotificationService {
	return &notificationService{store: store, logger: logger}
}

func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, kind domain.NotificationKind, message string, data map[string]any) error {
	return s.create(ctx, uuid.NullUUID{UUID: userID, Valid: true}, kind, message, data)
}

func (s *notificationService) AlertAdmins(ctx context.Context, kind domain.NotificationKind, message string, data map[string]any) error {
	return s.create(ctx, uuid.NullUUID{}, kind, message, data)
}

func (s *notificationService) create(ctx context.Context, userID uuid.NullUUID, kind domain.NotificationKind, message string, data map[string]any) error {
	const op = "NotificationService.Notify"

	var raw pqtype.NullRawMessage
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return domain.Internal(err, op, "Failed to encode notification data")
		}
		raw = pqtype.NullRawMessage{RawMessage: b, Valid: true}
	}

	_, err := s.store.CreateNotification(ctx, repository.CreateNotificationParams{
		UserID:  userID,
		Kind:    string(kind),
		Message: message,
		Data:    raw,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to create notification")
	}
	return nil
}

func (s *notificationService) ListUnread(ctx context.Context, user *domain.User) ([]*domain.Notification, error) {
	const op = "NotificationService.ListUnread"

	rows, err := s.store.ListUnreadNotifications(ctx, repository.ListUnreadNotificationsParams{
		UserID:       user.ID,
		IncludeAdmin: user.IsStaff,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list notifications")
	}

	out := make([]*domain.Notification, 0, len(rows))
	for _, n := range rows {
		out = append(out, repoNotificationToDomain(n))
	}
	return out, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, user *domain.User) error {
	const op = "NotificationService.MarkAllRead"

	err := s.store.MarkNotificationsRead(ctx, repository.MarkNotificationsReadParams{
		UserID:       user.ID,
		IncludeAdmin: user.IsStaff,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update notifications")
	}
	return nil
}

// notifyQuietly logs instead of failing the caller. Notifications never
// block a payment or usage flow.
func notifyQuietly(ctx context.Context, n NotificationService, logger *slog.Logger, userID uuid.UUID, kind domain.NotificationKind, message string, data map[string]any) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, kind, message, data); err != nil {
		logger.Warn("failed to create notification", "user_id", userID, "kind", kind, "error", err)
	}
}

func alertAdminsQuietly(ctx context.Context, n NotificationService, logger *slog.Logger, kind domain.NotificationKind, message string, data map[string]any) {
	if n == nil {
		return
	}
	if err := n.AlertAdmins(ctx, kind, message, data); err != nil {
		logger.Warn("failed to create admin alert", "kind", kind, "error", err)
	}
}

var _ NotificationService = (*notificationService)(nil)
