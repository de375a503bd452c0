package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/DukeRupert/talentgate/internal/session"
	"github.com/google/uuid"
)

// SessionValues is server-side key/value storage bound to a login session.
// Values die with the session row.
type SessionValues interface {
	// Get returns ok=false when the key is not set.
	Get(ctx context.Context, sessionID uuid.UUID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, sessionID uuid.UUID, key, value string) error
	Delete(ctx context.Context, sessionID uuid.UUID, keys ...string) error

	// Flash stores a one-shot message; PopFlash reads and clears it.
	Flash(ctx context.Context, sessionID uuid.UUID, message string) error
	PopFlash(ctx context.Context, sessionID uuid.UUID) (string, error)
}

type sessionValues struct {
	store  repository.Store
	logger *slog.Logger
}

// NewSessionValues creates a SessionValues backed by the session_values table.
func NewSessionValues(store repository.Store, logger *slog.Logger) SessionValues {
	return &sessionValues{store: store, logger: logger}
}

func (s *sessionValues) Get(ctx context.Context, sessionID uuid.UUID, key string) (string, bool, error) {
	const op = "SessionValues.Get"

	v, err := s.store.GetSessionValue(ctx, repository.GetSessionValueParams{SessionID: sessionID, Key: key})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, domain.Internal(err, op, "Failed to read session")
	}
	return v, true, nil
}

func (s *sessionValues) Set(ctx context.Context, sessionID uuid.UUID, key, value string) error {
	const op = "SessionValues.Set"

	if err := s.store.SetSessionValue(ctx, repository.SetSessionValueParams{SessionID: sessionID, Key: key, Value: value}); err != nil {
		return domain.Internal(err, op, "Failed to write session")
	}
	return nil
}

func (s *sessionValues) Delete(ctx context.Context, sessionID uuid.UUID, keys ...string) error {
	const op = "SessionValues.Delete"

	if len(keys) == 0 {
		return nil
	}
	if err := s.store.DeleteSessionValues(ctx, repository.DeleteSessionValuesParams{SessionID: sessionID, Keys: keys}); err != nil {
		return domain.Internal(err, op, "Failed to clear session")
	}
	return nil
}

func (s *sessionValues) Flash(ctx context.Context, sessionID uuid.UUID, message string) error {
	return s.Set(ctx, sessionID, session.KeyFlash, message)
}

func (s *sessionValues) PopFlash(ctx context.Context, sessionID uuid.UUID) (string, error) {
	msg, ok, err := s.Get(ctx, sessionID, session.KeyFlash)
	if err != nil || !ok {
		return "", err
	}
	if err := s.Delete(ctx, sessionID, session.KeyFlash); err != nil {
		return "", err
	}
	return msg, nil
}

var _ SessionValues = (*sessionValues)(nil)
