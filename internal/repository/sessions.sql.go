package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (user_id, token_hash, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, token_hash, expires_at, created_at
`

type CreateSessionParams struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRowContext(ctx, createSession, arg.UserID, arg.TokenHash, arg.ExpiresAt)
	var i Session
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TokenHash,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions :exec
DELETE FROM sessions WHERE expires_at <= NOW()
`

func (q *Queries) DeleteExpiredSessions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredSessions)
	return err
}

const deleteSession = `-- name: DeleteSession :exec
DELETE FROM sessions WHERE token_hash = $1
`

func (q *Queries) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, tokenHash)
	return err
}

const deleteSessionValues = `-- name: DeleteSessionValues :exec
DELETE FROM session_values
WHERE session_id = $1 AND key = ANY($2::text[])
`

type DeleteSessionValuesParams struct {
	SessionID uuid.UUID `json:"session_id"`
	Keys      []string  `json:"keys"`
}

func (q *Queries) DeleteSessionValues(ctx context.Context, arg DeleteSessionValuesParams) error {
	_, err := q.db.ExecContext(ctx, deleteSessionValues, arg.SessionID, arg.Keys)
	return err
}

const getSessionByTokenHash = `-- name: GetSessionByTokenHash :one
SELECT id, user_id, token_hash, expires_at, created_at FROM sessions
WHERE token_hash = $1 AND expires_at > NOW()
`

func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSessionByTokenHash, tokenHash)
	var i Session
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TokenHash,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const getSessionValue = `-- name: GetSessionValue :one
SELECT value FROM session_values
WHERE session_id = $1 AND key = $2
`

type GetSessionValueParams struct {
	SessionID uuid.UUID `json:"session_id"`
	Key       string    `json:"key"`
}

func (q *Queries) GetSessionValue(ctx context.Context, arg GetSessionValueParams) (string, error) {
	row := q.db.QueryRowContext(ctx, getSessionValue, arg.SessionID, arg.Key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const setSessionValue = `-- name: SetSessionValue :exec
INSERT INTO session_values (session_id, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, key)
DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
`

type SetSessionValueParams struct {
	SessionID uuid.UUID `json:"session_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
}

func (q *Queries) SetSessionValue(ctx context.Context, arg SetSessionValueParams) error {
	_, err := q.db.ExecContext(ctx, setSessionValue, arg.SessionID, arg.Key, arg.Value)
	return err
}
