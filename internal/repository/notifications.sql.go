package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const createNotification = `-- name: CreateNotification :one
INSERT INTO notifications (user_id, kind, message, data)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, kind, message, data, is_read, created_at
`

type CreateNotificationParams struct {
	UserID  uuid.NullUUID         `json:"user_id"`
	Kind    string                `json:"kind"`
	Message string                `json:"message"`
	Data    pqtype.NullRawMessage `json:"data"`
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	row := q.db.QueryRowContext(ctx, createNotification, arg.UserID, arg.Kind, arg.Message, arg.Data)
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Kind,
		&i.Message,
		&i.Data,
		&i.IsRead,
		&i.CreatedAt,
	)
	return i, err
}

const listUnreadNotifications = `-- name: ListUnreadNotifications :many
SELECT id, user_id, kind, message, data, is_read, created_at FROM notifications
WHERE (user_id = $1 OR ($2::boolean AND user_id IS NULL))
  AND is_read = FALSE
ORDER BY created_at DESC
LIMIT 50
`

// IncludeAdmin adds alerts addressed to staff (NULL user_id).
type ListUnreadNotificationsParams struct {
	UserID       uuid.UUID `json:"user_id"`
	IncludeAdmin bool      `json:"include_admin"`
}

func (q *Queries) ListUnreadNotifications(ctx context.Context, arg ListUnreadNotificationsParams) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listUnreadNotifications, arg.UserID, arg.IncludeAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var i Notification
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Kind,
			&i.Message,
			&i.Data,
			&i.IsRead,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markNotificationsRead = `-- name: MarkNotificationsRead :exec
UPDATE notifications SET is_read = TRUE
WHERE (user_id = $1 OR ($2::boolean AND user_id IS NULL))
  AND is_read = FALSE
`

type MarkNotificationsReadParams struct {
	UserID       uuid.UUID `json:"user_id"`
	IncludeAdmin bool      `json:"include_admin"`
}

func (q *Queries) MarkNotificationsRead(ctx context.Context, arg MarkNotificationsReadParams) error {
	_, err := q.db.ExecContext(ctx, markNotificationsRead, arg.UserID, arg.IncludeAdmin)
	return err
}
