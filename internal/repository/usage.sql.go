package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const countAiRequestsSince = `-- name: CountAiRequestsSince :one
SELECT COUNT(*) FROM ai_requests
WHERE user_id = $1 AND created_at >= $2
`

type CountAiRequestsSinceParams struct {
	UserID uuid.UUID `json:"user_id"`
	Since  time.Time `json:"since"`
}

func (q *Queries) CountAiRequestsSince(ctx context.Context, arg CountAiRequestsSinceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countAiRequestsSince, arg.UserID, arg.Since)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countConsultationSessionsSince = `-- name: CountConsultationSessionsSince :one
SELECT COUNT(*) FROM consultation_sessions
WHERE user_id = $1 AND created_at >= $2
`

type CountConsultationSessionsSinceParams struct {
	UserID uuid.UUID `json:"user_id"`
	Since  time.Time `json:"since"`
}

func (q *Queries) CountConsultationSessionsSince(ctx context.Context, arg CountConsultationSessionsSinceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countConsultationSessionsSince, arg.UserID, arg.Since)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countResumeReviewsSince = `-- name: CountResumeReviewsSince :one
SELECT COUNT(*) FROM resume_reviews
WHERE user_id = $1 AND level = $2 AND created_at >= $3
`

type CountResumeReviewsSinceParams struct {
	UserID uuid.UUID `json:"user_id"`
	Level  string    `json:"level"`
	Since  time.Time `json:"since"`
}

func (q *Queries) CountResumeReviewsSince(ctx context.Context, arg CountResumeReviewsSinceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countResumeReviewsSince, arg.UserID, arg.Level, arg.Since)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createAiRequest = `-- name: CreateAiRequest :one
INSERT INTO ai_requests (user_id, page, tokens_used)
VALUES ($1, $2, $3)
RETURNING id, user_id, page, tokens_used, created_at
`

type CreateAiRequestParams struct {
	UserID     uuid.UUID `json:"user_id"`
	Page       string    `json:"page"`
	TokensUsed int32     `json:"tokens_used"`
}

func (q *Queries) CreateAiRequest(ctx context.Context, arg CreateAiRequestParams) (AiRequest, error) {
	row := q.db.QueryRowContext(ctx, createAiRequest, arg.UserID, arg.Page, arg.TokensUsed)
	var i AiRequest
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Page,
		&i.TokensUsed,
		&i.CreatedAt,
	)
	return i, err
}

const createConsultationSession = `-- name: CreateConsultationSession :one
INSERT INTO consultation_sessions (user_id, topic, priority)
VALUES ($1, $2, $3)
RETURNING id, user_id, topic, priority, status, created_at
`

type CreateConsultationSessionParams struct {
	UserID   uuid.UUID `json:"user_id"`
	Topic    string    `json:"topic"`
	Priority bool      `json:"priority"`
}

func (q *Queries) CreateConsultationSession(ctx context.Context, arg CreateConsultationSessionParams) (ConsultationSession, error) {
	row := q.db.QueryRowContext(ctx, createConsultationSession, arg.UserID, arg.Topic, arg.Priority)
	var i ConsultationSession
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Topic,
		&i.Priority,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const createResumeReview = `-- name: CreateResumeReview :one
INSERT INTO resume_reviews (user_id, level, experience, feedback)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, level, experience, feedback, created_at
`

type CreateResumeReviewParams struct {
	UserID     uuid.UUID `json:"user_id"`
	Level      string    `json:"level"`
	Experience string    `json:"experience"`
	Feedback   string    `json:"feedback"`
}

func (q *Queries) CreateResumeReview(ctx context.Context, arg CreateResumeReviewParams) (ResumeReview, error) {
	row := q.db.QueryRowContext(ctx, createResumeReview, arg.UserID, arg.Level, arg.Experience, arg.Feedback)
	var i ResumeReview
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Level,
		&i.Experience,
		&i.Feedback,
		&i.CreatedAt,
	)
	return i, err
}
