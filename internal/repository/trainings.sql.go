package repository

import (
	"context"

	"github.com/google/uuid"
)

const countEnrollmentsByUser = `-- name: CountEnrollmentsByUser :one
SELECT COUNT(*) FROM enrollments WHERE user_id = $1
`

func (q *Queries) CountEnrollmentsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countEnrollmentsByUser, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createEnrollmentIfAbsent = `-- name: CreateEnrollmentIfAbsent :one
INSERT INTO enrollments (user_id, training_id, payment_id)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, training_id) DO NOTHING
RETURNING id, user_id, training_id, payment_id, created_at
`

type CreateEnrollmentIfAbsentParams struct {
	UserID     uuid.UUID     `json:"user_id"`
	TrainingID uuid.UUID     `json:"training_id"`
	PaymentID  uuid.NullUUID `json:"payment_id"`
}

func (q *Queries) CreateEnrollmentIfAbsent(ctx context.Context, arg CreateEnrollmentIfAbsentParams) (Enrollment, error) {
	row := q.db.QueryRowContext(ctx, createEnrollmentIfAbsent, arg.UserID, arg.TrainingID, arg.PaymentID)
	var i Enrollment
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TrainingID,
		&i.PaymentID,
		&i.CreatedAt,
	)
	return i, err
}

const getEnrollment = `-- name: GetEnrollment :one
SELECT id, user_id, training_id, payment_id, created_at FROM enrollments
WHERE user_id = $1 AND training_id = $2
`

type GetEnrollmentParams struct {
	UserID     uuid.UUID `json:"user_id"`
	TrainingID uuid.UUID `json:"training_id"`
}

func (q *Queries) GetEnrollment(ctx context.Context, arg GetEnrollmentParams) (Enrollment, error) {
	row := q.db.QueryRowContext(ctx, getEnrollment, arg.UserID, arg.TrainingID)
	var i Enrollment
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TrainingID,
		&i.PaymentID,
		&i.CreatedAt,
	)
	return i, err
}

const getTraining = `-- name: GetTraining :one
SELECT id, title, fee, is_active, created_at FROM trainings
WHERE id = $1
`

func (q *Queries) GetTraining(ctx context.Context, id uuid.UUID) (Training, error) {
	row := q.db.QueryRowContext(ctx, getTraining, id)
	var i Training
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Fee,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}
