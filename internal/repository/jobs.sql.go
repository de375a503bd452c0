package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const countJobApplicationsSince = `-- name: CountJobApplicationsSince :one
SELECT COUNT(*) FROM job_applications
WHERE user_id = $1 AND created_at >= $2
`

type CountJobApplicationsSinceParams struct {
	UserID uuid.UUID `json:"user_id"`
	Since  time.Time `json:"since"`
}

func (q *Queries) CountJobApplicationsSince(ctx context.Context, arg CountJobApplicationsSinceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countJobApplicationsSince, arg.UserID, arg.Since)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createJobApplicationIfAbsent = `-- name: CreateJobApplicationIfAbsent :one
INSERT INTO job_applications (user_id, job_id)
VALUES ($1, $2)
ON CONFLICT (user_id, job_id) DO NOTHING
RETURNING id, user_id, job_id, status, created_at
`

type CreateJobApplicationIfAbsentParams struct {
	UserID uuid.UUID `json:"user_id"`
	JobID  uuid.UUID `json:"job_id"`
}

func (q *Queries) CreateJobApplicationIfAbsent(ctx context.Context, arg CreateJobApplicationIfAbsentParams) (JobApplication, error) {
	row := q.db.QueryRowContext(ctx, createJobApplicationIfAbsent, arg.UserID, arg.JobID)
	var i JobApplication
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.JobID,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const getJob = `-- name: GetJob :one
SELECT id, title, company, visibility, created_at FROM jobs
WHERE id = $1
`

func (q *Queries) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	row := q.db.QueryRowContext(ctx, getJob, id)
	var i Job
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Company,
		&i.Visibility,
		&i.CreatedAt,
	)
	return i, err
}

const getJobApplication = `-- name: GetJobApplication :one
SELECT id, user_id, job_id, status, created_at FROM job_applications
WHERE user_id = $1 AND job_id = $2
`

type GetJobApplicationParams struct {
	UserID uuid.UUID `json:"user_id"`
	JobID  uuid.UUID `json:"job_id"`
}

func (q *Queries) GetJobApplication(ctx context.Context, arg GetJobApplicationParams) (JobApplication, error) {
	row := q.db.QueryRowContext(ctx, getJobApplication, arg.UserID, arg.JobID)
	var i JobApplication
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.JobID,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const listJobsByVisibility = `-- name: ListJobsByVisibility :many
SELECT id, title, company, visibility, created_at FROM jobs
WHERE visibility = ANY($1::text[])
ORDER BY created_at DESC
`

func (q *Queries) ListJobsByVisibility(ctx context.Context, visibilities []string) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, listJobsByVisibility, visibilities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Job
	for rows.Next() {
		var i Job
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Company,
			&i.Visibility,
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
