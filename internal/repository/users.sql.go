package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, name, is_staff, plan, plan_status, plan_start, plan_end, usage_reset_date, years_experience, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.PasswordHash,
		&i.Name,
		&i.IsStaff,
		&i.Plan,
		&i.PlanStatus,
		&i.PlanStart,
		&i.PlanEnd,
		&i.UsageResetDate,
		&i.YearsExperience,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const activateUserPlan = `-- name: ActivateUserPlan :one
UPDATE users
SET plan = $2,
    plan_status = 'active',
    plan_start = $3,
    plan_end = $4,
    usage_reset_date = $3,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns

type ActivateUserPlanParams struct {
	ID        uuid.UUID `json:"id"`
	Plan      string    `json:"plan"`
	PlanStart time.Time `json:"plan_start"`
	PlanEnd   time.Time `json:"plan_end"`
}

func (q *Queries) ActivateUserPlan(ctx context.Context, arg ActivateUserPlanParams) (User, error) {
	row := q.db.QueryRowContext(ctx, activateUserPlan,
		arg.ID,
		arg.Plan,
		arg.PlanStart,
		arg.PlanEnd,
	)
	return scanUser(row)
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, password_hash, name, years_experience, is_staff)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email           string `json:"email"`
	PasswordHash    string `json:"password_hash"`
	Name            string `json:"name"`
	YearsExperience int32  `json:"years_experience"`
	IsStaff         bool   `json:"is_staff"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Email,
		arg.PasswordHash,
		arg.Name,
		arg.YearsExperience,
		arg.IsStaff,
	)
	return scanUser(row)
}

const expireUserPlan = `-- name: ExpireUserPlan :execrows
UPDATE users
SET plan = 'free',
    plan_status = 'expired',
    plan_start = NULL,
    plan_end = NULL,
    updated_at = NOW()
WHERE id = $1
  AND is_staff = FALSE
  AND plan IN ('pro', 'pro_plus')
  AND plan_status <> 'expired'
  AND plan_end IS NOT NULL
  AND plan_end < $2
`

type ExpireUserPlanParams struct {
	ID  uuid.UUID `json:"id"`
	Now time.Time `json:"now"`
}

func (q *Queries) ExpireUserPlan(ctx context.Context, arg ExpireUserPlanParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, expireUserPlan, arg.ID, arg.Now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	return scanUser(row)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	return scanUser(row)
}

const listUsersWithLapsedPlans = `-- name: ListUsersWithLapsedPlans :many
SELECT ` + userColumns + ` FROM users
WHERE is_staff = FALSE
  AND plan IN ('pro', 'pro_plus')
  AND plan_status <> 'expired'
  AND plan_end IS NOT NULL
  AND plan_end < $1
ORDER BY plan_end
LIMIT $2
`

type ListUsersWithLapsedPlansParams struct {
	Now   time.Time `json:"now"`
	Limit int32     `json:"limit"`
}

func (q *Queries) ListUsersWithLapsedPlans(ctx context.Context, arg ListUsersWithLapsedPlansParams) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsersWithLapsedPlans, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		i, err := scanUser(rows)
		if err != nil {
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
