package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type AiRequest struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Page       string    `json:"page"`
	TokensUsed int32     `json:"tokens_used"`
	CreatedAt  time.Time `json:"created_at"`
}

type ConsultationSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Topic     string    `json:"topic"`
	Priority  bool      `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Enrollment struct {
	ID         uuid.UUID     `json:"id"`
	UserID     uuid.UUID     `json:"user_id"`
	TrainingID uuid.UUID     `json:"training_id"`
	PaymentID  uuid.NullUUID `json:"payment_id"`
	CreatedAt  time.Time     `json:"created_at"`
}

type Job struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Company    string    `json:"company"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

type JobApplication struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID        uuid.UUID             `json:"id"`
	UserID    uuid.NullUUID         `json:"user_id"`
	Kind      string                `json:"kind"`
	Message   string                `json:"message"`
	Data      pqtype.NullRawMessage `json:"data"`
	IsRead    bool                  `json:"is_read"`
	CreatedAt time.Time             `json:"created_at"`
}

type PaymentRecord struct {
	ID               uuid.UUID             `json:"id"`
	UserID           uuid.UUID             `json:"user_id"`
	GatewayPaymentID string                `json:"gateway_payment_id"`
	GatewayOrderID   string                `json:"gateway_order_id"`
	Provider         string                `json:"provider"`
	Kind             string                `json:"kind"`
	Plan             sql.NullString        `json:"plan"`
	TrainingID       uuid.NullUUID         `json:"training_id"`
	Amount           int64                 `json:"amount"`
	Currency         string                `json:"currency"`
	Status           string                `json:"status"`
	RawPayload       pqtype.NullRawMessage `json:"raw_payload"`
	CreatedAt        time.Time             `json:"created_at"`
}

type ResumeReview struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Level      string    `json:"level"`
	Experience string    `json:"experience"`
	Feedback   string    `json:"feedback"`
	CreatedAt  time.Time `json:"created_at"`
}

type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionValue struct {
	SessionID uuid.UUID `json:"session_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Training struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Fee       int64     `json:"fee"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID              uuid.UUID    `json:"id"`
	Email           string       `json:"email"`
	PasswordHash    string       `json:"password_hash"`
	Name            string       `json:"name"`
	IsStaff         bool         `json:"is_staff"`
	Plan            string       `json:"plan"`
	PlanStatus      string       `json:"plan_status"`
	PlanStart       sql.NullTime `json:"plan_start"`
	PlanEnd         sql.NullTime `json:"plan_end"`
	UsageResetDate  time.Time    `json:"usage_reset_date"`
	YearsExperience int32        `json:"years_experience"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
