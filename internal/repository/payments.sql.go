package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const paymentRecordColumns = `id, user_id, gateway_payment_id, gateway_order_id, provider, kind, plan, training_id, amount, currency, status, raw_payload, created_at`

func scanPaymentRecord(row interface{ Scan(...interface{}) error }) (PaymentRecord, error) {
	var i PaymentRecord
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.GatewayPaymentID,
		&i.GatewayOrderID,
		&i.Provider,
		&i.Kind,
		&i.Plan,
		&i.TrainingID,
		&i.Amount,
		&i.Currency,
		&i.Status,
		&i.RawPayload,
		&i.CreatedAt,
	)
	return i, err
}

const getPaymentRecordByGatewayID = `-- name: GetPaymentRecordByGatewayID :one
SELECT ` + paymentRecordColumns + ` FROM payment_records
WHERE gateway_payment_id = $1
`

func (q *Queries) GetPaymentRecordByGatewayID(ctx context.Context, gatewayPaymentID string) (PaymentRecord, error) {
	row := q.db.QueryRowContext(ctx, getPaymentRecordByGatewayID, gatewayPaymentID)
	return scanPaymentRecord(row)
}

const getPaymentRecordForUser = `-- name: GetPaymentRecordForUser :one
SELECT ` + paymentRecordColumns + ` FROM payment_records
WHERE id = $1 AND user_id = $2
`

type GetPaymentRecordForUserParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) GetPaymentRecordForUser(ctx context.Context, arg GetPaymentRecordForUserParams) (PaymentRecord, error) {
	row := q.db.QueryRowContext(ctx, getPaymentRecordForUser, arg.ID, arg.UserID)
	return scanPaymentRecord(row)
}

// InsertPaymentRecordIfAbsent returns sql.ErrNoRows when a record with the
// same gateway_payment_id already exists. The unique constraint makes the
// check and the insert one atomic step.
const insertPaymentRecordIfAbsent = `-- name: InsertPaymentRecordIfAbsent :one
INSERT INTO payment_records (
    user_id, gateway_payment_id, gateway_order_id, provider, kind,
    plan, training_id, amount, currency, status, raw_payload
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (gateway_payment_id) DO NOTHING
RETURNING ` + paymentRecordColumns

type InsertPaymentRecordIfAbsentParams struct {
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
}

func (q *Queries) InsertPaymentRecordIfAbsent(ctx context.Context, arg InsertPaymentRecordIfAbsentParams) (PaymentRecord, error) {
	row := q.db.QueryRowContext(ctx, insertPaymentRecordIfAbsent,
		arg.UserID,
		arg.GatewayPaymentID,
		arg.GatewayOrderID,
		arg.Provider,
		arg.Kind,
		arg.Plan,
		arg.TrainingID,
		arg.Amount,
		arg.Currency,
		arg.Status,
		arg.RawPayload,
	)
	return scanPaymentRecord(row)
}

const listPaymentRecordsByUser = `-- name: ListPaymentRecordsByUser :many
SELECT ` + paymentRecordColumns + ` FROM payment_records
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListPaymentRecordsByUser(ctx context.Context, userID uuid.UUID) ([]PaymentRecord, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentRecordsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentRecord
	for rows.Next() {
		i, err := scanPaymentRecord(rows)
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
