// Package service contains the business logic layer.
//
// This file implements two-phase payment reconciliation. The order phase
// binds a gateway order to the login session; the verify phase accepts a
// client callback only for that order, confirms it with the gateway and
// records it exactly once per gateway payment id.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/talentgate/internal/billing"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/metrics"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/DukeRupert/talentgate/internal/session"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Integrity rejection reasons. They are logged and counted, never shown.
const (
	rejectNoPendingOrder  = "no_pending_order"
	rejectOrderMismatch   = "order_mismatch"
	rejectBadPurchase     = "bad_purchase"
	rejectGatewayRejected = "gateway_rejected"
)

// =============================================================================
// Interface Definition
// =============================================================================

// PaymentService runs the order and verify phases.
type PaymentService interface {
	// CreateOrder prices the purchase, opens a gateway order and stores the
	// order id and purchase in the session. A newer order replaces any
	// pending one.
	CreateOrder(ctx context.Context, user *domain.User, sessionID uuid.UUID, purchase domain.Purchase) (*domain.Order, error)

	// Verify reconciles a checkout callback against the session's pending
	// order. Replays of an already-recorded payment succeed with
	// Activated=false and change nothing. Every integrity failure returns a
	// domain.EINTEGRITY error with the same client-facing message.
	Verify(ctx context.Context, user *domain.User, sessionID uuid.UUID, cb billing.Callback) (*domain.VerifyResult, error)

	// ApplyGatewayPayment records a payment reported by a gateway webhook.
	// The user and purchase come from order metadata.
	ApplyGatewayPayment(ctx context.Context, payment *billing.Payment) (*domain.VerifyResult, error)

	// Grant records a manual activation keyed on an external reference, for
	// support staff. Repeating the same reference is a no-op.
	Grant(ctx context.Context, user *domain.User, plan domain.Plan, reference string) (*domain.VerifyResult, error)

	ListPayments(ctx context.Context, user *domain.User) ([]*domain.PaymentRecord, error)
	GetPayment(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.PaymentRecord, error)
}

// =============================================================================
// Implementation
// =============================================================================

type paymentService struct {
	store         repository.Store
	gateway       billing.Gateway
	sessions      SessionValues
	notifications NotificationService
	catalog       domain.PlanCatalog
	logger        *slog.Logger
	now           func() time.Time
}

// NewPaymentService creates a PaymentService. gateway may be nil when no
// provider is configured; both phases then report EUNAVAILABLE.
func NewPaymentService(
	store repository.Store,
	gateway billing.Gateway,
	sessions SessionValues,
	notifications NotificationService,
	catalog domain.PlanCatalog,
	logger *slog.Logger,
) PaymentService {
	if catalog.Duration <= 0 {
		catalog.Duration = domain.DefaultPlanDuration
	}
	return &paymentService{
		store:         store,
		gateway:       gateway,
		sessions:      sessions,
		notifications: notifications,
		catalog:       catalog,
		logger:        logger,
		now:           time.Now,
	}
}

// =============================================================================
// Order phase
// =============================================================================

func (s *paymentService) CreateOrder(ctx context.Context, user *domain.User, sessionID uuid.UUID, purchase domain.Purchase) (*domain.Order, error) {
	const op = "PaymentService.CreateOrder"

	if s.gateway == nil {
		return nil, domain.Unavailable(nil, op, "Payments are not configured")
	}

	amount, description, err := s.price(ctx, s.store, user, purchase)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	order, err := s.gateway.CreateOrder(ctx, billing.OrderRequest{
		Amount:      amount,
		Currency:    s.catalog.Currency,
		Receipt:     "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		UserID:      user.ID,
		Email:       user.Email,
		Description: description,
		Purchase:    purchase.Encode(),
	})
	metrics.GatewayCall(s.gateway.Name(), "create_order", start, err)
	if err != nil {
		s.logger.Error("gateway order failed", "user_id", user.ID, "provider", s.gateway.Name(), "error", err)
		return nil, domain.Unavailable(err, op, "Payment gateway is unavailable. Please try again.")
	}

	if err := s.sessions.Set(ctx, sessionID, session.KeyPendingOrderID, order.ID); err != nil {
		return nil, err
	}
	if err := s.sessions.Set(ctx, sessionID, session.KeyPendingPurchase, purchase.Encode()); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		"user_id", user.ID,
		"order_id", order.ID,
		"purchase", purchase.Encode(),
		"amount", amount,
	)

	return &domain.Order{
		OrderID:     order.ID,
		Provider:    s.gateway.Name(),
		Amount:      order.Amount,
		Currency:    order.Currency,
		PublicKey:   order.PublicKey,
		CheckoutURL: order.CheckoutURL,
		Purchase:    purchase,
	}, nil
}

// price returns the amount and line description for a purchase.
func (s *paymentService) price(ctx context.Context, q repository.Querier, user *domain.User, purchase domain.Purchase) (int64, string, error) {
	const op = "PaymentService.price"

	switch purchase.Kind {
	case domain.PurchasePlan:
		if !purchase.Plan.IsPaid() {
			return 0, "", domain.Invalid(op, "Select a paid plan")
		}
		// Same tier renews; a lower tier waits until the current plan ends.
		if current := user.EffectivePlan(); current.Rank() > purchase.Plan.Rank() {
			return 0, "", domain.Conflict(op, fmt.Sprintf("Your %s plan is active. You can switch to %s after it ends.",
				current.DisplayName(), purchase.Plan.DisplayName()))
		}
		amount, ok := s.catalog.Price(purchase.Plan)
		if !ok {
			return 0, "", domain.Unavailable(nil, op, "This plan is not available for purchase right now")
		}
		return amount, planDescription(purchase.Plan), nil

	case domain.PurchaseTraining:
		t, err := q.GetTraining(ctx, purchase.TrainingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, "", domain.NotFound(op, "training", purchase.TrainingID.String())
			}
			return 0, "", domain.Internal(err, op, "Failed to load training")
		}
		if !t.IsActive {
			return 0, "", domain.Invalid(op, "This training is no longer offered")
		}
		if t.Fee <= 0 {
			return 0, "", domain.Invalid(op, "This training is free. Enroll directly.")
		}
		if _, err := q.GetEnrollment(ctx, repository.GetEnrollmentParams{UserID: user.ID, TrainingID: t.ID}); err == nil {
			return 0, "", domain.Conflict(op, "You are already enrolled in this training")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return 0, "", domain.Internal(err, op, "Failed to check enrollment")
		}
		return t.Fee, t.Title, nil
	}

	return 0, "", domain.Invalid(op, "Unknown purchase")
}

func planDescription(plan domain.Plan) string {
	return "Subscription Plan - " + plan.DisplayName()
}

// =============================================================================
// Verify phase
// =============================================================================

func (s *paymentService) Verify(ctx context.Context, user *domain.User, sessionID uuid.UUID, cb billing.Callback) (*domain.VerifyResult, error) {
	const op = "PaymentService.Verify"

	if s.gateway == nil {
		return nil, domain.Unavailable(nil, op, "Payments are not configured")
	}

	pendingOrderID, ok, err := s.sessions.Get(ctx, sessionID, session.KeyPendingOrderID)
	if err != nil {
		return nil, err
	}
	if !ok || pendingOrderID == "" {
		return nil, s.reject(ctx, op, user, cb, rejectNoPendingOrder)
	}

	if cb.OrderID != pendingOrderID {
		s.clearPending(ctx, sessionID)
		return nil, s.reject(ctx, op, user, cb, rejectOrderMismatch)
	}

	encoded, _, err := s.sessions.Get(ctx, sessionID, session.KeyPendingPurchase)
	if err != nil {
		return nil, err
	}
	purchase, err := domain.DecodePurchase(encoded)
	if err != nil {
		s.clearPending(ctx, sessionID)
		return nil, s.reject(ctx, op, user, cb, rejectBadPurchase)
	}

	start := time.Now()
	payment, err := s.gateway.VerifyPayment(ctx, cb)
	metrics.GatewayCall(s.gateway.Name(), "verify_payment", start, err)
	if err != nil {
		if billing.IsRejection(err) {
			s.clearPending(ctx, sessionID)
			s.logger.Warn("gateway rejected callback", "user_id", user.ID, "order_id", cb.OrderID, "error", err)
			return nil, s.reject(ctx, op, user, cb, rejectGatewayRejected)
		}
		// Transport failure: keep the pending order so the user can retry.
		s.logger.Error("gateway verify failed", "user_id", user.ID, "order_id", cb.OrderID, "error", err)
		return nil, domain.Unavailable(err, op, "Payment gateway is unavailable. Please try again.")
	}

	result, err := s.apply(ctx, user, payment, purchase)
	if err != nil {
		return nil, err
	}

	s.clearPending(ctx, sessionID)
	return result, nil
}

// reject logs the specific reason and returns the generic integrity error.
func (s *paymentService) reject(ctx context.Context, op string, user *domain.User, cb billing.Callback, reason string) error {
	s.logger.Warn("payment verification rejected",
		"user_id", user.ID,
		"reason", reason,
		"order_id", cb.OrderID,
		"payment_id", cb.PaymentID,
	)
	metrics.PaymentRejectionsTotal.WithLabelValues(reason).Inc()
	alertAdminsQuietly(ctx, s.notifications, s.logger, domain.NotifyPaymentRejected,
		fmt.Sprintf("Payment verification rejected for %s", user.Email),
		map[string]any{"user_id": user.ID.String(), "reason": reason, "order_id": cb.OrderID})
	return domain.Integrity(op, reason)
}

func (s *paymentService) clearPending(ctx context.Context, sessionID uuid.UUID) {
	if err := s.sessions.Delete(ctx, sessionID, session.PendingOrderKeys...); err != nil {
		s.logger.Warn("failed to clear pending order", "session_id", sessionID, "error", err)
	}
}

// =============================================================================
// Idempotent application
// =============================================================================

// apply inserts the payment record and, only when this call created it,
// applies the purchase. Both happen in one transaction, so a crash between
// them cannot leave a recorded payment without its effect.
func (s *paymentService) apply(ctx context.Context, user *domain.User, payment *billing.Payment, purchase domain.Purchase) (*domain.VerifyResult, error) {
	const op = "PaymentService.apply"

	now := s.now()
	provider := payment.Provider
	if provider == "" && s.gateway != nil {
		provider = s.gateway.Name()
	}

	var (
		result   domain.VerifyResult
		training *repository.Training
	)
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		// The record keeps what the gateway settled, not the current price.
		amount := payment.Amount
		if amount < 0 {
			amount = 0
		}
		currency := payment.Currency
		if currency == "" {
			currency = s.catalog.Currency
		}

		rec, err := q.InsertPaymentRecordIfAbsent(ctx, repository.InsertPaymentRecordIfAbsentParams{
			UserID:           user.ID,
			GatewayPaymentID: payment.ID,
			GatewayOrderID:   payment.OrderID,
			Provider:         provider,
			Kind:             string(purchase.Kind),
			Plan:             planColumn(purchase),
			TrainingID:       trainingColumn(purchase),
			Amount:           amount,
			Currency:         strings.ToUpper(currency),
			Status:           string(domain.PaymentSuccess),
			RawPayload:       rawPayload(payment.Raw),
		})
		if errors.Is(err, sql.ErrNoRows) {
			existing, err := q.GetPaymentRecordByGatewayID(ctx, payment.ID)
			if err != nil {
				return domain.Internal(err, op, "Failed to load payment record")
			}
			if existing.UserID != user.ID {
				s.logger.Warn("payment id already recorded for another user",
					"payment_id", payment.ID,
					"user_id", user.ID,
					"owner_id", existing.UserID,
				)
			}
			result.Payment = repoPaymentToDomain(existing)
			return nil
		}
		if err != nil {
			return domain.Internal(err, op, "Failed to record payment")
		}

		result.Payment = repoPaymentToDomain(rec)
		result.Activated = true

		switch purchase.Kind {
		case domain.PurchasePlan:
			updated, err := q.ActivateUserPlan(ctx, repository.ActivateUserPlanParams{
				ID:        user.ID,
				Plan:      string(purchase.Plan),
				PlanStart: now,
				PlanEnd:   now.Add(s.catalog.Duration),
			})
			if err != nil {
				return domain.Internal(err, op, "Failed to activate plan")
			}
			result.User = repoUserToDomain(updated)
			result.User.PasswordHash = ""

		case domain.PurchaseTraining:
			t, err := q.GetTraining(ctx, purchase.TrainingID)
			if err != nil {
				return domain.Internal(err, op, "Failed to load training")
			}
			training = &t
			_, err = q.CreateEnrollmentIfAbsent(ctx, repository.CreateEnrollmentIfAbsentParams{
				UserID:     user.ID,
				TrainingID: purchase.TrainingID,
				PaymentID:  uuid.NullUUID{UUID: rec.ID, Valid: true},
			})
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return domain.Internal(err, op, "Failed to create enrollment")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentReconciled(string(purchase.Kind), result.Activated)

	if !result.Activated {
		s.logger.Info("payment already reconciled", "user_id", user.ID, "payment_id", payment.ID)
		return &result, nil
	}

	s.logger.Info("payment reconciled",
		"user_id", user.ID,
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"kind", purchase.Kind,
		"plan", purchase.Plan,
	)

	switch purchase.Kind {
	case domain.PurchasePlan:
		user.Activate(purchase.Plan, now, s.catalog.Duration)
		notifyQuietly(ctx, s.notifications, s.logger, user.ID, domain.NotifyPlanActivated,
			fmt.Sprintf("Your %s plan is active until %s.", purchase.Plan.DisplayName(), user.PlanEnd.Format("2 Jan 2006")),
			map[string]any{"plan": string(purchase.Plan), "payment_id": result.Payment.ID.String()})
	case domain.PurchaseTraining:
		title := "your training"
		if training != nil {
			title = training.Title
		}
		notifyQuietly(ctx, s.notifications, s.logger, user.ID, domain.NotifyEnrollment,
			fmt.Sprintf("You are enrolled in %s.", title),
			map[string]any{"training_id": purchase.TrainingID.String(), "payment_id": result.Payment.ID.String()})
	}

	if result.User == nil {
		result.User = user
	}
	return &result, nil
}

func (s *paymentService) ApplyGatewayPayment(ctx context.Context, payment *billing.Payment) (*domain.VerifyResult, error) {
	const op = "PaymentService.ApplyGatewayPayment"

	rawUserID := payment.Metadata["user_id"]
	if rawUserID == "" {
		rawUserID = payment.Metadata["client_reference_id"]
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, domain.Invalid(op, "Payment has no user reference")
	}
	purchase, err := domain.DecodePurchase(payment.Metadata["purchase"])
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Payment has no purchase reference")
	}

	repoUser, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		return nil, domain.Internal(err, op, "Failed to load user")
	}
	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	return s.apply(ctx, user, payment, purchase)
}

func (s *paymentService) Grant(ctx context.Context, user *domain.User, plan domain.Plan, reference string) (*domain.VerifyResult, error) {
	const op = "PaymentService.Grant"

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.Invalid(op, "A support reference is required")
	}
	if !plan.IsPaid() {
		return nil, domain.Invalid(op, "Select a paid plan")
	}

	payment := &billing.Payment{
		Provider: billing.ProviderManual,
		ID:       "manual:" + reference,
		OrderID:  reference,
		Amount:   0,
		Currency: s.catalog.Currency,
	}
	return s.apply(ctx, user, payment, domain.Purchase{Kind: domain.PurchasePlan, Plan: plan})
}

// =============================================================================
// Lookups
// =============================================================================

func (s *paymentService) ListPayments(ctx context.Context, user *domain.User) ([]*domain.PaymentRecord, error) {
	const op = "PaymentService.ListPayments"

	rows, err := s.store.ListPaymentRecordsByUser(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list payments")
	}
	out := make([]*domain.PaymentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, repoPaymentToDomain(r))
	}
	return out, nil
}

func (s *paymentService) GetPayment(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.PaymentRecord, error) {
	const op = "PaymentService.GetPayment"

	rec, err := s.store.GetPaymentRecordForUser(ctx, repository.GetPaymentRecordForUserParams{ID: id, UserID: user.ID})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "payment", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load payment")
	}
	return repoPaymentToDomain(rec), nil
}

// =============================================================================
// Helpers
// =============================================================================

func planColumn(p domain.Purchase) sql.NullString {
	if p.Kind != domain.PurchasePlan {
		return sql.NullString{}
	}
	return domain.ToNullString(string(p.Plan))
}

func trainingColumn(p domain.Purchase) uuid.NullUUID {
	if p.Kind != domain.PurchaseTraining {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: p.TrainingID, Valid: true}
}

func rawPayload(raw json.RawMessage) pqtype.NullRawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}

var _ PaymentService = (*paymentService)(nil)
