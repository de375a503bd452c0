package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PurchaseKind says what a payment bought.
type PurchaseKind string

const (
	PurchasePlan     PurchaseKind = "plan"
	PurchaseTraining PurchaseKind = "training"
)

// PaymentStatus is fixed at creation; records are never mutated afterwards.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentRecord is one reconciled gateway transaction. GatewayPaymentID is
// the idempotency key: at most one record exists per value.
type PaymentRecord struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	GatewayPaymentID string
	GatewayOrderID   string
	Provider         string
	Kind             PurchaseKind
	Plan             Plan       // set for plan purchases
	TrainingID       *uuid.UUID // set for training purchases
	Amount           int64      // minor units
	Currency         string
	Status           PaymentStatus
	CreatedAt        time.Time
}

// IsFree reports whether the record is a zero-amount grant.
func (p *PaymentRecord) IsFree() bool {
	return p.Amount == 0
}

// Purchase is what the user selected in the order phase. Exactly one of
// Plan or TrainingID is set.
type Purchase struct {
	Kind       PurchaseKind
	Plan       Plan
	TrainingID uuid.UUID
}

const trainingPurchasePrefix = "training:"

// Encode serialises a purchase for the session store.
func (p Purchase) Encode() string {
	if p.Kind == PurchaseTraining {
		return trainingPurchasePrefix + p.TrainingID.String()
	}
	return string(p.Plan)
}

// DecodePurchase reverses Encode.
func DecodePurchase(s string) (Purchase, error) {
	if rest, ok := strings.CutPrefix(s, trainingPurchasePrefix); ok {
		id, err := uuid.Parse(rest)
		if err != nil {
			return Purchase{}, fmt.Errorf("decode purchase: %w", err)
		}
		return Purchase{Kind: PurchaseTraining, TrainingID: id}, nil
	}
	plan, ok := ParsePlan(s)
	if !ok || !plan.IsPaid() {
		return Purchase{}, fmt.Errorf("decode purchase: unknown plan %q", s)
	}
	return Purchase{Kind: PurchasePlan, Plan: plan}, nil
}

// PlanCatalog prices the purchasable tiers.
type PlanCatalog struct {
	Currency string
	Prices   map[Plan]int64 // minor units
	Duration time.Duration
}

// Price returns the amount for a paid plan. ok is false when the plan is not
// for sale or has no configured price.
func (c PlanCatalog) Price(plan Plan) (int64, bool) {
	if !plan.IsPaid() {
		return 0, false
	}
	amount, ok := c.Prices[plan]
	if !ok || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// Order is what the order phase hands back to the client widget.
type Order struct {
	OrderID     string
	Provider    string
	Amount      int64
	Currency    string
	PublicKey   string // gateway key id for client-side widgets
	CheckoutURL string // hosted checkout providers redirect here
	Purchase    Purchase
}

// VerifyResult describes the outcome of a verify call.
type VerifyResult struct {
	Payment   *PaymentRecord
	Activated bool // false when the payment id had already been reconciled
	User      *User
}

// Invoice is the printable view of a payment record.
type Invoice struct {
	Number        string
	IssuedAt      time.Time
	CustomerName  string
	CustomerEmail string
	Description   string
	Amount        int64
	Currency      string
	PaymentID     string
}

// AmountText renders the amount, or FREE for zero-amount grants.
func (i Invoice) AmountText() string {
	if i.Amount == 0 {
		return "FREE"
	}
	return fmt.Sprintf("%s %d.%02d", strings.ToUpper(i.Currency), i.Amount/100, i.Amount%100)
}

// InvoiceNumber is derived from the payment so it is stable across renders.
func InvoiceNumber(p *PaymentRecord) string {
	short := strings.ToUpper(strings.ReplaceAll(p.ID.String(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", p.CreatedAt.UTC().Format("200601"), short)
}
