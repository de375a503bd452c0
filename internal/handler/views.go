package handler

import (
	"time"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/google/uuid"
)

// JSON views. Domain types carry no json tags; these are the wire shapes.

type userView struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Plan          string     `json:"plan"`
	PlanStatus    string     `json:"plan_status"`
	EffectivePlan string     `json:"effective_plan"`
	PlanEnd       *time.Time `json:"plan_end,omitempty"`
	IsStaff       bool       `json:"is_staff,omitempty"`
}

func newUserView(u *domain.User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Plan:          string(u.Plan),
		PlanStatus:    string(u.PlanStatus),
		EffectivePlan: string(u.EffectivePlan()),
		PlanEnd:       u.PlanEnd,
		IsStaff:       u.IsStaff,
	}
}

type decisionView struct {
	Kind      string     `json:"kind"`
	Label     string     `json:"label"`
	Allowed   bool       `json:"allowed"`
	Unlimited bool       `json:"unlimited"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	ResetsAt  *time.Time `json:"resets_at,omitempty"`
}

func newDecisionView(d domain.Decision) decisionView {
	return decisionView{
		Kind:      string(d.Kind),
		Label:     d.Kind.Label(),
		Allowed:   d.Allowed,
		Unlimited: d.Unlimited,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: d.Remaining(),
		ResetsAt:  d.ResetsAt,
	}
}

type summaryView struct {
	Plan          string         `json:"plan"`
	PlanStatus    string         `json:"plan_status"`
	EffectivePlan string         `json:"effective_plan"`
	PlanEnd       *time.Time     `json:"plan_end,omitempty"`
	Usage         []decisionView `json:"usage"`
}

func newSummaryView(s *domain.UsageSummary) summaryView {
	usage := make([]decisionView, 0, len(s.Decisions))
	for _, d := range s.Decisions {
		usage = append(usage, newDecisionView(d))
	}
	return summaryView{
		Plan:          string(s.Plan),
		PlanStatus:    string(s.PlanStatus),
		EffectivePlan: string(s.EffectivePlan),
		PlanEnd:       s.PlanEnd,
		Usage:         usage,
	}
}

type orderView struct {
	OrderID     string `json:"order_id"`
	Provider    string `json:"provider"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	PublicKey   string `json:"key_id,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	Purchase    string `json:"purchase"`
}

func newOrderView(o *domain.Order) orderView {
	return orderView{
		OrderID:     o.OrderID,
		Provider:    o.Provider,
		Amount:      o.Amount,
		Currency:    o.Currency,
		PublicKey:   o.PublicKey,
		CheckoutURL: o.CheckoutURL,
		Purchase:    o.Purchase.Encode(),
	}
}

type paymentView struct {
	ID         uuid.UUID  `json:"id"`
	PaymentID  string     `json:"payment_id"`
	OrderID    string     `json:"order_id,omitempty"`
	Provider   string     `json:"provider"`
	Kind       string     `json:"kind"`
	Plan       string     `json:"plan,omitempty"`
	TrainingID *uuid.UUID `json:"training_id,omitempty"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newPaymentView(p *domain.PaymentRecord) paymentView {
	return paymentView{
		ID:         p.ID,
		PaymentID:  p.GatewayPaymentID,
		OrderID:    p.GatewayOrderID,
		Provider:   p.Provider,
		Kind:       string(p.Kind),
		Plan:       string(p.Plan),
		TrainingID: p.TrainingID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
	}
}

type verifyView struct {
	Activated bool        `json:"activated"`
	Payment   paymentView `json:"payment"`
	User      *userView   `json:"user,omitempty"`
}

func newVerifyView(res *domain.VerifyResult) verifyView {
	v := verifyView{
		Activated: res.Activated,
		Payment:   newPaymentView(res.Payment),
	}
	if res.User != nil {
		uv := newUserView(res.User)
		v.User = &uv
	}
	return v
}

type jobView struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Company    string    `json:"company"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

type notificationView struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
