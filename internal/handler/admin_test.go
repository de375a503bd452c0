package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdminMux(users *mockUserService, payments *mockPaymentService) *http.ServeMux {
	ent := &mockEntitlementService{
		SummaryFunc: func(_ context.Context, u *domain.User) (*domain.UsageSummary, error) {
			return &domain.UsageSummary{Plan: u.Plan, PlanStatus: u.PlanStatus, EffectivePlan: u.EffectivePlan()}, nil
		},
	}
	mux := http.NewServeMux()
	NewAdminHandler(users, ent, payments, discardLogger()).RegisterRoutes(mux, passthrough)
	return mux
}

func staffUser() *domain.User {
	u := testUser(domain.PlanFree)
	u.IsStaff = true
	return u
}

func TestAdminLookupUser(t *testing.T) {
	target := testUser(domain.PlanPro)
	users := &mockUserService{
		GetByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			if email == target.Email {
				return target, nil
			}
			return nil, domain.NotFound("UserService.GetByEmail", "user", email)
		},
	}
	payments := &mockPaymentService{
		ListPaymentsFunc: func(context.Context, *domain.User) ([]*domain.PaymentRecord, error) {
			return []*domain.PaymentRecord{{ID: uuid.New(), Kind: domain.PurchasePlan, Plan: domain.PlanPro, Amount: 49900, Currency: "INR"}}, nil
		},
	}
	mux := newTestAdminMux(users, payments)

	t.Run("found", func(t *testing.T) {
		rec := serveAs(mux, httptest.NewRequest(http.MethodGet, "/admin/users?email="+target.Email, nil), staffUser())

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			User     userView      `json:"user"`
			Payments []paymentView `json:"payments"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, target.ID, body.User.ID)
		require.Len(t, body.Payments, 1)
		assert.Equal(t, int64(49900), body.Payments[0].Amount)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := serveAs(mux, httptest.NewRequest(http.MethodGet, "/admin/users?email=nobody@example.com", nil), staffUser())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing email", func(t *testing.T) {
		rec := serveAs(mux, httptest.NewRequest(http.MethodGet, "/admin/users", nil), staffUser())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminGrant(t *testing.T) {
	target := testUser(domain.PlanFree)
	var gotPlan domain.Plan
	var gotRef string
	users := &mockUserService{
		GetByIDFunc: func(context.Context, uuid.UUID) (*domain.User, error) { return target, nil },
	}
	payments := &mockPaymentService{
		GrantFunc: func(_ context.Context, u *domain.User, plan domain.Plan, ref string) (*domain.VerifyResult, error) {
			gotPlan, gotRef = plan, ref
			return &domain.VerifyResult{
				Activated: true,
				Payment:   &domain.PaymentRecord{ID: uuid.New(), GatewayPaymentID: "manual:" + ref, Plan: plan},
			}, nil
		},
	}
	mux := newTestAdminMux(users, payments)

	rec := serveAs(mux, jsonRequest(http.MethodPost, "/admin/users/"+target.ID.String()+"/grant",
		`{"plan":"pro_plus","reference":" TKT-42 "}`), staffUser())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PlanProPlus, gotPlan)
	assert.Equal(t, "TKT-42", gotRef)

	var body verifyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Activated)
	assert.Equal(t, "manual:TKT-42", body.Payment.PaymentID)
}

func TestAdminGrant_RejectsFreePlan(t *testing.T) {
	called := false
	payments := &mockPaymentService{
		GrantFunc: func(context.Context, *domain.User, domain.Plan, string) (*domain.VerifyResult, error) {
			called = true
			return nil, nil
		},
	}
	mux := newTestAdminMux(&mockUserService{}, payments)

	rec := serveAs(mux, jsonRequest(http.MethodPost, "/admin/users/"+uuid.NewString()+"/grant",
		`{"plan":"free","reference":"TKT-1"}`), staffUser())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}
