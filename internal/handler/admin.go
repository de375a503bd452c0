package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/service"
)

// AdminHandler serves staff-only account lookups and manual plan grants.
//
// Routes handled:
//   - GET  /admin/users?email=        -> LookupUser
//   - GET  /admin/users/{id}          -> UserDetail
//   - POST /admin/users/{id}/grant    -> Grant
type AdminHandler struct {
	users        service.UserService
	entitlements service.EntitlementService
	payments     service.PaymentService
	logger       *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	users service.UserService,
	entitlements service.EntitlementService,
	payments service.PaymentService,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:        users,
		entitlements: entitlements,
		payments:     payments,
		logger:       logger,
	}
}

// RegisterRoutes registers admin routes with the provided middleware.
func (h *AdminHandler) RegisterRoutes(
	mux *http.ServeMux,
	requireStaff func(http.Handler) http.Handler,
) {
	mux.Handle("GET /admin/users", requireStaff(http.HandlerFunc(h.LookupUser)))
	mux.Handle("GET /admin/users/{id}", requireStaff(http.HandlerFunc(h.UserDetail)))
	mux.Handle("POST /admin/users/{id}/grant", requireStaff(http.HandlerFunc(h.Grant)))
}

// LookupUser finds an account by email and returns its detail.
func (h *AdminHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("AdminHandler.LookupUser", "email is required"))
		return
	}

	user, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.writeDetail(w, r, user)
}

// UserDetail returns an account with its usage summary and payments.
func (h *AdminHandler) UserDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.writeDetail(w, r, user)
}

func (h *AdminHandler) writeDetail(w http.ResponseWriter, r *http.Request, user *domain.User) {
	summary, err := h.entitlements.Summary(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	payments, err := h.payments.ListPayments(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, newPaymentView(p))
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":         newUserView(user),
		"entitlements": newSummaryView(summary),
		"payments":     views,
	})
}

// Grant activates a paid plan without a gateway payment. The support
// reference keys the record, so repeating a grant is a no-op.
//
// Fields: plan, reference.
func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	plan, ok := domain.ParsePlan(trimmed(in, "plan"))
	if !ok || !plan.IsPaid() {
		ErrorResponse(w, r, h.logger, domain.Invalid("AdminHandler.Grant", "Select a paid plan."))
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	res, err := h.payments.Grant(r.Context(), user, plan, trimmed(in, "reference"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("manual plan grant",
		"staff_id", auth.GetUser(r.Context()).ID,
		"user_id", user.ID,
		"plan", plan,
		"activated", res.Activated,
	)
	WriteJSON(w, http.StatusOK, newVerifyView(res))
}
