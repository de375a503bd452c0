// Package handler contains HTTP handlers for the talentgate service.
//
// This file implements the two-phase payment flow and invoice downloads.
//
// Routes handled:
//   - POST /billing/orders                -> CreateOrder
//   - POST /billing/verify                -> Verify
//   - GET  /billing/stripe/return         -> StripeReturn
//   - GET  /billing/payments              -> ListPayments
//   - GET  /billing/payments/{id}/invoice -> Invoice
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/billing"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/service"
	"github.com/google/uuid"
)

// BillingHandler handles order creation, payment verification and invoices.
type BillingHandler struct {
	payments service.PaymentService
	invoices service.InvoiceService
	sessions service.SessionValues
	// returnURL is where browser-facing payment flows land afterwards.
	returnURL string
	logger    *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(
	payments service.PaymentService,
	invoices service.InvoiceService,
	sessions service.SessionValues,
	returnURL string,
	logger *slog.Logger,
) *BillingHandler {
	if returnURL == "" {
		returnURL = "/"
	}
	return &BillingHandler{
		payments:  payments,
		invoices:  invoices,
		sessions:  sessions,
		returnURL: returnURL,
		logger:    logger,
	}
}

// RegisterRoutes registers billing routes. protect is the authenticated
// middleware chain; limitVerify throttles verification attempts.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, protect, limitVerify func(http.Handler) http.Handler) {
	mux.Handle("POST /billing/orders", protect(http.HandlerFunc(h.CreateOrder)))
	mux.Handle("POST /billing/verify", protect(limitVerify(http.HandlerFunc(h.Verify))))
	mux.Handle("GET /billing/stripe/return", protect(limitVerify(http.HandlerFunc(h.StripeReturn))))
	mux.Handle("GET /billing/payments", protect(http.HandlerFunc(h.ListPayments)))
	mux.Handle("GET /billing/payments/{id}/invoice", protect(http.HandlerFunc(h.Invoice)))
}

// =============================================================================
// Order phase
// =============================================================================

// CreateOrder opens a gateway order for a plan or a training and binds it to
// the caller's session.
//
// Fields: plan (pro|pro_plus) or training_id.
func (h *BillingHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	sess := auth.GetSession(r.Context())

	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	purchase, err := purchaseFromInput(trimmed(in, "plan"), trimmed(in, "training_id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	order, err := h.payments.CreateOrder(r.Context(), user, sess.ID, purchase)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, newOrderView(order))
}

// purchaseFromInput accepts exactly one of plan or trainingID.
func purchaseFromInput(plan, trainingID string) (domain.Purchase, error) {
	const op = "BillingHandler.CreateOrder"

	switch {
	case plan != "" && trainingID != "":
		return domain.Purchase{}, domain.Invalid(op, "Choose either a plan or a training, not both.")
	case trainingID != "":
		id, err := uuid.Parse(trainingID)
		if err != nil {
			return domain.Purchase{}, domain.Invalid(op, "Invalid training id.")
		}
		return domain.Purchase{Kind: domain.PurchaseTraining, TrainingID: id}, nil
	case plan != "":
		p, ok := domain.ParsePlan(plan)
		if !ok || !p.IsPaid() {
			return domain.Purchase{}, domain.Invalid(op, "Unknown plan.")
		}
		return domain.Purchase{Kind: domain.PurchasePlan, Plan: p}, nil
	default:
		return domain.Purchase{}, domain.Invalid(op, "A plan or training is required.")
	}
}

// =============================================================================
// Verify phase
// =============================================================================

// Verify reconciles a widget checkout callback.
//
// Fields: order_id, payment_id, signature.
func (h *BillingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.verify(w, r, billing.Callback{
		OrderID:   trimmed(in, "order_id"),
		PaymentID: trimmed(in, "payment_id"),
		Signature: trimmed(in, "signature"),
	})
}

// StripeReturn is the hosted checkout success URL. The checkout session id
// is the order id; the gateway lookup does the verification.
func (h *BillingHandler) StripeReturn(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, billing.Callback{OrderID: r.URL.Query().Get("session_id")})
}

func (h *BillingHandler) verify(w http.ResponseWriter, r *http.Request, cb billing.Callback) {
	ctx := r.Context()
	user := auth.GetUser(ctx)
	sess := auth.GetSession(ctx)
	browser := wantsHTML(r) || r.Method == http.MethodGet

	result, err := h.payments.Verify(ctx, user, sess.ID, cb)
	if err != nil {
		if !browser {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		logError(h.logger, r, err, domain.ErrorCode(err), domain.ErrorOp(err), ErrorCodeToHTTPStatus(domain.ErrorCode(err)))
		h.flashAndRedirect(w, r, sess.ID, domain.ErrorMessage(err))
		return
	}

	if browser {
		h.flashAndRedirect(w, r, sess.ID, successMessage(result))
		return
	}
	WriteJSON(w, http.StatusOK, newVerifyView(result))
}

func (h *BillingHandler) flashAndRedirect(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, message string) {
	if err := h.sessions.Flash(r.Context(), sessionID, message); err != nil {
		h.logger.Warn("failed to store flash message", "error", err)
	}
	http.Redirect(w, r, h.returnURL, http.StatusSeeOther)
}

func successMessage(result *domain.VerifyResult) string {
	if result.Payment.Kind == domain.PurchaseTraining {
		return "Payment successful! You are now enrolled."
	}
	return fmt.Sprintf("Payment successful! Your %s plan is now active.", result.Payment.Plan.DisplayName())
}

// =============================================================================
// Payments and invoices
// =============================================================================

// ListPayments returns the caller's payment history, newest first.
func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	records, err := h.payments.ListPayments(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	views := make([]paymentView, 0, len(records))
	for _, p := range records {
		views = append(views, newPaymentView(p))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"payments": views})
}

// Invoice streams the rendered invoice for one of the caller's payments.
func (h *BillingHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	doc, contentType, err := h.invoices.Document(r.Context(), user, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "invoice-"+id.String()+".pdf"))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
