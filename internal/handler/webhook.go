// Package handler contains HTTP handlers for the talentgate service.
//
// This file implements the Stripe webhook handler.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/talentgate/internal/billing"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/service"
	"github.com/stripe/stripe-go/v79"
)

// EventVerifier checks a webhook signature and decodes the event.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	verifier EventVerifier
	payments service.PaymentService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// verifier may be nil when Stripe is not the configured gateway.
func NewWebhookHandler(verifier EventVerifier, payments service.PaymentService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		payments: payments,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC — no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook records settled checkout sessions. It shares the
// payment id idempotency key with the verify phase, so whichever path runs
// second is a no-op.
//
// A 5xx asks Stripe to retry; events that can never succeed are acknowledged.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		h.logger.Warn("stripe webhook received but stripe is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.verifier.ConstructEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	if string(event.Type) != billing.EventCheckoutCompleted {
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	payment, err := billing.PaymentFromEvent(event)
	if err != nil {
		// Unpaid sessions settle later through async payment events.
		h.logger.Info("checkout session not settled", "event_id", event.ID, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	result, err := h.payments.ApplyGatewayPayment(r.Context(), payment)
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.EINVALID, domain.EINTEGRITY, domain.ENOTFOUND, domain.ECONFLICT:
			h.logger.Warn("webhook payment rejected", "event_id", event.ID, "payment_id", payment.ID, "error", err)
			w.WriteHeader(http.StatusOK)
		default:
			h.logger.Error("webhook payment failed", "event_id", event.ID, "payment_id", payment.ID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("webhook payment applied",
		"event_id", event.ID,
		"payment_id", payment.ID,
		"activated", result.Activated,
	)
	w.WriteHeader(http.StatusOK)
}
