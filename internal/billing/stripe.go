package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// EventCheckoutCompleted is the only webhook event that settles a payment.
const EventCheckoutCompleted = "checkout.session.completed"

// StripeGateway maps the order phase onto a one-off Checkout Session and
// the verify phase onto a session lookup. The checkout session id plays the
// role of the order id; the PaymentIntent id is the payment id.
type StripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeGateway creates a Stripe gateway.
//
// successURL receives ?session_id={CHECKOUT_SESSION_ID} so the return
// handler can run the verify phase.
func NewStripeGateway(secretKey, webhookSecret, successURL, cancelURL string) *StripeGateway {
	stripe.Key = secretKey

	return &StripeGateway{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

func (g *StripeGateway) Name() string { return ProviderStripe }

func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(g.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.UserID.String()),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID.String())
	params.AddMetadata("purchase", req.Purchase)
	params.AddMetadata("receipt", req.Receipt)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &Order{
		ID:          sess.ID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CheckoutURL: sess.URL,
	}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, cb Callback) (*Payment, error) {
	if cb.OrderID == "" {
		return nil, ErrOrderMismatch
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := checkoutsession.Get(cb.OrderID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get checkout session: %w", err)
	}

	return PaymentFromCheckoutSession(sess)
}

// ConstructEvent verifies a webhook signature header and decodes the event.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	return event, nil
}

// PaymentFromEvent extracts the settled payment from a
// checkout.session.completed event.
func PaymentFromEvent(event stripe.Event) (*Payment, error) {
	if string(event.Type) != EventCheckoutCompleted {
		return nil, fmt.Errorf("stripe event %s does not settle a payment", event.Type)
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("stripe decode checkout session: %w", err)
	}
	return PaymentFromCheckoutSession(&sess)
}

// PaymentFromCheckoutSession converts a paid checkout session. Sessions that
// are not paid yield ErrNotPaid.
func PaymentFromCheckoutSession(sess *stripe.CheckoutSession) (*Payment, error) {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, fmt.Errorf("%w: checkout session %s is %s", ErrNotPaid, sess.ID, sess.PaymentStatus)
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no payment intent", ErrNotPaid, sess.ID)
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("stripe encode checkout session: %w", err)
	}

	meta := make(map[string]string, len(sess.Metadata)+1)
	for k, v := range sess.Metadata {
		meta[k] = v
	}
	if sess.ClientReferenceID != "" {
		meta["client_reference_id"] = sess.ClientReferenceID
	}

	return &Payment{
		Provider: ProviderStripe,
		ID:       sess.PaymentIntent.ID,
		OrderID:  sess.ID,
		Amount:   sess.AmountTotal,
		Currency: strings.ToUpper(string(sess.Currency)),
		Metadata: meta,
		Raw:      raw,
	}, nil
}

var _ Gateway = (*StripeGateway)(nil)
