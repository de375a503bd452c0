package billing

import (
	"context"
	"encoding/json"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayGateway creates Razorpay orders and verifies checkout callbacks
// by signature, then confirms the payment state with a fetch.
type RazorpayGateway struct {
	client *razorpay.Client
	keyID  string
	secret string
}

// NewRazorpayGateway creates a gateway using API key credentials.
func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
		secret: keySecret,
	}
}

func (g *RazorpayGateway) Name() string { return ProviderRazorpay }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes": map[string]interface{}{
			"user_id":  req.UserID.String(),
			"purchase": req.Purchase,
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay create order: response has no id")
	}

	return &Order{
		ID:        id,
		Amount:    req.Amount,
		Currency:  req.Currency,
		PublicKey: g.keyID,
	}, nil
}

// VerifyPayment checks the checkout signature over order and payment id,
// then fetches the payment to confirm it settled.
func (g *RazorpayGateway) VerifyPayment(ctx context.Context, cb Callback) (*Payment, error) {
	params := map[string]interface{}{
		"razorpay_order_id":   cb.OrderID,
		"razorpay_payment_id": cb.PaymentID,
	}
	if cb.OrderID == "" || cb.PaymentID == "" || !utils.VerifyPaymentSignature(params, cb.Signature, g.secret) {
		return nil, ErrSignatureMismatch
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Payment.Fetch(cb.PaymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch payment: %w", err)
	}
	return paymentFromRazorpay(cb, body)
}

// paymentFromRazorpay maps a fetched payment entity. Only "captured" counts
// as paid; an "authorized" payment may still be refunded.
func paymentFromRazorpay(cb Callback, body map[string]interface{}) (*Payment, error) {
	if orderID, _ := body["order_id"].(string); orderID != cb.OrderID {
		return nil, ErrOrderMismatch
	}
	if status, _ := body["status"].(string); status != "captured" {
		return nil, fmt.Errorf("%w: status %q", ErrNotPaid, status)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("razorpay encode payment: %w", err)
	}

	p := &Payment{
		Provider: ProviderRazorpay,
		ID:       cb.PaymentID,
		OrderID:  cb.OrderID,
		Amount:   int64(numberValue(body["amount"])),
		Raw:      raw,
		Metadata: map[string]string{},
	}
	p.Currency, _ = body["currency"].(string)
	if notes, ok := body["notes"].(map[string]interface{}); ok {
		for k, v := range notes {
			if s, ok := v.(string); ok {
				p.Metadata[k] = s
			}
		}
	}
	return p, nil
}

// numberValue reads a JSON number decoded into an interface{}.
func numberValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

var _ Gateway = (*RazorpayGateway)(nil)
