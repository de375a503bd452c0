// Package billing adapts payment gateways to the two-phase order/verify flow.
//
// A gateway issues an order for a fixed amount, and later confirms that a
// client-reported payment really settled that order. Everything else
// (session binding, idempotent recording, plan activation) lives in the
// payment service.
package billing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// Provider names, also stored on payment records.
const (
	ProviderMock     = "mock"
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"

	// Records not settled by a gateway.
	ProviderManual   = "manual"
	ProviderInternal = "internal"
)

// Sentinel errors. Each one means the callback must not be trusted; any
// other error from a gateway is a transport failure the user may retry.
var (
	ErrSignatureMismatch = errors.New("billing: signature mismatch")
	ErrOrderMismatch     = errors.New("billing: payment does not belong to order")
	ErrNotPaid           = errors.New("billing: payment not completed")
)

// IsRejection reports whether err is a definitive verification failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrOrderMismatch) ||
		errors.Is(err, ErrNotPaid)
}

// OrderRequest describes what the user is about to pay for.
type OrderRequest struct {
	Amount      int64 // minor units
	Currency    string
	Receipt     string // merchant reference, unique per order attempt
	UserID      uuid.UUID
	Email       string
	Description string
	// Purchase is the encoded purchase, echoed back in gateway metadata.
	Purchase string
}

// Order is the gateway's handle for one payment attempt.
type Order struct {
	ID          string
	Amount      int64
	Currency    string
	PublicKey   string // key id for client-side checkout widgets
	CheckoutURL string // hosted checkout page, when the gateway has one
}

// Callback is what the client reports after completing checkout. Hosted
// checkout gateways leave PaymentID and Signature empty and are verified by
// looking the order up.
type Callback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Payment is a settled transaction confirmed by the gateway.
type Payment struct {
	Provider string
	ID       string // gateway payment id, the idempotency key
	OrderID  string
	Amount   int64
	Currency string
	// Metadata carries values attached at order time (user, purchase) when
	// the gateway supports it.
	Metadata map[string]string
	Raw      json.RawMessage
}

// Gateway is implemented by each payment provider.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// VerifyPayment returns one of the sentinel errors when the callback is
	// not authentic or the payment did not settle.
	VerifyPayment(ctx context.Context, cb Callback) (*Payment, error)
}
