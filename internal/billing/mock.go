package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway signs callbacks with HMAC-SHA256 over "order_id|payment_id",
// the same construction Razorpay uses, without any network calls.
// It is used in development and tests.
type MockGateway struct {
	secret string

	mu     sync.Mutex
	orders map[string]OrderRequest

	// CreateOrderCalls and VerifyCalls count invocations for tests.
	CreateOrderCalls int
	VerifyCalls      int
	// Err, when set, is returned by every call to simulate an outage.
	Err error
}

// NewMockGateway creates a MockGateway with the given signing secret.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{
		secret: secret,
		orders: make(map[string]OrderRequest),
	}
}

func (g *MockGateway) Name() string { return ProviderMock }

func (g *MockGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.CreateOrderCalls++
	if g.Err != nil {
		return nil, g.Err
	}

	id := "order_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	g.orders[id] = req
	return &Order{
		ID:        id,
		Amount:    req.Amount,
		Currency:  req.Currency,
		PublicKey: "mock_key",
	}, nil
}

func (g *MockGateway) VerifyPayment(_ context.Context, cb Callback) (*Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.VerifyCalls++
	if g.Err != nil {
		return nil, g.Err
	}

	if !hmac.Equal([]byte(g.Sign(cb.OrderID, cb.PaymentID)), []byte(cb.Signature)) {
		return nil, ErrSignatureMismatch
	}

	p := &Payment{Provider: ProviderMock, ID: cb.PaymentID, OrderID: cb.OrderID}
	if req, ok := g.orders[cb.OrderID]; ok {
		p.Amount = req.Amount
		p.Currency = req.Currency
		p.Metadata = map[string]string{"user_id": req.UserID.String(), "purchase": req.Purchase}
	}
	raw, err := json.Marshal(map[string]string{"order_id": cb.OrderID, "payment_id": cb.PaymentID})
	if err != nil {
		return nil, fmt.Errorf("mock verify: %w", err)
	}
	p.Raw = raw
	return p, nil
}

// Sign produces the signature a client would receive for a payment.
func (g *MockGateway) Sign(orderID, paymentID string) string {
	return hmacSignature(g.secret, orderID, paymentID)
}

func hmacSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Gateway = (*MockGateway)(nil)
