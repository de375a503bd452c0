package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/billing"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/DukeRupert/talentgate/internal/session"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// =============================================================================
// Service stubs
// =============================================================================

var errNotStubbed = errors.New("not stubbed")

type mockUserService struct {
	RegisterFunc   func(ctx context.Context, params domain.RegisterParams) (*domain.User, error)
	LoginFunc      func(ctx context.Context, email, password string) (*domain.LoginResult, error)
	LogoutFunc     func(ctx context.Context, token string) error
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
}

func (m *mockUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, errNotStubbed
}

func (m *mockUserService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, errNotStubbed
}

func (m *mockUserService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, errNotStubbed
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, errNotStubbed
}

func (m *mockUserService) Authenticate(context.Context, string) (*domain.User, *domain.Session, error) {
	return nil, nil, errNotStubbed
}

func (m *mockUserService) DeleteExpiredSessions(context.Context) error {
	return nil
}

type mockPaymentService struct {
	CreateOrderFunc  func(ctx context.Context, user *domain.User, sessionID uuid.UUID, purchase domain.Purchase) (*domain.Order, error)
	VerifyFunc       func(ctx context.Context, user *domain.User, sessionID uuid.UUID, cb billing.Callback) (*domain.VerifyResult, error)
	ApplyGatewayFunc func(ctx context.Context, payment *billing.Payment) (*domain.VerifyResult, error)
	ListPaymentsFunc func(ctx context.Context, user *domain.User) ([]*domain.PaymentRecord, error)
	GrantFunc        func(ctx context.Context, user *domain.User, plan domain.Plan, reference string) (*domain.VerifyResult, error)
}

func (m *mockPaymentService) CreateOrder(ctx context.Context, user *domain.User, sessionID uuid.UUID, purchase domain.Purchase) (*domain.Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, user, sessionID, purchase)
	}
	return nil, errNotStubbed
}

func (m *mockPaymentService) Verify(ctx context.Context, user *domain.User, sessionID uuid.UUID, cb billing.Callback) (*domain.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, user, sessionID, cb)
	}
	return nil, errNotStubbed
}

func (m *mockPaymentService) ApplyGatewayPayment(ctx context.Context, payment *billing.Payment) (*domain.VerifyResult, error) {
	if m.ApplyGatewayFunc != nil {
		return m.ApplyGatewayFunc(ctx, payment)
	}
	return nil, errNotStubbed
}

func (m *mockPaymentService) Grant(ctx context.Context, user *domain.User, plan domain.Plan, reference string) (*domain.VerifyResult, error) {
	if m.GrantFunc != nil {
		return m.GrantFunc(ctx, user, plan, reference)
	}
	return nil, errNotStubbed
}

func (m *mockPaymentService) ListPayments(ctx context.Context, user *domain.User) ([]*domain.PaymentRecord, error) {
	if m.ListPaymentsFunc != nil {
		return m.ListPaymentsFunc(ctx, user)
	}
	return nil, errNotStubbed
}

func (m *mockPaymentService) GetPayment(context.Context, *domain.User, uuid.UUID) (*domain.PaymentRecord, error) {
	return nil, errNotStubbed
}

type mockInvoiceService struct {
	DocumentFunc func(ctx context.Context, user *domain.User, paymentID uuid.UUID) ([]byte, string, error)
}

func (m *mockInvoiceService) Invoice(context.Context, *domain.User, uuid.UUID) (*domain.Invoice, error) {
	return nil, errNotStubbed
}

func (m *mockInvoiceService) Document(ctx context.Context, user *domain.User, paymentID uuid.UUID) ([]byte, string, error) {
	if m.DocumentFunc != nil {
		return m.DocumentFunc(ctx, user, paymentID)
	}
	return nil, "", errNotStubbed
}

type mockJobService struct {
	ListFunc  func(ctx context.Context, user *domain.User) ([]*domain.Job, error)
	ApplyFunc func(ctx context.Context, user *domain.User, jobID uuid.UUID) (*domain.ApplyResult, error)
}

func (m *mockJobService) List(ctx context.Context, user *domain.User) ([]*domain.Job, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, user)
	}
	return nil, errNotStubbed
}

func (m *mockJobService) Apply(ctx context.Context, user *domain.User, jobID uuid.UUID) (*domain.ApplyResult, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, user, jobID)
	}
	return nil, errNotStubbed
}

type mockTrainingService struct {
	EnrollFunc func(ctx context.Context, user *domain.User, trainingID uuid.UUID) (*domain.EnrollmentResult, error)
}

func (m *mockTrainingService) Enroll(ctx context.Context, user *domain.User, trainingID uuid.UUID) (*domain.EnrollmentResult, error) {
	if m.EnrollFunc != nil {
		return m.EnrollFunc(ctx, user, trainingID)
	}
	return nil, errNotStubbed
}

type mockConsultationService struct {
	RequestFunc func(ctx context.Context, user *domain.User, topic string) (*domain.ConsultationSession, error)
}

func (m *mockConsultationService) Request(ctx context.Context, user *domain.User, topic string) (*domain.ConsultationSession, error) {
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, user, topic)
	}
	return nil, errNotStubbed
}

type mockAssistantService struct {
	AskFunc func(ctx context.Context, user *domain.User, page, message string) (*domain.AssistantReply, error)
}

func (m *mockAssistantService) Ask(ctx context.Context, user *domain.User, page, message string) (*domain.AssistantReply, error) {
	if m.AskFunc != nil {
		return m.AskFunc(ctx, user, page, message)
	}
	return nil, errNotStubbed
}

type mockResumeService struct {
	ReviewFunc func(ctx context.Context, user *domain.User, level domain.ResumeReviewLevel, resume string) (*domain.ResumeReview, error)
}

func (m *mockResumeService) Review(ctx context.Context, user *domain.User, level domain.ResumeReviewLevel, resume string) (*domain.ResumeReview, error) {
	if m.ReviewFunc != nil {
		return m.ReviewFunc(ctx, user, level, resume)
	}
	return nil, errNotStubbed
}

type mockEntitlementService struct {
	SummaryFunc func(ctx context.Context, user *domain.User) (*domain.UsageSummary, error)
}

func (m *mockEntitlementService) Check(context.Context, *domain.User, domain.ResourceKind) (domain.Decision, error) {
	return domain.Decision{}, errNotStubbed
}

func (m *mockEntitlementService) CheckWith(context.Context, repository.Querier, *domain.User, domain.ResourceKind) (domain.Decision, error) {
	return domain.Decision{}, errNotStubbed
}

func (m *mockEntitlementService) Summary(ctx context.Context, user *domain.User) (*domain.UsageSummary, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, user)
	}
	return nil, errNotStubbed
}

type mockNotificationService struct {
	ListUnreadFunc  func(ctx context.Context, user *domain.User) ([]*domain.Notification, error)
	MarkAllReadFunc func(ctx context.Context, user *domain.User) error
}

func (m *mockNotificationService) Notify(context.Context, uuid.UUID, domain.NotificationKind, string, map[string]any) error {
	return nil
}

func (m *mockNotificationService) AlertAdmins(context.Context, domain.NotificationKind, string, map[string]any) error {
	return nil
}

func (m *mockNotificationService) ListUnread(ctx context.Context, user *domain.User) ([]*domain.Notification, error) {
	if m.ListUnreadFunc != nil {
		return m.ListUnreadFunc(ctx, user)
	}
	return nil, nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, user *domain.User) error {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, user)
	}
	return nil
}

// memorySessions is an in-memory service.SessionValues.
type memorySessions struct {
	mu     sync.Mutex
	values map[uuid.UUID]map[string]string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{values: make(map[uuid.UUID]map[string]string)}
}

func (m *memorySessions) Get(_ context.Context, id uuid.UUID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[id][key]
	return v, ok, nil
}

func (m *memorySessions) Set(_ context.Context, id uuid.UUID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[id] == nil {
		m.values[id] = make(map[string]string)
	}
	m.values[id][key] = value
	return nil
}

func (m *memorySessions) Delete(_ context.Context, id uuid.UUID, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values[id], k)
	}
	return nil
}

func (m *memorySessions) Flash(ctx context.Context, id uuid.UUID, message string) error {
	return m.Set(ctx, id, session.KeyFlash, message)
}

func (m *memorySessions) PopFlash(ctx context.Context, id uuid.UUID) (string, error) {
	v, _, _ := m.Get(ctx, id, session.KeyFlash)
	return v, m.Delete(ctx, id, session.KeyFlash)
}

type stubVerifier struct {
	event stripe.Event
	err   error
}

func (s stubVerifier) ConstructEvent([]byte, string) (stripe.Event, error) {
	return s.event, s.err
}

// =============================================================================
// Request helpers
// =============================================================================

func testUser(plan domain.Plan) *domain.User {
	return &domain.User{
		ID:         uuid.New(),
		Email:      "ravi@example.com",
		Name:       "Ravi",
		Plan:       plan,
		PlanStatus: domain.PlanStatusActive,
	}
}

func testSession(userID uuid.UUID) *domain.Session {
	return &domain.Session{ID: uuid.New(), UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}
}

// signedIn attaches user and a fresh session to req, as WithUser would.
func signedIn(req *http.Request, user *domain.User) (*http.Request, *domain.Session) {
	sess := testSession(user.ID)
	ctx := auth.SetSession(auth.SetUser(req.Context(), user), sess)
	return req.WithContext(ctx), sess
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

// passthrough stands in for the auth chain and rate limiters.
func passthrough(next http.Handler) http.Handler { return next }
