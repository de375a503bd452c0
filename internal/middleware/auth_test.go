package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock UserService Implementation
// =============================================================================

// mockUserService implements the service.UserService interface for testing.
type mockUserService struct {
	AuthenticateFunc func(ctx context.Context, token string) (*domain.User, *domain.Session, error)
}

func (m *mockUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Logout(ctx context.Context, token string) error {
	return nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, token)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockUserService) DeleteExpiredSessions(ctx context.Context) error {
	return nil
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that discards output for testing.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUser(plan domain.Plan, status domain.PlanStatus) *domain.User {
	return &domain.User{
		ID:         uuid.New(),
		Email:      "asha@example.com",
		Name:       "Asha",
		Plan:       plan,
		PlanStatus: status,
	}
}

func newTestSession(userID uuid.UUID) *domain.Session {
	return &domain.Session{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// authenticatingService accepts exactly one token.
func authenticatingService(token string, user *domain.User, sess *domain.Session) *mockUserService {
	return &mockUserService{
		AuthenticateFunc: func(_ context.Context, got string) (*domain.User, *domain.Session, error) {
			if got != token {
				return nil, nil, domain.Unauthorized("test", "Invalid session")
			}
			u := *user
			return &u, sess, nil
		},
	}
}

// =============================================================================
// WithUser Tests
// =============================================================================

func TestWithUser_ValidSession(t *testing.T) {
	user := newTestUser(domain.PlanPro, domain.PlanStatusActive)
	sess := newTestSession(user.ID)
	mw := NewAuthMiddleware(authenticatingService("good", user, sess), newTestLogger(), false)

	var gotUser *domain.User
	var gotSession *domain.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = auth.GetUser(r.Context())
		gotSession = auth.GetSession(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good"})
	rec := httptest.NewRecorder()
	mw.WithUser(next).ServeHTTP(rec, req)

	require.NotNil(t, gotUser)
	assert.Equal(t, user.ID, gotUser.ID)
	require.NotNil(t, gotSession)
	assert.Equal(t, sess.ID, gotSession.ID)
	assert.Empty(t, rec.Result().Cookies(), "a valid cookie is left alone")
}

func TestWithUser_NoCookie(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserService{}, newTestLogger(), false)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, auth.GetUser(r.Context()))
	})

	rec := httptest.NewRecorder()
	mw.WithUser(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, called)
}

func TestWithUser_InvalidCookieIsCleared(t *testing.T) {
	user := newTestUser(domain.PlanFree, domain.PlanStatusActive)
	mw := NewAuthMiddleware(authenticatingService("good", user, newTestSession(user.ID)), newTestLogger(), true)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, auth.GetUser(r.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	mw.WithUser(next).ServeHTTP(rec, req)

	assert.True(t, called)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
}

// =============================================================================
// RequireUser / RequireStaff Tests
// =============================================================================

func TestRequireUser(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserService{}, newTestLogger(), false)
	user := newTestUser(domain.PlanFree, domain.PlanStatusActive)

	tests := []struct {
		name string
		ctx  func(context.Context) context.Context
		want int
	}{
		{"anonymous", func(ctx context.Context) context.Context { return ctx }, http.StatusUnauthorized},
		{"user without session", func(ctx context.Context) context.Context { return auth.SetUser(ctx, user) }, http.StatusUnauthorized},
		{"user with session", func(ctx context.Context) context.Context {
			return auth.SetSession(auth.SetUser(ctx, user), newTestSession(user.ID))
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/entitlements", nil)
			req = req.WithContext(tt.ctx(req.Context()))
			rec := httptest.NewRecorder()

			mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			}
		})
	}
}

func TestRequireStaff(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserService{}, newTestLogger(), false)

	staff := newTestUser(domain.PlanFree, domain.PlanStatusActive)
	staff.IsStaff = true
	member := newTestUser(domain.PlanProPlus, domain.PlanStatusActive)

	for _, tc := range []struct {
		user *domain.User
		want int
	}{
		{staff, http.StatusOK},
		{member, http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req = req.WithContext(auth.SetUser(req.Context(), tc.user))
		rec := httptest.NewRecorder()

		mw.RequireStaff(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, req)

		assert.Equal(t, tc.want, rec.Code)
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Stack(mark("first"), mark("second"), mark("third"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "third", "handler"}, order)
}
