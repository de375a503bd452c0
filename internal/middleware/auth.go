// Package middleware contains HTTP middleware for the talentgate service.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/handler"
	"github.com/DukeRupert/talentgate/internal/service"
	"github.com/DukeRupert/talentgate/internal/session"
)

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware resolves the session cookie to a user.
type AuthMiddleware struct {
	users    service.UserService
	logger   *slog.Logger
	isSecure bool // Secure flag on cookies (true in production)
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(users service.UserService, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		users:    users,
		logger:   logger,
		isSecure: isSecure,
	}
}

// WithUser loads the user and session from the session cookie when present
// and always calls next. An invalid cookie is cleared.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, sess, err := m.users.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			session.ClearCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.SetUser(r.Context(), user)
		ctx = auth.SetSession(ctx, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser answers 401 when WithUser found no user. It must run after
// WithUser.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil || auth.GetSession(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff answers 403 for non-staff users. It must run after RequireUser.
func (m *AuthMiddleware) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil || !user.IsStaff {
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// Stack composes middleware. The first one is the outermost.
//
//	stack := Stack(logging.Handler, authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /jobs", stack(jobsHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireStaff
)
