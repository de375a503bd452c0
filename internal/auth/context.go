// Package auth carries the authenticated user and login session through the
// request context. It is imported by both middleware and handlers.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/talentgate/internal/domain"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// GetUser returns the authenticated user, or nil.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest is GetUser on the request context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores the authenticated user.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetSession returns the login session the request was authenticated with.
// Pending orders and flash messages are keyed on its ID.
func GetSession(ctx context.Context) *domain.Session {
	s, ok := ctx.Value(sessionContextKey).(*domain.Session)
	if !ok {
		return nil
	}
	return s
}

// SetSession stores the login session.
func SetSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}
