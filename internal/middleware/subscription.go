package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/service"
	"github.com/DukeRupert/talentgate/internal/session"
)

// SubscriptionMiddleware runs the lazy expiry sweep on every authenticated
// request, before any handler consults the entitlement gate.
type SubscriptionMiddleware struct {
	expiry   service.ExpiryService
	sessions service.SessionValues
	logger   *slog.Logger
}

// NewSubscriptionMiddleware creates a new SubscriptionMiddleware.
func NewSubscriptionMiddleware(expiry service.ExpiryService, sessions service.SessionValues, logger *slog.Logger) *SubscriptionMiddleware {
	return &SubscriptionMiddleware{
		expiry:   expiry,
		sessions: sessions,
		logger:   logger,
	}
}

// SweepExpired downgrades the context user when their paid plan has lapsed
// and flashes the expiry notice once per login session. It must run after
// WithUser. Staff accounts pass through untouched.
//
// A failed sweep does not fail the request: the user is downgraded in memory
// so the gate still evaluates them as Free, and the next request retries.
func (m *SubscriptionMiddleware) SweepExpired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user := auth.GetUser(ctx)
		if user == nil || user.IsStaff {
			next.ServeHTTP(w, r)
			return
		}

		wasPaid := user.Plan.IsPaid() && user.PlanStatus != domain.PlanStatusExpired

		if _, err := m.expiry.Sweep(ctx, user); err != nil {
			m.logger.Error("expiry sweep failed", "user_id", user.ID, "error", err)
			user.Expire()
		}

		if wasPaid && user.PlanStatus == domain.PlanStatusExpired {
			if sess := auth.GetSession(ctx); sess != nil {
				m.noticeOnce(r, sess)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// noticeOnce flashes the expiry notice unless this session already saw it.
func (m *SubscriptionMiddleware) noticeOnce(r *http.Request, sess *domain.Session) {
	ctx := r.Context()

	_, shown, err := m.sessions.Get(ctx, sess.ID, session.KeyExpiryNoticeShown)
	if err != nil {
		m.logger.Warn("failed to read expiry notice flag", "session_id", sess.ID, "error", err)
		return
	}
	if shown {
		return
	}
	if err := m.sessions.Flash(ctx, sess.ID, domain.ExpiryNotice); err != nil {
		m.logger.Warn("failed to flash expiry notice", "session_id", sess.ID, "error", err)
		return
	}
	if err := m.sessions.Set(ctx, sess.ID, session.KeyExpiryNoticeShown, "1"); err != nil {
		m.logger.Warn("failed to store expiry notice flag", "session_id", sess.ID, "error", err)
	}
}

var _ func(http.Handler) http.Handler = (&SubscriptionMiddleware{}).SweepExpired
