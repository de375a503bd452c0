package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// MetricsAuthMiddleware provides basic authentication for the metrics endpoint.
type MetricsAuthMiddleware struct {
	userHash [32]byte
	passHash [32]byte
	enabled  bool
	logger   *slog.Logger
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
// If both username and password are empty, authentication is disabled and a
// warning is logged once.
func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	m := &MetricsAuthMiddleware{
		userHash: sha256.Sum256([]byte(username)),
		passHash: sha256.Sum256([]byte(password)),
		enabled:  username != "" || password != "",
		logger:   logger,
	}
	if !m.enabled {
		logger.Warn("metrics endpoint is unauthenticated; set METRICS_USERNAME and METRICS_PASSWORD")
	}
	return m
}

// Handler returns middleware that requires basic authentication.
//
// Credentials are compared as SHA-256 digests so the comparison is constant
// time regardless of input length.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			m.unauthorized(w)
			return
		}

		u := sha256.Sum256([]byte(user))
		p := sha256.Sum256([]byte(pass))
		userMatch := subtle.ConstantTimeCompare(u[:], m.userHash[:]) == 1
		passMatch := subtle.ConstantTimeCompare(p[:], m.passHash[:]) == 1

		if !userMatch || !passMatch {
			m.logger.Warn("metrics authentication failed", "ip", getClientIP(r))
			m.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// unauthorized sends a 401 response with WWW-Authenticate header.
func (m *MetricsAuthMiddleware) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
