// Package csrf provides CSRF protection using the double-submit cookie pattern.
//
// A random token is set in a cookie that scripts on our origin can read. Every
// unsafe request carrying a session must echo it in the X-CSRF-Token header or
// the csrf_token form field. Other origins cannot read our cookies, so they
// cannot echo the value.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "csrf_token"

	// FormFieldName is the name of the CSRF token form field.
	FormFieldName = "csrf_token"

	// HeaderName carries the token on JSON requests.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes for the token (32 bytes = 256 bits).
	TokenLength = 32

	// CookieMaxAge matches the session lifetime (24 hours).
	CookieMaxAge = 24 * 60 * 60
)

// GenerateToken generates a cryptographically secure random token,
// base64 URL-encoded (43 characters).
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie token with the submitted token in
// constant time.
func ValidateToken(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) == 1
}

// ValidateRequest checks the cookie against the header, falling back to the
// form field.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}

	submitted := r.Header.Get(HeaderName)
	if submitted == "" {
		submitted = r.PostFormValue(FormFieldName)
	}
	return ValidateToken(cookie.Value, submitted)
}

// SetCookie sets the CSRF token cookie on the response. It is not HttpOnly
// so the client can copy it into the header.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// EnsureToken returns the request's token, issuing a new cookie when there
// is none.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	SetCookie(w, token, isSecure)
	return token, nil
}

// =============================================================================
// Middleware
// =============================================================================

// Protector enforces the double-submit check.
type Protector struct {
	sessionCookie string
	exempt        []string
	isSecure      bool
	logger        *slog.Logger
}

// NewProtector creates a Protector. Requests without sessionCookie are not
// checked since there is no ambient credential to abuse. Paths under an
// exempt prefix authenticate some other way (webhook signatures).
func NewProtector(sessionCookie string, exemptPrefixes []string, isSecure bool, logger *slog.Logger) *Protector {
	return &Protector{
		sessionCookie: sessionCookie,
		exempt:        exemptPrefixes,
		isSecure:      isSecure,
		logger:        logger,
	}
}

// Protect issues a token on safe requests and verifies it on unsafe ones.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if _, err := EnsureToken(w, r, p.isSecure); err != nil {
				p.logger.Error("failed to issue csrf token", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if p.isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := r.Cookie(p.sessionCookie); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if !ValidateRequest(r) {
			p.logger.Warn("csrf token mismatch", "path", r.URL.Path, "method", r.Method)
			http.Error(w, "Invalid or missing CSRF token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Protector) isExempt(path string) bool {
	for _, prefix := range p.exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
