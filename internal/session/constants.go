// Package session provides the session cookie and the server-side session
// value keys shared by the handler, middleware and service packages.
package session

import "net/http"

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "talentgate_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge matches the default session duration (24 hours).
	CookieMaxAge = 24 * 60 * 60
)

// Server-side session value keys.
const (
	// KeyPendingOrderID holds the gateway order id issued by the order phase.
	KeyPendingOrderID = "pending_order_id"

	// KeyPendingPurchase holds the encoded domain.Purchase for that order.
	KeyPendingPurchase = "pending_purchase"

	// KeyExpiryNoticeShown is set once the expiry notice has been flashed.
	KeyExpiryNoticeShown = "expiry_notice_shown"

	// KeyFlash holds a single one-shot message for the next page or poll.
	KeyFlash = "flash"
)

// PendingOrderKeys are cleared together once a verify call settles.
var PendingOrderKeys = []string{KeyPendingOrderID, KeyPendingPurchase}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie tells the browser to drop the session cookie.
func ClearCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
