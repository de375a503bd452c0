package middleware

import (
	"context"
	"net/http"
)

type holderKey struct{}

// requestHolder lets an outer middleware see the request as it was after
// inner middleware enriched its context.
type requestHolder struct {
	r *http.Request
}

func withRequestHolder(ctx context.Context, h *requestHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// Capture records the request for outer middleware. It runs innermost,
// after WithUser.
func Capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := r.Context().Value(holderKey{}).(*requestHolder); ok {
			h.r = r
		}
		next.ServeHTTP(w, r)
	})
}
