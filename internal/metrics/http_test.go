package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/admin/users/2b1f7c2e-8a5d-4d3e-9f11-0c6a2f4b9e10/grant", http.StatusOK, "/admin/users/{id}/grant"},
		{"/billing/payments/2B1F7C2E-8A5D-4D3E-9F11-0C6A2F4B9E10/invoice", http.StatusOK, "/billing/payments/{id}/invoice"},
		{"/billing/orders/order_mock_1a2b3c4d5e6f7a8b", http.StatusOK, "/billing/orders/{ref}"},
		{"/billing/payments/pay_Nx81kq2", http.StatusConflict, "/billing/payments/{ref}"},
		{"/jobs/42/apply", http.StatusOK, "/jobs/{n}/apply"},
		{"/billing/verify", http.StatusBadRequest, "/billing/verify"},
		{"/wp-login.php", http.StatusNotFound, unmatchedRoute},
		{"/billing/verify", http.StatusMethodNotAllowed, unmatchedRoute},
		{"/", http.StatusOK, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, routeLabel(tt.path, tt.status))
		})
	}
}

func TestMiddleware_RecordsRoute(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := Middleware(next)

	granted := HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/admin/users/{id}/grant", "202")
	unmatched := HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	grantedBefore := testutil.ToFloat64(granted)
	unmatchedBefore := testutil.ToFloat64(unmatched)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/users/2b1f7c2e-8a5d-4d3e-9f11-0c6a2f4b9e10/grant", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, grantedBefore+1, testutil.ToFloat64(granted))
	assert.Equal(t, unmatchedBefore+1, testutil.ToFloat64(unmatched))
	assert.Zero(t, testutil.ToFloat64(HTTPRequestsInFlight))
}

func TestMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	called := false
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, called)
	assert.Equal(t, before, testutil.ToFloat64(counter))
}
