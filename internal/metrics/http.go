package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// unmatchedRoute labels requests no route answered, so scanners probing
// random paths do not add label values.
const unmatchedRoute = "unmatched"

var (
	uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// Identifiers minted by the payment gateways (orders, payments,
	// checkout sessions, receipts, events).
	gatewayRefPattern = regexp.MustCompile(`^(order|pay|cs|pi|rcpt|evt)_[0-9A-Za-z_]+$`)
)

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routeLabel collapses a request path to its route shape: account,
// training and payment ids become {id}, gateway references become {ref}.
func routeLabel(path string, status int) string {
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		return unmatchedRoute
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		switch {
		case uuidPattern.MatchString(seg):
			segments[i] = "{id}"
		case gatewayRefPattern.MatchString(seg):
			segments[i] = "{ref}"
		case seg != "" && isDigits(seg):
			segments[i] = "{n}"
		}
	}
	return strings.Join(segments, "/")
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Middleware records request count, latency and in-flight gauge per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routeLabel(r.URL.Path, rw.statusCode)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
