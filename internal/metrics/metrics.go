package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "talentgate"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Entitlement metrics. Plan and kind are small closed sets.
var (
	GateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Entitlement gate decisions by effective plan, kind and outcome",
		},
		[]string{"plan", "kind", "outcome"},
	)

	UsageCountQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_count_queries_total",
			Help:      "Usage counting queries issued by the gate",
		},
		[]string{"kind"},
	)

	PlanExpirationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_expirations_total",
			Help:      "Plans downgraded by the expiry sweep",
		},
		[]string{"source"}, // "request" or "batch"
	)
)

// Payment metrics
var (
	GatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Payment gateway calls by provider, operation and status",
		},
		[]string{"provider", "operation", "status"},
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Payment gateway call latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	PaymentsReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_reconciled_total",
			Help:      "Verified payments by purchase kind; duplicate means the payment id was already recorded",
		},
		[]string{"kind", "result"}, // result: "new" or "duplicate"
	)

	PaymentRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_rejections_total",
			Help:      "Verify calls rejected by integrity checks",
		},
		[]string{"reason"},
	)

	FreeTrainingsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "free_trainings_granted_total",
			Help:      "One-time free training enrollments granted",
		},
	)

	InvoicesRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_rendered_total",
			Help:      "Invoice PDFs served, by cache outcome",
		},
		[]string{"cache"}, // "hit" or "miss"
	)
)

// AI metrics (aggregate totals, no user label to avoid cardinality)
var (
	AIAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_api_calls_total",
			Help:      "Total number of AI API calls",
		},
		[]string{"status"},
	)

	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"type"}, // "input" or "output"
	)
)

// Rate limiting
var (
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	RateLimitKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_tracked_keys",
			Help:      "Client keys currently tracked by a rate limiter",
		},
		[]string{"limiter"},
	)
)
