package metrics

import "time"

// GateDecision records one entitlement decision.
func GateDecision(plan, kind string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	GateDecisionsTotal.WithLabelValues(plan, kind, outcome).Inc()
}

// GatewayCall records the outcome and latency of a payment gateway call.
func GatewayCall(provider, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	GatewayCallsTotal.WithLabelValues(provider, operation, status).Inc()
	GatewayCallDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

// PaymentReconciled records a verified payment. created is false when the
// payment id had already been applied.
func PaymentReconciled(kind string, created bool) {
	result := "new"
	if !created {
		result = "duplicate"
	}
	PaymentsReconciledTotal.WithLabelValues(kind, result).Inc()
}
