// Package metrics registers the service's Prometheus collectors. Everything
// is registered on the default registry and exposed via promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts first-factor login attempts by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubauth",
		Name:      "login_attempts_total",
		Help:      "First-factor login attempts by outcome.",
	}, []string{"outcome"})

	// TwoFactorAttempts counts second-factor verifications by method and outcome.
	TwoFactorAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubauth",
		Name:      "two_factor_attempts_total",
		Help:      "Second-factor verification attempts by method and outcome.",
	}, []string{"method", "outcome"})

	// TokensIssued counts minted JWTs by class.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubauth",
		Name:      "tokens_issued_total",
		Help:      "JWTs minted by token class.",
	}, []string{"class"})

	// TokensRejected counts verification failures by class.
	TokensRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubauth",
		Name:      "tokens_rejected_total",
		Help:      "Token verifications that failed, by token class.",
	}, []string{"class"})

	// PermissionChecks counts club permission checks by outcome.
	PermissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubauth",
		Name:      "permission_checks_total",
		Help:      "Club permission checks by outcome.",
	}, []string{"outcome"})

	// AuditDropped counts audit records lost to a full buffer.
	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clubauth",
		Name:      "audit_records_dropped_total",
		Help:      "Audit records dropped because the sink buffer was full.",
	})

	// HousekeepingRuns counts background maintenance runs by task and outcome.
	HousekeepingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubauth",
		Name:      "housekeeping_runs_total",
		Help:      "Housekeeping task executions by task and outcome.",
	}, []string{"task", "outcome"})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
