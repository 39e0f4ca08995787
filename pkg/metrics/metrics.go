// Package metrics holds the Prometheus collectors exported on the health
// server's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification results beyond the error kinds
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

// Account creation outcomes
const (
	OutcomeCreated    = "created"
	OutcomeExisting   = "existing"
	OutcomeConflict   = "conflict"
	OutcomeError      = "error"
	OutcomeDenied     = "denied"
	OutcomeUnverified = "unverified"
)

// Collectors groups the service metrics so tests can use a private registry
type Collectors struct {
	Verifications       *prometheus.CounterVec
	VerificationSeconds prometheus.Histogram
	PolicyDecisions     *prometheus.CounterVec
	Accounts            *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idbind",
			Name:      "verifications_total",
			Help:      "ID token verifications by result or error kind.",
		}, []string{"result"}),
		VerificationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "idbind",
			Name:      "verification_duration_seconds",
			Help:      "Time spent verifying one ID token signature.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		PolicyDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idbind",
			Name:      "policy_decisions_total",
			Help:      "Claim policy decisions.",
		}, []string{"decision"}),
		Accounts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idbind",
			Name:      "accounts_created_total",
			Help:      "Account creation attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveVerification records one verification; result is ResultValid,
// ResultInvalid or an error kind
func (c *Collectors) ObserveVerification(result string, elapsed time.Duration) {
	c.Verifications.WithLabelValues(result).Inc()
	c.VerificationSeconds.Observe(elapsed.Seconds())
}

// ObservePolicy records a policy decision
func (c *Collectors) ObservePolicy(allow bool) {
	decision := "deny"
	if allow {
		decision = "allow"
	}
	c.PolicyDecisions.WithLabelValues(decision).Inc()
}

// ObserveAccount records an account creation outcome
func (c *Collectors) ObserveAccount(outcome string) {
	c.Accounts.WithLabelValues(outcome).Inc()
}
