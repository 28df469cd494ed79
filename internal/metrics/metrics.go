// Package metrics exposes Prometheus counters for the login and
// authorization flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts credential submissions by outcome:
	// success, mfa_required, invalid_credentials, upstream_unavailable, error.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dms_auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	// MfaVerifications counts second-factor submissions by outcome:
	// success, invalid_code, session_expired.
	MfaVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dms_auth",
		Name:      "mfa_verifications_total",
		Help:      "Second-factor verifications by outcome.",
	}, []string{"outcome"})

	// MfaChallenges counts issued challenges by channel (totp, email, sms).
	MfaChallenges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dms_auth",
		Name:      "mfa_challenges_total",
		Help:      "Issued MFA challenges by channel.",
	}, []string{"channel"})

	// AuthzDecisions counts authorization evaluations (allow, deny).
	AuthzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dms_auth",
		Name:      "authorization_decisions_total",
		Help:      "Authorization decisions by result.",
	}, []string{"decision"})
)

// Handler serves the default registry at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
