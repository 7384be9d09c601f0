// Package metrics exposes Prometheus instruments for authentication.
//
// All Observe methods are safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hermod"

// Auth attempt outcomes.
const (
	OutcomeAuthenticated      = "authenticated"
	OutcomeInvalidHeaders     = "invalid_headers"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeError              = "error"
)

// Token verification outcomes.
const (
	TokenOK      = "ok"
	TokenInvalid = "invalid"
	TokenExpired = "expired"
)

type Metrics struct {
	AuthAttempts         *prometheus.CounterVec
	TokenVerifications   *prometheus.CounterVec
	PasswordHashDuration *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Basic-auth login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		TokenVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_verifications_total",
				Help:      "Bearer token verifications by outcome.",
			},
			[]string{"outcome"},
		),
		PasswordHashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "password_hash_seconds",
				Help:      "Time spent in the password KDF.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.AuthAttempts, m.TokenVerifications, m.PasswordHashDuration)
	return m
}

func (m *Metrics) ObserveAuthAttempt(outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTokenVerification(outcome string) {
	if m == nil {
		return
	}
	m.TokenVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHash(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.PasswordHashDuration.WithLabelValues(op).Observe(d.Seconds())
}
