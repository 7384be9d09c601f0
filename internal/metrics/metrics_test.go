package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAuthAttempt(OutcomeAuthenticated)
	m.ObserveAuthAttempt(OutcomeInvalidCredentials)
	m.ObserveAuthAttempt(OutcomeInvalidCredentials)
	m.ObserveTokenVerification(TokenExpired)
	m.ObserveHash("verify", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues(OutcomeAuthenticated)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues(OutcomeInvalidCredentials)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenVerifications.WithLabelValues(TokenExpired)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PasswordHashDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAuthAttempt(OutcomeError)
	m.ObserveTokenVerification(TokenOK)
	m.ObserveHash("hash", time.Second)
}
