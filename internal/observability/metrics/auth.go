// Package metrics exposes Prometheus instruments for the portal.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes recorded by LoginAttempt.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeDenied   = "denied"
	OutcomeInvalid  = "invalid_input"
)

// AuthMetrics records session bootstrap and login outcomes.
type AuthMetrics struct {
	loginAttempts *prometheus.CounterVec
	denials       *prometheus.CounterVec
	settleLatency *prometheus.HistogramVec
	activeStores  prometheus.Gauge
}

// NewAuthMetrics builds the instruments and registers them on reg
// (prometheus.DefaultRegisterer when nil). Already registered collectors are reused.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &AuthMetrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login commands by outcome.",
		}, []string{"outcome"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "auth",
			Name:      "denials_total",
			Help:      "Identities signed out by the role policy, by reason.",
		}, []string{"reason"}),
		settleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "auth",
			Name:      "settle_seconds",
			Help:      "Time from session store creation to its first settled state.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"state"}),
		activeStores: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "auth",
			Name:      "active_session_stores",
			Help:      "Session stores currently held in memory.",
		}),
	}

	var err error
	m.loginAttempts, err = register(reg, m.loginAttempts)
	if err != nil {
		return nil, err
	}
	m.denials, err = register(reg, m.denials)
	if err != nil {
		return nil, err
	}
	m.settleLatency, err = register(reg, m.settleLatency)
	if err != nil {
		return nil, err
	}
	m.activeStores, err = register(reg, m.activeStores)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// LoginAttempt counts one Login command.
func (m *AuthMetrics) LoginAttempt(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// Denied counts one policy denial.
func (m *AuthMetrics) Denied(reason string) {
	m.denials.WithLabelValues(reason).Inc()
}

// Settled observes how long a store took to reach its first settled state.
func (m *AuthMetrics) Settled(state string, took time.Duration) {
	m.settleLatency.WithLabelValues(state).Observe(took.Seconds())
}

// StoreOpened and StoreClosed track the number of live session stores.
func (m *AuthMetrics) StoreOpened() { m.activeStores.Inc() }

func (m *AuthMetrics) StoreClosed() { m.activeStores.Dec() }

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
