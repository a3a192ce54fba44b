package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auth collectors. A nil *Metrics is valid and records
// nothing.
//
// Naming:
//   - portal_auth_ prefix
//   - _total suffix for counters
//   - _seconds suffix for durations
type Metrics struct {
	resolutions          *prometheus.CounterVec
	verifications        *prometheus.CounterVec
	sweepDeleted         *prometheus.CounterVec
	sweepDurationSeconds prometheus.Histogram
	lastSweep            prometheus.Gauge
	sessions             *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. Pass a fresh registry in
// tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_resolutions_total",
				Help: "Credential resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_verifications_total",
				Help: "Email verification consumptions by outcome.",
			},
			[]string{"outcome"},
		),
		sweepDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_sweep_deleted_total",
				Help: "Sessions deleted by the janitor by criterion.",
			},
			[]string{"criterion"},
		),
		sweepDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "portal_auth_sweep_duration_seconds",
				Help:    "Duration of janitor sweeps in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		lastSweep: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_auth_last_sweep_timestamp_seconds",
				Help: "Unix time of the last completed sweep.",
			},
		),
		sessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portal_auth_sessions",
				Help: "Session rows by state at the last sweep.",
			},
			[]string{"state"},
		),
	}
}

func (m *Metrics) observeResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeVerification(outcome VerificationOutcome) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) observeSweep(report SweepReport, took time.Duration) {
	if m == nil {
		return
	}
	m.sweepDeleted.WithLabelValues("expired").Add(float64(report.ExpiredDeleted))
	m.sweepDeleted.WithLabelValues("inactive").Add(float64(report.InactiveDeleted))
	m.sweepDurationSeconds.Observe(took.Seconds())
	m.lastSweep.Set(float64(report.SweptAt.Unix()))
	m.sessions.WithLabelValues("active").Set(float64(report.Stats.Active))
	m.sessions.WithLabelValues("expired").Set(float64(report.Stats.Expired))
	m.sessions.WithLabelValues("total").Set(float64(report.Stats.Total))
}
