package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Methods are
// nil-safe so components constructed without metrics (tests) stay quiet.
type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionValidations *prometheus.CounterVec

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	LockoutDeactivations prometheus.Counter

	AuditEvents  *prometheus.CounterVec
	AuditDropped prometheus.Counter

	PolicyLookupFailures prometheus.Counter
}

// New creates and registers all application metrics. Call once per process.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "empgate_sessions_created_total",
			Help: "Total number of security contexts created",
		}),
		SessionValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "empgate_session_validations_total",
			Help: "Total session validations by result",
		}, []string{"result"}), // result: "ok", "denied", "expired", "absent"

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "empgate_response_cache_hits_total",
			Help: "Total response cache hits within the freshness window",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "empgate_response_cache_misses_total",
			Help: "Total response cache misses (including stale entries)",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "empgate_response_cache_evictions_total",
			Help: "Total response cache entries removed by invalidation or sweep",
		}),

		LockoutDeactivations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "empgate_lockout_deactivations_total",
			Help: "Total users whose sessions were deactivated by the lockout sweep",
		}),

		AuditEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "empgate_audit_events_total",
			Help: "Total audit events recorded by action",
		}, []string{"action"}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "empgate_audit_events_dropped_total",
			Help: "Total buffered audit events dropped by the flush cap",
		}),

		PolicyLookupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "empgate_policy_lookup_failures_total",
			Help: "Total policy lookups degraded to an empty result",
		}),
	}
}

func (m *Metrics) IncrementSessionsCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) IncrementValidation(result string) {
	if m != nil {
		m.SessionValidations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementCacheHits() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncrementCacheMisses() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) AddCacheEvictions(n int) {
	if m != nil && n > 0 {
		m.CacheEvictions.Add(float64(n))
	}
}

func (m *Metrics) IncrementLockoutDeactivations() {
	if m != nil {
		m.LockoutDeactivations.Inc()
	}
}

func (m *Metrics) IncrementAuditEvents(action string) {
	if m != nil {
		m.AuditEvents.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) AddAuditDropped(n int) {
	if m != nil && n > 0 {
		m.AuditDropped.Add(float64(n))
	}
}

func (m *Metrics) IncrementPolicyLookupFailures() {
	if m != nil {
		m.PolicyLookupFailures.Inc()
	}
}
