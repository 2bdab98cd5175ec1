// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeInvalid    = "invalid"
	OutcomeTransport  = "transport_error"
	OutcomeSuperseded = "superseded"
)

// Session invalidation reasons.
const (
	ReasonLogout       = "logout"
	ReasonUnauthorized = "unauthorized"
	ReasonValidation   = "validation_failed"
)

var (
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodle_assistant_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	SessionInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodle_assistant_session_invalidations_total",
			Help: "Transitions to unauthenticated by reason",
		},
		[]string{"reason"},
	)

	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodle_assistant_storage_failures_total",
			Help: "Session store operations that degraded to absent",
		},
		[]string{"op", "status"},
	)

	QueryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodle_assistant_query_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"result"},
	)

	QueryRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodle_assistant_query_retries_total",
			Help: "Read queries retried after a transient failure",
		},
	)

	AuthenticatedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodle_assistant_authenticated",
			Help: "1 while the controller is authenticated",
		},
	)
)
