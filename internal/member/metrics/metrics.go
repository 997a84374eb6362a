package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for member reconciliation.
// Tracks materializations, updates, write races and critical path durations.
type Metrics struct {
	Materialized    prometheus.Counter
	Updated         prometheus.Counter
	ConflictRetries prometheus.Counter
	PublishFailures prometheus.Counter
	ResolveDuration prometheus.Histogram
	UpdateDuration  prometheus.Histogram
	RosterDuration  prometheus.Histogram
}

// New registers the member metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Materialized: factory.NewCounter(prometheus.CounterOpts{
			Name: "heritage_members_materialized_total",
			Help: "Total number of seed members copied into the persistent store",
		}),
		Updated: factory.NewCounter(prometheus.CounterOpts{
			Name: "heritage_member_updates_total",
			Help: "Total number of member updates applied",
		}),
		ConflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "heritage_member_conflict_retries_total",
			Help: "Total number of updates retried after losing a materialization race",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "heritage_member_event_publish_failures_total",
			Help: "Total number of member events that could not be published",
		}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heritage_member_resolve_duration_seconds",
			Help:    "Duration of Resolve operations (member page read path)",
			Buckets: durationBuckets,
		}),
		UpdateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heritage_member_update_duration_seconds",
			Help:    "Duration of ApplyUpdate operations including lock wait",
			Buckets: durationBuckets,
		}),
		RosterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heritage_member_roster_duration_seconds",
			Help:    "Duration of roster assembly (seed overlaid by persistent records)",
			Buckets: durationBuckets,
		}),
	}
}

// IncrementMaterialized records a seed member copied into the persistent store.
func (m *Metrics) IncrementMaterialized() {
	m.Materialized.Inc()
}

// IncrementUpdated records an applied patch.
func (m *Metrics) IncrementUpdated() {
	m.Updated.Inc()
}

// IncrementConflictRetries records an update that had to re-read the record.
func (m *Metrics) IncrementConflictRetries() {
	m.ConflictRetries.Inc()
}

// IncrementPublishFailures records an event that never reached the broker.
func (m *Metrics) IncrementPublishFailures() {
	m.PublishFailures.Inc()
}

// ObserveResolve records the duration of a Resolve operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

// ObserveUpdate records the duration of an ApplyUpdate operation.
func (m *Metrics) ObserveUpdate(start time.Time) {
	m.UpdateDuration.Observe(time.Since(start).Seconds())
}

// ObserveRoster records the duration of a roster assembly.
func (m *Metrics) ObserveRoster(start time.Time) {
	m.RosterDuration.Observe(time.Since(start).Seconds())
}
