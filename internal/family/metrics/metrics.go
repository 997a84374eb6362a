package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks family engine query cost and roster health.
type Metrics struct {
	TreeDuration         prometheus.Histogram
	RelationshipDuration prometheus.Histogram
	Diagnostics          *prometheus.CounterVec
	CyclicQueries        prometheus.Counter
}

// New registers the family metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TreeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heritage_family_tree_duration_seconds",
			Help:    "Duration of BuildTree including roster assembly",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RelationshipDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heritage_family_relationship_duration_seconds",
			Help:    "Duration of FindRelationship including roster assembly",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heritage_family_graph_diagnostics_total",
			Help: "Roster inconsistencies repaired while building the family graph, by kind",
		}, []string{"kind"}),
		CyclicQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "heritage_family_cyclic_queries_total",
			Help: "Queries that failed because the roster holds a parent cycle",
		}),
	}
}

// ObserveTree records the duration of a BuildTree call.
func (m *Metrics) ObserveTree(start time.Time) {
	m.TreeDuration.Observe(time.Since(start).Seconds())
}

// ObserveRelationship records the duration of a FindRelationship call.
func (m *Metrics) ObserveRelationship(start time.Time) {
	m.RelationshipDuration.Observe(time.Since(start).Seconds())
}

// IncrementDiagnostic counts one repaired inconsistency of kind.
func (m *Metrics) IncrementDiagnostic(kind string) {
	m.Diagnostics.WithLabelValues(kind).Inc()
}

// IncrementCyclicQueries counts a query rejected because of a parent cycle.
func (m *Metrics) IncrementCyclicQueries() {
	m.CyclicQueries.Inc()
}
