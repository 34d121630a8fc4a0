package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records search outcomes. A nil *Metrics records nothing.
type Metrics struct {
	searches    *prometheus.CounterVec
	expanded    prometheus.Counter
	generated   prometheus.Counter
	relaxations prometheus.Counter
	planLength  prometheus.Histogram
	duration    prometheus.Histogram
}

// NewMetrics creates the search metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvest",
			Subsystem: "search",
			Name:      "searches_total",
			Help:      "Completed searches by outcome.",
		}, []string{"outcome"}),
		expanded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harvest",
			Subsystem: "search",
			Name:      "expanded_nodes_total",
			Help:      "Nodes expanded across all searches.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harvest",
			Subsystem: "search",
			Name:      "generated_nodes_total",
			Help:      "Successor nodes generated across all searches.",
		}),
		relaxations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harvest",
			Subsystem: "search",
			Name:      "relaxations_total",
			Help:      "Frontier nodes re-parented onto a cheaper path.",
		}),
		planLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harvest",
			Subsystem: "search",
			Name:      "plan_length",
			Help:      "Operators in each plan found.",
			Buckets:   prometheus.LinearBuckets(4, 4, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harvest",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall time per search.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	reg.MustRegister(m.searches, m.expanded, m.generated, m.relaxations, m.planLength, m.duration)
	return m
}

func (m *Metrics) observe(outcome string, s Stats, planLen int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.expanded.Add(float64(s.Expanded))
	m.generated.Add(float64(s.Generated))
	m.relaxations.Add(float64(s.Relaxations))
	m.duration.Observe(s.Elapsed.Seconds())
	if outcome == "found" {
		m.planLength.Observe(float64(planLen))
	}
}
