// Package metrics exposes Prometheus instrumentation for extraction, fetching,
// picking and message routing. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace prefixes every metric name.
	Namespace = "crawl_selector"
)

// Label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the registered collectors.
type Metrics struct {
	ExtractionsTotal     *prometheus.CounterVec
	FetchesTotal         *prometheus.CounterVec
	FetchDurationSeconds prometheus.Histogram
	PicksTotal           *prometheus.CounterVec
	MessagesTotal        *prometheus.CounterVec
}

// New registers the collectors on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ExtractionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "extract",
			Name:      "fields_total",
			Help:      "Field extractions by outcome",
		}, []string{"outcome"}),
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Out-of-band page fetches by result",
		}, []string{"result"}),
		FetchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Out-of-band page fetch latency",
			Buckets:   prometheus.DefBuckets,
		}),
		PicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "picker",
			Name:      "picks_total",
			Help:      "Picked elements by editor outcome",
		}, []string{"outcome"}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messaging",
			Name:      "envelopes_total",
			Help:      "Routed envelopes by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// ObserveExtraction counts one field extraction.
func (m *Metrics) ObserveExtraction(success bool) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(outcome(success)).Inc()
}

// ObserveFetch records a fetch result ("ok" or an error kind) and its latency.
func (m *Metrics) ObserveFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(result).Inc()
	m.FetchDurationSeconds.Observe(d.Seconds())
}

// ObservePick counts a pick by editor outcome.
func (m *Metrics) ObservePick(outcome string) {
	if m == nil {
		return
	}
	m.PicksTotal.WithLabelValues(outcome).Inc()
}

// ObserveMessage counts a routed envelope.
func (m *Metrics) ObserveMessage(kind string, success bool) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(kind, outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
