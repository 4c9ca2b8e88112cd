package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tmdgusya/crawl-selector/internal/metrics"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())

	m.ObserveExtraction(true)
	m.ObserveExtraction(true)
	m.ObserveExtraction(false)
	m.ObserveFetch("ok", 120*time.Millisecond)
	m.ObservePick("duplicate")
	m.ObserveMessage("EXTRACT_FIELD", false)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues(metrics.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues(metrics.OutcomeFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PicksTotal.WithLabelValues("duplicate")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("EXTRACT_FIELD", metrics.OutcomeFailure)), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction(true)
		m.ObserveFetch("timeout", time.Second)
		m.ObservePick("added")
		m.ObserveMessage("X", true)
	})
}
