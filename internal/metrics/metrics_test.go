package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("massQuery", nil, time.Millisecond)
		m.Retry("massQuery")
		m.Stale("dispatch")
		m.Page()
		m.Expansion(OutcomeOK)
		m.GraphSize(1, 2)
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("massQuery", nil, time.Millisecond)
	m.ObserveRequest("massQuery", errors.New("boom"), time.Millisecond)
	m.Retry("massQuery")
	m.Stale("graph")
	m.GraphSize(3, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("massQuery", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("massQuery", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("massQuery")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleDrops.WithLabelValues("graph")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Nodes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Edges))
}

func TestHandlerExposes(t *testing.T) {
	m := New()
	m.Page()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "kmerwalk_batch_pages_applied_total 1")
}
