package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	m := New()
	m.ObserveDeduction("ok", 3)
	m.ObserveDeduction("ok", 2)
	m.ObserveDeduction("insufficient_stock", 0)
	m.ObserveCartMutation("add", errors.New("cross store"))
	m.ObserveRollback(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deductions.WithLabelValues("ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.unitsDeducted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartMutations.WithLabelValues("add", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacks.WithLabelValues("ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveDeduction("ok", 1)
	m.ObserveSale(10)
	m.ObserveHTTP(http.MethodGet, "/x", 200, time.Millisecond)
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveSale(99.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sales_revenue_total 99.5")
}
