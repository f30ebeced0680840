package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	deductions     *prometheus.CounterVec
	unitsDeducted  prometheus.Counter
	rollbacks      *prometheus.CounterVec
	salesRecorded  prometheus.Counter
	salesRevenue   prometheus.Counter
	cartMutations  *prometheus.CounterVec
	skippedRecords prometheus.Counter
	httpDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		deductions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_deductions_total",
				Help: "Inventory deduction attempts by result",
			},
			[]string{"result"},
		),
		unitsDeducted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_units_deducted_total",
			Help: "Units removed from inventory by successful deductions",
		}),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_rollbacks_total",
				Help: "Compensating restores of partially applied deductions",
			},
			[]string{"result"},
		),
		salesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sales_records_total",
			Help: "Sale records appended",
		}),
		salesRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sales_revenue_total",
			Help: "Sum of sale line totals appended",
		}),
		cartMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_mutations_total",
				Help: "Cart mutations by operation and result",
			},
			[]string{"op", "result"},
		),
		skippedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_skipped_records_total",
			Help: "Sale records skipped by aggregation because of an unusable timestamp",
		}),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.deductions,
		m.unitsDeducted,
		m.rollbacks,
		m.salesRecorded,
		m.salesRevenue,
		m.cartMutations,
		m.skippedRecords,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDeduction(result string, units int) {
	if m == nil {
		return
	}
	m.deductions.WithLabelValues(result).Inc()
	if units > 0 {
		m.unitsDeducted.Add(float64(units))
	}
}

func (m *Metrics) ObserveRollback(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.rollbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSale(price float64) {
	if m == nil {
		return
	}
	m.salesRecorded.Inc()
	if price > 0 {
		m.salesRevenue.Add(price)
	}
}

func (m *Metrics) ObserveCartMutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.cartMutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveSkippedRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedRecords.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method string, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
