package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos"

// Metrics holds the terminal's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.HistogramVec
	transactions     *prometheus.CounterVec
	lookups          *prometheus.CounterVec
	stockAdjustments *prometheus.CounterVec
	receiptsPrinted  *prometheus.CounterVec
}

// NewMetrics registers the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of terminal HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Sale submissions by outcome.",
		}, []string{"outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_lookups_total",
			Help:      "Product lookups by outcome.",
		}, []string{"outcome"}),
		stockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments by type and outcome.",
		}, []string{"type", "outcome"}),
		receiptsPrinted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_printed_total",
			Help:      "Receipt print attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.transactions,
		m.lookups,
		m.stockAdjustments,
		m.receiptsPrinted,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

// ObserveTransaction counts a sale submission outcome.
func (m *Metrics) ObserveTransaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

// ObserveLookup counts a product lookup outcome.
func (m *Metrics) ObserveLookup(outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

// ObserveStockAdjustment counts a stock adjustment attempt.
func (m *Metrics) ObserveStockAdjustment(kind, outcome string) {
	if m == nil {
		return
	}
	m.stockAdjustments.WithLabelValues(kind, outcome).Inc()
}

// ObserveReceiptPrint counts a receipt print attempt.
func (m *Metrics) ObserveReceiptPrint(outcome string) {
	if m == nil {
		return
	}
	m.receiptsPrinted.WithLabelValues(outcome).Inc()
}
