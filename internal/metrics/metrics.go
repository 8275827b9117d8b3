package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	DBOperationDuration *prometheus.HistogramVec
	BillsCreated        prometheus.Counter
	BillFailures        *prometheus.CounterVec
	BilledAmount        prometheus.Counter
	ProductStock        *prometheus.GaugeVec
}

// New registers the billing collectors on a fresh registry, using prefix for metric names.
func New(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(prefix, reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from gatherer.
func NewWithRegistry(prefix string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: gatherer,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		DBOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		),

		BillsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_bills_created_total",
				Help: "Total number of committed bills",
			},
		),

		BillFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_bill_failures_total",
				Help: "Total number of rejected or rolled back bills by reason",
			},
			[]string{"reason"},
		),

		BilledAmount: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_billed_amount_total",
				Help: "Sum of committed bill totals",
			},
		),

		ProductStock: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: prefix + "_product_stock",
				Help: "Stock level of a product as last read from the catalog",
			},
			[]string{"product_id", "product_name"},
		),
	}
}

// TrackDBOperation returns a function that records the duration of a database operation
func (m *Metrics) TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.DBOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// RecordBillCreated counts a committed bill and its total.
func (m *Metrics) RecordBillCreated(total float64) {
	if m == nil {
		return
	}
	m.BillsCreated.Inc()
	m.BilledAmount.Add(total)
}

// RecordBillFailure counts a bill that was not committed.
func (m *Metrics) RecordBillFailure(reason string) {
	if m == nil {
		return
	}
	m.BillFailures.WithLabelValues(reason).Inc()
}

// UpdateProductStock sets the stock gauge for a product.
func (m *Metrics) UpdateProductStock(productID int, productName string, stock int) {
	if m == nil {
		return
	}
	m.ProductStock.WithLabelValues(strconv.Itoa(productID), productName).Set(float64(stock))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
