package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ResponseBytes   prometheus.Histogram
	ProductsParsed  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total page fetches issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Latency of page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	responseBytes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_response_bytes",
			Help:    "Body size of fetched pages.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
	productsParsed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_products_parsed_total",
			Help: "Total number of products added to reports.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, responseBytes, productsParsed, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ResponseBytes:   responseBytes,
		ProductsParsed:  productsParsed,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// ObserveBytes records a fetched body size.
func (m *Metrics) ObserveBytes(n int) {
	if m == nil {
		return
	}
	m.ResponseBytes.Observe(float64(n))
}

// AddProducts adds n to the parsed products counter.
func (m *Metrics) AddProducts(n int) {
	if m == nil {
		return
	}
	m.ProductsParsed.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
