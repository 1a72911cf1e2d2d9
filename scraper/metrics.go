package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	ProductsScrapedTotal prometheus.Counter
	PagesTotal           *prometheus.CounterVec
	RetriesTotal         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	DuplicateIDsTotal    prometheus.Counter
	PriceOverwritesTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total BFF requests issued by the scraper.",
		},
		[]string{"endpoint"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "BFF request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_products_scraped_total",
			Help: "Total number of product ids collected from the listing.",
		},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Pages completed per phase.",
		},
		[]string{"phase"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_duplicate_ids_total",
			Help: "Product ids returned by more than one listing page.",
		},
	)
	overwrites := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_price_overwrites_total",
			Help: "Price entries replaced by a later page for the same product id.",
		},
	)

	registry.MustRegister(requests, requestDuration, products, pages, retries, errorsTotal, duplicates, overwrites)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		ProductsScrapedTotal: products,
		PagesTotal:           pages,
		RetriesTotal:         retries,
		ErrorsTotal:          errorsTotal,
		DuplicateIDsTotal:    duplicates,
		PriceOverwritesTotal: overwrites,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(endpoint string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// AddProducts adds n collected product ids.
func (m *Metrics) AddProducts(n int) {
	if m == nil {
		return
	}
	m.ProductsScrapedTotal.Add(float64(n))
}

// IncPage counts a finished page for phase.
func (m *Metrics) IncPage(phase string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(phase).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncDuplicate counts a product id seen on a second page.
func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.DuplicateIDsTotal.Inc()
}

// IncPriceOverwrite counts a last-write-wins replacement.
func (m *Metrics) IncPriceOverwrite() {
	if m == nil {
		return
	}
	m.PriceOverwritesTotal.Inc()
}
