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

// Metrics holds the collectors for fetches and extraction runs.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	FetchRequestsTotal    *prometheus.CounterVec
	FetchDuration         prometheus.Histogram
	FetchBytesTotal       prometheus.Counter
	ExtractedProducts     prometheus.Counter
	SkippedBlocksTotal    *prometheus.CounterVec
	FieldFaultsTotal      *prometheus.CounterVec
	PriceResolutionsTotal *prometheus.CounterVec
}

// New registers every collector on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gebdeals_fetch_requests_total",
				Help: "Total number of marketplace search page fetches",
			},
			[]string{"status"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gebdeals_fetch_duration_seconds",
				Help:    "Duration of marketplace search page fetches in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		FetchBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gebdeals_fetch_bytes_total",
				Help: "Total bytes downloaded from the marketplace",
			},
		),
		ExtractedProducts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gebdeals_extracted_products_total",
				Help: "Total number of product records emitted by the extraction pipeline",
			},
		),
		SkippedBlocksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gebdeals_skipped_blocks_total",
				Help: "Result blocks that produced no record, by reason",
			},
			[]string{"reason"},
		),
		FieldFaultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gebdeals_field_faults_total",
				Help: "Field extractors that panicked inside a result block, by field",
			},
			[]string{"field"},
		),
		PriceResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gebdeals_price_resolutions_total",
				Help: "Price normalizer outcomes, by the rule that resolved them",
			},
			[]string{"source"},
		),
	}
}

// RecordFetch updates fetch metrics. statusCode 0 means a transport failure.
func (m *Metrics) RecordFetch(statusCode int, duration time.Duration, bytes int) {
	if m == nil {
		return
	}

	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}

	m.FetchRequestsTotal.WithLabelValues(status).Inc()
	m.FetchDuration.Observe(duration.Seconds())
	m.FetchBytesTotal.Add(float64(bytes))
}

// RecordProduct counts one emitted record and the rule that priced it
func (m *Metrics) RecordProduct(priceSource string) {
	if m == nil {
		return
	}
	m.ExtractedProducts.Inc()
	m.PriceResolutionsTotal.WithLabelValues(priceSource).Inc()
}

// RecordSkippedBlock counts a block that produced no record
func (m *Metrics) RecordSkippedBlock(reason string) {
	if m == nil {
		return
	}
	m.SkippedBlocksTotal.WithLabelValues(reason).Inc()
}

// RecordFieldFault counts a field extractor that panicked
func (m *Metrics) RecordFieldFault(field string) {
	if m == nil {
		return
	}
	m.FieldFaultsTotal.WithLabelValues(field).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
