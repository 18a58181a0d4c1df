package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the ingestion pipeline and HTTP surface
var (
	RecordsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bread_tally_records_created_total",
			Help: "Total number of records persisted",
		},
	)

	BreadsCountedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bread_tally_breads_counted_total",
			Help: "Sum of bread counts across persisted records",
		},
	)

	IngestionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bread_tally_ingestion_failures_total",
			Help: "Total number of failed ingestion attempts by reason",
		},
		[]string{"reason"},
	)

	EstimateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bread_tally_estimate_duration_seconds",
			Help:    "Duration of calls to the vision service",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bread_tally_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)
)

// Failure reasons used as the IngestionFailuresTotal label
const (
	ReasonInvalid       = "invalid"
	ReasonConfiguration = "configuration"
	ReasonProcessing    = "processing"
	ReasonStore         = "store"
)

func init() {
	prometheus.MustRegister(
		RecordsCreatedTotal,
		BreadsCountedTotal,
		IngestionFailuresTotal,
		EstimateDuration,
		HTTPRequestsTotal,
	)
}
