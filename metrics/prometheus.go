package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	itemsMapped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_mapped_total",
			Help: "Total number of products mapped into marketplace item payloads.",
		},
		[]string{"category"},
	)
	fieldValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_field_validation_failures_total",
			Help: "Fields dropped from payloads because spec validation failed.",
		},
		[]string{"category", "field"},
	)
	fieldAutoRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_field_auto_repairs_total",
			Help: "Fields silently replaced with the first allowed value.",
		},
		[]string{"category", "field"},
	)
	imageShortfalls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_image_shortfalls_total",
			Help: "Assembled image sets that stayed below the marketplace minimum.",
		},
	)
	feedsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_submissions_total",
			Help: "Feed submissions by outcome.",
		},
		[]string{"outcome"},
	)
	statusPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_status_polls_total",
			Help: "Feed status polls by resulting chunk state.",
		},
		[]string{"state"},
	)
	poolAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identifier_pool_allocations_total",
			Help: "Identifier pool allocations by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(itemsMapped)
	prometheus.MustRegister(fieldValidationFailures)
	prometheus.MustRegister(fieldAutoRepairs)
	prometheus.MustRegister(imageShortfalls)
	prometheus.MustRegister(feedsSubmitted)
	prometheus.MustRegister(statusPolls)
	prometheus.MustRegister(poolAllocations)
}

// RecordRequest записывает метрики для HTTP-запроса.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func RecordItemMapped(category string) {
	itemsMapped.WithLabelValues(category).Inc()
}

func RecordValidationFailure(category, field string) {
	fieldValidationFailures.WithLabelValues(category, field).Inc()
}

func RecordAutoRepair(category, field string) {
	fieldAutoRepairs.WithLabelValues(category, field).Inc()
}

func RecordImageShortfall() {
	imageShortfalls.Inc()
}

func RecordSubmission(outcome string) {
	feedsSubmitted.WithLabelValues(outcome).Inc()
}

func RecordStatusPoll(state string) {
	statusPolls.WithLabelValues(state).Inc()
}

func RecordPoolAllocation(outcome string) {
	poolAllocations.WithLabelValues(outcome).Inc()
}

// classifyStatus классифицирует HTTP-статус код в строку.
func classifyStatus(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
