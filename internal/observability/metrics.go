package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	pipelineStagesTotal    *prometheus.CounterVec
	pipelineStageSeconds   *prometheus.HistogramVec
	notificationsPublished *prometheus.CounterVec
	websocketClients       prometheus.Gauge
	dashboardCacheTotal    *prometheus.CounterVec
	rateLimitedTotal       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algogenius_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "algogenius_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 45.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algogenius_http_errors_total",
			Help: "Total number of error responses.",
		}, []string{"method", "route", "status"})

		pipelineStagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algogenius_pipeline_stages_total",
			Help: "Next-assignment pipeline stage outcomes.",
		}, []string{"stage", "outcome"})

		pipelineStageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "algogenius_pipeline_stage_seconds",
			Help:    "Duration of pipeline stages that ran.",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algogenius_notifications_published_total",
			Help: "Notifications delivered to local subscribers.",
		}, []string{"type"})

		websocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "algogenius_websocket_clients_active",
			Help: "Open notification websocket connections.",
		})

		dashboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algogenius_dashboard_cache_total",
			Help: "Dashboard cache lookups by result.",
		}, []string{"dashboard", "result"})

		rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algogenius_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"limiter"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			pipelineStagesTotal, pipelineStageSeconds,
			notificationsPublished, websocketClients, dashboardCacheTotal,
			rateLimitedTotal,
		)
	})
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// PipelineStages counts stage outcomes: completed, skipped or failed.
func PipelineStages() *prometheus.CounterVec {
	RegisterMetrics()
	return pipelineStagesTotal
}

// PipelineStageDuration exposes the stage duration histogram.
func PipelineStageDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return pipelineStageSeconds
}

// NotificationsPublishedTotal exposes the notification counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// WebsocketClientsActive exposes the open connection gauge.
func WebsocketClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return websocketClients
}

// DashboardCache exposes the cache lookup counter.
func DashboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return dashboardCacheTotal
}

// RateLimited counts rejected requests per limiter.
func RateLimited() *prometheus.CounterVec {
	RegisterMetrics()
	return rateLimitedTotal
}
