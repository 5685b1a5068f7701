package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry            *prometheus.Registry
	requestTotal        *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	rateLimitRejected   *prometheus.CounterVec
	compressionsTotal   *prometheus.CounterVec
	compressionDuration *prometheus.HistogramVec
	compressionRatio    *prometheus.HistogramVec
	bytesSavedTotal     prometheus.Counter
	eventsPublished     *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelpress_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelpress_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelpress_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		compressionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelpress_compressions_total",
			Help: "Compression requests by preset, output format and outcome.",
		}, []string{"preset", "format", "outcome"}),
		compressionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelpress_compression_duration_seconds",
			Help:    "Time spent validating, encoding and storing an upload.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"preset", "outcome"}),
		compressionRatio: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelpress_compression_ratio_percent",
			Help:    "Size reduction of successful compressions in percent.",
			Buckets: []float64{0, 10, 25, 50, 75, 90, 95, 99},
		}, []string{"format"}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelpress_bytes_saved_total",
			Help: "Total bytes saved across successful compressions.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelpress_events_published_total",
			Help: "Completion events handed to the queue, by result.",
		}, []string{"result"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.compressionsTotal,
		m.compressionDuration,
		m.compressionRatio,
		m.bytesSavedTotal,
		m.eventsPublished,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeCompression(presetName, format, outcome string, elapsed time.Duration, result domain.TransformResult) {
	format = formatLabel(format)
	m.compressionsTotal.WithLabelValues(presetName, format, outcome).Inc()
	m.compressionDuration.WithLabelValues(presetName, outcome).Observe(elapsed.Seconds())
	if outcome != outcomeSuccess {
		return
	}
	m.compressionRatio.WithLabelValues(format).Observe(result.CompressionRatio)
	if saved := result.OriginalSize - result.OutputSize; saved > 0 {
		m.bytesSavedTotal.Add(float64(saved))
	}
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func formatLabel(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch {
	case format == "":
		return domain.DefaultFormat
	case domain.AllowedFormat(format):
		return domain.NormalizeFormat(format)
	default:
		return "other"
	}
}

func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/images/compress"):
		return "/images/compress"
	case strings.HasPrefix(path, "/images/presets"):
		return "/images/presets"
	case strings.HasPrefix(path, "/images/recent"):
		return "/images/recent"
	case strings.HasPrefix(path, "/uploads/"):
		return "/uploads"
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
