package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	eventsTotal          *prometheus.CounterVec
	eventDuration        *prometheus.HistogramVec
	activeEvents         prometheus.Gauge
	webhooksTotal        *prometheus.CounterVec
	pixelsProcessedTotal prometheus.Counter
	bytesSavedTotal      prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelpress_worker_events_total",
			Help: "Completion events handled by the worker, by preset, format and outcome.",
		}, []string{"preset", "format", "outcome"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelpress_worker_event_duration_seconds",
			Help:    "Time spent handling one completion event.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		activeEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelpress_worker_active_events",
			Help: "Completion events currently being handled.",
		}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelpress_worker_webhooks_total",
			Help: "Webhook deliveries by result.",
		}, []string{"result"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelpress_worker_pixels_processed_total",
			Help: "Output pixels across handled completion events.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelpress_worker_bytes_saved_total",
			Help: "Bytes saved across handled completion events.",
		}),
	}

	registry.MustRegister(
		m.eventsTotal,
		m.eventDuration,
		m.activeEvents,
		m.webhooksTotal,
		m.pixelsProcessedTotal,
		m.bytesSavedTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
