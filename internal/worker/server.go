package worker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/pixelpress/internal/config"
	"github.com/dunamismax/pixelpress/internal/queue"
	"github.com/dunamismax/pixelpress/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	outcomeDelivered = "delivered"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Server consumes completion events published by the API and forwards them
// to the configured webhook.
type Server struct {
	logger     *zap.Logger
	server     *asynq.Server
	webhook    webhookSender
	webhookURL string
	metrics    *metrics
	tracer     trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *zap.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	webhookURL string,
	sender webhookSender,
) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL != "" && sender == nil {
		return nil, fmt.Errorf("webhook sender is required when a webhook URL is set")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: max(1, workerCfg.Concurrency),
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				Logger:   logger.Named("asynq").Sugar(),
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Warn("task failed",
						zap.String("type", task.Type()),
						zap.Int("retry", retried),
						zap.Int("max_retry", maxRetry),
						zap.Error(err),
					)
				}),
			},
		),
		webhook:    sender,
		webhookURL: webhookURL,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("pixelpress/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeImageCompressed, s.handleImageCompressed)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleImageCompressed(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()

	payload, err := queue.ParseImageCompressedPayload(task)
	if err != nil {
		s.metrics.eventsTotal.WithLabelValues("unknown", "unknown", outcomeFailed).Inc()
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.image_compressed", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("image.storage_key", payload.StorageKey),
		attribute.String("image.preset", payload.Preset),
		attribute.String("image.format", payload.Format),
		attribute.Int64("image.output_size", payload.OutputSize),
	)
	defer span.End()

	outcome := outcomeFailed
	defer func() {
		s.metrics.eventDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.eventsTotal.WithLabelValues(payload.Preset, payload.Format, outcome).Inc()
	}()

	s.metrics.activeEvents.Inc()
	defer s.metrics.activeEvents.Dec()

	s.logger.Info("compressed image event",
		zap.String("storage_key", payload.StorageKey),
		zap.String("preset", payload.Preset),
		zap.String("format", payload.Format),
		zap.Float64("compression_ratio", payload.CompressionRatio),
	)

	if s.webhookURL == "" {
		outcome = outcomeSkipped
		s.recordSavings(payload)
		span.SetStatus(codes.Ok, "no webhook configured")
		return nil
	}

	if err := s.webhook.Send(ctx, s.webhookURL, webhook.EventImageCompressed, payload); err != nil {
		s.metrics.webhooksTotal.WithLabelValues("error").Inc()
		s.logger.Warn("webhook delivery failed",
			zap.String("storage_key", payload.StorageKey),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	outcome = outcomeDelivered
	s.metrics.webhooksTotal.WithLabelValues("ok").Inc()
	s.recordSavings(payload)
	span.SetStatus(codes.Ok, "delivered")
	return nil
}

// recordSavings counts an event once, after it is handled for good, so
// retried deliveries do not inflate the totals.
func (s *Server) recordSavings(payload queue.ImageCompressedPayload) {
	s.metrics.pixelsProcessedTotal.Add(float64(int64(payload.Width) * int64(payload.Height)))
	if saved := payload.OriginalSize - payload.OutputSize; saved > 0 {
		s.metrics.bytesSavedTotal.Add(float64(saved))
	}
}
