package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixelpress/internal/api"
	"github.com/dunamismax/pixelpress/internal/config"
	"github.com/dunamismax/pixelpress/internal/logging"
	"github.com/dunamismax/pixelpress/internal/pipeline"
	"github.com/dunamismax/pixelpress/internal/queue"
	"github.com/dunamismax/pixelpress/internal/ratelimit"
	"github.com/dunamismax/pixelpress/internal/storage"
	"github.com/dunamismax/pixelpress/internal/store"
	"github.com/dunamismax/pixelpress/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New("api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "pixelpress-api",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Fatal("codec runtime startup failed", zap.Error(err))
	}
	defer pipeline.Shutdown()

	var opts []api.Option
	var backend pipeline.Storage
	switch cfg.Storage.Backend {
	case config.StorageBackendMinio:
		object, err := storage.NewObject(storage.ObjectConfig{
			Endpoint:   cfg.Storage.Endpoint,
			Access:     cfg.Storage.AccessKey,
			Secret:     cfg.Storage.SecretKey,
			Bucket:     cfg.Storage.Bucket,
			UseSSL:     cfg.Storage.UseSSL,
			PublicBase: cfg.Storage.PublicBase,
		})
		if err != nil {
			logger.Fatal("object storage setup failed", zap.Error(err))
		}
		backend = object
	default:
		local, err := storage.NewLocal(cfg.Storage.LocalRoot, cfg.Storage.LocalPublicBase())
		if err != nil {
			logger.Fatal("local storage setup failed", zap.Error(err))
		}
		backend = local
		opts = append(opts, api.WithUploads(cfg.Storage.LocalPublicBase(), local.Handler()))
	}

	service, err := pipeline.NewService(pipeline.NewCodec(), backend, pipeline.WithOutputDir(cfg.Storage.OutputDir))
	if err != nil {
		logger.Fatal("pipeline setup failed", zap.Error(err))
	}

	readyCtx, cancelReady := context.WithTimeout(ctx, 10*time.Second)
	if err := service.EnsureReady(readyCtx); err != nil {
		// Retried lazily by the first upload.
		logger.Warn("storage not ready at startup", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	cancelReady()

	var compressions store.CompressionStore = store.NewMemoryCompressionStore(0)
	if cfg.Database.DSN != "" {
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := store.NewPostgresCompressionStore(pgCtx, cfg.Database.DSN)
		cancel()
		if err != nil {
			logger.Fatal("postgres setup failed", zap.Error(err))
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Warn("postgres close failed", zap.Error(err))
			}
		}()
		compressions = pg
	}

	if cfg.Queue.Enabled {
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Warn("queue client close failed", zap.Error(err))
			}
		}()
		opts = append(opts, api.WithEvents(queueClient))
	}

	if cfg.API.RateLimit > 0 {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis client close failed", zap.Error(err))
			}
		}()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.API.RateLimit, cfg.API.RateLimitWindow, "pixelpress:ratelimit")
		if err != nil {
			logger.Fatal("rate limiter setup failed", zap.Error(err))
		}
		opts = append(opts, api.WithRateLimiter(limiter, cfg.API.UserIDHeader))
	}

	app, err := api.NewServer(logger, service, compressions, opts...)
	if err != nil {
		logger.Fatal("api setup failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.API.Addr),
			zap.String("storage_backend", cfg.Storage.Backend),
			zap.Bool("events", cfg.Queue.Enabled),
			zap.Int("rate_limit", cfg.API.RateLimit),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
