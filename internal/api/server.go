package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/dunamismax/pixelpress/internal/preset"
	"github.com/dunamismax/pixelpress/internal/queue"
	"github.com/dunamismax/pixelpress/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Server struct {
	logger                *zap.Logger
	processor             imageProcessor
	compressions          store.CompressionStore
	events                eventPublisher
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	uploads               http.Handler
	uploadsPrefix         string
	metrics               *metrics
	tracer                trace.Tracer
	sideEffectTimeout     time.Duration
	now                   func() time.Time
	mux                   *http.ServeMux
}

type imageProcessor interface {
	Process(ctx context.Context, req domain.TransformRequest) (domain.TransformResult, error)
}

type eventPublisher interface {
	EnqueueImageCompressed(ctx context.Context, payload queue.ImageCompressedPayload) (*asynq.TaskInfo, error)
}

type Option func(*Server)

// WithEvents publishes a completion event after every successful compression.
func WithEvents(events eventPublisher) Option {
	return func(s *Server) {
		s.events = events
	}
}

func WithRateLimiter(limiter RateLimiter, userIDHeader string) Option {
	return func(s *Server) {
		s.rateLimiter = limiter
		if strings.TrimSpace(userIDHeader) != "" {
			s.rateLimitUserIDHeader = userIDHeader
		}
	}
}

// WithUploads serves stored files under prefix, for the local backend.
func WithUploads(prefix string, handler http.Handler) Option {
	return func(s *Server) {
		prefix = "/" + strings.Trim(prefix, "/")
		if handler == nil || prefix == "/" {
			return
		}
		s.uploadsPrefix = prefix
		s.uploads = handler
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

func NewServer(logger *zap.Logger, processor imageProcessor, compressions store.CompressionStore, opts ...Option) (*Server, error) {
	if processor == nil {
		return nil, errors.New("image processor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if compressions == nil {
		compressions = store.NewMemoryCompressionStore(0)
	}

	s := &Server{
		logger:                logger,
		processor:             processor,
		compressions:          compressions,
		rateLimitUserIDHeader: "X-User-ID",
		metrics:               newMetrics(),
		tracer:                otel.Tracer("pixelpress/api"),
		sideEffectTimeout:     5 * time.Second,
		now:                   time.Now,
		mux:                   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /images/compress", s.handleCompress)
	s.mux.HandleFunc("GET /images/presets", s.handlePresets)
	s.mux.HandleFunc("GET /images/recent", s.handleRecent)
	if s.uploads != nil {
		s.mux.Handle("GET "+s.uploadsPrefix+"/", http.StripPrefix(s.uploadsPrefix, s.uploads))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type presetView struct {
	Name    string `json:"name"`
	Width   *int   `json:"width"`
	Height  *int   `json:"height"`
	Fit     string `json:"fit"`
	Quality int    `json:"quality"`
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	all := preset.All()
	views := make([]presetView, 0, len(all))
	for _, p := range all {
		views = append(views, presetView{
			Name:    p.Name,
			Width:   p.Width,
			Height:  p.Height,
			Fit:     string(p.Fit),
			Quality: p.Quality,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default": domain.DefaultPreset,
		"presets": views,
	})
}

type compressionView struct {
	StorageKey      string    `json:"storage_key"`
	OriginalName    string    `json:"original_name"`
	Preset          string    `json:"preset"`
	Format          string    `json:"format"`
	OriginalBytes   int64     `json:"original_bytes"`
	OutputBytes     int64     `json:"output_bytes"`
	BytesSaved      int64     `json:"bytes_saved"`
	PixelsProcessed int64     `json:"pixels_processed"`
	ComputeTimeMS   int64     `json:"compute_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.compressions.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("load recent compressions failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load compressions"})
		return
	}

	views := make([]compressionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, compressionView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"compressions": views})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
