package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/dunamismax/pixelpress/internal/id"
	"github.com/dunamismax/pixelpress/internal/preset"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultOutputDir = "images"

// Storage persists encoded outputs. Keys are slash separated and rooted at
// the directory passed to Exists and Mkdir.
type Storage interface {
	Exists(ctx context.Context, dir string) (bool, error)
	Mkdir(ctx context.Context, dir string) error
	Write(ctx context.Context, key string, data []byte, contentType string) error
	URL(key string) string
}

// Service runs one upload through validate, resolve, encode, inspect and
// persist. It is safe for concurrent use; the only shared state is the
// storage readiness flag.
type Service struct {
	codec   Codec
	storage Storage
	dir     string
	newID   func() string
	tracer  trace.Tracer

	readyMu sync.Mutex
	ready   bool
}

type Option func(*Service)

func WithOutputDir(dir string) Option {
	return func(s *Service) {
		if dir = strings.Trim(strings.TrimSpace(dir), "/"); dir != "" {
			s.dir = dir
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func NewService(codec Codec, storage Storage, opts ...Option) (*Service, error) {
	if codec == nil {
		return nil, errors.New("codec is required")
	}
	if storage == nil {
		return nil, errors.New("storage is required")
	}

	s := &Service{
		codec:   codec,
		storage: storage,
		dir:     DefaultOutputDir,
		newID:   id.New,
		tracer:  otel.Tracer("pixelpress/pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureReady makes sure the output directory exists. It is idempotent and
// is retried on the next call after a failure.
func (s *Service) EnsureReady(ctx context.Context) error {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.storage.Exists(ctx, s.dir)
	if err != nil {
		return fmt.Errorf("check output dir %s: %w", s.dir, err)
	}
	if !exists {
		if err := s.storage.Mkdir(ctx, s.dir); err != nil {
			return fmt.Errorf("create output dir %s: %w", s.dir, err)
		}
	}

	s.ready = true
	return nil
}

func (s *Service) Process(ctx context.Context, req domain.TransformRequest) (domain.TransformResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("image.preset", req.Preset),
		attribute.String("image.format", req.OutputFormat),
		attribute.Int("image.source_bytes", len(req.Source)),
	)

	result, err := s.process(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "process failed")
		return domain.TransformResult{}, err
	}

	span.SetAttributes(
		attribute.String("image.storage_key", result.StorageKey),
		attribute.Int64("image.output_bytes", result.OutputSize),
	)
	span.SetStatus(codes.Ok, "processed")
	return result, nil
}

func (s *Service) process(ctx context.Context, req domain.TransformRequest) (domain.TransformResult, error) {
	format, err := Validate(req)
	if err != nil {
		return domain.TransformResult{}, err
	}
	if !s.codec.Supports(format) {
		return domain.TransformResult{}, domain.ValidationError(fmt.Sprintf("Output format %s is not available", format))
	}

	spec := preset.Resolve(req.Preset, req.Overrides)

	encoded, err := s.codec.ResizeAndEncode(ctx, req.Source, spec, format)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.TransformResult{}, fmt.Errorf("encode stage: %w", ctxErr)
		}
		return domain.TransformResult{}, domain.DecodeError("encode stage", err)
	}

	meta, err := s.codec.DecodeMetadata(encoded)
	if err != nil {
		return domain.TransformResult{}, domain.DecodeError("inspect stage", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.TransformResult{}, fmt.Errorf("persist stage: %w", err)
	}
	if err := s.EnsureReady(ctx); err != nil {
		return domain.TransformResult{}, domain.StorageError("persist stage", err)
	}

	filename := fmt.Sprintf("%s.%s", s.newID(), domain.Extension(format))
	key := path.Join(s.dir, filename)
	if err := s.storage.Write(ctx, key, encoded, domain.ContentType(format)); err != nil {
		return domain.TransformResult{}, domain.StorageError("persist stage", err)
	}

	originalSize := int64(len(req.Source))
	outputSize := int64(len(encoded))
	return domain.TransformResult{
		StorageKey:       key,
		Filename:         filename,
		URL:              s.storage.URL(key),
		OriginalName:     req.OriginalFilename,
		OriginalSize:     originalSize,
		OutputSize:       outputSize,
		CompressionRatio: domain.CompressionRatio(originalSize, outputSize),
		Width:            meta.Width,
		Height:           meta.Height,
		Format:           meta.Format,
	}, nil
}

// Validate performs the structural checks that need no I/O and returns the
// output format to encode. An empty output format is replaced by the default
// before the format membership check, so an unknown source extension with
// no requested format is accepted.
func Validate(req domain.TransformRequest) (string, error) {
	if len(req.Source) == 0 {
		return "", domain.ValidationError("No file provided")
	}
	if len(req.Source) > domain.MaxFileSize {
		return "", domain.ValidationError("File too large. Maximum size is 10MB")
	}

	format := strings.ToLower(strings.TrimSpace(req.OutputFormat))
	if format == "" {
		format = domain.DefaultFormat
	}

	if !domain.AllowedFormat(domain.SourceExtension(req.OriginalFilename)) && !domain.AllowedFormat(format) {
		return "", domain.ValidationError("Invalid file type. Allowed formats: jpeg, jpg, png, webp, avif")
	}
	if !domain.AllowedFormat(format) {
		return "", domain.ValidationError(fmt.Sprintf("Unsupported output format: %s", format))
	}
	return format, nil
}
