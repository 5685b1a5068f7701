package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/dunamismax/pixelpress/internal/preset"
	"github.com/dunamismax/pixelpress/internal/queue"
	"go.uber.org/zap"
)

const (
	// maxRequestBytes leaves room for the multipart envelope and text fields.
	maxRequestBytes = domain.MaxFileSize + 1<<20
	maxFormMemory   = 12 << 20

	msgFailedToProcess = "Failed to process image"
	msgFileTooLarge    = "File too large. Maximum size is 10MB"
)

type compressResponse struct {
	Success bool           `json:"success"`
	File    compressedFile `json:"file"`
}

type compressedFile struct {
	URL              string `json:"url"`
	Filename         string `json:"filename"`
	OriginalName     string `json:"originalName"`
	Size             int64  `json:"size"`
	OriginalSize     int64  `json:"originalSize"`
	CompressionRatio string `json:"compressionRatio"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Format           string `json:"format"`
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	startedAt := time.Now()

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Content-Type must be multipart/form-data"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgFileTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form"})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer file.Close()

	if header.Size > domain.MaxFileSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgFileTooLarge})
		return
	}

	source, err := io.ReadAll(io.LimitReader(file, domain.MaxFileSize+1))
	if err != nil {
		s.logger.Error("read upload failed", zap.String("filename", header.Filename), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgFailedToProcess})
		return
	}

	req := domain.TransformRequest{
		Source:           source,
		OriginalFilename: header.Filename,
		Preset:           r.FormValue("preset"),
		OutputFormat:     r.FormValue("format"),
		Overrides: domain.Overrides{
			Width:   formInt(r, "width"),
			Height:  formInt(r, "height"),
			Quality: formInt(r, "quality"),
		},
	}
	presetName := preset.Canonical(req.Preset)

	result, err := s.processor.Process(r.Context(), req)
	if err != nil {
		s.metrics.observeCompression(presetName, req.OutputFormat, outcomeLabel(err), time.Since(startedAt), domain.TransformResult{})
		s.writeProcessError(w, req, err)
		return
	}

	elapsed := time.Since(startedAt)
	s.metrics.observeCompression(presetName, result.Format, outcomeSuccess, elapsed, result)
	s.logger.Info("image compressed",
		zap.String("storage_key", result.StorageKey),
		zap.String("original_name", result.OriginalName),
		zap.String("preset", presetName),
		zap.String("format", result.Format),
		zap.Int64("original_size", result.OriginalSize),
		zap.Int64("output_size", result.OutputSize),
		zap.Float64("compression_ratio", result.CompressionRatio),
		zap.Duration("elapsed", elapsed),
	)
	s.afterCompress(r.Context(), presetName, result, elapsed)

	writeJSON(w, http.StatusOK, compressResponse{
		Success: true,
		File: compressedFile{
			URL:              result.URL,
			Filename:         result.Filename,
			OriginalName:     result.OriginalName,
			Size:             result.OutputSize,
			OriginalSize:     result.OriginalSize,
			CompressionRatio: fmt.Sprintf("%.2f%%", result.CompressionRatio),
			Width:            result.Width,
			Height:           result.Height,
			Format:           result.Format,
		},
	})
}

func (s *Server) writeProcessError(w http.ResponseWriter, req domain.TransformRequest, err error) {
	var perr *domain.Error
	if errors.As(err, &perr) && perr.Kind == domain.KindValidation {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": perr.Message})
		return
	}

	s.logger.Error("image processing failed",
		zap.String("original_name", req.OriginalFilename),
		zap.String("preset", req.Preset),
		zap.String("format", req.OutputFormat),
		zap.Int("source_bytes", len(req.Source)),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgFailedToProcess})
}

// afterCompress records the compression and publishes the completion event.
// Both are best effort: the artifact is already stored.
func (s *Server) afterCompress(ctx context.Context, presetName string, result domain.TransformResult, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()

	now := s.now()
	if err := s.compressions.Record(ctx, domain.NewCompressionLog(presetName, result, elapsed, now)); err != nil {
		s.logger.Warn("compression log write failed", zap.String("storage_key", result.StorageKey), zap.Error(err))
	}

	if s.events == nil {
		return
	}
	info, err := s.events.EnqueueImageCompressed(ctx, queue.NewImageCompressedPayload(presetName, result, now))
	if err != nil {
		s.metrics.eventsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("publish compressed event failed", zap.String("storage_key", result.StorageKey), zap.Error(err))
		return
	}
	s.metrics.eventsPublished.WithLabelValues("ok").Inc()
	if info != nil {
		s.logger.Debug("compressed event published", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	}
}

// formInt parses a positive integer form field. Anything else is absent.
func formInt(r *http.Request, key string) *int {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

const (
	outcomeSuccess    = "success"
	outcomeValidation = "validation_error"
	outcomeDecode     = "decode_error"
	outcomeStorage    = "storage_error"
	outcomeError      = "error"
)

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return outcomeValidation
	case errors.Is(err, domain.ErrDecode):
		return outcomeDecode
	case errors.Is(err, domain.ErrStorage):
		return outcomeStorage
	default:
		return outcomeError
	}
}
