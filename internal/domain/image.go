package domain

import (
	"math"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest accepted upload payload.
const MaxFileSize = 10 * 1024 * 1024

const (
	FormatJPEG = "jpeg"
	FormatJPG  = "jpg"
	FormatPNG  = "png"
	FormatWEBP = "webp"
	FormatAVIF = "avif"

	DefaultFormat = FormatWEBP
	DefaultPreset = "medium"
)

type FitMode string

const (
	// FitCover crops to fill the exact box.
	FitCover FitMode = "cover"
	// FitInside scales to fit within the box, preserving aspect ratio.
	FitInside FitMode = "inside"
)

// Overrides carries per-request replacements for preset fields. A nil field
// is absent.
type Overrides struct {
	Width   *int
	Height  *int
	Quality *int
}

func (o Overrides) Any() bool {
	return positive(o.Width) || positive(o.Height) || positive(o.Quality)
}

type TransformRequest struct {
	Source           []byte
	OriginalFilename string
	Preset           string
	OutputFormat     string
	Overrides        Overrides
}

// TransformSpec is the resolved resize/encode instruction. A nil axis is
// unconstrained, which is not the same thing as zero.
type TransformSpec struct {
	Width              *int
	Height             *int
	Fit                FitMode
	Quality            int
	WithoutEnlargement bool
}

func (s TransformSpec) Resizes() bool {
	return s.Width != nil || s.Height != nil
}

type ImageMetadata struct {
	Width  int
	Height int
	Format string
}

type TransformResult struct {
	StorageKey       string
	Filename         string
	URL              string
	OriginalName     string
	OriginalSize     int64
	OutputSize       int64
	CompressionRatio float64
	Width            int
	Height           int
	Format           string
}

// CompressionRatio reports the percentage size reduction rounded to two
// decimals. An empty original yields 0.
func CompressionRatio(originalSize, outputSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	ratio := (1 - float64(outputSize)/float64(originalSize)) * 100
	return math.Round(ratio*100) / 100
}

// AllowedFormat reports whether format is one of the accepted image formats.
func AllowedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJPEG, FormatJPG, FormatPNG, FormatWEBP, FormatAVIF:
		return true
	default:
		return false
	}
}

// NormalizeFormat folds aliases onto the canonical codec name.
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == FormatJPG {
		return FormatJPEG
	}
	return format
}

// Extension returns the file extension, without dot, used for stored outputs.
func Extension(format string) string {
	switch NormalizeFormat(format) {
	case FormatJPEG:
		return FormatJPG
	default:
		return NormalizeFormat(format)
	}
}

func ContentType(format string) string {
	switch NormalizeFormat(format) {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWEBP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// SourceExtension derives the lowercase extension hint from an upload name.
func SourceExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
}

func positive(v *int) bool {
	return v != nil && *v > 0
}
