package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp"
)

// avifSpeed trades encode time for size; 0 is slowest, 10 fastest.
const avifSpeed = 8

// stdCodec is the codec used without cgo. It decodes jpeg, png, gif, bmp,
// tiff, webp and avif and encodes every allowed output format. webp and avif
// run through wasm builds of libwebp and libavif.
type stdCodec struct{}

func (stdCodec) Supports(format string) bool {
	switch domain.NormalizeFormat(format) {
	case domain.FormatJPEG, domain.FormatPNG, domain.FormatWEBP, domain.FormatAVIF:
		return true
	default:
		return false
	}
}

func (stdCodec) DecodeMetadata(data []byte) (domain.ImageMetadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.ImageMetadata{}, fmt.Errorf("decode image header: %w", err)
	}
	return domain.ImageMetadata{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func (c stdCodec) ResizeAndEncode(ctx context.Context, data []byte, spec domain.TransformSpec, format string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !c.Supports(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	out := src
	bounds := src.Bounds()
	if plan, ok := planResize(bounds.Dx(), bounds.Dy(), spec); ok {
		if plan.Crop {
			out = imaging.Fill(src, plan.Width, plan.Height, imaging.Center, imaging.Lanczos)
		} else {
			out = imaging.Resize(src, plan.Width, plan.Height, imaging.Lanczos)
		}
	}

	return encodeStd(out, format, spec.Quality)
}

func encodeStd(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	if quality <= 0 || quality > 100 {
		quality = 80
	}

	switch domain.NormalizeFormat(format) {
	case domain.FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case domain.FormatWEBP:
		if err := webp.Encode(&buf, img, webp.Options{Quality: quality, Method: 4}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	case domain.FormatAVIF:
		if err := avif.Encode(&buf, img, avif.Options{Quality: quality, Speed: avifSpeed}); err != nil {
			return nil, fmt.Errorf("encode avif: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}
