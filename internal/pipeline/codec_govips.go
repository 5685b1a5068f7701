//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixelpress/internal/domain"
)

type govipsCodec struct{}

func (govipsCodec) Supports(format string) bool {
	switch domain.NormalizeFormat(format) {
	case domain.FormatJPEG, domain.FormatPNG, domain.FormatWEBP, domain.FormatAVIF:
		return true
	default:
		return false
	}
}

func (govipsCodec) DecodeMetadata(data []byte) (domain.ImageMetadata, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return domain.ImageMetadata{}, fmt.Errorf("decode image header: %w", err)
	}
	defer img.Close()

	return domain.ImageMetadata{
		Width:  img.Width(),
		Height: img.Height(),
		Format: formatFromImageType(vips.DetermineImageType(data)),
	}, nil
}

func (c govipsCodec) ResizeAndEncode(ctx context.Context, data []byte, spec domain.TransformSpec, format string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !c.Supports(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("auto rotate: %w", err)
	}

	if plan, ok := planResize(img.Width(), img.Height(), spec); ok {
		if err := applyGovipsResize(img, plan); err != nil {
			return nil, err
		}
	}

	return exportGovipsImage(img, format, spec.Quality)
}

func applyGovipsResize(img *vips.ImageRef, plan resizePlan) error {
	if plan.Crop {
		if err := img.Thumbnail(plan.Width, plan.Height, vips.InterestingCentre); err != nil {
			return fmt.Errorf("crop image: %w", err)
		}
		return nil
	}

	if img.Width() <= 0 || img.Height() <= 0 {
		return fmt.Errorf("source image has invalid dimensions")
	}
	hscale := float64(plan.Width) / float64(img.Width())
	vscale := float64(plan.Height) / float64(img.Height())
	if err := img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	return nil
}

func formatFromImageType(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeJPEG:
		return domain.FormatJPEG
	case vips.ImageTypePNG:
		return domain.FormatPNG
	case vips.ImageTypeWEBP:
		return domain.FormatWEBP
	case vips.ImageTypeAVIF:
		return domain.FormatAVIF
	case vips.ImageTypeGIF:
		return "gif"
	default:
		return "unknown"
	}
}

func exportGovipsImage(img *vips.ImageRef, format string, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	switch domain.NormalizeFormat(format) {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatPNG:
		params := vips.NewPngExportParams()
		params.Quality = quality
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case domain.FormatWEBP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	case domain.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = quality
		data, _, err := img.ExportAvif(params)
		if err != nil {
			return nil, fmt.Errorf("encode avif: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
