package pipeline

import (
	"context"
	"errors"
	"math"

	"github.com/dunamismax/pixelpress/internal/domain"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Codec does the pixel work: metadata inspection and resize+encode.
type Codec interface {
	DecodeMetadata(data []byte) (domain.ImageMetadata, error)
	ResizeAndEncode(ctx context.Context, data []byte, spec domain.TransformSpec, format string) ([]byte, error)
	Supports(format string) bool
}

type resizePlan struct {
	Width  int
	Height int
	Crop   bool
}

// planResize computes the output box for a srcW x srcH image. It reports false
// when the source should be encoded unchanged.
func planResize(srcW, srcH int, spec domain.TransformSpec) (resizePlan, bool) {
	if srcW <= 0 || srcH <= 0 {
		return resizePlan{}, false
	}

	tw, th := deref(spec.Width), deref(spec.Height)
	if tw <= 0 && th <= 0 {
		return resizePlan{}, false
	}

	if spec.Fit == domain.FitCover && tw > 0 && th > 0 {
		if spec.WithoutEnlargement {
			f := math.Min(1, math.Min(float64(srcW)/float64(tw), float64(srcH)/float64(th)))
			tw = scaled(tw, f)
			th = scaled(th, f)
		}
		if tw == srcW && th == srcH {
			return resizePlan{}, false
		}
		return resizePlan{Width: tw, Height: th, Crop: true}, true
	}

	scale := math.Inf(1)
	if tw > 0 {
		scale = float64(tw) / float64(srcW)
	}
	if th > 0 {
		scale = math.Min(scale, float64(th)/float64(srcH))
	}
	if spec.WithoutEnlargement && scale >= 1 {
		return resizePlan{}, false
	}

	w, h := scaled(srcW, scale), scaled(srcH, scale)
	if w == srcW && h == srcH {
		return resizePlan{}, false
	}
	return resizePlan{Width: w, Height: h}, true
}

func scaled(v int, f float64) int {
	return max(1, int(math.Round(float64(v)*f)))
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
