// Package preset maps named presets and request overrides onto transform
// specs. Unknown preset names resolve to medium rather than failing, so a
// malformed preset selection never blocks an otherwise valid upload.
package preset

import (
	"strings"

	"github.com/dunamismax/pixelpress/internal/domain"
)

const Custom = "custom"

type Preset struct {
	Name    string
	Width   *int
	Height  *int
	Fit     domain.FitMode
	Quality int
}

var table = []Preset{
	{Name: "thumbnail", Width: size(200), Height: size(200), Fit: domain.FitCover, Quality: 80},
	{Name: "small", Width: size(640), Fit: domain.FitInside, Quality: 80},
	{Name: "medium", Width: size(1200), Fit: domain.FitInside, Quality: 80},
	{Name: "large", Width: size(1920), Fit: domain.FitInside, Quality: 80},
	{Name: "avatar", Width: size(150), Height: size(150), Fit: domain.FitCover, Quality: 90},
	{Name: "hero", Width: size(2048), Fit: domain.FitInside, Quality: 85},
	{Name: Custom, Fit: domain.FitInside, Quality: 80},
}

// Lookup returns the named preset. The name is matched case-insensitively.
func Lookup(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range table {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Canonical returns the name Resolve will actually use for name.
func Canonical(name string) string {
	if p, ok := Lookup(name); ok {
		return p.Name
	}
	return domain.DefaultPreset
}

// All returns the preset table in declaration order.
func All() []Preset {
	out := make([]Preset, len(table))
	copy(out, table)
	return out
}

func Names() []string {
	names := make([]string, 0, len(table))
	for _, p := range table {
		names = append(names, p.Name)
	}
	return names
}

// Resolve builds the transform spec for a preset name and overrides. Present,
// positive overrides replace the preset's width, height and quality; fit and
// the enlargement guard always come from the preset.
func Resolve(name string, o domain.Overrides) domain.TransformSpec {
	p, ok := Lookup(name)
	if !ok {
		p, _ = Lookup(domain.DefaultPreset)
	}

	spec := domain.TransformSpec{
		Width:              clone(p.Width),
		Height:             clone(p.Height),
		Fit:                p.Fit,
		Quality:            p.Quality,
		WithoutEnlargement: true,
	}
	if p.Name != Custom && !o.Any() {
		return spec
	}

	if v, ok := value(o.Width); ok {
		spec.Width = size(v)
	}
	if v, ok := value(o.Height); ok {
		spec.Height = size(v)
	}
	if v, ok := value(o.Quality); ok {
		spec.Quality = min(v, 100)
	}
	return spec
}

func value(v *int) (int, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

func clone(v *int) *int {
	if v == nil {
		return nil
	}
	return size(*v)
}

func size(v int) *int {
	return &v
}
