package preset

import (
	"testing"

	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestResolveBuiltinTable(t *testing.T) {
	cases := []struct {
		name    string
		width   *int
		height  *int
		fit     domain.FitMode
		quality int
	}{
		{"thumbnail", intp(200), intp(200), domain.FitCover, 80},
		{"small", intp(640), nil, domain.FitInside, 80},
		{"medium", intp(1200), nil, domain.FitInside, 80},
		{"large", intp(1920), nil, domain.FitInside, 80},
		{"avatar", intp(150), intp(150), domain.FitCover, 90},
		{"hero", intp(2048), nil, domain.FitInside, 85},
		{"custom", nil, nil, domain.FitInside, 80},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := Resolve(tc.name, domain.Overrides{})
			assert.Equal(t, tc.width, spec.Width)
			assert.Equal(t, tc.height, spec.Height)
			assert.Equal(t, tc.fit, spec.Fit)
			assert.Equal(t, tc.quality, spec.Quality)
			assert.True(t, spec.WithoutEnlargement)
		})
	}
}

func TestResolveWidthOverrideKeepsOtherFields(t *testing.T) {
	for _, w := range []int{1, 300, 1200, 5000} {
		spec := Resolve("medium", domain.Overrides{Width: intp(w)})
		require.NotNil(t, spec.Width)
		assert.Equal(t, w, *spec.Width)
		assert.Nil(t, spec.Height)
		assert.Equal(t, 80, spec.Quality)
		assert.Equal(t, domain.FitInside, spec.Fit)
	}
}

func TestResolveUnknownPresetFallsBackToMedium(t *testing.T) {
	assert.Equal(t, Resolve("medium", domain.Overrides{}), Resolve("nonexistent-preset", domain.Overrides{}))
	assert.Equal(t, Resolve("medium", domain.Overrides{}), Resolve("", domain.Overrides{}))
}

func TestResolveZeroOverridesAreInert(t *testing.T) {
	spec := Resolve("thumbnail", domain.Overrides{Width: intp(0), Height: intp(-4), Quality: intp(0)})
	assert.Equal(t, Resolve("thumbnail", domain.Overrides{}), spec)
}

func TestResolveCustomUsesOverrides(t *testing.T) {
	spec := Resolve("custom", domain.Overrides{Width: intp(320), Height: intp(240), Quality: intp(65)})
	require.NotNil(t, spec.Width)
	require.NotNil(t, spec.Height)
	assert.Equal(t, 320, *spec.Width)
	assert.Equal(t, 240, *spec.Height)
	assert.Equal(t, 65, spec.Quality)
	assert.Equal(t, domain.FitInside, spec.Fit)
}

func TestResolveFitIsIntrinsic(t *testing.T) {
	spec := Resolve("avatar", domain.Overrides{Width: intp(64)})
	assert.Equal(t, domain.FitCover, spec.Fit)
	assert.Equal(t, 150, *spec.Height)
	assert.Equal(t, 90, spec.Quality)
}

func TestResolveClampsQuality(t *testing.T) {
	spec := Resolve("small", domain.Overrides{Quality: intp(140)})
	assert.Equal(t, 100, spec.Quality)
}

func TestResolveDoesNotShareTableState(t *testing.T) {
	spec := Resolve("thumbnail", domain.Overrides{})
	*spec.Width = 1
	assert.Equal(t, 200, *Resolve("thumbnail", domain.Overrides{}).Width)
}

func TestLookupAndNames(t *testing.T) {
	p, ok := Lookup(" Hero ")
	require.True(t, ok)
	assert.Equal(t, "hero", p.Name)

	_, ok = Lookup("banner")
	assert.False(t, ok)

	assert.Equal(t, []string{"thumbnail", "small", "medium", "large", "avatar", "hero", "custom"}, Names())
	assert.Len(t, All(), 7)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "avatar", Canonical("AVATAR"))
	assert.Equal(t, "medium", Canonical("typo"))
	assert.Equal(t, "medium", Canonical(""))
}
