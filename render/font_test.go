package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimo-ai/eterm/render"
)

func TestFontSetDefaults(t *testing.T) {
	fonts := render.NewFontSet(nil, 1.0)

	m := fonts.Metrics()
	assert.Equal(t, 7, m.CellWidth, "basic face advance")
	assert.Positive(t, m.CellHeight)
	assert.Equal(t, m.CellHeight, m.LineHeight, "factor 1.0")
	assert.Positive(t, m.Ascent)
}

func TestFontSetLineHeightFactor(t *testing.T) {
	fonts := render.NewFontSet(nil, 1.5)

	m := fonts.Metrics()
	assert.Greater(t, m.LineHeight, m.CellHeight)
}

func TestFontSetLookup(t *testing.T) {
	fonts := render.NewFontSet(nil, 1.0)

	face, ok := fonts.Lookup('M')
	require.True(t, ok)
	assert.Equal(t, 0, face)

	// The 7x13 basic face has no CJK coverage.
	_, ok = fonts.Lookup('世')
	assert.False(t, ok)
}

func TestFontSizeRoundTrip(t *testing.T) {
	fonts := render.NewFontSet(nil, 1.0)
	base := fonts.Size()

	require.True(t, fonts.ChangeSize(render.FontSizeIncrease))
	assert.Equal(t, base+1, fonts.Size())

	require.True(t, fonts.ChangeSize(render.FontSizeDecrease))
	assert.Equal(t, base, fonts.Size())

	fonts.ChangeSize(render.FontSizeIncrease)
	fonts.ChangeSize(render.FontSizeIncrease)
	require.True(t, fonts.ChangeSize(render.FontSizeReset))
	assert.Equal(t, base, fonts.Size())
}

func TestFontGenerationBumps(t *testing.T) {
	fonts := render.NewFontSet(nil, 1.0)
	gen := fonts.Generation()

	fonts.ChangeSize(render.FontSizeIncrease)
	assert.Greater(t, fonts.Generation(), gen)

	gen = fonts.Generation()
	assert.False(t, fonts.SetScale(fonts.Scale()), "same scale is a no-op")
	assert.Equal(t, gen, fonts.Generation())

	require.True(t, fonts.SetScale(2.0))
	assert.Greater(t, fonts.Generation(), gen)
	assert.Equal(t, 2.0, fonts.Scale())
}

func TestLoadFontSetMissingFilesFallBack(t *testing.T) {
	fonts, err := render.LoadFontSet([]string{"/nonexistent/font.ttf"}, 14, 1, 1)
	require.NoError(t, err, "missing files degrade to the built-in face")
	assert.Positive(t, fonts.Metrics().CellWidth)
}
