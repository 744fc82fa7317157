package render_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimo-ai/eterm/render"
)

func tile(w, h int) *image.Alpha {
	t := image.NewAlpha(image.Rect(0, 0, w, h))
	for i := range t.Pix {
		t.Pix[i] = 0xff
	}
	return t
}

func key(r rune) render.GlyphKey {
	return render.GlyphKey{Rune: r, Pixels: 13}
}

func TestAtlasInsertLookup(t *testing.T) {
	a := render.NewAtlas(64)

	rect, err := a.Insert(key('a'), tile(7, 13))
	require.NoError(t, err)
	assert.Equal(t, 7, rect.Dx())
	assert.Equal(t, 13, rect.Dy())

	got, ok := a.Lookup(key('a'))
	require.True(t, ok)
	assert.Equal(t, rect, got)

	// Pixels landed in the backing image.
	assert.Equal(t, uint8(0xff), a.Image().AlphaAt(rect.Min.X, rect.Min.Y).A)

	_, ok = a.Lookup(key('b'))
	assert.False(t, ok)
}

func TestAtlasDuplicateInsertReturnsSameRect(t *testing.T) {
	a := render.NewAtlas(64)

	r1, err := a.Insert(key('a'), tile(7, 13))
	require.NoError(t, err)
	r2, err := a.Insert(key('a'), tile(7, 13))
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, a.EntryCount())
}

func TestAtlasShelfPacking(t *testing.T) {
	a := render.NewAtlas(32)

	// Four 8x8 tiles fill one shelf; the fifth opens a second shelf.
	var rects []image.Rectangle
	for i := 0; i < 5; i++ {
		r, err := a.Insert(key(rune('a'+i)), tile(8, 8))
		require.NoError(t, err)
		rects = append(rects, r)
	}

	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, rects[i].Min.Y, "tile %d on first shelf", i)
	}
	assert.Equal(t, 8, rects[4].Min.Y, "fifth tile on second shelf")
}

func TestAtlasFullAndReset(t *testing.T) {
	a := render.NewAtlas(16)

	_, err := a.Insert(key('a'), tile(16, 16))
	require.NoError(t, err)

	_, err = a.Insert(key('b'), tile(16, 16))
	require.ErrorIs(t, err, render.ErrAtlasFull)

	gen := a.Generation()
	a.Reset()
	assert.Greater(t, a.Generation(), gen)
	assert.Equal(t, 0, a.EntryCount())

	_, err = a.Insert(key('b'), tile(16, 16))
	require.NoError(t, err)

	if _, ok := a.Lookup(key('a')); ok {
		t.Error("entry survived reset")
	}
}

func TestAtlasOversizedTile(t *testing.T) {
	a := render.NewAtlas(16)

	_, err := a.Insert(key('a'), tile(32, 8))
	assert.ErrorIs(t, err, render.ErrAtlasFull)
}

func TestAtlasDirtyFlag(t *testing.T) {
	a := render.NewAtlas(64)

	assert.False(t, a.TakeDirty())

	_, err := a.Insert(key('a'), tile(4, 4))
	require.NoError(t, err)
	assert.True(t, a.TakeDirty())
	assert.False(t, a.TakeDirty(), "flag must clear on take")
}

func TestAtlasGlyphKeysDistinct(t *testing.T) {
	a := render.NewAtlas(64)

	plain := render.GlyphKey{Rune: 'a', Pixels: 13}
	bold := render.GlyphKey{Rune: 'a', Pixels: 13, Flags: render.GlyphBold}

	_, err := a.Insert(plain, tile(7, 13))
	require.NoError(t, err)

	_, ok := a.Lookup(bold)
	assert.False(t, ok, "bold variant must be a distinct atlas entry")
}
