package render

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// ErrAtlasFull is returned by Insert when no shelf can fit the glyph.
// The caller resets the atlas once and retries; a second failure
// leaves that glyph blank, and the rest of its line still draws.
var ErrAtlasFull = errors.New("render: atlas full")

// GlyphFlags select style variants that change the raster.
type GlyphFlags uint8

const (
	GlyphBold GlyphFlags = 1 << iota
	GlyphItalic
)

// GlyphKey identifies one glyph raster in the atlas. Pixel size and
// face index isolate rasters across font changes within one atlas
// generation; the whole atlas is cleared on font or DPI change.
type GlyphKey struct {
	Rune   rune
	Face   uint8
	Pixels uint16 // cell height in device pixels
	Flags  GlyphFlags
}

// shelf is one horizontal packing row of the atlas.
type shelf struct {
	y      int
	height int
	x      int
}

// AtlasSize is the default atlas edge length in pixels.
const AtlasSize = 2048

// Atlas is the shared glyph store: a single alpha bitmap into which
// glyph rasters are shelf-packed. Glyphs are stored as coverage masks;
// color is applied at composition, so one raster serves every palette
// color. Access runs under a short-held mutex shared by all renderers.
type Atlas struct {
	mu      sync.Mutex
	img     *image.Alpha
	size    int
	shelves []shelf
	entries map[GlyphKey]image.Rectangle
	gen     uint64
	dirty   bool
}

// NewAtlas creates an atlas with the given edge length (AtlasSize when
// size <= 0).
func NewAtlas(size int) *Atlas {
	if size <= 0 {
		size = AtlasSize
	}
	return &Atlas{
		img:     image.NewAlpha(image.Rect(0, 0, size, size)),
		size:    size,
		entries: make(map[GlyphKey]image.Rectangle),
		gen:     1,
	}
}

// Lookup returns the atlas rectangle for a glyph key.
func (a *Atlas) Lookup(key GlyphKey) (image.Rectangle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.entries[key]
	return r, ok
}

// Insert copies a glyph tile into the atlas and records its rectangle.
// Returns ErrAtlasFull when no shelf fits.
func (a *Atlas) Insert(key GlyphKey, tile *image.Alpha) (image.Rectangle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r, ok := a.entries[key]; ok {
		return r, nil
	}

	w := tile.Bounds().Dx()
	h := tile.Bounds().Dy()
	if w > a.size || h > a.size {
		return image.Rectangle{}, ErrAtlasFull
	}

	x, y, ok := a.allocLocked(w, h)
	if !ok {
		return image.Rectangle{}, ErrAtlasFull
	}

	dst := image.Rect(x, y, x+w, y+h)
	for ty := 0; ty < h; ty++ {
		srcOff := tile.PixOffset(tile.Bounds().Min.X, tile.Bounds().Min.Y+ty)
		dstOff := a.img.PixOffset(x, y+ty)
		copy(a.img.Pix[dstOff:dstOff+w], tile.Pix[srcOff:srcOff+w])
	}

	a.entries[key] = dst
	a.dirty = true
	return dst, nil
}

// allocLocked finds a spot for a w x h tile using shelf packing:
// reuse the first shelf that is tall enough and has room, else open a
// new shelf below the last one.
func (a *Atlas) allocLocked(w, h int) (x, y int, ok bool) {
	for i := range a.shelves {
		s := &a.shelves[i]
		if h <= s.height && s.x+w <= a.size {
			x, y = s.x, s.y
			s.x += w
			return x, y, true
		}
	}

	nextY := 0
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		nextY = last.y + last.height
	}
	if nextY+h > a.size {
		return 0, 0, false
	}
	a.shelves = append(a.shelves, shelf{y: nextY, height: h, x: w})
	return 0, nextY, true
}

// Reset clears the atlas wholesale. Existing composed line images stay
// valid (they carry their own pixels); only future glyph lookups miss.
func (a *Atlas) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.img.Pix {
		a.img.Pix[i] = 0
	}
	a.shelves = a.shelves[:0]
	a.entries = make(map[GlyphKey]image.Rectangle)
	a.gen++
	a.dirty = true
}

// Generation returns the reset generation counter.
func (a *Atlas) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

// TakeDirty reports whether glyphs were added since the last call and
// clears the flag. GPU-backed hosts re-upload the atlas texture when
// this fires.
func (a *Atlas) TakeDirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.dirty
	a.dirty = false
	return d
}

// Image exposes the backing bitmap for composition. Callers must treat
// it as read-only and hold no reference across a Reset.
func (a *Atlas) Image() *image.Alpha {
	return a.img
}

// EntryCount returns the number of stored glyphs.
func (a *Atlas) EntryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// rasterizeGlyph draws one glyph into a cell-sized alpha tile.
// Wide glyphs get a double-width tile. Synthetic bold is a second pass
// offset one pixel right.
func rasterizeGlyph(face font.Face, r rune, m Metrics, wide bool, flags GlyphFlags) *image.Alpha {
	w := m.CellWidth
	if wide {
		w *= 2
	}
	tile := image.NewAlpha(image.Rect(0, 0, w, m.CellHeight))

	d := &font.Drawer{
		Dst:  tile,
		Src:  image.NewUniform(color.Alpha{A: 255}),
		Face: face,
		Dot:  fixed.P(0, m.Ascent),
	}
	d.DrawString(string(r))

	if flags&GlyphBold != 0 {
		d.Dot = fixed.P(1, m.Ascent)
		d.DrawString(string(r))
	}

	return tile
}

// fallbackGlyph draws the tofu box used when no face carries the rune.
func fallbackGlyph(m Metrics, wide bool) *image.Alpha {
	w := m.CellWidth
	if wide {
		w *= 2
	}
	tile := image.NewAlpha(image.Rect(0, 0, w, m.CellHeight))

	x0, y0 := 1, 1
	x1, y1 := w-2, m.CellHeight-2
	if x1 <= x0 || y1 <= y0 {
		return tile
	}
	for x := x0; x <= x1; x++ {
		tile.SetAlpha(x, y0, color.Alpha{A: 255})
		tile.SetAlpha(x, y1, color.Alpha{A: 255})
	}
	for y := y0; y <= y1; y++ {
		tile.SetAlpha(x0, y, color.Alpha{A: 255})
		tile.SetAlpha(x1, y, color.Alpha{A: 255})
	}
	return tile
}
