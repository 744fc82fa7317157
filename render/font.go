package render

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Metrics are the derived cell dimensions in physical pixels.
// LineHeight is the vertical pitch between rows in a frame.
type Metrics struct {
	CellWidth  int
	CellHeight int
	Ascent     int
	LineHeight int
}

// FontSet holds the ordered face list (primary font plus fallbacks) at
// the current size and scale. A generation counter bumps on every
// size/scale change; caches key on it.
type FontSet struct {
	mu sync.Mutex

	sources  []*opentype.Font // parsed font files; may be empty
	baseSize float64          // logical pt size before zoom steps
	size     float64
	scale    float64
	factor   float64 // line height factor

	faces   []font.Face
	metrics Metrics
	gen     uint64
}

const (
	defaultFontSize  = 14
	fontSizeStep     = 1
	minFontSize      = 6
	maxFontSize      = 72
	defaultLineHFact = 1.0
)

// NewFontSet builds a FontSet over pre-constructed faces (the fixed
// 7x13 basic face when faces is empty). Face sizes are taken as-is;
// size changes only apply when the set was loaded from font files.
func NewFontSet(faces []font.Face, lineHeightFactor float64) *FontSet {
	if len(faces) == 0 {
		faces = []font.Face{basicfont.Face7x13}
	}
	if lineHeightFactor <= 0 {
		lineHeightFactor = defaultLineHFact
	}
	fs := &FontSet{
		baseSize: defaultFontSize,
		size:     defaultFontSize,
		scale:    1,
		factor:   lineHeightFactor,
		faces:    faces,
		gen:      1,
	}
	fs.metrics = deriveMetrics(faces[0], lineHeightFactor)
	return fs
}

// LoadFontSet parses the given font files and builds faces at
// size * scale. Files that fail to parse are skipped with a warning; if
// none load, or building their faces fails, the fixed basic face is
// used so rendering always works.
func LoadFontSet(paths []string, size, scale, lineHeightFactor float64) (*FontSet, error) {
	if size <= 0 {
		size = defaultFontSize
	}
	if scale <= 0 {
		scale = 1
	}
	if lineHeightFactor <= 0 {
		lineHeightFactor = defaultLineHFact
	}

	var sources []*opentype.Font
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("font file unreadable, skipping", "path", path, "error", err)
			continue
		}
		ft, err := opentype.Parse(data)
		if err != nil {
			slog.Warn("font file unparsable, skipping", "path", path, "error", err)
			continue
		}
		sources = append(sources, ft)
	}

	fs := &FontSet{
		sources:  sources,
		baseSize: size,
		size:     size,
		scale:    scale,
		factor:   lineHeightFactor,
		gen:      1,
	}
	if err := fs.rebuildLocked(); err != nil {
		slog.Warn("font face build failed, using built-in face", "error", err)
		fs.sources = nil
		_ = fs.rebuildLocked()
	}
	return fs, nil
}

// rebuildLocked re-derives faces and metrics for the current size and
// scale. Caller must hold fs.mu (or own the sole reference).
func (fs *FontSet) rebuildLocked() error {
	if len(fs.sources) == 0 {
		if len(fs.faces) == 0 {
			fs.faces = []font.Face{basicfont.Face7x13}
		}
		fs.metrics = deriveMetrics(fs.faces[0], fs.factor)
		return nil
	}

	faces := make([]font.Face, 0, len(fs.sources))
	for _, src := range fs.sources {
		face, err := opentype.NewFace(src, &opentype.FaceOptions{
			Size:    fs.size,
			DPI:     72 * fs.scale,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return fmt.Errorf("render: build face: %w", err)
		}
		faces = append(faces, face)
	}
	fs.faces = faces
	fs.metrics = deriveMetrics(faces[0], fs.factor)
	return nil
}

// deriveMetrics measures the primary face. Cell width comes from the
// advance of 'M'; a zero advance (degenerate face) falls back to 7px.
func deriveMetrics(face font.Face, factor float64) Metrics {
	m := face.Metrics()

	cellWidth := 0
	if adv, ok := face.GlyphAdvance('M'); ok {
		cellWidth = adv.Ceil()
	}
	if cellWidth == 0 {
		cellWidth = 7
	}
	cellHeight := m.Height.Ceil()
	if cellHeight == 0 {
		cellHeight = 13
	}

	return Metrics{
		CellWidth:  cellWidth,
		CellHeight: cellHeight,
		Ascent:     m.Ascent.Ceil(),
		LineHeight: int(math.Round(float64(cellHeight) * factor)),
	}
}

// Metrics returns the current cell metrics.
func (fs *FontSet) Metrics() Metrics {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.metrics
}

// Generation returns the current font generation. It changes whenever
// the faces or metrics change, invalidating glyph and line caches.
func (fs *FontSet) Generation() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.gen
}

// Size returns the current logical font size in points.
func (fs *FontSet) Size() float64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.size
}

// FontSizeOp selects how ChangeSize adjusts the font size.
type FontSizeOp int

const (
	FontSizeReset FontSizeOp = iota
	FontSizeDecrease
	FontSizeIncrease
)

// ChangeSize applies a font size step (or reset) and rebuilds faces.
// Returns true if the size actually changed.
func (fs *FontSet) ChangeSize(op FontSizeOp) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	size := fs.size
	switch op {
	case FontSizeReset:
		size = fs.baseSize
	case FontSizeDecrease:
		size -= fontSizeStep
	case FontSizeIncrease:
		size += fontSizeStep
	}
	size = math.Min(math.Max(size, minFontSize), maxFontSize)
	if size == fs.size {
		return false
	}

	fs.size = size
	if err := fs.rebuildLocked(); err != nil {
		slog.Error("font rebuild failed, keeping previous faces", "error", err)
		return false
	}
	fs.gen++
	return true
}

// SetScale applies a new display scale (DPI change) and rebuilds faces.
// Returns true if the scale actually changed.
func (fs *FontSet) SetScale(scale float64) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if scale <= 0 || scale == fs.scale {
		return false
	}
	fs.scale = scale
	if err := fs.rebuildLocked(); err != nil {
		slog.Error("font rebuild failed, keeping previous faces", "error", err)
		return false
	}
	fs.gen++
	return true
}

// Scale returns the current display scale.
func (fs *FontSet) Scale() float64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.scale
}

// Lookup finds the first face that carries a glyph for r. Returns the
// face index; ok is false when no face has it (callers draw the
// fallback box).
func (fs *FontSet) Lookup(r rune) (int, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i, face := range fs.faces {
		if _, ok := face.GlyphAdvance(r); ok {
			return i, true
		}
	}
	return 0, false
}

// Face returns the face at index (clamped).
func (fs *FontSet) Face(i int) font.Face {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if i < 0 || i >= len(fs.faces) {
		i = 0
	}
	return fs.faces[i]
}
