package render

import (
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats counts cache outcomes per render path.
//
//   - Level1: text and state both matched; the stored image is reused
//     with zero work.
//   - Level2: the text matched but the UI state differs; the shaped
//     layout is reused and only composition runs (no font selection).
//   - Miss: the line is shaped, rasterized and composed from scratch.
type Stats struct {
	Level1 uint64
	Level2 uint64
	Misses uint64
}

// ShapedGlyph is one positioned glyph of a shaped line.
type ShapedGlyph struct {
	Col   int // cell column
	Width int // 1 or 2 cells
	Key   GlyphKey
}

// ShapedLine is the layout tier of the cache: the product of font
// selection and positioning, independent of colors and UI state.
type ShapedLine struct {
	Glyphs []ShapedGlyph
}

// lineEntry is one outer-cache slot: the shaped layout plus a small LRU
// of fully composed images keyed by UI-state hash.
type lineEntry struct {
	layout  *ShapedLine
	renders *lru.Cache[uint64, *image.RGBA]
}

const (
	// defaultLineCapacity bounds the outer tier (distinct line
	// contents) per terminal.
	defaultLineCapacity = 4096
	// defaultStateCapacity bounds composed images per line. A line is
	// shown in few simultaneous UI states (plain, cursor, selection,
	// search), so a small constant suffices.
	defaultStateCapacity = 6
)

// LineCache is the two-level render cache described by the renderer:
// text_hash -> {layout, state_hash -> image}. Both tiers evict LRU.
type LineCache struct {
	outer         *lru.Cache[uint64, *lineEntry]
	stateCapacity int
	stats         Stats
}

// NewLineCache creates a cache bounding distinct line contents and
// composed states per line. Zero values select the defaults.
func NewLineCache(lineCapacity, stateCapacity int) *LineCache {
	if lineCapacity <= 0 {
		lineCapacity = defaultLineCapacity
	}
	if stateCapacity <= 0 {
		stateCapacity = defaultStateCapacity
	}
	outer, _ := lru.New[uint64, *lineEntry](lineCapacity)
	return &LineCache{
		outer:         outer,
		stateCapacity: stateCapacity,
	}
}

// SetBudget bounds the cache by an approximate memory budget.
// bytesPerLine should be the size of one composed line image; the
// outer capacity follows from the budget and the per-line state bound.
func (c *LineCache) SetBudget(budgetBytes, bytesPerLine int) {
	if budgetBytes <= 0 || bytesPerLine <= 0 {
		return
	}
	lines := budgetBytes / (bytesPerLine * c.stateCapacity)
	if lines < 16 {
		lines = 16
	}
	c.outer.Resize(lines)
}

// Image returns the composed image for (textHash, stateHash) on a
// Level-1 hit.
func (c *LineCache) Image(textHash, stateHash uint64) (*image.RGBA, bool) {
	entry, ok := c.outer.Get(textHash)
	if !ok {
		return nil, false
	}
	img, ok := entry.renders.Get(stateHash)
	if !ok {
		return nil, false
	}
	c.stats.Level1++
	return img, true
}

// Layout returns the shaped layout for textHash on a Level-2 hit.
func (c *LineCache) Layout(textHash uint64) (*ShapedLine, bool) {
	entry, ok := c.outer.Get(textHash)
	if !ok {
		return nil, false
	}
	c.stats.Level2++
	return entry.layout, true
}

// AddLayout inserts a freshly shaped layout, counting a miss.
// Evicting an outer entry drops its entire render map.
func (c *LineCache) AddLayout(textHash uint64, layout *ShapedLine) {
	renders, _ := lru.New[uint64, *image.RGBA](c.stateCapacity)
	c.outer.Add(textHash, &lineEntry{layout: layout, renders: renders})
	c.stats.Misses++
}

// AddImage stores a composed image under (textHash, stateHash).
// No-op if the outer entry was already evicted.
func (c *LineCache) AddImage(textHash, stateHash uint64, img *image.RGBA) {
	if entry, ok := c.outer.Peek(textHash); ok {
		entry.renders.Add(stateHash, img)
	}
}

// Purge empties both tiers (font, DPI, theme or geometry change).
func (c *LineCache) Purge() {
	c.outer.Purge()
}

// Len returns the number of outer entries.
func (c *LineCache) Len() int {
	return c.outer.Len()
}

// Stats returns a copy of the hit counters.
func (c *LineCache) Stats() Stats {
	return c.stats
}

// ResetStats zeroes the hit counters.
func (c *LineCache) ResetStats() {
	c.stats = Stats{}
}
