package render

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	xdraw "golang.org/x/image/draw"

	"github.com/vimo-ai/eterm"
)

// Viewport is the host-provided target geometry for one frame, in
// physical pixels.
type Viewport struct {
	Width  int
	Height int
	Scale  float64
}

// RenderOptions carry per-frame overlay state that is never stored in
// the terminal: the cursor blink phase (derived from the wall clock on
// the scheduling thread) and the optional hovered hyperlink group.
type RenderOptions struct {
	BlinkOn     bool
	HideCursor  bool
	HoverLinkID string
}

// Frame is the renderer output for one terminal: an RGBA image plus
// metadata. Immutable after construction; the compositor consumes it
// once.
type Frame struct {
	Image *image.RGBA
	Scale float64

	// FreshLines lists the viewport rows that were composed this frame
	// (cache misses and Level-2 hits); used for validation.
	FreshLines []int
}

// Bounds returns the frame's pixel bounds.
func (f *Frame) Bounds() image.Rectangle {
	return f.Image.Bounds()
}

// Renderer turns one terminal's snapshots into frames. The font set
// and glyph atlas are shared across renderers; the line cache is
// per-terminal. Not safe for concurrent use; the application drives
// all renders from one thread.
type Renderer struct {
	fonts *FontSet
	theme *Theme
	atlas *Atlas
	cache *LineCache

	themeGen    uint64
	lastFontGen uint64
	lastCols    int
}

// New creates a renderer over shared fonts and atlas with its own line
// cache.
func New(fonts *FontSet, theme *Theme, atlas *Atlas) *Renderer {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Renderer{
		fonts:    fonts,
		theme:    theme,
		atlas:    atlas,
		cache:    NewLineCache(0, 0),
		themeGen: 1,
	}
}

// SetTheme swaps the theme and invalidates the line cache.
func (r *Renderer) SetTheme(theme *Theme) {
	if theme == nil {
		return
	}
	r.theme = theme
	r.themeGen++
	r.cache.Purge()
}

// Theme returns the active theme.
func (r *Renderer) Theme() *Theme {
	return r.theme
}

// InvalidateCache drops every cached layout and image. Called on font,
// DPI and geometry changes.
func (r *Renderer) InvalidateCache() {
	r.cache.Purge()
}

// Stats returns the line cache hit counters.
func (r *Renderer) Stats() Stats {
	return r.cache.Stats()
}

// ResetStats zeroes the line cache hit counters.
func (r *Renderer) ResetStats() {
	r.cache.ResetStats()
}

// Render composes one frame from a snapshot. The frame is sized to the
// viewport; lines beyond the grid render as background. Never fails:
// missing glyphs draw the fallback box, and a glyph that still does not
// fit after one atlas reset is left blank; the rest of its line draws.
func (r *Renderer) Render(snap *eterm.TerminalState, vp Viewport, opts RenderOptions) *Frame {
	m := r.fonts.Metrics()

	// Geometry or font changes invalidate every cached line image.
	if gen := r.fonts.Generation(); gen != r.lastFontGen || snap.Cols != r.lastCols {
		if r.lastFontGen != 0 {
			r.cache.Purge()
		}
		r.lastFontGen = gen
		r.lastCols = snap.Cols
		r.cache.SetBudget(lineCacheBudget, snap.Cols*m.CellWidth*m.LineHeight*4)
	}

	frame := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(r.theme.Background), image.Point{}, draw.Src)

	var fresh []int
	for viewRow, absLine := range snap.VisibleLines() {
		y := viewRow * m.LineHeight
		if y >= vp.Height {
			break
		}

		row := snap.Line(absLine)
		if row == nil {
			continue
		}

		textHash := r.textHash(row, snap.Cols)
		stateHash := r.stateHash(snap, absLine, row, opts)

		img, level1 := r.cache.Image(textHash, stateHash)
		if !level1 {
			layout, ok := r.cache.Layout(textHash)
			if !ok {
				layout = r.shapeLine(row)
				r.cache.AddLayout(textHash, layout)
			}
			img = r.composeLine(snap, row, layout, absLine, m, opts)
			r.cache.AddImage(textHash, stateHash, img)
			fresh = append(fresh, viewRow)
		}

		draw.Draw(frame, image.Rect(0, y, img.Bounds().Dx(), y+img.Bounds().Dy()), img, image.Point{}, draw.Src)
	}

	r.drawPlacements(frame, snap, m)

	return &Frame{
		Image:      frame,
		Scale:      vp.Scale,
		FreshLines: fresh,
	}
}

// lineCacheBudget is the per-terminal composed-image budget in bytes.
const lineCacheBudget = 64 * 1024 * 1024

// textHash digests everything that affects glyph geometry or raster
// appearance independently of UI state: the row content (characters,
// styles, colors), the font generation, the theme generation and the
// column count. Cursor, selection and search are pruned by
// construction — they are not part of the row.
func (r *Renderer) textHash(row *eterm.Row, cols int) uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], row.ContentHash())
	binary.LittleEndian.PutUint64(buf[8:], r.lastFontGen)
	binary.LittleEndian.PutUint64(buf[16:], r.themeGen)
	binary.LittleEndian.PutUint64(buf[24:], uint64(cols))
	return xxhash.Sum64(buf[:])
}

// stateHash digests exactly the UI state intersecting this line:
// cursor (column, style, phase) when it sits here, the selection span
// clipped to the line, search match spans with the focused marker, and
// the hovered hyperlink. Lines touched by none of those share the
// constant hash 0, which is what makes moving the cursor from row A to
// row B invalidate exactly two lines.
func (r *Renderer) stateHash(snap *eterm.TerminalState, absLine int, row *eterm.Row, opts RenderOptions) uint64 {
	var buf []byte

	if c, ok := cursorOnLine(snap, absLine, opts); ok {
		buf = append(buf, 1, byte(c.Col), byte(c.Col>>8), byte(c.Style))
		if snap.CursorBlink {
			if opts.BlinkOn {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}

	if snap.Selection != nil {
		if start, end, ok := snap.Selection.SpanOnLine(absLine, row.Len()); ok {
			buf = append(buf, 2, byte(start), byte(start>>8), byte(end), byte(end>>8))
		}
	}

	for i, match := range snap.SearchMatches {
		start, end, ok := matchSpanOnLine(match, absLine, row.Len())
		if !ok {
			continue
		}
		focused := byte(0)
		if i == snap.SearchFocused {
			focused = 1
		}
		buf = append(buf, 3, byte(start), byte(start>>8), byte(end), byte(end>>8), focused)
	}

	if opts.HoverLinkID != "" && rowHasLink(row, opts.HoverLinkID) {
		buf = append(buf, 4)
		buf = append(buf, opts.HoverLinkID...)
	}

	if len(buf) == 0 {
		return 0
	}
	h := xxhash.Sum64(buf)
	if h == 0 {
		h = 1
	}
	return h
}

// cursorOnLine reports whether the (drawable) cursor sits on absLine.
func cursorOnLine(snap *eterm.TerminalState, absLine int, opts RenderOptions) (eterm.Cursor, bool) {
	c := snap.Cursor
	if opts.HideCursor || !c.Visible || absLine != c.Row {
		return c, false
	}
	return c, true
}

// matchSpanOnLine clips a search match to one line.
func matchSpanOnLine(m eterm.Match, line, lineWidth int) (startCol, endCol int, ok bool) {
	if line < m.Start.Line || line > m.End.Line {
		return 0, 0, false
	}
	startCol = 0
	endCol = lineWidth - 1
	if line == m.Start.Line {
		startCol = m.Start.Col
	}
	if line == m.End.Line {
		endCol = m.End.Col - 1
	}
	if endCol >= lineWidth {
		endCol = lineWidth - 1
	}
	if startCol > endCol {
		return 0, 0, false
	}
	return startCol, endCol, true
}

// rowHasLink scans a row for a hyperlink group id.
func rowHasLink(row *eterm.Row, id string) bool {
	for col := 0; col < row.Len(); col++ {
		if c := row.Cell(col); c != nil && c.Hyperlink != nil && c.Hyperlink.ID == id {
			return true
		}
	}
	return false
}

// shapeLine runs font selection and positioning for every visible
// glyph of a row. This is the expensive path the layout tier exists to
// avoid: each non-blank cell walks the face list.
func (r *Renderer) shapeLine(row *eterm.Row) *ShapedLine {
	m := r.fonts.Metrics()
	line := &ShapedLine{}

	for col := 0; col < row.Len(); col++ {
		cell := row.Cell(col)
		if cell == nil || cell.IsWideSpacer() {
			continue
		}
		ch := cell.Rune()
		if ch == ' ' {
			continue
		}

		width := 1
		if cell.IsWide() {
			width = 2
		}

		var flags GlyphFlags
		if cell.HasFlag(eterm.CellFlagBold) {
			flags |= GlyphBold
		}
		if cell.HasFlag(eterm.CellFlagItalic) {
			flags |= GlyphItalic
		}

		key := GlyphKey{Rune: ch, Pixels: uint16(m.CellHeight), Flags: flags}
		if face, ok := r.fonts.Lookup(ch); ok {
			key.Face = uint8(face)
		} else {
			// No face carries this rune; compose draws the fallback box.
			key.Rune = fallbackRune
			if width == 2 {
				key.Rune = fallbackRuneWide
			}
		}

		line.Glyphs = append(line.Glyphs, ShapedGlyph{Col: col, Width: width, Key: key})
	}

	return line
}

// Sentinel runes for the fallback box glyph (not valid Unicode).
const (
	fallbackRune     rune = -1
	fallbackRuneWide rune = -2
)

// composeLine builds the image for one line: per-cell backgrounds,
// glyph blits from the atlas, text decorations, then the UI overlays
// captured by the line's state hash.
func (r *Renderer) composeLine(snap *eterm.TerminalState, row *eterm.Row, layout *ShapedLine, absLine int, m Metrics, opts RenderOptions) *image.RGBA {
	width := snap.Cols * m.CellWidth
	img := image.NewRGBA(image.Rect(0, 0, width, m.LineHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.theme.Background), image.Point{}, draw.Src)

	palette := r.theme.Palette()

	cols := row.Len()
	if cols > snap.Cols {
		cols = snap.Cols
	}

	// Cell backgrounds and decorations.
	for col := 0; col < cols; col++ {
		cell := row.Cell(col)
		if cell == nil || cell.IsWideSpacer() {
			continue
		}
		fg, bg := r.cellColors(cell, palette)

		cellW := m.CellWidth
		if cell.IsWide() {
			cellW *= 2
		}
		x := col * m.CellWidth

		if bg != r.theme.Background {
			fillRect(img, image.Rect(x, 0, x+cellW, m.LineHeight), bg)
		}

		if cell.IsUnderlined() {
			uc := fg
			if cell.UnderlineColor != nil {
				uc = eterm.ResolveColor(cell.UnderlineColor, true, palette, r.theme.Foreground, r.theme.Background)
			}
			drawUnderline(img, x, cellW, m, cell, uc)
		}
		if cell.HasFlag(eterm.CellFlagStrike) {
			fillRect(img, image.Rect(x, m.CellHeight/2, x+cellW, m.CellHeight/2+1), fg)
		}
	}

	// Glyphs from the atlas.
	for _, g := range layout.Glyphs {
		if g.Col >= cols {
			break
		}
		cell := row.Cell(g.Col)
		if cell == nil || cell.HasFlag(eterm.CellFlagHidden) {
			continue
		}
		fg, _ := r.cellColors(cell, palette)
		r.blitGlyph(img, g, fg, m)
	}

	// Hyperlink hover emphasis: underline the hovered group.
	if opts.HoverLinkID != "" {
		for col := 0; col < cols; col++ {
			cell := row.Cell(col)
			if cell == nil || cell.Hyperlink == nil || cell.Hyperlink.ID != opts.HoverLinkID {
				continue
			}
			fg, _ := r.cellColors(cell, palette)
			x := col * m.CellWidth
			fillRect(img, image.Rect(x, m.Ascent+1, x+m.CellWidth, m.Ascent+2), fg)
		}
	}

	// Search overlays under the selection, focused match emphasized.
	for i, match := range snap.SearchMatches {
		start, end, ok := matchSpanOnLine(match, absLine, row.Len())
		if !ok {
			continue
		}
		c := r.theme.SearchMatch
		if i == snap.SearchFocused {
			c = r.theme.SearchFocus
		}
		blendRect(img, spanRect(start, end, m), c)
		if i == snap.SearchFocused {
			strokeRect(img, spanRect(start, end, m), rgba(r.theme.SearchFocus))
		}
	}

	// Selection overlay.
	if snap.Selection != nil {
		if start, end, ok := snap.Selection.SpanOnLine(absLine, row.Len()); ok {
			blendRect(img, spanRect(start, end, m), r.theme.Selection)
		}
	}

	// Cursor overlay.
	if c, ok := cursorOnLine(snap, absLine, opts); ok {
		if !snap.CursorBlink || opts.BlinkOn {
			wide := false
			if cell := row.Cell(c.Col); cell != nil && cell.IsWide() {
				wide = true
			}
			drawCursor(img, c, m, wide, r.theme.Cursor)
		}
	}

	return img
}

// cellColors resolves a cell's colors through the theme palette,
// honoring reverse video and dim.
func (r *Renderer) cellColors(cell *eterm.Cell, palette *[256]color.RGBA) (fg, bg color.RGBA) {
	fg = eterm.ResolveColor(cell.Fg, true, palette, r.theme.Foreground, r.theme.Background)
	bg = eterm.ResolveColor(cell.Bg, false, palette, r.theme.Foreground, r.theme.Background)

	if cell.HasFlag(eterm.CellFlagReverse) {
		fg, bg = bg, fg
	}
	if cell.HasFlag(eterm.CellFlagDim) {
		fg = color.RGBA{
			R: uint8(float64(fg.R) * 0.66),
			G: uint8(float64(fg.G) * 0.66),
			B: uint8(float64(fg.B) * 0.66),
			A: fg.A,
		}
	}
	return fg, bg
}

// blitGlyph copies one glyph from the atlas into the line image,
// tinting the coverage mask with the cell foreground. A miss
// rasterizes and inserts; a full atlas resets once and retries, then
// degrades the glyph to blank.
func (r *Renderer) blitGlyph(img *image.RGBA, g ShapedGlyph, fg color.RGBA, m Metrics) {
	rect, ok := r.atlas.Lookup(g.Key)
	if !ok {
		tile := r.rasterize(g, m)
		var err error
		rect, err = r.atlas.Insert(g.Key, tile)
		if err != nil {
			slog.Debug("atlas full, resetting", "glyphs", r.atlas.EntryCount())
			r.atlas.Reset()
			rect, err = r.atlas.Insert(g.Key, tile)
			if err != nil {
				slog.Error("atlas insert failed after reset, dropping glyph", "rune", g.Key.Rune)
				return
			}
		}
	}

	x := g.Col * m.CellWidth
	dst := image.Rect(x, 0, x+g.Width*m.CellWidth, m.CellHeight)
	draw.DrawMask(img, dst, image.NewUniform(fg), image.Point{}, r.atlas.Image(), rect.Min, draw.Over)
}

// rasterize produces the alpha tile for a glyph key.
func (r *Renderer) rasterize(g ShapedGlyph, m Metrics) *image.Alpha {
	if g.Key.Rune == fallbackRune || g.Key.Rune == fallbackRuneWide {
		return fallbackGlyph(m, g.Key.Rune == fallbackRuneWide)
	}
	return rasterizeGlyph(r.fonts.Face(int(g.Key.Face)), g.Key.Rune, m, g.Width == 2, g.Key.Flags)
}

// spanRect is the pixel rectangle covering cells [startCol, endCol].
func spanRect(startCol, endCol int, m Metrics) image.Rectangle {
	return image.Rect(startCol*m.CellWidth, 0, (endCol+1)*m.CellWidth, m.LineHeight)
}

// drawPlacements composites Sixel/Kitty image placements over the
// frame. Placement coordinates are screen rows; the display offset
// shifts them inside the viewport.
func (r *Renderer) drawPlacements(frame *image.RGBA, snap *eterm.TerminalState, m Metrics) {
	if len(snap.Placements) == 0 || snap.Images == nil {
		return
	}

	for _, p := range snap.Placements {
		img := snap.Images.Image(p.ImageID)
		if img == nil {
			continue
		}

		src := &image.RGBA{
			Pix:    img.Data,
			Stride: int(img.Width) * 4,
			Rect:   image.Rect(0, 0, int(img.Width), int(img.Height)),
		}
		srcRect := image.Rect(
			int(p.SrcX), int(p.SrcY),
			int(p.SrcX+p.SrcW), int(p.SrcY+p.SrcH),
		).Intersect(src.Rect)
		if srcRect.Empty() {
			continue
		}

		viewRow := p.Row + snap.DisplayOffset
		dstRect := image.Rect(
			p.Col*m.CellWidth+int(p.OffsetX),
			viewRow*m.LineHeight+int(p.OffsetY),
			(p.Col+p.Cols)*m.CellWidth+int(p.OffsetX),
			(viewRow+p.Rows)*m.LineHeight+int(p.OffsetY),
		)
		if !dstRect.Overlaps(frame.Bounds()) {
			continue
		}

		xdraw.NearestNeighbor.Scale(frame, dstRect, src, srcRect, xdraw.Over, nil)
	}
}
