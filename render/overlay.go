package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/vimo-ai/eterm"
)

// fillRect paints a solid opaque rectangle.
func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// blendRect composites a translucent rectangle over the image.
// The color is non-premultiplied; draw handles the conversion.
func blendRect(img *image.RGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// strokeRect draws a 1px border inside the rectangle (focused search
// match emphasis).
func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// drawUnderline renders the underline variant carried by the cell.
func drawUnderline(img *image.RGBA, x, cellW int, m Metrics, cell *eterm.Cell, c color.RGBA) {
	y := m.Ascent + 1
	if y >= m.LineHeight-1 {
		y = m.LineHeight - 2
	}
	if y < 0 {
		y = 0
	}

	switch {
	case cell.HasFlag(eterm.CellFlagDoubleUnderline):
		fillRect(img, image.Rect(x, y, x+cellW, y+1), c)
		if y+2 < m.LineHeight {
			fillRect(img, image.Rect(x, y+2, x+cellW, y+3), c)
		}
	case cell.HasFlag(eterm.CellFlagDottedUnderline):
		for px := x; px < x+cellW; px += 2 {
			fillRect(img, image.Rect(px, y, px+1, y+1), c)
		}
	case cell.HasFlag(eterm.CellFlagCurlyUnderline):
		// Two-pixel wave approximation.
		for px := x; px < x+cellW; px++ {
			dy := 0
			if (px/2)%2 == 0 {
				dy = 1
			}
			if y+dy < m.LineHeight {
				fillRect(img, image.Rect(px, y+dy, px+1, y+dy+1), c)
			}
		}
	default:
		fillRect(img, image.Rect(x, y, x+cellW, y+1), c)
	}
}

// drawCursor renders the cursor overlay. Block inverts the covered
// cell (both halves for a wide glyph); underline and beam draw with
// the theme cursor color at fixed geometry.
func drawCursor(img *image.RGBA, c eterm.Cursor, m Metrics, wide bool, cursorColor color.RGBA) {
	w := m.CellWidth
	if wide {
		w *= 2
	}
	x := c.Col * m.CellWidth
	rect := image.Rect(x, 0, x+w, m.LineHeight).Intersect(img.Bounds())
	if rect.Empty() {
		return
	}

	switch c.Style {
	case eterm.CursorStyleBlinkingBlock, eterm.CursorStyleSteadyBlock:
		invertRect(img, rect)
	case eterm.CursorStyleBlinkingUnderline, eterm.CursorStyleSteadyUnderline:
		h := 2
		fillRect(img, image.Rect(rect.Min.X, rect.Max.Y-h, rect.Max.X, rect.Max.Y), cursorColor)
	case eterm.CursorStyleBlinkingBar, eterm.CursorStyleSteadyBar:
		fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+2, rect.Max.Y), cursorColor)
	}
}

// invertRect swaps foreground and background by inverting RGB in place.
func invertRect(img *image.RGBA, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Pix[off+0] = 255 - img.Pix[off+0]
			img.Pix[off+1] = 255 - img.Pix[off+1]
			img.Pix[off+2] = 255 - img.Pix[off+2]
			img.Pix[off+3] = 255
			off += 4
		}
	}
}
