// Package compose places per-terminal frames onto the final surface
// image handed to the host's GPU context.
package compose

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/vimo-ai/eterm/render"
)

// Placement is one terminal frame at its host-assigned rectangle, in
// draw order (back to front).
type Placement struct {
	Rect  image.Rectangle
	Frame *render.Frame

	// Glow draws an emphasis border at the frame's rect (active
	// terminal); the compositor never interprets frame contents.
	Glow bool
}

// Compositor combines per-terminal frames into a single surface-sized
// image. Frames are blitted verbatim; only a scale mismatch between a
// frame and the surface triggers nearest-neighbour resampling, which
// keeps pixel-aligned grids sharp.
type Compositor struct {
	width  int
	height int
	scale  float64

	background color.RGBA
	glow       color.RGBA
}

// New creates a compositor for a surface of the given physical size
// and scale.
func New(width, height int, scale float64) *Compositor {
	if scale <= 0 {
		scale = 1
	}
	return &Compositor{
		width:      width,
		height:     height,
		scale:      scale,
		background: color.RGBA{A: 255},
		glow:       color.RGBA{R: 90, G: 140, B: 240, A: 255},
	}
}

// Resize updates the surface geometry.
func (c *Compositor) Resize(width, height int, scale float64) {
	c.width = width
	c.height = height
	if scale > 0 {
		c.scale = scale
	}
}

// SetBackground sets the surface clear color.
func (c *Compositor) SetBackground(bg color.RGBA) {
	c.background = bg
}

// Size returns the surface dimensions in physical pixels.
func (c *Compositor) Size() (width, height int) {
	return c.width, c.height
}

// Composite draws the placements back-to-front with premultiplied
// alpha onto a fresh surface image.
func (c *Compositor) Composite(placements []Placement) *image.RGBA {
	surface := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(surface, surface.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)

	for _, p := range placements {
		if p.Frame == nil || p.Frame.Image == nil {
			continue
		}
		dst := p.Rect.Intersect(surface.Bounds())
		if dst.Empty() {
			continue
		}

		src := p.Frame.Image
		if p.Frame.Scale != c.scale {
			xdraw.NearestNeighbor.Scale(surface, p.Rect, src, src.Bounds(), xdraw.Over, nil)
		} else {
			draw.Draw(surface, dst, src, image.Point{}, draw.Over)
		}

		if p.Glow {
			c.drawGlow(surface, p.Rect)
		}
	}

	return surface
}

// drawGlow strokes a 2px emphasis border just inside the rect.
func (c *Compositor) drawGlow(surface *image.RGBA, r image.Rectangle) {
	r = r.Intersect(surface.Bounds())
	if r.Dx() < 4 || r.Dy() < 4 {
		return
	}
	u := image.NewUniform(c.glow)
	draw.Draw(surface, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+2), u, image.Point{}, draw.Src)
	draw.Draw(surface, image.Rect(r.Min.X, r.Max.Y-2, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(surface, image.Rect(r.Min.X, r.Min.Y, r.Min.X+2, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(surface, image.Rect(r.Max.X-2, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
}
