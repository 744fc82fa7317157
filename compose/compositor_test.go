package compose_test

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimo-ai/eterm/compose"
	"github.com/vimo-ai/eterm/render"
)

func solidFrame(w, h int, c color.RGBA, scale float64) *render.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return &render.Frame{Image: img, Scale: scale}
}

func TestCompositePlacesFrames(t *testing.T) {
	c := compose.New(100, 50, 1)

	red := solidFrame(40, 50, color.RGBA{255, 0, 0, 255}, 1)
	blue := solidFrame(40, 50, color.RGBA{0, 0, 255, 255}, 1)

	surface := c.Composite([]compose.Placement{
		{Rect: image.Rect(0, 0, 40, 50), Frame: red},
		{Rect: image.Rect(60, 0, 100, 50), Frame: blue},
	})

	require.Equal(t, image.Rect(0, 0, 100, 50), surface.Bounds())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, surface.RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, surface.RGBAAt(70, 10))
	// Gap keeps the background.
	assert.Equal(t, color.RGBA{A: 255}, surface.RGBAAt(50, 10))
}

func TestCompositeDrawOrder(t *testing.T) {
	c := compose.New(50, 50, 1)

	bottom := solidFrame(50, 50, color.RGBA{255, 0, 0, 255}, 1)
	top := solidFrame(50, 50, color.RGBA{0, 255, 0, 255}, 1)

	surface := c.Composite([]compose.Placement{
		{Rect: image.Rect(0, 0, 50, 50), Frame: bottom},
		{Rect: image.Rect(0, 0, 50, 50), Frame: top},
	})

	assert.Equal(t, color.RGBA{0, 255, 0, 255}, surface.RGBAAt(25, 25), "later placements draw on top")
}

func TestCompositeScaleMismatchResamples(t *testing.T) {
	c := compose.New(40, 40, 2)

	// A 1x-scale frame placed on a 2x surface is rescaled to its rect.
	frame := solidFrame(10, 10, color.RGBA{255, 255, 0, 255}, 1)
	surface := c.Composite([]compose.Placement{
		{Rect: image.Rect(0, 0, 20, 20), Frame: frame},
	})

	assert.Equal(t, color.RGBA{255, 255, 0, 255}, surface.RGBAAt(15, 15))
	assert.Equal(t, color.RGBA{A: 255}, surface.RGBAAt(25, 25))
}

func TestCompositeGlowBorder(t *testing.T) {
	c := compose.New(50, 50, 1)

	frame := solidFrame(30, 30, color.RGBA{10, 10, 10, 255}, 1)
	surface := c.Composite([]compose.Placement{
		{Rect: image.Rect(10, 10, 40, 40), Frame: frame, Glow: true},
	})

	border := surface.RGBAAt(10, 10)
	assert.NotEqual(t, color.RGBA{10, 10, 10, 255}, border, "glow border drawn at the rect edge")
	inner := surface.RGBAAt(25, 25)
	assert.Equal(t, color.RGBA{10, 10, 10, 255}, inner)
}

func TestCompositeClipsOutOfBounds(t *testing.T) {
	c := compose.New(30, 30, 1)

	frame := solidFrame(20, 20, color.RGBA{255, 0, 0, 255}, 1)
	surface := c.Composite([]compose.Placement{
		{Rect: image.Rect(20, 20, 40, 40), Frame: frame},
		{Rect: image.Rect(-100, -100, -50, -50), Frame: frame},
		{Frame: nil},
	})

	assert.Equal(t, color.RGBA{255, 0, 0, 255}, surface.RGBAAt(25, 25))
}

func TestCompositorResize(t *testing.T) {
	c := compose.New(10, 10, 1)
	c.Resize(64, 32, 2)

	w, h := c.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)

	surface := c.Composite(nil)
	assert.Equal(t, image.Rect(0, 0, 64, 32), surface.Bounds())
}
