package render_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimo-ai/eterm/render"
)

func TestLineCachePath(t *testing.T) {
	c := render.NewLineCache(8, 2)

	// Cold: neither tier hits.
	_, ok := c.Image(1, 0)
	assert.False(t, ok)
	_, ok = c.Layout(1)
	assert.False(t, ok)

	layout := &render.ShapedLine{}
	c.AddLayout(1, layout)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	c.AddImage(1, 0, img)

	// Level-1: both hashes match.
	got, ok := c.Image(1, 0)
	require.True(t, ok)
	assert.Same(t, img, got)

	// Level-2: text matches, state differs.
	_, ok = c.Image(1, 99)
	assert.False(t, ok)
	gotLayout, ok := c.Layout(1)
	require.True(t, ok)
	assert.Same(t, layout, gotLayout)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Level1)
	assert.Equal(t, uint64(1), stats.Level2)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestLineCacheInnerEviction(t *testing.T) {
	c := render.NewLineCache(8, 2)
	c.AddLayout(1, &render.ShapedLine{})

	for state := uint64(0); state < 3; state++ {
		c.AddImage(1, state, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	}

	// Inner tier holds 2 states; state 0 was evicted.
	_, ok := c.Image(1, 0)
	assert.False(t, ok)
	_, ok = c.Image(1, 2)
	assert.True(t, ok)
}

func TestLineCacheOuterEvictionDropsRenders(t *testing.T) {
	c := render.NewLineCache(2, 4)

	for text := uint64(1); text <= 3; text++ {
		c.AddLayout(text, &render.ShapedLine{})
		c.AddImage(text, 0, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	}

	// text=1 evicted with its whole render map.
	_, ok := c.Image(1, 0)
	assert.False(t, ok)
	_, ok = c.Layout(1)
	assert.False(t, ok)

	_, ok = c.Image(3, 0)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLineCachePurge(t *testing.T) {
	c := render.NewLineCache(8, 2)
	c.AddLayout(1, &render.ShapedLine{})
	c.AddImage(1, 0, image.NewRGBA(image.Rect(0, 0, 1, 1)))

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Image(1, 0)
	assert.False(t, ok)
}

func TestLineCacheBudget(t *testing.T) {
	c := render.NewLineCache(4096, 4)

	// 1 MiB budget at 64 KiB per line and 4 states per line is 4 lines,
	// which SetBudget raises to its 16-line floor.
	c.SetBudget(1<<20, 64<<10)
	for text := uint64(0); text < 10; text++ {
		c.AddLayout(text, &render.ShapedLine{})
	}
	assert.LessOrEqual(t, c.Len(), 16)
}
