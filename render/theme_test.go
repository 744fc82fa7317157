package render_test

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimo-ai/eterm/render"
)

func TestDefaultThemePalette(t *testing.T) {
	theme := render.DefaultTheme()
	p := theme.Palette()

	// The first 16 entries are the theme's ANSI colors.
	assert.Equal(t, theme.ANSI[1], p[1])
	// The cube and grayscale ramp extend beyond.
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, p[16])
	assert.NotEqual(t, color.RGBA{}, p[255])
}

func TestParseTheme(t *testing.T) {
	theme, err := render.ParseTheme([]byte(`
foreground: "#ffffff"
background: "#101020"
cursor: "#ff8800"
selection: "#3355aa66"
ansi:
  - "#000000"
  - "#cc0000"
`))
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, theme.Foreground)
	assert.Equal(t, color.RGBA{16, 16, 32, 255}, theme.Background)
	assert.Equal(t, color.RGBA{255, 136, 0, 255}, theme.Cursor)
	assert.Equal(t, color.NRGBA{0x33, 0x55, 0xaa, 0x66}, theme.Selection)
	assert.Equal(t, color.RGBA{204, 0, 0, 255}, theme.ANSI[1])

	// Unspecified entries keep defaults.
	def := render.DefaultTheme()
	assert.Equal(t, def.ANSI[4], theme.ANSI[4])
	assert.Equal(t, def.SearchMatch, theme.SearchMatch)
}

func TestParseThemeInvalidColor(t *testing.T) {
	_, err := render.ParseTheme([]byte(`foreground: "red"`))
	assert.Error(t, err)

	_, err = render.ParseTheme([]byte(`foreground: "#12"`))
	assert.Error(t, err)
}

func TestParseThemeTooManyAnsi(t *testing.T) {
	yaml := "ansi:\n"
	for i := 0; i < 17; i++ {
		yaml += "  - \"#000000\"\n"
	}
	_, err := render.ParseTheme([]byte(yaml))
	assert.Error(t, err)
}
