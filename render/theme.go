// Package render turns terminal snapshots into rasterized frames using
// a shared glyph atlas and a two-level per-line cache.
package render

import (
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vimo-ai/eterm"
)

// Theme holds the palette and UI colors used for composition. The 16
// ANSI colors extend to the standard 256-entry palette (color cube +
// grayscale ramp); 24-bit colors pass through untouched.
type Theme struct {
	ANSI       [16]color.RGBA
	Foreground color.RGBA
	Background color.RGBA
	Cursor     color.RGBA

	// Overlay colors; alpha is respected (non-premultiplied).
	Selection   color.NRGBA
	SearchMatch color.NRGBA
	SearchFocus color.NRGBA

	palette *[256]color.RGBA
}

// DefaultTheme returns the stock dark theme.
func DefaultTheme() *Theme {
	t := &Theme{
		Foreground:  eterm.DefaultForeground,
		Background:  eterm.DefaultBackground,
		Cursor:      eterm.DefaultCursorColor,
		Selection:   color.NRGBA{R: 80, G: 120, B: 200, A: 100},
		SearchMatch: color.NRGBA{R: 240, G: 200, B: 60, A: 90},
		SearchFocus: color.NRGBA{R: 255, G: 150, B: 40, A: 140},
	}
	copy(t.ANSI[:], eterm.DefaultPalette[:16])
	return t
}

// Palette returns the full 256-color palette derived from the theme's
// 16 ANSI colors. Cached after the first call.
func (t *Theme) Palette() *[256]color.RGBA {
	if t.palette != nil {
		return t.palette
	}

	var p [256]color.RGBA
	copy(p[:16], t.ANSI[:])
	copy(p[16:], eterm.DefaultPalette[16:])
	t.palette = &p
	return t.palette
}

// themeFile is the YAML shape of a theme on disk. Colors are "#rrggbb"
// or "#rrggbbaa".
type themeFile struct {
	ANSI        []string `yaml:"ansi"`
	Foreground  string   `yaml:"foreground"`
	Background  string   `yaml:"background"`
	Cursor      string   `yaml:"cursor"`
	Selection   string   `yaml:"selection"`
	SearchMatch string   `yaml:"search_match"`
	SearchFocus string   `yaml:"search_focus"`
}

// LoadTheme reads a YAML theme file. Missing fields keep the default
// theme's values.
func LoadTheme(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: read theme: %w", err)
	}
	return ParseTheme(data)
}

// ParseTheme parses YAML theme data.
func ParseTheme(data []byte) (*Theme, error) {
	var tf themeFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("render: parse theme: %w", err)
	}

	t := DefaultTheme()

	if len(tf.ANSI) > 16 {
		return nil, fmt.Errorf("render: theme has %d ansi colors, want at most 16", len(tf.ANSI))
	}
	for i, s := range tf.ANSI {
		c, err := parseHexColor(s)
		if err != nil {
			return nil, err
		}
		t.ANSI[i] = rgba(c)
	}

	assign := func(s string, dst *color.RGBA) error {
		if s == "" {
			return nil
		}
		c, err := parseHexColor(s)
		if err != nil {
			return err
		}
		*dst = rgba(c)
		return nil
	}
	assignN := func(s string, dst *color.NRGBA) error {
		if s == "" {
			return nil
		}
		c, err := parseHexColor(s)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	}

	if err := assign(tf.Foreground, &t.Foreground); err != nil {
		return nil, err
	}
	if err := assign(tf.Background, &t.Background); err != nil {
		return nil, err
	}
	if err := assign(tf.Cursor, &t.Cursor); err != nil {
		return nil, err
	}
	if err := assignN(tf.Selection, &t.Selection); err != nil {
		return nil, err
	}
	if err := assignN(tf.SearchMatch, &t.SearchMatch); err != nil {
		return nil, err
	}
	if err := assignN(tf.SearchFocus, &t.SearchFocus); err != nil {
		return nil, err
	}

	return t, nil
}

// parseHexColor parses "#rrggbb" or "#rrggbbaa".
func parseHexColor(s string) (color.NRGBA, error) {
	if len(s) == 0 || s[0] != '#' || (len(s) != 7 && len(s) != 9) {
		return color.NRGBA{}, fmt.Errorf("render: invalid color %q", s)
	}

	var vals [4]uint8
	vals[3] = 255
	for i := 0; (i+1)*2 < len(s); i++ {
		hi, ok1 := hexNibble(s[1+i*2])
		lo, ok2 := hexNibble(s[2+i*2])
		if !ok1 || !ok2 {
			return color.NRGBA{}, fmt.Errorf("render: invalid color %q", s)
		}
		vals[i] = hi<<4 | lo
	}
	return color.NRGBA{R: vals[0], G: vals[1], B: vals[2], A: vals[3]}, nil
}

func hexNibble(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// rgba converts a non-premultiplied color to opaque-or-premultiplied RGBA.
func rgba(c color.NRGBA) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}
