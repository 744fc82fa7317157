package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vimo-ai/eterm"
)

// Config is the engine configuration handed in by the host at
// construction. Field zero values select the documented defaults.
type Config struct {
	// Initial terminal geometry in cells.
	Cols int `yaml:"cols"`
	Rows int `yaml:"rows"`

	// Shell is the default child program for new terminals.
	Shell string `yaml:"shell"`

	// HistorySize bounds scrollback per terminal, in lines.
	HistorySize int `yaml:"history_size"`

	// Font configuration. FontPaths lists the primary font file first,
	// fallbacks after; an empty list uses the built-in bitmap face.
	FontPaths        []string `yaml:"font_paths"`
	FontSize         float64  `yaml:"font_size"`
	LineHeightFactor float64  `yaml:"line_height_factor"`

	// Surface geometry in physical pixels and the display scale.
	WindowWidth  int     `yaml:"window_width"`
	WindowHeight int     `yaml:"window_height"`
	Scale        float64 `yaml:"scale"`

	// RefreshRate is the display refresh in Hz driving the scheduler.
	RefreshRate int `yaml:"refresh_rate"`

	// ThemePath points at a YAML theme file; empty uses the default
	// dark theme.
	ThemePath string `yaml:"theme_path"`

	// WordDelimiters are the extra runes terminating a semantic word
	// selection.
	WordDelimiters string `yaml:"word_delimiters"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Cols:             eterm.DefaultCols,
		Rows:             eterm.DefaultRows,
		Shell:            defaultShell(),
		HistorySize:      eterm.DefaultHistorySize,
		FontSize:         14,
		LineHeightFactor: 1.0,
		WindowWidth:      1280,
		WindowHeight:     800,
		Scale:            1.0,
		RefreshRate:      60,
		WordDelimiters:   eterm.DefaultWordDelimiters,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("app: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("app: parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values in place.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Cols <= 0 {
		c.Cols = d.Cols
	}
	if c.Rows <= 0 {
		c.Rows = d.Rows
	}
	if c.Shell == "" {
		c.Shell = d.Shell
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.FontSize <= 0 {
		c.FontSize = d.FontSize
	}
	if c.LineHeightFactor <= 0 {
		c.LineHeightFactor = d.LineHeightFactor
	}
	if c.WindowWidth <= 0 {
		c.WindowWidth = d.WindowWidth
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = d.WindowHeight
	}
	if c.Scale <= 0 {
		c.Scale = d.Scale
	}
	if c.RefreshRate <= 0 {
		c.RefreshRate = d.RefreshRate
	}
	if c.WordDelimiters == "" {
		c.WordDelimiters = d.WordDelimiters
	}
}

// valid reports obviously broken configurations the boundary rejects.
func (c *Config) valid() bool {
	return c.Cols > 0 && c.Rows > 0 && c.WindowWidth > 0 && c.WindowHeight > 0 &&
		c.Scale > 0 && c.RefreshRate > 0
}

// defaultShell picks the user's shell, falling back to /bin/sh.
func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}
