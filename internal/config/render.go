// Package config loads render configuration for plot jobs.
package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/plotkit/hpglemu/internal/hpgl"
	"github.com/plotkit/hpglemu/internal/units"
)

// PenEntry configures one pen slot: an ink color and a line width in
// millimetres.
type PenEntry struct {
	Color     *string  `json:"color,omitempty"`
	LineWidth *float64 `json:"line_width,omitempty"`
}

// TextEntry configures label rendering overrides.
type TextEntry struct {
	Color *string `json:"color,omitempty"`
}

// RenderConfig is the root render configuration. Fields omitted from
// the JSON file retain their default values, so partial configs are
// safe; the Get* methods provide the fallbacks.
type RenderConfig struct {
	// Paper size in mm.
	PaperWidthMM  *float64 `json:"paper_width_mm,omitempty"`
	PaperHeightMM *float64 `json:"paper_height_mm,omitempty"`

	// Margins stripped from the image, in mm: top, left, bottom,
	// right. Set to zeros for printable PDF output.
	CropMM *[4]float64 `json:"crop_mm,omitempty"`

	// DPI determines the raster image size; vector formats ignore it.
	DPI *float64 `json:"dpi,omitempty"`

	BackgroundColor *string `json:"background_color,omitempty"`

	// Pens maps pen numbers (as JSON keys) to pen settings. Pen 0 is
	// always the stored pen and cannot be overridden.
	Pens map[string]PenEntry `json:"pens,omitempty"`

	Text *TextEntry `json:"text,omitempty"`
}

// EmptyRenderConfig returns a RenderConfig with all fields unset.
func EmptyRenderConfig() *RenderConfig {
	return &RenderConfig{}
}

// LoadRenderConfig loads a RenderConfig from a JSON file.
func LoadRenderConfig(path string) (*RenderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRenderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *RenderConfig) Validate() error {
	if c.PaperWidthMM != nil && *c.PaperWidthMM <= 0 {
		return fmt.Errorf("paper_width_mm must be positive, got %g", *c.PaperWidthMM)
	}
	if c.PaperHeightMM != nil && *c.PaperHeightMM <= 0 {
		return fmt.Errorf("paper_height_mm must be positive, got %g", *c.PaperHeightMM)
	}
	if c.DPI != nil && (*c.DPI < 36 || *c.DPI > 2400) {
		return fmt.Errorf("dpi must be between 36 and 2400, got %g", *c.DPI)
	}
	if c.CropMM != nil {
		for i, v := range c.CropMM {
			if v < 0 {
				return fmt.Errorf("crop_mm[%d] must be non-negative, got %g", i, v)
			}
		}
	}
	if c.BackgroundColor != nil {
		if _, err := ParseColor(*c.BackgroundColor); err != nil {
			return fmt.Errorf("invalid background_color: %w", err)
		}
	}
	for key, pen := range c.Pens {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || n < 1 {
			return fmt.Errorf("pen key %q must be a positive integer", key)
		}
		if pen.Color != nil {
			if _, err := ParseColor(*pen.Color); err != nil {
				return fmt.Errorf("invalid color for pen %q: %w", key, err)
			}
		}
		if pen.LineWidth != nil && *pen.LineWidth <= 0 {
			return fmt.Errorf("line_width for pen %q must be positive, got %g", key, *pen.LineWidth)
		}
	}
	if c.Text != nil && c.Text.Color != nil {
		if _, err := ParseColor(*c.Text.Color); err != nil {
			return fmt.Errorf("invalid text color: %w", err)
		}
	}
	return nil
}

// GetPaperWidthMM returns the paper width or the A4 landscape default.
func (c *RenderConfig) GetPaperWidthMM() float64 {
	if c.PaperWidthMM == nil {
		return units.DefaultPaperWidthMM
	}
	return *c.PaperWidthMM
}

// GetPaperHeightMM returns the paper height or the A4 landscape default.
func (c *RenderConfig) GetPaperHeightMM() float64 {
	if c.PaperHeightMM == nil {
		return units.DefaultPaperHeightMM
	}
	return *c.PaperHeightMM
}

// GetCropMM returns the crop margins (top, left, bottom, right). The
// defaults trim the dead zones an HP 7475 leaves around an A4 sheet.
func (c *RenderConfig) GetCropMM() [4]float64 {
	if c.CropMM == nil {
		return [4]float64{25, 10, 5, 15}
	}
	return *c.CropMM
}

// GetDPI returns the raster resolution or the 400 dpi default.
func (c *RenderConfig) GetDPI() float64 {
	if c.DPI == nil {
		return 400
	}
	return *c.DPI
}

// GetBackgroundColor returns the canvas background, black by default:
// phosphor-on-black suits the instrument screenshots these plots
// usually are.
func (c *RenderConfig) GetBackgroundColor() color.RGBA {
	if c.BackgroundColor == nil {
		return color.RGBA{0, 0, 0, 0xFF}
	}
	col, err := ParseColor(*c.BackgroundColor)
	if err != nil {
		return color.RGBA{0, 0, 0, 0xFF}
	}
	return col
}

// GetPalette builds the pen palette: the defaults overlaid with any
// configured pens.
func (c *RenderConfig) GetPalette() hpgl.Palette {
	palette := hpgl.DefaultPalette()
	for key, entry := range c.Pens {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || n < 1 {
			continue
		}
		pen := palette.Pen(n)
		if pen.WidthMM == 0 {
			pen.WidthMM = 0.5
		}
		if pen.Color.A == 0 {
			// A slot outside the default carousel starts from the
			// transparent stored pen; give it visible ink so a
			// width-only entry still draws.
			pen.Color = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
		}
		if entry.Color != nil {
			if col, err := ParseColor(*entry.Color); err == nil {
				pen.Color = col
			}
		}
		if entry.LineWidth != nil {
			pen.WidthMM = *entry.LineWidth
		}
		palette[n] = pen
	}
	return palette
}

// GetTextColor returns the label color override, or nil to draw labels
// with the active pen.
func (c *RenderConfig) GetTextColor() color.Color {
	if c.Text == nil || c.Text.Color == nil {
		return nil
	}
	col, err := ParseColor(*c.Text.Color)
	if err != nil {
		return nil
	}
	return col
}

// ParseColor parses a "#rrggbb" color specification.
func ParseColor(spec string) (color.RGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(spec), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q: want #rrggbb", spec)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", spec, err)
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xFF,
	}, nil
}
