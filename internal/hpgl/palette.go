package hpgl

import "image/color"

// Pen describes one logical pen in the carousel: its ink color and
// physical line width in millimetres.
type Pen struct {
	Color   color.RGBA
	WidthMM float64
}

// Palette maps pen numbers to pens. Pen 0 is the stored pen: selecting
// it suppresses drawing entirely, so its color is fully transparent.
type Palette map[int]Pen

// DefaultPalette returns the session palette used when no configuration
// overrides it. The hues are chosen to stay legible on the default
// black background.
func DefaultPalette() Palette {
	return Palette{
		0: {Color: color.RGBA{0, 0, 0, 0}, WidthMM: 0},
		1: {Color: color.RGBA{0x00, 0xFA, 0x9A, 0xFF}, WidthMM: 0.3},
		2: {Color: color.RGBA{0x1E, 0x90, 0xFF, 0xFF}, WidthMM: 0.5},
		3: {Color: color.RGBA{0x7B, 0x68, 0xEE, 0xFF}, WidthMM: 0.5},
		4: {Color: color.RGBA{0xF5, 0xF5, 0xDC, 0xFF}, WidthMM: 0.5},
		5: {Color: color.RGBA{0xDB, 0x70, 0x93, 0xFF}, WidthMM: 0.5},
	}
}

// Pen returns the pen for the given number, falling back to pen 0 for
// slots the palette does not define.
func (p Palette) Pen(n int) Pen {
	if pen, ok := p[n]; ok {
		return pen
	}
	return p[0]
}
