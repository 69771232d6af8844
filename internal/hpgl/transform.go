package hpgl

import (
	"math"

	"github.com/plotkit/hpglemu/internal/units"
)

// Point is a coordinate pair. The unit depends on context: user units,
// absolute plotter units, or canvas millimetres.
type Point struct {
	X, Y float64
}

// ScaleMode selects how SC maps the user window onto the P1/P2 frame.
type ScaleMode int

const (
	// Anisotropic stretches X and Y independently to fill the frame.
	Anisotropic ScaleMode = iota
	// Isotropic forces equal X/Y scale factors: the smaller candidate
	// factor wins and the slack on the other axis is centred. Plotters
	// do this so circles stay circles; preserve it for visual fidelity.
	Isotropic
)

// ScaleContext is the active mapping from user coordinates to canvas
// millimetres. It is fully determined by the page size and the last
// IP/SC/RO instructions seen; a new SC replaces the previous window
// outright, so the mapping can be re-derived at any time with no hidden
// accumulation.
//
// Two stages: an affine map from the SC user window onto the IP frame
// in absolute plotter units, then the fixed 1/40 mm unit conversion
// (plus page rotation) onto the canvas.
type ScaleContext struct {
	pageW, pageH float64 // mm
	p1, p2       Point   // IP frame, absolute plotter units
	u1, u2       Point   // SC user window
	scaled       bool
	rot          int // quarter turns counter-clockwise

	kx, ky, bx, by float64
}

// NewScaleContext returns the power-on mapping for a page of the given
// size in millimetres: identity scaling over the full page.
func NewScaleContext(pageWidthMM, pageHeightMM float64) *ScaleContext {
	c := &ScaleContext{pageW: pageWidthMM, pageH: pageHeightMM}
	c.Reset()
	return c
}

// Reset restores the power-on state: full-page frame, no user window,
// no rotation.
func (c *ScaleContext) Reset() {
	c.p1 = Point{0, 0}
	c.p2 = Point{
		X: units.PlotterUnitsFromMM(c.pageW),
		Y: units.PlotterUnitsFromMM(c.pageH),
	}
	c.scaled = false
	c.rot = 0
	c.derive()
}

// SetFrame handles IP: it declares the physical window P1/P2 in
// absolute plotter units. An active user window is re-mapped onto the
// new frame.
func (c *ScaleContext) SetFrame(x1, y1, x2, y2 float64) error {
	if x2 <= x1 || y2 <= y1 {
		return cmdErrorf(ErrBadParameters, "IP", "inverted frame %g,%g %g,%g", x1, y1, x2, y2)
	}
	c.p1 = Point{x1, y1}
	c.p2 = Point{x2, y2}
	c.derive()
	return nil
}

// ResetFrame restores the default full-page frame, keeping any active
// user window mapped onto it.
func (c *ScaleContext) ResetFrame() {
	c.p1 = Point{0, 0}
	c.p2 = Point{
		X: units.PlotterUnitsFromMM(c.pageW),
		Y: units.PlotterUnitsFromMM(c.pageH),
	}
	c.derive()
}

// SetWindow handles SC: subsequent user coordinates in the declared
// ranges map onto the P1/P2 frame. Inverted ranges are rejected rather
// than silently flipping the axis.
func (c *ScaleContext) SetWindow(xmin, xmax, ymin, ymax float64, mode ScaleMode) error {
	if xmax <= xmin || ymax <= ymin {
		return cmdErrorf(ErrBadParameters, "SC", "inverted window %g,%g,%g,%g", xmin, xmax, ymin, ymax)
	}
	c.u1 = Point{xmin, ymin}
	c.u2 = Point{xmax, ymax}
	c.scaled = true
	c.derive()
	if mode == Isotropic {
		c.centerIsotropic()
	}
	return nil
}

// ClearWindow handles SC with no parameters: user units become plotter
// units again.
func (c *ScaleContext) ClearWindow() {
	c.scaled = false
	c.derive()
}

// Scaled reports whether a user window is active.
func (c *ScaleContext) Scaled() bool { return c.scaled }

// FrameSize returns the P1/P2 frame extent in plotter units.
func (c *ScaleContext) FrameSize() (w, h float64) {
	return c.p2.X - c.p1.X, c.p2.Y - c.p1.Y
}

// SetRotation handles RO. Only quarter-turn rotations exist on the
// hardware.
func (c *ScaleContext) SetRotation(deg int) error {
	switch deg {
	case 0, 90, 180, 270:
		c.rot = deg / 90
		return nil
	default:
		return cmdErrorf(ErrBadParameters, "RO", "angle %d not one of 0, 90, 180, 270", deg)
	}
}

// derive recomputes the user-to-absolute affine coefficients from the
// current frame and window.
func (c *ScaleContext) derive() {
	if !c.scaled {
		c.kx, c.ky, c.bx, c.by = 1, 1, 0, 0
		return
	}
	c.kx = (c.p2.X - c.p1.X) / (c.u2.X - c.u1.X)
	c.ky = (c.p2.Y - c.p1.Y) / (c.u2.Y - c.u1.Y)
	c.bx = c.p1.X - c.kx*c.u1.X
	c.by = c.p1.Y - c.ky*c.u1.Y
}

// centerIsotropic equalizes the scale factors and centres the slack on
// the axis whose candidate factor lost.
func (c *ScaleContext) centerIsotropic() {
	k := math.Min(c.kx, c.ky)
	extraX := (c.p2.X - c.p1.X) - k*(c.u2.X-c.u1.X)
	extraY := (c.p2.Y - c.p1.Y) - k*(c.u2.Y-c.u1.Y)
	c.kx, c.ky = k, k
	c.bx = c.p1.X - k*c.u1.X + extraX/2
	c.by = c.p1.Y - k*c.u1.Y + extraY/2
}

// ToPlotter maps user coordinates to absolute plotter units.
func (c *ScaleContext) ToPlotter(x, y float64) (ax, ay float64) {
	return c.kx*x + c.bx, c.ky*y + c.by
}

// PlotterDistance maps a user-coordinate displacement to a displacement
// in absolute plotter units (no translation term).
func (c *ScaleContext) PlotterDistance(dx, dy float64) (adx, ady float64) {
	return c.kx * dx, c.ky * dy
}

// ToCanvas maps absolute plotter units to canvas millimetres, applying
// the page rotation. Canvas origin is the bottom-left corner, Y up.
func (c *ScaleContext) ToCanvas(ax, ay float64) (cx, cy float64) {
	xm := units.MMFromPlotterUnits(ax)
	ym := units.MMFromPlotterUnits(ay)
	switch c.rot {
	case 1:
		return c.pageW - ym, xm
	case 2:
		return c.pageW - xm, c.pageH - ym
	case 3:
		return ym, c.pageH - xm
	default:
		return xm, ym
	}
}

// Transform maps user coordinates straight to canvas millimetres.
func (c *ScaleContext) Transform(x, y float64) (cx, cy float64) {
	return c.ToCanvas(c.ToPlotter(x, y))
}
