// Package render implements the drawing sink on a gonum/plot vector
// canvas, producing PNG, PDF or SVG output.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/plotkit/hpglemu/internal/config"
	"github.com/plotkit/hpglemu/internal/hpgl"
	"github.com/plotkit/hpglemu/internal/units"
)

// Canvas implements hpgl.Sink on a vg canvas. Consecutive LineTo
// segments accumulate into a single stroked path, flushed when the pen
// lifts (MoveTo) or a line attribute changes; this mirrors how a
// hardware plotter keeps the pen on paper across a whole PD run.
//
// Character slant (SL) is tracked by the interpreter but not applied
// here: vg canvases have no shear transform.
type Canvas struct {
	format Format
	out    io.WriterTo
	vgc    vg.Canvas
	fonts  *font.Cache

	textColor color.Color // nil = draw labels with the active pen

	cur     vg.Point
	path    vg.Path
	open    bool
	color   color.Color
	widthMM float64
	line    hpgl.LineType

	poly      vg.Path
	polyEmpty bool
}

var _ hpgl.Sink = (*Canvas)(nil)

// New builds a canvas for one plot job: paper size minus crop margins,
// background filled, origin at the bottom-left of the cropped area.
func New(cfg *config.RenderConfig, format Format) (*Canvas, error) {
	crop := cfg.GetCropMM() // top, left, bottom, right
	wMM := cfg.GetPaperWidthMM() - crop[1] - crop[3]
	hMM := cfg.GetPaperHeightMM() - crop[0] - crop[2]
	if wMM <= 0 || hMM <= 0 {
		return nil, fmt.Errorf("crop margins leave no drawable area on %gx%g mm paper",
			cfg.GetPaperWidthMM(), cfg.GetPaperHeightMM())
	}
	w, h := mm(wMM), mm(hMM)
	bg := cfg.GetBackgroundColor()

	c := &Canvas{
		format:    format,
		fonts:     font.NewCache(liberation.Collection()),
		textColor: cfg.GetTextColor(),
		color:     color.RGBA{},
	}

	switch format {
	case FormatPNG:
		img := vgimg.NewWith(
			vgimg.UseWH(w, h),
			vgimg.UseDPI(int(cfg.GetDPI())),
			vgimg.UseBackgroundColor(bg),
		)
		c.vgc = img
		c.out = vgimg.PngCanvas{Canvas: img}
	case FormatPDF:
		pdf := vgpdf.New(w, h)
		c.vgc = pdf
		c.out = pdf
		fillBackground(pdf, w, h, bg)
	case FormatSVG:
		svg := vgsvg.New(w, h)
		c.vgc = svg
		c.out = svg
		fillBackground(svg, w, h, bg)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	// Drawing happens in full-page mm coordinates; shift so the
	// cropped area lands on the canvas.
	c.vgc.Translate(vg.Point{X: -mm(crop[1]), Y: -mm(crop[2])})
	return c, nil
}

func mm(v float64) vg.Length {
	return vg.Length(v) * vg.Millimeter
}

func fillBackground(c vg.Canvas, w, h vg.Length, bg color.Color) {
	var p vg.Path
	p.Move(vg.Point{})
	p.Line(vg.Point{X: w})
	p.Line(vg.Point{X: w, Y: h})
	p.Line(vg.Point{Y: h})
	p.Close()
	c.SetColor(bg)
	c.Fill(p)
}

func (c *Canvas) point(x, y float64) vg.Point {
	return vg.Point{X: mm(x), Y: mm(y)}
}

// flush strokes the accumulated path, if any, and restarts it at the
// current point.
func (c *Canvas) flush() {
	if !c.open {
		return
	}
	c.applyLineAttrs(c.color)
	c.vgc.Stroke(c.path)
	c.restart()
}

func (c *Canvas) restart() {
	c.path = c.path[:0]
	c.path.Move(c.cur)
	c.open = false
}

func (c *Canvas) applyLineAttrs(col color.Color) {
	c.vgc.SetColor(col)
	c.vgc.SetLineWidth(mm(c.widthMM))
	dashes, offset := c.dashes()
	c.vgc.SetLineDash(dashes, offset)
}

// dashes maps the HPGL line type to a vg dash pattern. The fractions
// follow the HP 7475 pattern chart, scaled by the LT pattern length.
func (c *Canvas) dashes() ([]vg.Length, vg.Length) {
	if c.line.Pattern <= 0 || c.line.LengthMM <= 0 {
		return nil, 0
	}
	var fractions []float64
	switch c.line.Pattern {
	case 1:
		fractions = []float64{0.02, 0.98}
	case 2:
		fractions = []float64{0.5, 0.5}
	case 3:
		fractions = []float64{0.7, 0.3}
	case 4:
		fractions = []float64{0.6, 0.15, 0.05, 0.2}
	case 5:
		fractions = []float64{0.5, 0.1, 0.05, 0.1, 0.05, 0.2}
	case 6:
		fractions = []float64{0.4, 0.1, 0.1, 0.1, 0.2, 0.1}
	default:
		return nil, 0
	}
	pattern := make([]vg.Length, len(fractions))
	for i, f := range fractions {
		pattern[i] = mm(f * c.line.LengthMM)
	}
	return pattern, 0
}

func (c *Canvas) MoveTo(x, y float64) {
	c.flush()
	c.cur = c.point(x, y)
	c.restart()
}

func (c *Canvas) LineTo(x, y float64) {
	c.cur = c.point(x, y)
	c.path.Line(c.cur)
	c.open = true
}

func (c *Canvas) DrawArc(cx, cy, r, startDeg, sweepDeg float64) {
	c.flush()
	center := c.point(cx, cy)
	startRad := startDeg * math.Pi / 180
	sweepRad := sweepDeg * math.Pi / 180

	var p vg.Path
	p.Move(vg.Point{
		X: center.X + mm(r)*vg.Length(math.Cos(startRad)),
		Y: center.Y + mm(r)*vg.Length(math.Sin(startRad)),
	})
	p.Arc(center, mm(r), startRad, sweepRad)
	c.applyLineAttrs(c.color)
	c.vgc.Stroke(p)

	endRad := startRad + sweepRad
	c.cur = vg.Point{
		X: center.X + mm(r)*vg.Length(math.Cos(endRad)),
		Y: center.Y + mm(r)*vg.Length(math.Sin(endRad)),
	}
	c.restart()
}

func (c *Canvas) BeginPolygon() {
	c.flush()
	c.poly = c.poly[:0]
	c.polyEmpty = true
}

func (c *Canvas) AddVertex(x, y float64) {
	pt := c.point(x, y)
	if c.polyEmpty {
		c.poly.Move(pt)
		c.polyEmpty = false
	} else {
		c.poly.Line(pt)
	}
}

func (c *Canvas) FillPolygon(col color.Color) {
	if c.polyEmpty {
		return
	}
	c.poly.Close()
	c.vgc.SetColor(col)
	c.vgc.Fill(c.poly)
}

func (c *Canvas) StrokePolygon(col color.Color) {
	if c.polyEmpty {
		return
	}
	c.poly.Close()
	c.applyLineAttrs(col)
	c.vgc.Stroke(c.poly)
}

func (c *Canvas) DrawText(x, y float64, text string, style hpgl.TextStyle) {
	c.flush()
	col := c.textColor
	if col == nil {
		col = c.color
	}
	face := c.fonts.Lookup(font.Font{Typeface: "Liberation", Variant: "Sans"}, mm(style.HeightMM))

	c.vgc.Push()
	c.vgc.Translate(c.point(x, y))
	c.vgc.Rotate(style.AngleDeg * math.Pi / 180)
	c.vgc.SetColor(col)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		offset := -mm(units.CharStepY * style.HeightMM * float64(i))
		c.vgc.FillString(face, vg.Point{Y: offset}, line)
	}
	c.vgc.Pop()
}

func (c *Canvas) SetColor(col color.Color) {
	c.flush()
	c.color = col
}

func (c *Canvas) SetLineWidth(widthMM float64) {
	c.flush()
	c.widthMM = widthMM
}

func (c *Canvas) SetLineType(t hpgl.LineType) {
	c.flush()
	c.line = t
}

// WriteTo finishes any pending stroke and writes the image in the
// canvas format.
func (c *Canvas) WriteTo(w io.Writer) (int64, error) {
	c.flush()
	return c.out.WriteTo(w)
}

// SaveFile writes the image to the named file.
func (c *Canvas) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
