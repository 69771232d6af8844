package hpgl

import "image/color"

// TextStyle carries the active character attributes for one label.
// Sizes are in canvas millimetres, the direction is in degrees counter-
// clockwise from the canvas X axis, and the slant is tan(theta) of the
// character tilt.
type TextStyle struct {
	WidthMM  float64
	HeightMM float64
	AngleDeg float64
	SlantTan float64
}

// LineType is the LT setting passed through to the sink: a dash pattern
// index and the pattern repeat length in canvas millimetres. Pattern 0
// with zero length is a solid line.
type LineType struct {
	Pattern  int
	LengthMM float64
}

// Solid is the power-on line type.
var Solid = LineType{}

// Sink receives primitive drawing operations from the interpreter. All
// coordinates are canvas millimetres with the origin at the bottom-left
// corner and Y pointing up; the interpreter never emits untransformed
// plotter coordinates.
//
// Implementations are free to batch consecutive LineTo calls into one
// stroked path; a MoveTo or attribute change ends the run.
type Sink interface {
	// MoveTo lifts the pen and moves it.
	MoveTo(x, y float64)
	// LineTo draws a segment from the current point with the current
	// color, width and line type.
	LineTo(x, y float64)
	// DrawArc strokes a circular arc around (cx, cy) from startDeg
	// sweeping sweepDeg counter-clockwise (negative = clockwise).
	DrawArc(cx, cy, r, startDeg, sweepDeg float64)

	// BeginPolygon opens a polygon; vertices follow as AddVertex calls
	// and exactly one Fill or Stroke call closes it.
	BeginPolygon()
	AddVertex(x, y float64)
	FillPolygon(c color.Color)
	StrokePolygon(c color.Color)

	// DrawText renders a label anchored at (x, y) with the given style.
	// The text may contain CR/LF characters; line advance is the
	// sink's concern, pen position bookkeeping is the interpreter's.
	DrawText(x, y float64, text string, style TextStyle)

	SetColor(c color.Color)
	SetLineWidth(widthMM float64)
	SetLineType(t LineType)
}
