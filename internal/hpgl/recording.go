package hpgl

import "image/color"

// OpKind tags one recorded sink operation.
type OpKind int

const (
	OpMoveTo OpKind = iota
	OpLineTo
	OpDrawArc
	OpBeginPolygon
	OpAddVertex
	OpFillPolygon
	OpStrokePolygon
	OpDrawText
	OpSetColor
	OpSetLineWidth
	OpSetLineType
)

var opKindNames = map[OpKind]string{
	OpMoveTo:        "MoveTo",
	OpLineTo:        "LineTo",
	OpDrawArc:       "DrawArc",
	OpBeginPolygon:  "BeginPolygon",
	OpAddVertex:     "AddVertex",
	OpFillPolygon:   "FillPolygon",
	OpStrokePolygon: "StrokePolygon",
	OpDrawText:      "DrawText",
	OpSetColor:      "SetColor",
	OpSetLineWidth:  "SetLineWidth",
	OpSetLineType:   "SetLineType",
}

func (k OpKind) String() string { return opKindNames[k] }

// RecordedOp is one sink call with whichever fields the call carries.
type RecordedOp struct {
	Kind    OpKind
	X, Y    float64
	R       float64
	Start   float64
	Sweep   float64
	Text    string
	Style   TextStyle
	Color   color.Color
	WidthMM float64
	Line    LineType
}

// Recording is a Sink that captures every operation for inspection.
// It is the reference sink for tests and for dumping a plot job as a
// primitive op log.
type Recording struct {
	Ops []RecordedOp
}

var _ Sink = (*Recording)(nil)

func (r *Recording) MoveTo(x, y float64) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpMoveTo, X: x, Y: y})
}

func (r *Recording) LineTo(x, y float64) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpLineTo, X: x, Y: y})
}

func (r *Recording) DrawArc(cx, cy, rad, startDeg, sweepDeg float64) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpDrawArc, X: cx, Y: cy, R: rad, Start: startDeg, Sweep: sweepDeg})
}

func (r *Recording) BeginPolygon() {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpBeginPolygon})
}

func (r *Recording) AddVertex(x, y float64) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpAddVertex, X: x, Y: y})
}

func (r *Recording) FillPolygon(c color.Color) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpFillPolygon, Color: c})
}

func (r *Recording) StrokePolygon(c color.Color) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpStrokePolygon, Color: c})
}

func (r *Recording) DrawText(x, y float64, text string, style TextStyle) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpDrawText, X: x, Y: y, Text: text, Style: style})
}

func (r *Recording) SetColor(c color.Color) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpSetColor, Color: c})
}

func (r *Recording) SetLineWidth(widthMM float64) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpSetLineWidth, WidthMM: widthMM})
}

func (r *Recording) SetLineType(t LineType) {
	r.Ops = append(r.Ops, RecordedOp{Kind: OpSetLineType, Line: t})
}

// Kinds returns the operation kinds in emission order.
func (r *Recording) Kinds() []OpKind {
	kinds := make([]OpKind, len(r.Ops))
	for i, op := range r.Ops {
		kinds[i] = op.Kind
	}
	return kinds
}

// OfKind returns the recorded operations of one kind, in order.
func (r *Recording) OfKind(k OpKind) []RecordedOp {
	var ops []RecordedOp
	for _, op := range r.Ops {
		if op.Kind == k {
			ops = append(ops, op)
		}
	}
	return ops
}

// Reset discards all recorded operations.
func (r *Recording) Reset() {
	r.Ops = r.Ops[:0]
}
