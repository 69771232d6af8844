package hpgl

import (
	"context"
	"io"
	"log"
	"math"

	"github.com/plotkit/hpglemu/internal/units"
)

// circleChordDeg is the default angular step for CI polyline
// approximation.
const circleChordDeg = 5.0

// Interpreter applies HPGL instructions against a single plotter state
// and emits drawing primitives to a Sink. The state is owned
// exclusively by the interpreter for the lifetime of one plot job;
// processing is strictly sequential, one instruction fully applied
// before the next is read.
type Interpreter struct {
	sink    Sink
	palette Palette
	pageW   float64 // mm
	pageH   float64 // mm
	strict  bool
	onError func(error)
	onInstr func(Instruction)

	sc *ScaleContext

	// Pen position in absolute plotter units. Scale changes mid-stream
	// do not retroactively move it: coordinates are resolved through
	// the context active when the move was issued.
	posX, posY float64

	penDown  bool
	pen      int
	relative bool

	polyOpen bool
	poly     []Point // canvas mm vertices

	lineType LineType

	// Character attributes in absolute plotter units / degrees.
	charW, charH float64
	charDirDeg   float64
	charSlantTan float64

	clip *[4]float64 // IW window, stored but not enforced
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithPalette replaces the default pen palette.
func WithPalette(p Palette) Option {
	return func(in *Interpreter) { in.palette = p }
}

// WithPageSize sets the page size in millimetres.
func WithPageSize(widthMM, heightMM float64) Option {
	return func(in *Interpreter) { in.pageW, in.pageH = widthMM, heightMM }
}

// WithStrict makes any recoverable per-instruction error terminate the
// job instead of being skipped.
func WithStrict() Option {
	return func(in *Interpreter) { in.strict = true }
}

// WithOnError replaces the default recoverable-error reporter (stdlib
// log). It is not called for transport errors, which always propagate.
func WithOnError(f func(error)) Option {
	return func(in *Interpreter) { in.onError = f }
}

// WithOnInstruction registers a hook called from Apply for every
// well-formed instruction before it takes effect. Callers use it to
// track plot activity without re-parsing the stream.
func WithOnInstruction(f func(Instruction)) Option {
	return func(in *Interpreter) { in.onInstr = f }
}

// New returns an interpreter in power-on state, drawing to sink.
func New(sink Sink, opts ...Option) *Interpreter {
	in := &Interpreter{
		sink:    sink,
		palette: DefaultPalette(),
		pageW:   units.DefaultPaperWidthMM,
		pageH:   units.DefaultPaperHeightMM,
		onError: func(err error) { log.Printf("hpgl: %v", err) },
	}
	for _, opt := range opts {
		opt(in)
	}
	in.sc = NewScaleContext(in.pageW, in.pageH)
	in.Reset()
	return in
}

// Reset restores the power-on defaults: pen up at the origin, stored
// pen selected, absolute plotting, identity scaling, solid lines,
// default character cell. IN always produces this exact state
// regardless of prior history.
func (in *Interpreter) Reset() {
	in.sc.Reset()
	in.posX, in.posY = 0, 0
	in.penDown = false
	in.relative = false
	in.polyOpen = false
	in.poly = nil
	in.clip = nil
	in.lineType = Solid
	in.charW = units.PlotterUnitsFromMM(units.DefaultCharWidthMM)
	in.charH = units.PlotterUnitsFromMM(units.DefaultCharHeightMM)
	in.charDirDeg = 0
	in.charSlantTan = 0
	in.selectPen(0)
	in.sink.SetLineType(in.lineType)
	in.sink.MoveTo(in.sc.ToCanvas(0, 0))
}

// Position returns the pen position in absolute plotter units.
func (in *Interpreter) Position() (x, y float64) {
	return in.posX, in.posY
}

// PenDown reports the pen-down flag.
func (in *Interpreter) PenDown() bool { return in.penDown }

// Scale returns the active scale context.
func (in *Interpreter) Scale() *ScaleContext { return in.sc }

// Run reads instructions from r until end of stream, applying each in
// turn. The context is checked at instruction boundaries only, the one
// defined cancellation point. Recoverable errors are reported and
// skipped unless strict mode escalates them; reader failures terminate
// the job unchanged.
func (in *Interpreter) Run(ctx context.Context, r io.Reader) error {
	s := NewScanner(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		inst, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if IsRecoverable(err) && !in.strict {
				in.onError(err)
				continue
			}
			return err
		}
		if err := in.Apply(inst); err != nil {
			if IsRecoverable(err) && !in.strict {
				in.onError(err)
				continue
			}
			return err
		}
	}
}

// Apply executes one instruction against the plotter state.
func (in *Interpreter) Apply(inst Instruction) error {
	if in.onInstr != nil {
		in.onInstr(inst)
	}
	switch inst.Op {
	case OpIN, OpDF:
		in.Reset()
		return nil
	case OpDT:
		// Terminator switching happens in the scanner.
		return nil
	case OpIP:
		return in.applyIP(inst)
	case OpSC:
		return in.applySC(inst)
	case OpRO:
		return in.applyRO(inst)
	case OpIW:
		return in.applyIW(inst)
	case OpPA:
		in.relative = false
		return in.applyMoves(inst)
	case OpPR:
		in.relative = true
		return in.applyMoves(inst)
	case OpPU:
		in.penDown = false
		return in.applyMoves(inst)
	case OpPD:
		in.penDown = true
		return in.applyMoves(inst)
	case OpSP:
		return in.applySP(inst)
	case OpLT:
		return in.applyLT(inst)
	case OpCI:
		return in.applyCI(inst)
	case OpAA:
		return in.applyAA(inst)
	case OpPM:
		return in.applyPM(inst)
	case OpEP:
		return in.applyPolygon(inst, false)
	case OpFP:
		return in.applyPolygon(inst, true)
	case OpSI:
		return in.applySI(inst)
	case OpSR:
		return in.applySR(inst)
	case OpSU:
		return in.applySU(inst)
	case OpSL:
		return in.applySL(inst)
	case OpDI:
		return in.applyDI(inst)
	case OpLB:
		return in.applyLB(inst)
	case OpBL:
		// Buffered labels are accepted but never rendered; nothing
		// replays the buffer in the v1 subset.
		return nil
	default:
		return cmdErrorf(ErrUnsupported, inst.Mnemonic, "no handler")
	}
}

// pairs validates that the argument list holds complete coordinate
// pairs.
func pairs(inst Instruction) ([]Point, error) {
	if len(inst.Args)%2 != 0 {
		return nil, cmdErrorf(ErrBadParameters, inst.Mnemonic, "odd coordinate count %d", len(inst.Args))
	}
	pts := make([]Point, 0, len(inst.Args)/2)
	for i := 0; i < len(inst.Args); i += 2 {
		pts = append(pts, Point{inst.Args[i], inst.Args[i+1]})
	}
	return pts, nil
}

// moveTo resolves one coordinate pair through the active scale context
// and either draws to it or just moves, depending on pen state. With a
// polygon buffer open the vertex is accumulated instead.
func (in *Interpreter) moveTo(p Point) {
	var ax, ay float64
	if in.relative {
		dx, dy := in.sc.PlotterDistance(p.X, p.Y)
		ax, ay = in.posX+dx, in.posY+dy
	} else {
		ax, ay = in.sc.ToPlotter(p.X, p.Y)
	}
	in.posX, in.posY = ax, ay

	cx, cy := in.sc.ToCanvas(ax, ay)
	if in.polyOpen {
		in.poly = append(in.poly, Point{cx, cy})
		return
	}
	if in.penDown && in.pen != 0 {
		in.sink.LineTo(cx, cy)
	} else {
		in.sink.MoveTo(cx, cy)
	}
}

func (in *Interpreter) applyMoves(inst Instruction) error {
	pts, err := pairs(inst)
	if err != nil {
		return err
	}
	for _, p := range pts {
		in.moveTo(p)
	}
	return nil
}

func (in *Interpreter) applyIP(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.sc.ResetFrame()
		return nil
	case 4:
		return in.sc.SetFrame(inst.Args[0], inst.Args[1], inst.Args[2], inst.Args[3])
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 4 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) applySC(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.sc.ClearWindow()
		return nil
	case 4:
		return in.sc.SetWindow(inst.Args[0], inst.Args[1], inst.Args[2], inst.Args[3], Anisotropic)
	case 5:
		mode := Anisotropic
		if inst.Args[4] == 1 {
			mode = Isotropic
		}
		return in.sc.SetWindow(inst.Args[0], inst.Args[1], inst.Args[2], inst.Args[3], mode)
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0, 4 or 5 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) applyRO(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		return in.sc.SetRotation(0)
	case 1:
		return in.sc.SetRotation(int(inst.Args[0]))
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 1 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) applyIW(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.clip = nil
		return nil
	case 4:
		// TODO: enforce the soft-clip window in the sink backends.
		in.clip = &[4]float64{inst.Args[0], inst.Args[1], inst.Args[2], inst.Args[3]}
		return nil
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 4 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) applySP(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.selectPen(0)
		return nil
	case 1:
		n := int(inst.Args[0])
		if n < 0 {
			return cmdErrorf(ErrBadParameters, inst.Mnemonic, "negative pen %d", n)
		}
		in.selectPen(n)
		return nil
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 1 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) selectPen(n int) {
	in.pen = n
	pen := in.palette.Pen(n)
	in.sink.SetColor(pen.Color)
	in.sink.SetLineWidth(pen.WidthMM)
}

func (in *Interpreter) applyLT(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.lineType = Solid
	case 1, 2:
		lt := LineType{Pattern: int(inst.Args[0])}
		// The pattern length parameter is a percentage of the P1/P2
		// diagonal; 4% is the hardware default.
		pct := 4.0
		if len(inst.Args) == 2 {
			pct = inst.Args[1]
		}
		fw, fh := in.sc.FrameSize()
		diagMM := units.MMFromPlotterUnits(math.Hypot(fw, fh))
		lt.LengthMM = diagMM * pct / 100
		in.lineType = lt
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 to 2 parameters, got %d", len(inst.Args))
	}
	in.sink.SetLineType(in.lineType)
	return nil
}

func (in *Interpreter) applyCI(inst Instruction) error {
	if len(inst.Args) == 0 || len(inst.Args) > 2 {
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 1 or 2 parameters, got %d", len(inst.Args))
	}
	r := inst.Args[0]
	chord := circleChordDeg
	if len(inst.Args) == 2 {
		chord = math.Abs(inst.Args[1])
	}
	if chord < 0.5 {
		chord = 0.5
	}
	if chord > 45 {
		chord = 45
	}
	if in.pen == 0 && !in.polyOpen {
		return nil
	}

	steps := int(math.Ceil(360 / chord))
	cx, cy := in.sc.ToCanvas(in.posX, in.posY)
	for i := 0; i <= steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		dx, dy := in.sc.PlotterDistance(r*math.Cos(theta), r*math.Sin(theta))
		vx, vy := in.sc.ToCanvas(in.posX+dx, in.posY+dy)
		if in.polyOpen {
			in.poly = append(in.poly, Point{vx, vy})
			continue
		}
		if i == 0 {
			in.sink.MoveTo(vx, vy)
		} else {
			in.sink.LineTo(vx, vy)
		}
	}
	if !in.polyOpen {
		// CI leaves the pen where it found it.
		in.sink.MoveTo(cx, cy)
	}
	return nil
}

func (in *Interpreter) applyAA(inst Instruction) error {
	if len(inst.Args) < 3 || len(inst.Args) > 4 {
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 3 or 4 parameters, got %d", len(inst.Args))
	}
	ax, ay := in.sc.ToPlotter(inst.Args[0], inst.Args[1])
	sweep := inst.Args[2]

	dx, dy := in.posX-ax, in.posY-ay
	endX := ax + dx*math.Cos(sweep*math.Pi/180) - dy*math.Sin(sweep*math.Pi/180)
	endY := ay + dx*math.Sin(sweep*math.Pi/180) + dy*math.Cos(sweep*math.Pi/180)

	if in.penDown && in.pen != 0 && !in.polyOpen {
		ccx, ccy := in.sc.ToCanvas(ax, ay)
		scx, scy := in.sc.ToCanvas(in.posX, in.posY)
		r := math.Hypot(scx-ccx, scy-ccy)
		start := math.Atan2(scy-ccy, scx-ccx) * 180 / math.Pi
		in.sink.DrawArc(ccx, ccy, r, start, sweep)
	}
	in.posX, in.posY = endX, endY
	ex, ey := in.sc.ToCanvas(endX, endY)
	if in.polyOpen {
		in.poly = append(in.poly, Point{ex, ey})
	} else {
		in.sink.MoveTo(ex, ey)
	}
	return nil
}

func (in *Interpreter) applyPM(inst Instruction) error {
	mode := 0
	if len(inst.Args) > 0 {
		mode = int(inst.Args[0])
	}
	switch mode {
	case 0:
		// Open and clear; the current position is the first vertex.
		in.polyOpen = true
		in.poly = in.poly[:0]
		cx, cy := in.sc.ToCanvas(in.posX, in.posY)
		in.poly = append(in.poly, Point{cx, cy})
		return nil
	case 1:
		// Sub-polygon boundaries collapse into one outline here.
		return nil
	case 2:
		in.polyOpen = false
		return nil
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "mode %d not one of 0, 1, 2", mode)
	}
}

// applyPolygon closes the buffer if needed and emits it as exactly one
// fill or outline primitive. The buffer is retained so EP and FP can
// both be applied to the same polygon.
func (in *Interpreter) applyPolygon(inst Instruction, fill bool) error {
	if len(inst.Args) != 0 {
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want no parameters, got %d", len(inst.Args))
	}
	in.polyOpen = false
	if len(in.poly) < 2 || in.pen == 0 {
		return nil
	}
	in.sink.BeginPolygon()
	for _, v := range in.poly {
		in.sink.AddVertex(v.X, v.Y)
	}
	c := in.palette.Pen(in.pen).Color
	if fill {
		in.sink.FillPolygon(c)
	} else {
		in.sink.StrokePolygon(c)
	}
	return nil
}

func (in *Interpreter) applySI(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.charW = units.PlotterUnitsFromMM(units.DefaultCharWidthMM)
		in.charH = units.PlotterUnitsFromMM(units.DefaultCharHeightMM)
		return nil
	case 2:
		// SI parameters are centimetres.
		in.charW = units.PlotterUnitsFromMM(inst.Args[0] * 10)
		in.charH = units.PlotterUnitsFromMM(inst.Args[1] * 10)
		return nil
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 2 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) applySR(inst Instruction) error {
	fw, fh := in.sc.FrameSize()
	switch len(inst.Args) {
	case 0:
		// Hardware defaults: 0.75% of frame width, 1.5% of height.
		in.charW = fw * 0.0075
		in.charH = fh * 0.015
		return nil
	case 2:
		in.charW = fw * inst.Args[0] / 100
		in.charH = fh * inst.Args[1] / 100
		return nil
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 2 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) applySU(inst Instruction) error {
	if len(inst.Args) != 2 {
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 2 parameters, got %d", len(inst.Args))
	}
	w, _ := in.sc.PlotterDistance(inst.Args[0], 0)
	_, h := in.sc.PlotterDistance(0, inst.Args[1])
	in.charW, in.charH = w, h
	return nil
}

func (in *Interpreter) applySL(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.charSlantTan = 0
		return nil
	case 1:
		in.charSlantTan = inst.Args[0]
		return nil
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 1 parameters, got %d", len(inst.Args))
	}
}

func (in *Interpreter) applyDI(inst Instruction) error {
	switch len(inst.Args) {
	case 0:
		in.charDirDeg = 0
		return nil
	case 2:
		run, rise := inst.Args[0], inst.Args[1]
		if run == 0 && rise == 0 {
			return cmdErrorf(ErrBadParameters, inst.Mnemonic, "zero direction vector")
		}
		in.charDirDeg = math.Atan2(rise, run) * 180 / math.Pi
		return nil
	default:
		return cmdErrorf(ErrBadParameters, inst.Mnemonic, "want 0 or 2 parameters, got %d", len(inst.Args))
	}
}

// applyLB renders the label and advances the pen the way the hardware
// does: 1.5 character widths per glyph along the label direction, 2
// character heights down per line; CR returns to the line start.
func (in *Interpreter) applyLB(inst Instruction) error {
	cx, cy := in.sc.ToCanvas(in.posX, in.posY)
	if in.pen != 0 {
		in.sink.DrawText(cx, cy, inst.Text, TextStyle{
			WidthMM:  units.MMFromPlotterUnits(in.charW),
			HeightMM: units.MMFromPlotterUnits(in.charH),
			AngleDeg: in.charDirDeg,
			SlantTan: in.charSlantTan,
		})
	}

	// Unit vector along the label direction and its downward
	// perpendicular, in absolute plotter units.
	rad := in.charDirDeg * math.Pi / 180
	ux, uy := math.Cos(rad), math.Sin(rad)
	px, py := uy, -ux

	lineX, lineY := in.posX, in.posY
	x, y := in.posX, in.posY
	for _, c := range inst.Text {
		switch c {
		case '\n':
			lineX += units.CharStepY * in.charH * px
			lineY += units.CharStepY * in.charH * py
			x, y = lineX, lineY
		case '\r':
			x, y = lineX, lineY
		default:
			x += units.CharStepX * in.charW * ux
			y += units.CharStepX * in.charW * uy
		}
	}
	in.posX, in.posY = x, y
	in.sink.MoveTo(in.sc.ToCanvas(x, y))
	return nil
}
