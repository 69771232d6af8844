package hpgl

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/plotkit/hpglemu/internal/testutil"
	"github.com/plotkit/hpglemu/internal/units"
)

// runScript interprets src against a fresh Recording sink and returns
// it together with the interpreter and any recoverable errors reported.
func runScript(t *testing.T, src string, opts ...Option) (*Recording, *Interpreter, []error) {
	t.Helper()
	rec := &Recording{}
	var errs []error
	opts = append([]Option{WithOnError(func(err error) { errs = append(errs, err) })}, opts...)
	in := New(rec, opts...)
	if err := in.Run(context.Background(), strings.NewReader(src)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rec, in, errs
}

func TestPositionTracking(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		x, y   float64 // absolute plotter units
		isDown bool
	}{
		{"absolute move", "IN;PA100,200;", 100, 200, false},
		{"relative chains onto absolute", "IN;PA5,5;PR10,10;", 15, 15, false},
		{"pen down keeps tracking", "IN;SP1;PD300,400;", 300, 400, true},
		{"PU carries coordinates", "IN;PD100,100;PU200,50;", 200, 50, false},
		{"multiple pairs in one instruction", "IN;PA10,10,20,20,30,5;", 30, 5, false},
		{"scaled coordinates resolve at issue time", "IN;SC0,100,0,100;PA50,50;SC;", 5940, 4200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, in, errs := runScript(t, tt.src)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			x, y := in.Position()
			testutil.AssertPoint(t, x, y, tt.x, tt.y)
			if in.PenDown() != tt.isDown {
				t.Errorf("PenDown() = %v, want %v", in.PenDown(), tt.isDown)
			}
		})
	}
}

func TestPenDownDrawsPenUpMoves(t *testing.T) {
	rec, _, _ := runScript(t, "IN;SP1;PU1000,1000;PD2000,1000;")
	lines := rec.OfKind(OpLineTo)
	if len(lines) != 1 {
		t.Fatalf("got %d LineTo ops, want 1", len(lines))
	}
	testutil.AssertPoint(t, lines[0].X, lines[0].Y, 50, 25, "LineTo in canvas mm")
}

func TestStoredPenSuppressesDrawing(t *testing.T) {
	// Pen 0 is selected after IN; pen-down moves must not draw.
	rec, in, _ := runScript(t, "IN;PD1000,1000;")
	if got := rec.OfKind(OpLineTo); len(got) != 0 {
		t.Errorf("got %d LineTo ops with pen 0, want 0", len(got))
	}
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 1000, 1000, "position still tracks")
}

func TestInitializeRestoresPowerOnState(t *testing.T) {
	rec, in, errs := runScript(t, "IN;SP3;SC0,10,0,10;RO90;LT3;SI2,2;PA5,5;PD7,7;IN;")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 0, 0)
	if in.PenDown() {
		t.Error("PenDown() = true after IN")
	}
	if in.Scale().Scaled() {
		t.Error("user window survived IN")
	}

	// The ops emitted by the trailing IN must be identical to the ones a
	// factory-fresh interpreter emits.
	fresh := &Recording{}
	New(fresh)
	n := len(fresh.Ops)
	tail := rec.Ops[len(rec.Ops)-n:]
	if diff := cmp.Diff(fresh.Ops, tail); diff != "" {
		t.Errorf("IN state differs from power-on (-fresh +after IN):\n%s", diff)
	}
}

func TestPenSelection(t *testing.T) {
	rec, _, _ := runScript(t, "IN;SP2;")
	colors := rec.OfKind(OpSetColor)
	widths := rec.OfKind(OpSetLineWidth)
	if len(colors) == 0 || len(widths) == 0 {
		t.Fatal("SP emitted no pen attributes")
	}
	want := DefaultPalette()[2]
	if colors[len(colors)-1].Color != want.Color {
		t.Errorf("color = %v, want %v", colors[len(colors)-1].Color, want.Color)
	}
	testutil.AssertInDelta(t, widths[len(widths)-1].WidthMM, want.WidthMM, "line width")
}

func TestPenSelectionBadParameters(t *testing.T) {
	_, _, errs := runScript(t, "IN;SP-1;SP1,2;")
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	for _, err := range errs {
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Kind != ErrBadParameters {
			t.Errorf("error = %v, want ErrBadParameters", err)
		}
	}
}

func TestLineTypePassThrough(t *testing.T) {
	rec, _, _ := runScript(t, "IN;LT2;")
	ops := rec.OfKind(OpSetLineType)
	last := ops[len(ops)-1].Line
	if last.Pattern != 2 {
		t.Errorf("pattern = %d, want 2", last.Pattern)
	}
	wantLen := math.Hypot(297, 210) * 0.04
	testutil.AssertInDelta(t, last.LengthMM, wantLen, "default 4%% pattern length")

	rec, _, _ = runScript(t, "IN;LT3,10;LT;")
	ops = rec.OfKind(OpSetLineType)
	if got := ops[len(ops)-2].Line; got.Pattern != 3 {
		t.Errorf("pattern = %d, want 3", got.Pattern)
	}
	if got := ops[len(ops)-1].Line; got != Solid {
		t.Errorf("LT with no parameters = %+v, want solid", got)
	}
}

func TestUnknownMnemonicSkippedAndReported(t *testing.T) {
	_, in, errs := runScript(t, "IN;SP1;VS10;PU1000,1000;")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	var ce *CommandError
	if !errors.As(errs[0], &ce) || ce.Kind != ErrUnsupported {
		t.Errorf("error = %v, want ErrUnsupported", errs[0])
	}
	// The stream continues after the bad instruction.
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 1000, 1000)
}

func TestStrictModeAborts(t *testing.T) {
	in := New(&Recording{}, WithStrict())
	err := in.Run(context.Background(), strings.NewReader("IN;VS10;PU1000,1000;"))
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Kind != ErrUnsupported {
		t.Fatalf("Run error = %v, want ErrUnsupported", err)
	}
	// Nothing after the failing instruction was applied.
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 0, 0)
}

func TestOddCoordinateCount(t *testing.T) {
	_, in, errs := runScript(t, "IN;PA10,20,30;PA40,50;")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 40, 50, "instruction after the bad one applies")
}

// faultyReader yields its data and then fails like a dropped link.
type faultyReader struct {
	data []byte
	err  error
}

func (r *faultyReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestRunTransportErrorFatal(t *testing.T) {
	linkErr := errors.New("serial link dropped")
	in := New(&Recording{}, WithOnError(func(err error) {
		t.Errorf("transport error reported as recoverable: %v", err)
	}))

	err := in.Run(context.Background(), &faultyReader{
		data: []byte("IN;SP1;PA100,100;"),
		err:  linkErr,
	})
	if !errors.Is(err, linkErr) {
		t.Fatalf("Run error = %v, want the reader error unchanged", err)
	}
	if IsRecoverable(err) {
		t.Error("transport error classified as recoverable")
	}
	// Everything read before the failure stayed applied.
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 100, 100)
}

func TestOnInstructionHook(t *testing.T) {
	var seen []Opcode
	in := New(&Recording{}, WithOnInstruction(func(inst Instruction) {
		seen = append(seen, inst.Op)
	}))

	if err := in.Run(context.Background(), strings.NewReader("IN;SP1;PA1,1;")); err != nil {
		t.Fatal(err)
	}
	// Direct Apply fires the hook too.
	if err := in.Apply(Instruction{Op: OpPU, Mnemonic: "PU"}); err != nil {
		t.Fatal(err)
	}

	want := []Opcode{OpIN, OpSP, OpPA, OpPU}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("hook sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := New(&Recording{})
	if err := in.Run(ctx, strings.NewReader("IN;PA1,1;")); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestCircleClosedPolyline(t *testing.T) {
	rec, in, errs := runScript(t, "IN;SP1;PA2000,2000;CI500;")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	lines := rec.OfKind(OpLineTo)
	if len(lines) != 72 {
		t.Fatalf("got %d chords, want 72 at the default 5 degree step", len(lines))
	}
	// Every vertex sits on the circle around the pen position.
	for _, op := range lines {
		d := math.Hypot(op.X-50, op.Y-50)
		testutil.AssertInDelta(t, d, 12.5, "chord vertex radius")
	}
	// The polyline closes: the last chord ends at the first vertex.
	moves := rec.OfKind(OpMoveTo)
	first := moves[len(moves)-2] // circle start; the final MoveTo restores the pen
	last := lines[len(lines)-1]
	testutil.AssertPoint(t, last.X, last.Y, first.X, first.Y, "closure")

	// CI leaves the pen where it found it.
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 2000, 2000)
	restore := moves[len(moves)-1]
	testutil.AssertPoint(t, restore.X, restore.Y, 50, 50, "pen restore")
}

func TestCircleUnderScaling(t *testing.T) {
	// An anisotropic window warps the circle into an ellipse: the X axis
	// here is squeezed to half the Y scale.
	rec, _, _ := runScript(t, "IN;SP1;SC0,594,0,210;PA297,105;CI10;")
	lines := rec.OfKind(OpLineTo)
	if len(lines) == 0 {
		t.Fatal("no chords recorded")
	}
	var minX, maxX = math.Inf(1), math.Inf(-1)
	var minY, maxY = math.Inf(1), math.Inf(-1)
	for _, op := range lines {
		minX, maxX = math.Min(minX, op.X), math.Max(maxX, op.X)
		minY, maxY = math.Min(minY, op.Y), math.Max(maxY, op.Y)
	}
	testutil.AssertInDelta(t, maxX-minX, 10, "x extent")
	testutil.AssertInDelta(t, maxY-minY, 20, "y extent")
}

func TestArcAbsolute(t *testing.T) {
	rec, in, errs := runScript(t, "IN;SP1;PA1000,0;PD;AA0,0,90;")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	arcs := rec.OfKind(OpDrawArc)
	if len(arcs) != 1 {
		t.Fatalf("got %d arcs, want 1", len(arcs))
	}
	a := arcs[0]
	testutil.AssertPoint(t, a.X, a.Y, 0, 0, "arc center")
	testutil.AssertInDelta(t, a.R, 25, "arc radius")
	testutil.AssertInDelta(t, a.Start, 0, "start angle")
	testutil.AssertInDelta(t, a.Sweep, 90, "sweep")

	// The pen ends at the rotated point.
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 0, 1000)
}

func TestArcPenUpMovesOnly(t *testing.T) {
	rec, in, _ := runScript(t, "IN;SP1;PA1000,0;AA0,0,180;")
	if got := rec.OfKind(OpDrawArc); len(got) != 0 {
		t.Errorf("got %d arcs with pen up, want 0", len(got))
	}
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, -1000, 0)
}

func TestPolygonFillAndEdge(t *testing.T) {
	src := "IN;SP1;PA100,100;PM;PD200,100,200,200;PM2;FP;EP;"
	rec, _, errs := runScript(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if got := len(rec.OfKind(OpBeginPolygon)); got != 2 {
		t.Errorf("got %d BeginPolygon, want 2 (one per FP/EP)", got)
	}
	if got := len(rec.OfKind(OpFillPolygon)); got != 1 {
		t.Errorf("got %d FillPolygon, want exactly 1", got)
	}
	if got := len(rec.OfKind(OpStrokePolygon)); got != 1 {
		t.Errorf("got %d StrokePolygon, want exactly 1", got)
	}
	// Current position at PM plus the two pen-down vertices, twice.
	if got := len(rec.OfKind(OpAddVertex)); got != 6 {
		t.Errorf("got %d AddVertex, want 6", got)
	}
	// Buffered moves emit no immediate geometry.
	if got := len(rec.OfKind(OpLineTo)); got != 0 {
		t.Errorf("got %d LineTo inside polygon mode, want 0", got)
	}

	fill := rec.OfKind(OpFillPolygon)[0]
	if fill.Color != DefaultPalette()[1].Color {
		t.Errorf("fill color = %v, want pen 1", fill.Color)
	}
}

func TestPolygonWithStoredPenDiscarded(t *testing.T) {
	rec, _, _ := runScript(t, "IN;PA100,100;PM;PD200,100,200,200;PM2;FP;")
	if got := len(rec.OfKind(OpFillPolygon)); got != 0 {
		t.Errorf("got %d FillPolygon with pen 0, want 0", got)
	}
}

func TestPolygonModeBadParameter(t *testing.T) {
	_, _, errs := runScript(t, "IN;PM7;")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
}

func TestLabelRendersAndAdvances(t *testing.T) {
	rec, in, errs := runScript(t, "IN;SP1;SI1,1;LBAB\x03")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	texts := rec.OfKind(OpDrawText)
	if len(texts) != 1 {
		t.Fatalf("got %d DrawText, want 1", len(texts))
	}
	got := texts[0]
	if got.Text != "AB" {
		t.Errorf("text = %q, want AB", got.Text)
	}
	testutil.AssertPoint(t, got.X, got.Y, 0, 0, "label anchor")
	testutil.AssertInDelta(t, got.Style.WidthMM, 10, "SI width in mm")
	testutil.AssertInDelta(t, got.Style.HeightMM, 10, "SI height in mm")

	// Two glyphs advance the pen 1.5 character widths each.
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 2*1.5*400, 0)
}

func TestLabelNewlineAndReturn(t *testing.T) {
	_, in, _ := runScript(t, "IN;SP1;LBA\nB\x03")
	stepX := units.CharStepX * units.PlotterUnitsFromMM(units.DefaultCharWidthMM)
	stepY := units.CharStepY * units.PlotterUnitsFromMM(units.DefaultCharHeightMM)
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, stepX, -stepY, "one glyph on the second line")

	_, in, _ = runScript(t, "IN;SP1;LBAB\rC\x03")
	x, y = in.Position()
	testutil.AssertPoint(t, x, y, stepX, 0, "CR returns to line start")
}

func TestLabelDirection(t *testing.T) {
	rec, in, _ := runScript(t, "IN;SP1;PA1000,1000;DI0,1;LBA\x03")
	texts := rec.OfKind(OpDrawText)
	if len(texts) != 1 {
		t.Fatal("no DrawText recorded")
	}
	testutil.AssertInDelta(t, texts[0].Style.AngleDeg, 90, "DI0,1 runs labels upward")

	// The advance follows the label direction.
	stepX := units.CharStepX * units.PlotterUnitsFromMM(units.DefaultCharWidthMM)
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 1000, 1000+stepX)
}

func TestLabelWithStoredPen(t *testing.T) {
	rec, in, _ := runScript(t, "IN;LBAB\x03")
	if got := rec.OfKind(OpDrawText); len(got) != 0 {
		t.Errorf("got %d DrawText with pen 0, want 0", len(got))
	}
	// The pen still advances.
	x, _ := in.Position()
	if x == 0 {
		t.Error("pen did not advance past suppressed label")
	}
}

func TestCharacterSizeCommands(t *testing.T) {
	tests := []struct {
		name         string
		src          string
		wantW, wantH float64 // plotter units
	}{
		{"SI centimetres", "IN;SI2,1;", 800, 400},
		{"SI defaults", "IN;SI2,1;SI;", units.PlotterUnitsFromMM(2.85), units.PlotterUnitsFromMM(3.75)},
		{"SR percent of frame", "IN;SR10,10;", 297 * 40 * 0.10, 210 * 40 * 0.10},
		{"SR defaults", "IN;SR;", 297 * 40 * 0.0075, 210 * 40 * 0.015},
		{"SU user units", "IN;SC0,297,0,210;SU10,10;", 400, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, in, errs := runScript(t, tt.src)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			testutil.AssertInDelta(t, in.charW, tt.wantW, "character width")
			testutil.AssertInDelta(t, in.charH, tt.wantH, "character height")
		})
	}
}

func TestSlantTracked(t *testing.T) {
	rec, _, _ := runScript(t, "IN;SP1;SL0.5;LBA\x03")
	texts := rec.OfKind(OpDrawText)
	if len(texts) != 1 {
		t.Fatal("no DrawText recorded")
	}
	testutil.AssertInDelta(t, texts[0].Style.SlantTan, 0.5, "slant tangent")
}

func TestRotationAffectsOutputOnly(t *testing.T) {
	rec, in, _ := runScript(t, "IN;RO90;PA400,800;")
	x, y := in.Position()
	testutil.AssertPoint(t, x, y, 400, 800, "logical position unrotated")
	moves := rec.OfKind(OpMoveTo)
	last := moves[len(moves)-1]
	testutil.AssertPoint(t, last.X, last.Y, 277, 10, "canvas position rotated")
}

func TestInputWindowStoredNotEnforced(t *testing.T) {
	rec, _, errs := runScript(t, "IN;SP1;IW1000,1000,2000,2000;PD4000,4000;IW;")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	// Geometry outside the window still draws.
	if got := len(rec.OfKind(OpLineTo)); got != 1 {
		t.Errorf("got %d LineTo, want 1", got)
	}
}
