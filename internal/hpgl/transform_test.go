package hpgl

import (
	"errors"
	"testing"

	"github.com/plotkit/hpglemu/internal/testutil"
)

func TestScaleContextIdentity(t *testing.T) {
	c := NewScaleContext(297, 210)
	x, y := c.Transform(400, 400)
	testutil.AssertPoint(t, x, y, 10, 10, "400 plotter units is 10 mm")
	if c.Scaled() {
		t.Error("Scaled() = true before any SC")
	}
}

func TestScaleContextWindow(t *testing.T) {
	c := NewScaleContext(297, 210)
	if err := c.SetWindow(0, 100, 0, 100, Anisotropic); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		ux, uy       float64
		wantX, wantY float64 // mm
	}{
		{"origin corner", 0, 0, 0, 0},
		{"far corner", 100, 100, 297, 210},
		{"center", 50, 50, 148.5, 105},
		{"outside the window extrapolates", 200, 50, 594, 105},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := c.Transform(tt.ux, tt.uy)
			testutil.AssertPoint(t, x, y, tt.wantX, tt.wantY, "Transform(%g,%g)", tt.ux, tt.uy)
		})
	}
}

func TestScaleContextRederivesFromFrame(t *testing.T) {
	c := NewScaleContext(297, 210)
	if err := c.SetFrame(0, 0, 4000, 4000); err != nil {
		t.Fatal(err)
	}
	if err := c.SetWindow(0, 10, 0, 10, Anisotropic); err != nil {
		t.Fatal(err)
	}
	ax, ay := c.ToPlotter(10, 10)
	testutil.AssertPoint(t, ax, ay, 4000, 4000, "window corner on first frame")

	// A later IP replaces the frame; the same user coordinates must be
	// re-derived against it, not accumulated onto the old mapping.
	if err := c.SetFrame(0, 0, 8000, 8000); err != nil {
		t.Fatal(err)
	}
	ax, ay = c.ToPlotter(10, 10)
	testutil.AssertPoint(t, ax, ay, 8000, 8000, "window corner on second frame")
}

func TestScaleContextIsotropic(t *testing.T) {
	c := NewScaleContext(297, 210)
	if err := c.SetFrame(0, 0, 4000, 4000); err != nil {
		t.Fatal(err)
	}
	// X wants factor 40, Y wants 80; the smaller factor wins and the Y
	// slack (2000 units) is split evenly.
	if err := c.SetWindow(0, 100, 0, 50, Isotropic); err != nil {
		t.Fatal(err)
	}
	ax, ay := c.ToPlotter(0, 0)
	testutil.AssertPoint(t, ax, ay, 0, 1000, "window origin with centred slack")
	ax, ay = c.ToPlotter(100, 50)
	testutil.AssertPoint(t, ax, ay, 4000, 3000, "window corner with centred slack")
	ax, ay = c.ToPlotter(50, 25)
	testutil.AssertPoint(t, ax, ay, 2000, 2000, "window centre stays at frame centre")
}

func TestScaleContextInvertedRanges(t *testing.T) {
	c := NewScaleContext(297, 210)

	var ce *CommandError
	err := c.SetWindow(100, 0, 0, 100, Anisotropic)
	if !errors.As(err, &ce) || ce.Kind != ErrBadParameters {
		t.Errorf("inverted SC error = %v, want ErrBadParameters", err)
	}
	err = c.SetFrame(4000, 4000, 0, 0)
	if !errors.As(err, &ce) || ce.Kind != ErrBadParameters {
		t.Errorf("inverted IP error = %v, want ErrBadParameters", err)
	}
}

func TestScaleContextClearWindow(t *testing.T) {
	c := NewScaleContext(297, 210)
	if err := c.SetWindow(0, 10, 0, 10, Anisotropic); err != nil {
		t.Fatal(err)
	}
	c.ClearWindow()
	if c.Scaled() {
		t.Error("Scaled() = true after SC with no parameters")
	}
	ax, ay := c.ToPlotter(400, 120)
	testutil.AssertPoint(t, ax, ay, 400, 120, "user units are plotter units again")
}

func TestScaleContextRotation(t *testing.T) {
	c := NewScaleContext(297, 210)

	tests := []struct {
		deg          int
		ax, ay       float64
		wantX, wantY float64
	}{
		{0, 400, 800, 10, 20},
		{90, 400, 800, 277, 10},
		{180, 400, 800, 287, 190},
		{270, 400, 800, 20, 200},
	}
	for _, tt := range tests {
		if err := c.SetRotation(tt.deg); err != nil {
			t.Fatalf("SetRotation(%d): %v", tt.deg, err)
		}
		x, y := c.ToCanvas(tt.ax, tt.ay)
		testutil.AssertPoint(t, x, y, tt.wantX, tt.wantY, "RO%d", tt.deg)
	}

	if err := c.SetRotation(45); err == nil {
		t.Error("SetRotation(45) succeeded, want error")
	}
}

func TestScaleContextReset(t *testing.T) {
	c := NewScaleContext(297, 210)
	c.SetFrame(0, 0, 1000, 1000)
	c.SetWindow(0, 1, 0, 1, Anisotropic)
	c.SetRotation(90)

	c.Reset()
	if c.Scaled() {
		t.Error("Scaled() = true after Reset")
	}
	x, y := c.Transform(400, 400)
	testutil.AssertPoint(t, x, y, 10, 10, "power-on identity mapping")
	w, h := c.FrameSize()
	testutil.AssertInDelta(t, w, 297*40, "frame width")
	testutil.AssertInDelta(t, h, 210*40, "frame height")
}

func TestPlotterDistance(t *testing.T) {
	c := NewScaleContext(297, 210)
	if err := c.SetWindow(0, 100, 0, 100, Anisotropic); err != nil {
		t.Fatal(err)
	}
	// Displacements scale but never translate.
	dx, dy := c.PlotterDistance(10, 10)
	testutil.AssertInDelta(t, dx, 1188, "x displacement")
	testutil.AssertInDelta(t, dy, 840, "y displacement")
}
