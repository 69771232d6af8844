// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code
// duplication across test files and improve test maintainability.
package testutil

import (
	"fmt"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// Tolerance is the default absolute tolerance for comparing plotter
// geometry in tests: a hundredth of a millimetre is far below anything
// a pen could resolve.
const Tolerance = 0.01

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta checks that got is within Tolerance of want. Optional
// printf-style context is prepended to the failure message.
func AssertInDelta(t *testing.T, got, want float64, msgAndArgs ...any) {
	t.Helper()
	if !scalar.EqualWithinAbs(got, want, Tolerance) {
		t.Errorf("%sgot %g, want %g (±%g)", label(msgAndArgs), got, want, Tolerance)
	}
}

// AssertPoint checks a coordinate pair against expected values within
// Tolerance.
func AssertPoint(t *testing.T, gotX, gotY, wantX, wantY float64, msgAndArgs ...any) {
	t.Helper()
	if !scalar.EqualWithinAbs(gotX, wantX, Tolerance) || !scalar.EqualWithinAbs(gotY, wantY, Tolerance) {
		t.Errorf("%sgot (%g, %g), want (%g, %g) (±%g)", label(msgAndArgs), gotX, gotY, wantX, wantY, Tolerance)
	}
}

func label(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprint(msgAndArgs...) + ": "
	}
	return fmt.Sprintf(format, msgAndArgs[1:]...) + ": "
}
