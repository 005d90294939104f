// Package testutil provides assertion helpers shared by the kernel test packages.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertWithin compares two float64 values with an absolute tolerance.
// Use it where the expected value is 0 and a relative tolerance is meaningless.
func AssertWithin(t *testing.T, name string, want, got, absTol float64) {
	t.Helper()
	if math.Abs(want-got) > absTol {
		t.Errorf("%s: got %v, want %v (absDiff=%v > %v)", name, got, want, math.Abs(want-got), absTol)
	}
}

// AssertAtMost fails when got exceeds limit by more than limit*relTol.
func AssertAtMost(t *testing.T, name string, limit, got, relTol float64) {
	t.Helper()
	if got-limit > math.Abs(limit)*relTol {
		t.Errorf("%s: got %v, exceeds limit %v (relTol=%v)", name, got, limit, relTol)
	}
}
