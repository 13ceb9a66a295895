package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Linspace returns n evenly spaced sample times over [t0, t1]. The first
// and last samples are exactly t0 and t1.
func Linspace(t0, t1 float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{t0}
	}
	ts := floats.Span(make([]float64, n), t0, t1)
	ts[0], ts[n-1] = t0, t1
	return ts
}

// ValidateSpan checks t0 < t1 and that samples are finite, strictly
// increasing and inside [t0, t1].
func ValidateSpan(t0, t1 float64, samples []float64) error {
	if math.IsNaN(t0) || math.IsNaN(t1) || math.IsInf(t0, 0) || math.IsInf(t1, 0) || !(t0 < t1) {
		return fmt.Errorf("span [%g, %g]: %w", t0, t1, ErrInvalidTimeSpan)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no sample times: %w", ErrInvalidTimeSpan)
	}
	prev := math.Inf(-1)
	for i, ts := range samples {
		if math.IsNaN(ts) || ts < t0 || ts > t1 {
			return fmt.Errorf("sample %d (t=%g) outside [%g, %g]: %w", i, ts, t0, t1, ErrInvalidTimeSpan)
		}
		if ts <= prev {
			return fmt.Errorf("sample %d (t=%g) not after %g: %w", i, ts, prev, ErrInvalidTimeSpan)
		}
		prev = ts
	}
	return nil
}
