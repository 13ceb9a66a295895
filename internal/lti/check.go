package lti

import (
	"fmt"
	"math"

	"github.com/san-kum/lqrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// SymmetryTol is the absolute tolerance used when a matrix must be symmetric.
const SymmetryTol = 1e-9

// CheckShape returns ErrDimensionMismatch unless m is r x c.
func CheckShape(name string, m mat.Matrix, r, c int) error {
	if m == nil {
		return fmt.Errorf("%s is nil, want %dx%d: %w", name, r, c, dynamo.ErrDimensionMismatch)
	}
	mr, mc := m.Dims()
	if mr != r || mc != c {
		return fmt.Errorf("%s is %dx%d, want %dx%d: %w", name, mr, mc, r, c, dynamo.ErrDimensionMismatch)
	}
	return nil
}

// CheckSymmetric returns ErrNotSymmetric if m differs from its transpose by
// more than SymmetryTol in any entry. m must be square.
func CheckSymmetric(name string, m mat.Matrix) error {
	if a := Asymmetry(m); a > SymmetryTol {
		return fmt.Errorf("%s asymmetry %.3g: %w", name, a, dynamo.ErrNotSymmetric)
	}
	return nil
}

// Asymmetry returns max |m_ij - m_ji|.
func Asymmetry(m mat.Matrix) float64 {
	r, _ := m.Dims()
	worst := 0.0
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			worst = math.Max(worst, math.Abs(m.At(i, j)-m.At(j, i)))
		}
	}
	return worst
}

// CheckVector returns ErrDimensionMismatch unless len(v) == n.
func CheckVector(name string, v []float64, n int) error {
	if len(v) != n {
		return fmt.Errorf("%s has length %d, want %d: %w", name, len(v), n, dynamo.ErrDimensionMismatch)
	}
	return nil
}
