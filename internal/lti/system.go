// Package lti holds linear time-invariant plant models dx/dt = A x + B u.
package lti

import (
	"fmt"

	"github.com/san-kum/lqrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// LinearSystem is the plant dx/dt = A x + B u with A (n x n) and B (n x m).
// Both matrices are copied on construction and never mutated.
type LinearSystem struct {
	A *mat.Dense
	B *mat.Dense
	n int
	m int
}

func New(A, B mat.Matrix) (*LinearSystem, error) {
	if A == nil || B == nil {
		return nil, fmt.Errorf("lti: system and input matrices must be defined: %w", dynamo.ErrDimensionMismatch)
	}
	n, c := A.Dims()
	if n != c || n == 0 {
		return nil, fmt.Errorf("lti: A is %dx%d, want square: %w", n, c, dynamo.ErrDimensionMismatch)
	}
	br, m := B.Dims()
	if br != n || m == 0 {
		return nil, fmt.Errorf("lti: B is %dx%d, want %dxm: %w", br, m, n, dynamo.ErrDimensionMismatch)
	}
	return &LinearSystem{A: mat.DenseCopyOf(A), B: mat.DenseCopyOf(B), n: n, m: m}, nil
}

// MustNew is New for fixed, known-good matrices such as presets and tests.
func MustNew(A, B mat.Matrix) *LinearSystem {
	s, err := New(A, B)
	if err != nil {
		panic(err)
	}
	return s
}

// Dims returns the state dimension n and input dimension m.
func (s *LinearSystem) Dims() (n, m int) { return s.n, s.m }

func (s *LinearSystem) StateDim() int   { return s.n }
func (s *LinearSystem) ControlDim() int { return s.m }

// Derive returns A x + B u. A nil u is the unforced plant; any other
// length but m panics.
func (s *LinearSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, s.n)
	out := mat.NewVecDense(s.n, dx)
	out.MulVec(s.A, mat.NewVecDense(s.n, x))
	if u == nil {
		return dx
	}
	if len(u) != s.m {
		panic(fmt.Sprintf("lti: control has length %d, want %d", len(u), s.m))
	}
	var bu mat.VecDense
	bu.MulVec(s.B, mat.NewVecDense(s.m, u))
	out.AddVec(out, &bu)
	return dx
}

// ControllabilityMatrix returns [B, AB, ..., A^(n-1)B].
func (s *LinearSystem) ControllabilityMatrix() *mat.Dense {
	c := mat.NewDense(s.n, s.n*s.m, nil)
	block := mat.DenseCopyOf(s.B)
	for k := 0; k < s.n; k++ {
		c.Slice(0, s.n, k*s.m, (k+1)*s.m).(*mat.Dense).Copy(block)
		var next mat.Dense
		next.Mul(s.A, block)
		block = &next
	}
	return c
}

// Controllable reports whether (A, B) is controllable, along with the rank
// of the controllability matrix.
func (s *LinearSystem) Controllable() (bool, int) {
	var svd mat.SVD
	if !svd.Factorize(s.ControllabilityMatrix(), mat.SVDNone) {
		return false, 0
	}
	rank := svd.Rank(1e-10)
	return rank == s.n, rank
}
