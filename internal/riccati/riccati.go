// Package riccati integrates the continuous-time matrix Riccati equation
//
//	dP/dt = A'P + PA - P B R^-1 B' P + Q
//
// over a time span and returns P(t) at requested sample times.
//
// The reference behaviour integrates forward from P0 at t0 and treats the
// last sample as the steady cost-to-go. [Backward] is the textbook
// finite-horizon formulation: P0 is the terminal cost P(t1) and time runs
// toward t0. In reversed time tau = t1 - t the backward equation has the
// same right hand side, so both modes share one integration path.
package riccati

import (
	"context"
	"fmt"
	"strings"

	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/lti"
	"gonum.org/v1/gonum/mat"
)

type Mode int

const (
	Forward Mode = iota
	Backward
)

func (m Mode) String() string {
	switch m {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return Forward, fmt.Errorf("unknown riccati mode: %s", s)
	}
}

// Problem is the input of one Riccati integration. Q and P0 must be
// symmetric, R symmetric and invertible.
type Problem struct {
	A, B    mat.Matrix
	Q, R    mat.Matrix
	P0      mat.Matrix
	T0, T1  float64
	Samples []float64
	Mode    Mode
}

type Sample struct {
	T float64
	P *mat.Dense
}

// Solution holds P(t) at every requested sample, in increasing t.
type Solution struct {
	Samples []Sample
	Mode    Mode
	Stats   dynamo.Stats
}

func (s *Solution) Len() int { return len(s.Samples) }

// Steady returns the sample with the longest integration horizon behind it:
// the last one in forward mode and the first one in backward mode.
func (s *Solution) Steady() Sample {
	if s.Mode == Backward {
		return s.Samples[0]
	}
	return s.Samples[len(s.Samples)-1]
}

// Integrator runs Riccati problems on a Solver. It holds no per-call state.
type Integrator struct {
	solver dynamo.Solver
}

func New(solver dynamo.Solver) *Integrator {
	return &Integrator{solver: solver}
}

// Integrate validates every input, inverts R once and integrates P. Shape
// errors come back as ErrDimensionMismatch and a singular R as
// ErrSingularControlCost, in both cases before the solver is called.
func (ri *Integrator) Integrate(ctx context.Context, p Problem) (*Solution, error) {
	n, m, err := validate(p)
	if err != nil {
		return nil, err
	}

	var rInv mat.Dense
	if err := rInv.Inverse(p.R); err != nil {
		return nil, fmt.Errorf("riccati: R cannot be inverted (%v): %w", err, dynamo.ErrSingularControlCost)
	}

	// S = B R^-1 B'
	var rb, s mat.Dense
	rb.Mul(&rInv, p.B.T())
	s.Mul(p.B, &rb)

	f := Derivative(mat.DenseCopyOf(p.A), &s, mat.DenseCopyOf(p.Q))
	y0 := Flatten(p.P0)

	samples := p.Samples
	span := p.T1 - p.T0
	if p.Mode == Backward {
		samples = make([]float64, len(p.Samples))
		for i, t := range p.Samples {
			samples[len(samples)-1-i] = p.T1 - t
		}
	}

	var sol *dynamo.Solution
	if p.Mode == Backward {
		sol, err = ri.solver.Solve(ctx, f, 0, span, y0, samples)
	} else {
		sol, err = ri.solver.Solve(ctx, f, p.T0, p.T1, y0, samples)
	}
	if err != nil {
		return nil, fmt.Errorf("riccati %s %dx%d (m=%d): %w", p.Mode, n, n, m, err)
	}

	out := &Solution{
		Samples: make([]Sample, len(sol.Times)),
		Mode:    p.Mode,
		Stats:   sol.Stats,
	}
	for k := range sol.Times {
		i := k
		if p.Mode == Backward {
			i = len(sol.Times) - 1 - k
		}
		out.Samples[i] = Sample{T: p.Samples[i], P: Unflatten(n, sol.Y[k])}
	}
	return out, nil
}

func validate(p Problem) (n, m int, err error) {
	if p.A == nil || p.B == nil {
		return 0, 0, fmt.Errorf("riccati: A and B are required: %w", dynamo.ErrDimensionMismatch)
	}
	n, _ = p.A.Dims()
	_, m = p.B.Dims()

	checks := []error{
		lti.CheckShape("A", p.A, n, n),
		lti.CheckShape("B", p.B, n, m),
		lti.CheckShape("Q", p.Q, n, n),
		lti.CheckShape("R", p.R, m, m),
		lti.CheckShape("P0", p.P0, n, n),
	}
	for _, err := range checks {
		if err != nil {
			return 0, 0, fmt.Errorf("riccati: %w", err)
		}
	}

	for _, c := range []struct {
		name string
		m    mat.Matrix
	}{{"Q", p.Q}, {"R", p.R}, {"P0", p.P0}} {
		if err := lti.CheckSymmetric(c.name, c.m); err != nil {
			return 0, 0, fmt.Errorf("riccati: %w", err)
		}
	}

	if err := dynamo.ValidateSpan(p.T0, p.T1, p.Samples); err != nil {
		return 0, 0, fmt.Errorf("riccati: %w", err)
	}
	return n, m, nil
}

// Derivative returns the flattened right hand side A'P + PA - PSP + Q for
// S = B R^-1 B'. The result is symmetrised so P stays symmetric to the bit.
// The returned function keeps scratch matrices and must not be called
// concurrently.
func Derivative(A, S, Q *mat.Dense) dynamo.Derivative {
	n, _ := A.Dims()
	var atp, pa, ps, psp mat.Dense
	return func(t float64, y, dy []float64) {
		P := mat.NewDense(n, n, y)
		dP := mat.NewDense(n, n, dy)

		atp.Mul(A.T(), P)
		pa.Mul(P, A)
		ps.Mul(P, S)
		psp.Mul(&ps, P)

		dP.Add(&atp, &pa)
		dP.Sub(dP, &psp)
		dP.Add(dP, Q)

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				v := 0.5 * (dy[i*n+j] + dy[j*n+i])
				dy[i*n+j], dy[j*n+i] = v, v
			}
		}
	}
}

// Flatten copies an n x n matrix into a row-major vector of length n*n.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// Unflatten builds an n x n matrix from a copy of a row-major vector.
func Unflatten(n int, y []float64) *mat.Dense {
	data := make([]float64, n*n)
	copy(data, y)
	return mat.NewDense(n, n, data)
}
