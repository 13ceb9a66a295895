package control

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/lti"
	"github.com/san-kum/lqrsim/internal/riccati"
	"gonum.org/v1/gonum/mat"
)

// GainFrom returns K = P B, an n x m matrix. P must be n x n and B n x m.
//
// The optimal LQR gain is R^-1 B' P. This package keeps K = P B and applies
// it as u = -K' x, which coincides with the optimal law when R is the
// identity.
func GainFrom(P, B mat.Matrix) (*mat.Dense, error) {
	if P == nil || B == nil {
		return nil, fmt.Errorf("gain: P and B are required: %w", dynamo.ErrDimensionMismatch)
	}
	n, _ := P.Dims()
	_, m := B.Dims()
	if err := lti.CheckShape("P", P, n, n); err != nil {
		return nil, fmt.Errorf("gain: %w", err)
	}
	if err := lti.CheckShape("B", B, n, m); err != nil {
		return nil, fmt.Errorf("gain: %w", err)
	}

	var k mat.Dense
	k.Mul(P, B)
	return &k, nil
}

// GainSchedule yields the gain to apply at time t. The returned matrix is
// shared and must not be modified.
type GainSchedule interface {
	At(t float64) *mat.Dense
	Dims() (n, m int)
}

// ConstantGain applies the same K at every time.
type ConstantGain struct {
	K *mat.Dense
}

func (c ConstantGain) At(float64) *mat.Dense { return c.K }
func (c ConstantGain) Dims() (int, int)      { return c.K.Dims() }

// InterpolatedGain is a piecewise linear K(t) through (Times[i], K[i]).
// Outside [Times[0], Times[len-1]] the end gains are held.
type InterpolatedGain struct {
	Times []float64
	K     []*mat.Dense
}

func (g InterpolatedGain) Dims() (int, int) { return g.K[0].Dims() }

func (g InterpolatedGain) At(t float64) *mat.Dense {
	last := len(g.Times) - 1
	if t <= g.Times[0] {
		return g.K[0]
	}
	if t >= g.Times[last] {
		return g.K[last]
	}

	i := sort.SearchFloat64s(g.Times, t)
	if g.Times[i] == t {
		return g.K[i]
	}
	t0, t1 := g.Times[i-1], g.Times[i]
	w := (t - t0) / (t1 - t0)

	var k mat.Dense
	k.Scale(1-w, g.K[i-1])
	var hi mat.Dense
	hi.Scale(w, g.K[i])
	k.Add(&k, &hi)
	return &k
}

// GainPolicy chooses how a Riccati solution becomes a gain schedule.
type GainPolicy interface {
	Name() string
	Schedule(sol *riccati.Solution, B mat.Matrix) (GainSchedule, error)
}

// SteadyStateGainPolicy takes K from the steady sample only.
type SteadyStateGainPolicy struct{}

func (SteadyStateGainPolicy) Name() string { return "steady_state" }

func (SteadyStateGainPolicy) Schedule(sol *riccati.Solution, B mat.Matrix) (GainSchedule, error) {
	if sol == nil || sol.Len() == 0 {
		return nil, fmt.Errorf("gain: empty riccati solution: %w", dynamo.ErrInvalidTimeSpan)
	}
	k, err := GainFrom(sol.Steady().P, B)
	if err != nil {
		return nil, err
	}
	return ConstantGain{K: k}, nil
}

// TimeVaryingGainPolicy builds K(t) from every sample of the solution.
type TimeVaryingGainPolicy struct{}

func (TimeVaryingGainPolicy) Name() string { return "time_varying" }

func (TimeVaryingGainPolicy) Schedule(sol *riccati.Solution, B mat.Matrix) (GainSchedule, error) {
	if sol == nil || sol.Len() == 0 {
		return nil, fmt.Errorf("gain: empty riccati solution: %w", dynamo.ErrInvalidTimeSpan)
	}
	g := InterpolatedGain{
		Times: make([]float64, sol.Len()),
		K:     make([]*mat.Dense, sol.Len()),
	}
	for i, s := range sol.Samples {
		k, err := GainFrom(s.P, B)
		if err != nil {
			return nil, err
		}
		g.Times[i] = s.T
		g.K[i] = k
	}
	return g, nil
}

// PolicyByName resolves the config names steady_state and time_varying.
func PolicyByName(name string) (GainPolicy, error) {
	switch strings.ToLower(name) {
	case "", "steady_state", "steady":
		return SteadyStateGainPolicy{}, nil
	case "time_varying", "varying":
		return TimeVaryingGainPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown gain policy: %s", name)
	}
}
