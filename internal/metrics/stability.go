package metrics

import (
	"math"

	"github.com/san-kum/lqrsim/internal/dynamo"
)

// SettledFraction is the share of samples at which every component of x is
// within tol of the target.
type SettledFraction struct {
	name    string
	target  dynamo.State
	tol     float64
	settled int
	samples int
}

func NewSettledFraction(target dynamo.State, tol float64) *SettledFraction {
	return &SettledFraction{
		name:   "settled_fraction",
		target: target.Clone(),
		tol:    tol,
	}
}

func (s *SettledFraction) Name() string {
	return s.name
}

func (s *SettledFraction) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	for i, val := range x {
		ref := 0.0
		if i < len(s.target) {
			ref = s.target[i]
		}
		if math.Abs(val-ref) > s.tol {
			return
		}
	}
	s.settled++
}

func (s *SettledFraction) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.settled) / float64(s.samples)
}

func (s *SettledFraction) Reset() {
	s.settled = 0
	s.samples = 0
}
