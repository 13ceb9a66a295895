package dynamo

import (
	"context"
	"math"
	"time"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

// System is a continuous-time plant dx/dt = Derive(x, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Derivative writes dy/dt at (t, y) into dy. Implementations must not
// retain y or dy.
type Derivative func(t float64, y, dy []float64)

// Solver integrates y' = f(t, y) from t0 to t1 and reports y at every
// requested sample time.
type Solver interface {
	Name() string
	Solve(ctx context.Context, f Derivative, t0, t1 float64, y0 []float64, samples []float64) (*Solution, error)
}

// Solution is the sampled output of a Solver. Y[i] is the state at Times[i].
type Solution struct {
	Times []float64
	Y     [][]float64
	Stats Stats
}

// Stats are solver counters for a single Solve call.
type Stats struct {
	Steps       int     `json:"steps" yaml:"steps"`
	Rejected    int     `json:"rejected" yaml:"rejected"`
	Evaluations int     `json:"evaluations" yaml:"evaluations"`
	LastStep    float64 `json:"last_step" yaml:"last_step"`
}

type Controller interface {
	Compute(x State, t float64) Control
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(x State, u Control, t float64)
}

// Config holds solver tolerances and ceilings.
type Config struct {
	RelTol      float64
	AbsTol      float64
	InitialStep float64
	MinStep     float64
	MaxStep     float64
	MaxSteps    int
	Timeout     time.Duration
}

// DefaultConfig returns the solver defaults: rtol 1e-6, atol 1e-9 and a
// ceiling of 100000 accepted plus rejected steps. MinStep and MaxStep of zero
// select the solver's own floor and the full span.
func DefaultConfig() Config {
	return Config{
		RelTol:   1e-6,
		AbsTol:   1e-9,
		MaxSteps: 100000,
	}
}

// Trajectory is an ordered sequence of (time, state) samples.
type Trajectory struct {
	Times  []float64
	States []State
}

func (tr Trajectory) Len() int { return len(tr.Times) }

// Component returns the time series of state component i.
func (tr Trajectory) Component(i int) []float64 {
	out := make([]float64, len(tr.States))
	for k, x := range tr.States {
		if i < len(x) {
			out[k] = x[i]
		}
	}
	return out
}

// Final returns the last sampled state, or nil for an empty trajectory.
func (tr Trajectory) Final() State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

type Result struct {
	Trajectory
	Controls []Control
	Metrics  map[string]float64
	Stats    Stats
}
