package dynamo

import (
	"context"
	"fmt"
)

type Simulator struct {
	sys        System
	solver     Solver
	controller Controller
	metrics    []Metric
	observers  []Observer
}

func New(sys System, solver Solver, controller Controller) *Simulator {
	return &Simulator{
		sys:        sys,
		solver:     solver,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run integrates the closed loop dx/dt = f(x, Compute(x, t), t) from x0 at t0
// to t1 and returns the state at every sample time. The control is evaluated
// inside the derivative, so the solver sees a continuous feedback law rather
// than a zero-order hold.
func (s *Simulator) Run(ctx context.Context, x0 State, t0, t1 float64, samples []float64) (*Result, error) {
	if err := s.validate(x0, t0, t1, samples); err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	f := func(t float64, y, dy []float64) {
		x := State(y)
		u := s.controller.Compute(x, t)
		copy(dy, s.sys.Derive(x, u, t))
	}

	sol, err := s.solver.Solve(ctx, f, t0, t1, x0, samples)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Trajectory: Trajectory{
			Times:  make([]float64, 0, len(sol.Times)),
			States: make([]State, 0, len(sol.Times)),
		},
		Controls: make([]Control, 0, len(sol.Times)),
		Metrics:  make(map[string]float64),
		Stats:    sol.Stats,
	}

	for i, t := range sol.Times {
		x := State(sol.Y[i]).Clone()
		u := s.controller.Compute(x, t)

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnSample(x, u, t)
		}

		result.Times = append(result.Times, t)
		result.States = append(result.States, x)
		result.Controls = append(result.Controls, u)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validate(x0 State, t0, t1 float64, samples []float64) error {
	if len(x0) != s.sys.StateDim() {
		return fmt.Errorf("initial state has length %d, system has %d states: %w", len(x0), s.sys.StateDim(), ErrDimensionMismatch)
	}
	return ValidateSpan(t0, t1, samples)
}
