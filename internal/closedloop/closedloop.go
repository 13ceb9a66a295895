// Package closedloop simulates a linear plant under LQR state feedback,
// dx/dt = A x + B u with u = -K(t)' (x - x_target), and samples the state
// trajectory.
package closedloop

import (
	"context"
	"fmt"

	"github.com/san-kum/lqrsim/internal/control"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/lti"
	"gonum.org/v1/gonum/mat"
)

// Option attaches metrics or observers to the underlying simulator.
type Option func(*dynamo.Simulator)

func WithMetrics(ms ...dynamo.Metric) Option {
	return func(s *dynamo.Simulator) {
		for _, m := range ms {
			s.AddMetric(m)
		}
	}
}

func WithObservers(obs ...dynamo.Observer) Option {
	return func(s *dynamo.Simulator) {
		for _, o := range obs {
			s.AddObserver(o)
		}
	}
}

// Simulate runs the closed loop with a constant n x m gain K. All shapes are
// checked before the solver starts; any mismatch is ErrDimensionMismatch.
func Simulate(ctx context.Context, A, B, K mat.Matrix, xTarget, xInitial []float64, t0, t1 float64, samples []float64, solver dynamo.Solver, opts ...Option) (*dynamo.Result, error) {
	sys, err := lti.New(A, B)
	if err != nil {
		return nil, fmt.Errorf("closedloop: %w", err)
	}
	n, m := sys.Dims()
	if err := lti.CheckShape("K", K, n, m); err != nil {
		return nil, fmt.Errorf("closedloop: %w", err)
	}
	return SimulateSchedule(ctx, sys, control.ConstantGain{K: mat.DenseCopyOf(K)}, xTarget, xInitial, t0, t1, samples, solver, opts...)
}

// SimulateSchedule is Simulate with a gain that may vary over time.
func SimulateSchedule(ctx context.Context, sys *lti.LinearSystem, gain control.GainSchedule, xTarget, xInitial []float64, t0, t1 float64, samples []float64, solver dynamo.Solver, opts ...Option) (*dynamo.Result, error) {
	n, m := sys.Dims()
	if gn, gm := gain.Dims(); gn != n || gm != m {
		return nil, fmt.Errorf("closedloop: gain is %dx%d, want %dx%d: %w", gn, gm, n, m, dynamo.ErrDimensionMismatch)
	}
	if err := lti.CheckVector("x_target", xTarget, n); err != nil {
		return nil, fmt.Errorf("closedloop: %w", err)
	}
	if err := lti.CheckVector("x_initial", xInitial, n); err != nil {
		return nil, fmt.Errorf("closedloop: %w", err)
	}

	lqr, err := control.NewLQR(gain, xTarget)
	if err != nil {
		return nil, fmt.Errorf("closedloop: %w", err)
	}
	return run(ctx, sys, lqr, xInitial, t0, t1, samples, solver, opts)
}

// SimulateOpenLoop integrates the plant with zero input, as a baseline for
// the regulated response.
func SimulateOpenLoop(ctx context.Context, sys *lti.LinearSystem, xInitial []float64, t0, t1 float64, samples []float64, solver dynamo.Solver, opts ...Option) (*dynamo.Result, error) {
	if err := lti.CheckVector("x_initial", xInitial, sys.StateDim()); err != nil {
		return nil, fmt.Errorf("closedloop: %w", err)
	}
	return run(ctx, sys, control.NewNone(sys.ControlDim()), xInitial, t0, t1, samples, solver, opts)
}

func run(ctx context.Context, sys *lti.LinearSystem, ctrl dynamo.Controller, xInitial []float64, t0, t1 float64, samples []float64, solver dynamo.Solver, opts []Option) (*dynamo.Result, error) {
	sim := dynamo.New(sys, solver, ctrl)
	for _, opt := range opts {
		opt(sim)
	}
	res, err := sim.Run(ctx, dynamo.State(xInitial).Clone(), t0, t1, samples)
	if err != nil {
		return nil, fmt.Errorf("closedloop: %w", err)
	}
	return res, nil
}
