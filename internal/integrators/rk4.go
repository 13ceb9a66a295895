package integrators

import (
	"context"
	"math"

	"github.com/san-kum/lqrsim/internal/dynamo"
)

const defaultRK4Steps = 1000

// RK4 is the classic fourth-order method with a fixed step. The step is
// cfg.InitialStep, or 1/1000 of the span when unset; it is shortened so that
// every sample time is hit exactly.
type RK4 struct {
	cfg dynamo.Config
}

func NewRK4(cfg dynamo.Config) *RK4 {
	return &RK4{cfg: withDefaults(cfg)}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) Solve(ctx context.Context, f dynamo.Derivative, t0, t1 float64, y0 []float64, samples []float64) (*dynamo.Solution, error) {
	if err := dynamo.ValidateSpan(t0, t1, samples); err != nil {
		return nil, err
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	step := r.cfg.InitialStep
	if step <= 0 {
		step = (t1 - t0) / defaultRK4Steps
	}

	n := len(y0)
	x := dynamo.State(y0).Clone()
	if !x.IsValid() {
		return nil, &dynamo.DivergenceError{Time: t0, State: x, Reason: "non-finite initial state"}
	}

	k1 := make([]float64, n)
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	k4 := make([]float64, n)
	scratch := make([]float64, n)

	sol := &dynamo.Solution{
		Times: make([]float64, 0, len(samples)),
		Y:     make([][]float64, 0, len(samples)),
	}

	t := t0
	for _, ts := range samples {
		if ts > t {
			count := math.Ceil((ts - t) / step)
			if count > float64(r.cfg.MaxSteps-sol.Stats.Steps) {
				return nil, &dynamo.DivergenceError{Step: sol.Stats.Steps, Time: t, State: x.Clone(), Reason: "step ceiling exceeded"}
			}
			steps := int(count)
			dt := (ts - t) / float64(steps)
			for i := 0; i < steps; i++ {
				select {
				case <-ctx.Done():
					return nil, &dynamo.DivergenceError{Step: sol.Stats.Steps, Time: t, State: x.Clone(), Reason: "interrupted", Cause: ctx.Err()}
				default:
				}
				if sol.Stats.Steps >= r.cfg.MaxSteps {
					return nil, &dynamo.DivergenceError{Step: sol.Stats.Steps, Time: t, State: x.Clone(), Reason: "step ceiling exceeded"}
				}

				f(t, x, k1)

				for j := 0; j < n; j++ {
					scratch[j] = x[j] + dt*0.5*k1[j]
				}
				f(t+dt*0.5, scratch, k2)

				for j := 0; j < n; j++ {
					scratch[j] = x[j] + dt*0.5*k2[j]
				}
				f(t+dt*0.5, scratch, k3)

				for j := 0; j < n; j++ {
					scratch[j] = x[j] + dt*k3[j]
				}
				f(t+dt, scratch, k4)
				sol.Stats.Evaluations += 4

				dt6 := dt / 6.0
				for j := 0; j < n; j++ {
					scratch[j] = x[j] + dt6*(k1[j]+2*k2[j]+2*k3[j]+k4[j])
				}
				if !dynamo.State(scratch).IsValid() {
					return nil, &dynamo.DivergenceError{Step: sol.Stats.Steps, Time: t, State: x.Clone(), Reason: "non-finite state"}
				}
				copy(x, scratch)

				if i == steps-1 {
					t = ts
				} else {
					t += dt
				}
				sol.Stats.Steps++
				sol.Stats.LastStep = dt
			}
		}
		sol.Times = append(sol.Times, ts)
		sol.Y = append(sol.Y, x.Clone())
	}

	return sol, nil
}
