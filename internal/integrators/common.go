// Package integrators implements the ODE solvers behind [dynamo.Solver].
//
// [DormandPrince] is the default: adaptive 5(4) pair, error norm
// rms(err / (atol + rtol*max(|y|, |y_new|))), dense output of order 4.
// [RK4] is the classic fixed-step method, kept for cross-checks.
//
// Solvers hold only configuration, so one instance may be shared by
// concurrent Solve calls.
package integrators

import "github.com/san-kum/lqrsim/internal/dynamo"

const eps = 2.220446049250313e-16

func withDefaults(cfg dynamo.Config) dynamo.Config {
	def := dynamo.DefaultConfig()
	if cfg.RelTol <= 0 {
		cfg.RelTol = def.RelTol
	}
	if cfg.AbsTol <= 0 {
		cfg.AbsTol = def.AbsTol
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	return cfg
}
