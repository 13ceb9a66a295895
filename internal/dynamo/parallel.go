package dynamo

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs the same closed loop from many initial states. Every run
// gets its own Simulator, so metrics are never shared between goroutines.
type Ensemble struct {
	sys        System
	solver     Solver
	controller Controller
	metrics    func() []Metric
	limit      int
}

// NewEnsemble builds an ensemble over a stateless controller. metrics may be
// nil; when set it is called once per run. limit <= 0 means unbounded.
func NewEnsemble(sys System, solver Solver, controller Controller, metrics func() []Metric, limit int) *Ensemble {
	return &Ensemble{sys: sys, solver: solver, controller: controller, metrics: metrics, limit: limit}
}

func (e *Ensemble) Run(ctx context.Context, x0s []State, t0, t1 float64, samples []float64) ([]*Result, error) {
	results := make([]*Result, len(x0s))

	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	for i, x0 := range x0s {
		g.Go(func() error {
			s := New(e.sys, e.solver, e.controller)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}

			res, err := s.Run(ctx, x0, t0, t1, samples)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
