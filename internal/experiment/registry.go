package experiment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/lqrsim/internal/control"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/integrators"
	"github.com/san-kum/lqrsim/internal/metrics"
	"gonum.org/v1/gonum/mat"
)

// SettleTolerance is the absolute band used by the settled_fraction metric.
const SettleTolerance = 0.02

// Registry maps config names to solvers and gain policies.
type Registry struct {
	solvers  map[string]func(dynamo.Config) dynamo.Solver
	policies map[string]func() control.GainPolicy
}

func NewRegistry() *Registry {
	r := &Registry{
		solvers:  make(map[string]func(dynamo.Config) dynamo.Solver),
		policies: make(map[string]func() control.GainPolicy),
	}

	dopri := func(cfg dynamo.Config) dynamo.Solver { return integrators.NewDormandPrince(cfg) }
	r.solvers["dopri5"] = dopri
	r.solvers["rk45"] = dopri
	r.solvers["rk4"] = func(cfg dynamo.Config) dynamo.Solver { return integrators.NewRK4(cfg) }

	r.policies["steady_state"] = func() control.GainPolicy { return control.SteadyStateGainPolicy{} }
	r.policies["time_varying"] = func() control.GainPolicy { return control.TimeVaryingGainPolicy{} }

	return r
}

func (r *Registry) GetSolver(name string, cfg dynamo.Config) (dynamo.Solver, error) {
	fn, ok := r.solvers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) GetPolicy(name string) (control.GainPolicy, error) {
	if name == "" {
		name = "steady_state"
	}
	fn, ok := r.policies[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown gain policy: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListSolvers() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListPolicies() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns fresh metric instances for one run.
func (r *Registry) DefaultMetrics(Q, R mat.Matrix, target dynamo.State) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewControlEffort(),
		metrics.NewQuadraticCost(Q, R, target),
		metrics.NewSettledFraction(target, SettleTolerance),
	}
}
