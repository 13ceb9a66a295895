// Package automation runs batches of scenarios and Monte Carlo studies
// concurrently.
package automation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/san-kum/lqrsim/internal/config"
	"github.com/san-kum/lqrsim/internal/control"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/experiment"
	"github.com/san-kum/lqrsim/internal/logger"
	"github.com/san-kum/lqrsim/internal/lti"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Batch is a list of scenarios run side by side.
type Batch struct {
	Name     string  `yaml:"name"`
	Parallel int     `yaml:"parallel"`
	Runs     []Entry `yaml:"scenarios"`
}

// Entry names a preset, an inline config, or both: the inline config is
// decoded over the preset (or over the defaults when no preset is given).
type Entry struct {
	Name   string    `yaml:"name"`
	Preset string    `yaml:"preset"`
	Config yaml.Node `yaml:"config"`
}

// LoadBatch loads a batch from a YAML file
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBatch(data)
}

func ParseBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if len(b.Runs) == 0 {
		return nil, fmt.Errorf("batch %q has no scenarios", b.Name)
	}
	return &b, nil
}

// Resolve builds the scenario config for an entry.
func (e Entry) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if e.Preset != "" {
		if cfg = config.GetPreset(e.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", e.Preset)
		}
	}
	if e.Config.Kind != 0 {
		if err := e.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode inline config: %w", err)
		}
	}
	if e.Name != "" {
		cfg.Name = e.Name
	}
	return cfg, nil
}

// RunResult is the outcome of one batch entry. Err is set instead of
// Outcome when the run failed.
type RunResult struct {
	Index   int
	Name    string
	Outcome *experiment.Outcome
	Err     error
}

// RunBatch runs every entry, at most Parallel at a time (NumCPU when unset).
// Runs are independent: a failed run is reported in its RunResult and does
// not stop the others. Results keep the batch order.
func RunBatch(ctx context.Context, batch *Batch, registry *experiment.Registry) []RunResult {
	results := make([]RunResult, len(batch.Runs))
	limit := batch.Parallel
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, entry := range batch.Runs {
		g.Go(func() error {
			res := RunResult{Index: i, Name: entry.Name}
			defer func() { results[i] = res }()

			cfg, err := entry.Resolve()
			if err != nil {
				res.Err = err
				return nil
			}
			res.Name = cfg.Name

			logger.Log.Infow("batch run started", "batch", batch.Name, "index", i, "scenario", cfg.Name)
			res.Outcome, res.Err = experiment.New(cfg, registry).Run(ctx)
			if res.Err != nil {
				logger.Log.Warnw("batch run failed", "batch", batch.Name, "index", i, "scenario", cfg.Name, "error", res.Err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Failed counts results with an error.
func Failed(results []RunResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// MonteCarloConfig perturbs the initial state of a scenario.
type MonteCarloConfig struct {
	Perturbation float64
	NumTrials    int
	Seed         int64
	Parallel     int
	// Bound is the largest final error norm still counted as regulated.
	Bound float64
}

// MonteCarloResult holds statistics from Monte Carlo runs
type MonteCarloResult struct {
	TrialID    int
	InitState  dynamo.State
	FinalState dynamo.State
	FinalError float64
	Regulated  bool
}

// RunMonteCarlo reuses the scenario gain from a single experiment run and
// simulates it from NumTrials perturbed initial states in parallel.
func RunMonteCarlo(ctx context.Context, cfg *config.Config, mc MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	if registry == nil {
		registry = experiment.NewRegistry()
	}
	if mc.NumTrials <= 0 {
		return nil, fmt.Errorf("monte carlo needs at least one trial")
	}

	out, err := experiment.New(cfg, registry).Run(ctx)
	if err != nil {
		return nil, err
	}
	ms, err := cfg.Matrices()
	if err != nil {
		return nil, err
	}
	sys, err := lti.New(ms.A, ms.B)
	if err != nil {
		return nil, err
	}
	solver, err := registry.GetSolver(cfg.Solver.Method, cfg.Solver.DynamoConfig())
	if err != nil {
		return nil, err
	}
	target := dynamo.State(cfg.Simulation.XTarget)
	lqr, err := control.NewLQR(out.Gain, target)
	if err != nil {
		return nil, err
	}

	seed := mc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	x0s := make([]dynamo.State, mc.NumTrials)
	for trial := range x0s {
		x0 := make(dynamo.State, len(cfg.Simulation.XInitial))
		for i, v := range cfg.Simulation.XInitial {
			x0[i] = v + (rng.Float64()-0.5)*2*mc.Perturbation
		}
		x0s[trial] = x0
	}

	ens := dynamo.NewEnsemble(sys, solver, lqr, nil, mc.Parallel)
	runs, err := ens.Run(ctx, x0s, cfg.Simulation.TStart, cfg.Simulation.TEnd, cfg.SimulationSamples())
	if err != nil {
		return nil, err
	}

	bound := mc.Bound
	if bound <= 0 {
		bound = experiment.SettleTolerance
	}
	results := make([]MonteCarloResult, len(runs))
	for i, r := range runs {
		final := r.Final()
		e := final.Sub(target).Norm()
		results[i] = MonteCarloResult{
			TrialID:    i,
			InitState:  x0s[i],
			FinalState: final,
			FinalError: e,
			Regulated:  final.IsValid() && e <= bound,
		}
	}
	logger.Log.Infow("monte carlo complete", "scenario", cfg.Name, "trials", mc.NumTrials, "seed", seed)
	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (regulated int, unregulated int) {
	for _, r := range results {
		if r.Regulated {
			regulated++
		} else {
			unregulated++
		}
	}
	return
}
