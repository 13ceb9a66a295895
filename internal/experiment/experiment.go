// Package experiment runs one LQR scenario end to end: Riccati integration,
// gain extraction, closed-loop simulation and response analysis.
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/lqrsim/internal/analysis"
	"github.com/san-kum/lqrsim/internal/closedloop"
	"github.com/san-kum/lqrsim/internal/config"
	"github.com/san-kum/lqrsim/internal/control"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/logger"
	"github.com/san-kum/lqrsim/internal/lti"
	"github.com/san-kum/lqrsim/internal/riccati"
	"gonum.org/v1/gonum/mat"
)

// Outcome is everything one run produces.
type Outcome struct {
	Config  *config.Config
	Riccati *riccati.Solution
	Gain    control.GainSchedule
	// K is the gain from the steady Riccati sample, whatever the policy.
	K            *mat.Dense
	Poles        []complex128
	Controllable bool
	Rank         int
	Result       *dynamo.Result
	Response     analysis.Response
	Elapsed      time.Duration
}

type Experiment struct {
	cfg      *config.Config
	registry *Registry
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry}
}

func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	cfg := e.cfg
	log := logger.Log.With("scenario", cfg.Name)

	if err := cfg.Validate(); err != nil {
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

	out := &Outcome{Config: cfg}
	out.Controllable, out.Rank = sys.Controllable()
	if !out.Controllable {
		n, _ := sys.Dims()
		log.Warnw("system is not controllable", "rank", out.Rank, "states", n)
	}

	solver, err := e.registry.GetSolver(cfg.Solver.Method, cfg.Solver.DynamoConfig())
	if err != nil {
		return nil, err
	}
	policy, err := e.registry.GetPolicy(cfg.GainPolicy)
	if err != nil {
		return nil, err
	}
	mode, err := riccati.ParseMode(cfg.Riccati.Mode)
	if err != nil {
		return nil, err
	}

	log.Debugw("integrating riccati", "mode", mode, "solver", solver.Name(),
		"t_start", cfg.Riccati.TStart, "t_end", cfg.Riccati.TEnd)
	out.Riccati, err = riccati.New(solver).Integrate(ctx, riccati.Problem{
		A: ms.A, B: ms.B, Q: ms.Q, R: ms.R, P0: ms.P0,
		T0:      cfg.Riccati.TStart,
		T1:      cfg.Riccati.TEnd,
		Samples: cfg.RiccatiSamples(),
		Mode:    mode,
	})
	if err != nil {
		log.Errorw("riccati integration failed", "error", err)
		return nil, err
	}
	log.Infow("riccati integrated", "steps", out.Riccati.Stats.Steps,
		"rejected", out.Riccati.Stats.Rejected, "evaluations", out.Riccati.Stats.Evaluations)

	out.Gain, err = policy.Schedule(out.Riccati, ms.B)
	if err != nil {
		return nil, err
	}
	out.K, err = control.GainFrom(out.Riccati.Steady().P, ms.B)
	if err != nil {
		return nil, err
	}
	log.Infow("gain extracted", "policy", policy.Name(), "k", fmt.Sprintf("%.6g", mat.Formatted(out.K.T(), mat.Squeeze())))

	if out.Poles, err = analysis.Poles(ms.A, ms.B, out.K); err != nil {
		log.Warnw("closed-loop poles unavailable", "error", err)
	} else if !analysis.Stable(out.Poles) {
		log.Warnw("steady gain does not stabilise the plant", "poles", out.Poles)
	}

	target := dynamo.State(cfg.Simulation.XTarget)
	out.Result, err = closedloop.SimulateSchedule(ctx, sys, out.Gain,
		cfg.Simulation.XTarget, cfg.Simulation.XInitial,
		cfg.Simulation.TStart, cfg.Simulation.TEnd, cfg.SimulationSamples(), solver,
		closedloop.WithMetrics(e.registry.DefaultMetrics(ms.Q, ms.R, target)...))
	if err != nil {
		log.Errorw("closed-loop simulation failed", "error", err)
		return nil, err
	}

	out.Response, err = analysis.AnalyzeResponse(out.Result.Trajectory, target)
	if err != nil {
		return nil, fmt.Errorf("analyse response: %w", err)
	}

	out.Elapsed = time.Since(start)
	log.Infow("simulation complete", "samples", out.Result.Len(),
		"steps", out.Result.Stats.Steps, "final_error", out.Response.FinalError,
		"metrics", out.Result.Metrics, "elapsed", out.Elapsed)
	return out, nil
}
