package config

import (
	"math"
	"sort"
)

// Presets are named scenarios. Use GetPreset, which returns a copy.
var Presets = map[string]*Config{
	"double_integrator": DefaultConfig(),
	// Riccati from P0 = I, regulating position pi/2 to pi/4 at 1000 samples.
	"reference": {
		Name:       "reference",
		System:     SystemConfig{A: Matrix{{0, 1}, {0, 0}}, B: Matrix{{0}, {1}}},
		Cost:       CostConfig{Q: Matrix{{1, 0}, {0, 1}}, R: Matrix{{1}}, P0: Matrix{{1, 0}, {0, 1}}},
		Riccati:    RiccatiConfig{Mode: "forward", TEnd: 10, Samples: 1000},
		Simulation: SimulationConfig{XInitial: []float64{math.Pi / 2, 0}, XTarget: []float64{math.Pi / 4, 0}, TEnd: 10, Samples: 1000},
		Solver:     defaultSolver(),
		GainPolicy: "steady_state",
	},
	"scalar": {
		Name:       "scalar",
		System:     SystemConfig{A: Matrix{{0}}, B: Matrix{{1}}},
		Cost:       CostConfig{Q: Matrix{{1}}, R: Matrix{{1}}, P0: Matrix{{0}}},
		Riccati:    RiccatiConfig{Mode: "forward", TEnd: 5, Samples: 51},
		Simulation: SimulationConfig{XInitial: []float64{1}, XTarget: []float64{0}, TEnd: 5, Samples: 51},
		Solver:     defaultSolver(),
		GainPolicy: "steady_state",
	},
	"damped_spring": {
		Name:       "damped_spring",
		System:     SystemConfig{A: Matrix{{0, 1}, {-4, -0.4}}, B: Matrix{{0}, {1}}},
		Cost:       CostConfig{Q: Matrix{{10, 0}, {0, 1}}, R: Matrix{{1}}},
		Riccati:    RiccatiConfig{Mode: "forward", TEnd: 10, Samples: 101},
		Simulation: SimulationConfig{XInitial: []float64{1, 0}, XTarget: []float64{0, 0}, TEnd: 10, Samples: 201},
		Solver:     defaultSolver(),
		GainPolicy: "steady_state",
	},
	"triple_integrator": {
		Name: "triple_integrator",
		System: SystemConfig{
			A: Matrix{{0, 1, 0}, {0, 0, 1}, {0, 0, 0}},
			B: Matrix{{0}, {0}, {1}},
		},
		Cost:       CostConfig{Q: Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, R: Matrix{{1}}},
		Riccati:    RiccatiConfig{Mode: "forward", TEnd: 20, Samples: 201},
		Simulation: SimulationConfig{XInitial: []float64{1, 0, 0}, XTarget: []float64{0, 0, 0}, TEnd: 20, Samples: 201},
		Solver:     defaultSolver(),
		GainPolicy: "steady_state",
	},
	// Textbook finite horizon: P0 is the terminal cost at t_end and the gain
	// follows P(t) backward from it.
	"finite_horizon": {
		Name:       "finite_horizon",
		System:     SystemConfig{A: Matrix{{0, 1}, {0, 0}}, B: Matrix{{0}, {1}}},
		Cost:       CostConfig{Q: Matrix{{1, 0}, {0, 1}}, R: Matrix{{1}}, P0: Matrix{{5, 0}, {0, 5}}},
		Riccati:    RiccatiConfig{Mode: "backward", TEnd: 5, Samples: 101},
		Simulation: SimulationConfig{XInitial: []float64{1, 0}, XTarget: []float64{0, 0}, TEnd: 5, Samples: 101},
		Solver:     defaultSolver(),
		GainPolicy: "time_varying",
	},
}

func defaultSolver() SolverConfig {
	return SolverConfig{
		Method:   DefaultMethod,
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MaxSteps: DefaultMaxSteps,
	}
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
