package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/san-kum/lqrsim/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Name != "double_integrator" {
		t.Errorf("expected double_integrator, got %s", cfg.Name)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Solver.Method != "dopri5" {
		t.Errorf("expected dopri5, got %s", cfg.Solver.Method)
	}
	if s := cfg.SimulationSamples(); len(s) != 101 || s[0] != 0 || s[100] != 10 {
		t.Errorf("unexpected simulation samples %v", s)
	}
}

func TestReferencePreset(t *testing.T) {
	def := DefaultConfig()
	if !reflect.DeepEqual(def.Cost.P0, Matrix{{0, 0}, {0, 0}}) {
		t.Errorf("default P0 = %v, want zero", def.Cost.P0)
	}

	cfg := GetPreset("reference")
	if cfg == nil {
		t.Fatal("reference preset missing")
	}
	if !reflect.DeepEqual(cfg.Cost.P0, Matrix{{1, 0}, {0, 1}}) {
		t.Errorf("P0 = %v, want identity", cfg.Cost.P0)
	}
	if !reflect.DeepEqual(cfg.Simulation.XInitial, []float64{math.Pi / 2, 0}) {
		t.Errorf("x_initial = %v", cfg.Simulation.XInitial)
	}
	if !reflect.DeepEqual(cfg.Simulation.XTarget, []float64{math.Pi / 4, 0}) {
		t.Errorf("x_target = %v", cfg.Simulation.XTarget)
	}
	if cfg.Riccati.Mode != "forward" || cfg.Riccati.TEnd != 10 || cfg.Simulation.Samples != 1000 {
		t.Errorf("unexpected spans %+v %+v", cfg.Riccati, cfg.Simulation)
	}
}

func TestPresets_Validate(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if cfg == nil {
				t.Fatal("expected preset, got nil")
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("preset invalid: %v", err)
			}
		})
	}
}

func TestGetPreset_Copy(t *testing.T) {
	cfg := GetPreset("double_integrator")
	cfg.System.A[0][1] = 42
	cfg.Simulation.XInitial[0] = 9

	again := GetPreset("double_integrator")
	if again.System.A[0][1] != 1 || again.Simulation.XInitial[0] != 1 {
		t.Error("GetPreset must not share state with the preset table")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	cfg := GetPreset("finite_horizon")
	cfg.Solver.Timeout = 3 * time.Second

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("name: slow\nsimulation:\n  t_end: 20\nsolver:\n  rtol: 1e-8\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "slow" || cfg.Simulation.TEnd != 20 || cfg.Solver.RelTol != 1e-8 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Solver.AbsTol != DefaultAbsTol || len(cfg.System.A) != 2 {
		t.Error("defaults lost")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("partial config invalid: %v", err)
	}
}

func TestMatrices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cost.P0 = nil

	ms, err := cfg.Matrices()
	if err != nil {
		t.Fatal(err)
	}
	if r, c := ms.P0.Dims(); r != 2 || c != 2 {
		t.Errorf("P0 is %dx%d, want 2x2 zero", r, c)
	}
	if ms.A.At(0, 1) != 1 || ms.B.At(1, 0) != 1 {
		t.Error("matrix entries not copied")
	}
	if !reflect.DeepEqual(FromDense(ms.A), cfg.System.A) {
		t.Error("FromDense does not invert Dense")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"ragged A", func(c *Config) { c.System.A = Matrix{{0, 1}, {0}} }, dynamo.ErrDimensionMismatch},
		{"B rows", func(c *Config) { c.System.B = Matrix{{0}, {1}, {0}} }, dynamo.ErrDimensionMismatch},
		{"P0 3x3", func(c *Config) { c.Cost.P0 = Matrix{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}} }, dynamo.ErrDimensionMismatch},
		{"empty R", func(c *Config) { c.Cost.R = nil }, dynamo.ErrDimensionMismatch},
		{"x_initial", func(c *Config) { c.Simulation.XInitial = []float64{1} }, dynamo.ErrDimensionMismatch},
		{"reversed span", func(c *Config) { c.Riccati.TEnd = -1 }, dynamo.ErrInvalidTimeSpan},
		{"no samples", func(c *Config) { c.Simulation.Samples = 0 }, dynamo.ErrInvalidTimeSpan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_Names(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Solver.Method = "euler" },
		func(c *Config) { c.Riccati.Mode = "sideways" },
		func(c *Config) { c.GainPolicy = "bang_bang" },
	} {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestDynamoConfig(t *testing.T) {
	s := SolverConfig{RelTol: 1e-3, MaxStep: 0.5, Timeout: time.Second}
	cfg := s.DynamoConfig()
	if cfg.RelTol != 1e-3 || cfg.AbsTol != DefaultAbsTol || cfg.MaxSteps != DefaultMaxSteps {
		t.Errorf("unexpected tolerances %+v", cfg)
	}
	if cfg.MaxStep != 0.5 || cfg.Timeout != time.Second {
		t.Errorf("unexpected limits %+v", cfg)
	}
}

func TestLoadInto_KeepsBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	data := []byte("solver:\n  method: rk4\nsimulation:\n  x_initial: [2]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := GetPreset("scalar")
	if err := LoadInto(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "scalar" || !reflect.DeepEqual(cfg.System.A, Matrix{{0}}) {
		t.Errorf("preset fields lost: %+v", cfg)
	}
	if cfg.Solver.Method != "rk4" || cfg.Solver.RelTol != DefaultRelTol {
		t.Errorf("solver = %+v", cfg.Solver)
	}
	if !reflect.DeepEqual(cfg.Simulation.XInitial, []float64{2}) || cfg.Simulation.TEnd != 5 {
		t.Errorf("simulation = %+v", cfg.Simulation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("merged config invalid: %v", err)
	}

	if err := LoadInto(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err == nil {
		t.Error("expected error for missing file")
	}
}
