package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/lti"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHorizon  = 10.0
	DefaultSamples  = 101
	DefaultMethod   = "dopri5"
	DefaultPolicy   = "steady_state"
	DefaultMode     = "forward"
	DefaultRelTol   = 1e-6
	DefaultAbsTol   = 1e-9
	DefaultMaxSteps = 100000
)

// Matrix is a row-major matrix as written in YAML: a list of rows.
type Matrix [][]float64

type Config struct {
	Name       string           `yaml:"name" json:"name"`
	System     SystemConfig     `yaml:"system" json:"system"`
	Cost       CostConfig       `yaml:"cost" json:"cost"`
	Riccati    RiccatiConfig    `yaml:"riccati" json:"riccati"`
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
	Solver     SolverConfig     `yaml:"solver" json:"solver"`
	GainPolicy string           `yaml:"gain_policy" json:"gain_policy"`
}

type SystemConfig struct {
	A Matrix `yaml:"a" json:"a"`
	B Matrix `yaml:"b" json:"b"`
}

// CostConfig holds the LQR weights. P0 may be omitted and defaults to zero.
type CostConfig struct {
	Q  Matrix `yaml:"q" json:"q"`
	R  Matrix `yaml:"r" json:"r"`
	P0 Matrix `yaml:"p0,omitempty" json:"p0,omitempty"`
}

type RiccatiConfig struct {
	Mode    string  `yaml:"mode" json:"mode"`
	TStart  float64 `yaml:"t_start" json:"t_start"`
	TEnd    float64 `yaml:"t_end" json:"t_end"`
	Samples int     `yaml:"samples" json:"samples"`
}

type SimulationConfig struct {
	XInitial []float64 `yaml:"x_initial" json:"x_initial"`
	XTarget  []float64 `yaml:"x_target" json:"x_target"`
	TStart   float64   `yaml:"t_start" json:"t_start"`
	TEnd     float64   `yaml:"t_end" json:"t_end"`
	Samples  int       `yaml:"samples" json:"samples"`
}

type SolverConfig struct {
	Method      string        `yaml:"method" json:"method"`
	RelTol      float64       `yaml:"rtol" json:"rtol"`
	AbsTol      float64       `yaml:"atol" json:"atol"`
	InitialStep float64       `yaml:"initial_step,omitempty" json:"initial_step,omitempty"`
	MinStep     float64       `yaml:"min_step,omitempty" json:"min_step,omitempty"`
	MaxStep     float64       `yaml:"max_step,omitempty" json:"max_step,omitempty"`
	MaxSteps    int           `yaml:"max_steps" json:"max_steps"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DefaultConfig is a double integrator with unit weights and P0 = 0,
// regulated from (1, 0) to the origin over ten seconds. The "reference"
// preset starts the Riccati flow from P0 = I and regulates from pi/2 to pi/4.
func DefaultConfig() *Config {
	return &Config{
		Name: "double_integrator",
		System: SystemConfig{
			A: Matrix{{0, 1}, {0, 0}},
			B: Matrix{{0}, {1}},
		},
		Cost: CostConfig{
			Q:  Matrix{{1, 0}, {0, 1}},
			R:  Matrix{{1}},
			P0: Matrix{{0, 0}, {0, 0}},
		},
		Riccati: RiccatiConfig{
			Mode:    DefaultMode,
			TEnd:    DefaultHorizon,
			Samples: DefaultSamples,
		},
		Simulation: SimulationConfig{
			XInitial: []float64{1, 0},
			XTarget:  []float64{0, 0},
			TEnd:     DefaultHorizon,
			Samples:  DefaultSamples,
		},
		Solver: SolverConfig{
			Method:   DefaultMethod,
			RelTol:   DefaultRelTol,
			AbsTol:   DefaultAbsTol,
			MaxSteps: DefaultMaxSteps,
		},
		GainPolicy: DefaultPolicy,
	}
}

// Parse decodes YAML over DefaultConfig, so omitted keys keep their
// defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto decodes the file over cfg, so keys missing from the file keep
// the values already in cfg.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.System.A = c.System.A.clone()
	out.System.B = c.System.B.clone()
	out.Cost.Q = c.Cost.Q.clone()
	out.Cost.R = c.Cost.R.clone()
	out.Cost.P0 = c.Cost.P0.clone()
	out.Simulation.XInitial = append([]float64(nil), c.Simulation.XInitial...)
	out.Simulation.XTarget = append([]float64(nil), c.Simulation.XTarget...)
	return &out
}

func (m Matrix) clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Dense converts m to a gonum matrix. Empty or ragged input is
// ErrDimensionMismatch.
func (m Matrix) Dense(name string) (*mat.Dense, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", name, dynamo.ErrDimensionMismatch)
	}
	d := mat.NewDense(len(m), len(m[0]), nil)
	for i, row := range m {
		if len(row) != len(m[0]) {
			return nil, fmt.Errorf("%s row %d has %d entries, want %d: %w", name, i, len(row), len(m[0]), dynamo.ErrDimensionMismatch)
		}
		d.SetRow(i, row)
	}
	return d, nil
}

// FromDense is the inverse of Dense.
func FromDense(d mat.Matrix) Matrix {
	r, c := d.Dims()
	out := make(Matrix, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = d.At(i, j)
		}
	}
	return out
}

// Matrices are the gonum forms of the system and cost matrices.
type Matrices struct {
	A, B, Q, R, P0 *mat.Dense
}

// Matrices converts and shape-checks every matrix. A missing P0 becomes
// the n x n zero matrix.
func (c *Config) Matrices() (*Matrices, error) {
	var (
		out Matrices
		err error
	)
	if out.A, err = c.System.A.Dense("A"); err != nil {
		return nil, err
	}
	if out.B, err = c.System.B.Dense("B"); err != nil {
		return nil, err
	}
	if out.Q, err = c.Cost.Q.Dense("Q"); err != nil {
		return nil, err
	}
	if out.R, err = c.Cost.R.Dense("R"); err != nil {
		return nil, err
	}

	n, _ := out.A.Dims()
	_, m := out.B.Dims()
	if len(c.Cost.P0) == 0 {
		out.P0 = mat.NewDense(n, n, nil)
	} else if out.P0, err = c.Cost.P0.Dense("P0"); err != nil {
		return nil, err
	}

	for _, err := range []error{
		lti.CheckShape("A", out.A, n, n),
		lti.CheckShape("B", out.B, n, m),
		lti.CheckShape("Q", out.Q, n, n),
		lti.CheckShape("R", out.R, m, m),
		lti.CheckShape("P0", out.P0, n, n),
	} {
		if err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// Validate checks the whole scenario without running anything.
func (c *Config) Validate() error {
	ms, err := c.Matrices()
	if err != nil {
		return fmt.Errorf("config %s: %w", c.Name, err)
	}
	n, _ := ms.A.Dims()
	for _, err := range []error{
		lti.CheckVector("x_initial", c.Simulation.XInitial, n),
		lti.CheckVector("x_target", c.Simulation.XTarget, n),
	} {
		if err != nil {
			return fmt.Errorf("config %s: %w", c.Name, err)
		}
	}

	if err := checkSpan("riccati", c.Riccati.TStart, c.Riccati.TEnd, c.Riccati.Samples); err != nil {
		return fmt.Errorf("config %s: %w", c.Name, err)
	}
	if err := checkSpan("simulation", c.Simulation.TStart, c.Simulation.TEnd, c.Simulation.Samples); err != nil {
		return fmt.Errorf("config %s: %w", c.Name, err)
	}

	if !oneOf(c.Solver.Method, "dopri5", "rk45", "rk4") {
		return fmt.Errorf("config %s: unknown solver method %q", c.Name, c.Solver.Method)
	}
	if !oneOf(c.Riccati.Mode, "", "forward", "backward") {
		return fmt.Errorf("config %s: unknown riccati mode %q", c.Name, c.Riccati.Mode)
	}
	if !oneOf(c.GainPolicy, "", "steady_state", "time_varying") {
		return fmt.Errorf("config %s: unknown gain policy %q", c.Name, c.GainPolicy)
	}
	if c.Solver.RelTol < 0 || c.Solver.AbsTol < 0 || c.Solver.MaxSteps < 0 {
		return fmt.Errorf("config %s: solver tolerances and max_steps must not be negative", c.Name)
	}
	return nil
}

func checkSpan(name string, t0, t1 float64, samples int) error {
	if !(t1 > t0) {
		return fmt.Errorf("%s span [%v, %v] is empty: %w", name, t0, t1, dynamo.ErrInvalidTimeSpan)
	}
	if samples < 1 {
		return fmt.Errorf("%s needs at least one sample, got %d: %w", name, samples, dynamo.ErrInvalidTimeSpan)
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	s = strings.ToLower(s)
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// RiccatiSamples are the evenly spaced Riccati output times, ending at t_end.
func (c *Config) RiccatiSamples() []float64 {
	return samples(c.Riccati.TStart, c.Riccati.TEnd, c.Riccati.Samples)
}

// SimulationSamples are the evenly spaced trajectory sample times.
func (c *Config) SimulationSamples() []float64 {
	return samples(c.Simulation.TStart, c.Simulation.TEnd, c.Simulation.Samples)
}

// A single sample is taken at the end of the span.
func samples(t0, t1 float64, n int) []float64 {
	if n == 1 {
		return []float64{t1}
	}
	return dynamo.Linspace(t0, t1, n)
}

// DynamoConfig converts the solver section to solver options. Zero
// tolerances and ceilings fall back to the defaults.
func (s SolverConfig) DynamoConfig() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	if s.RelTol > 0 {
		cfg.RelTol = s.RelTol
	}
	if s.AbsTol > 0 {
		cfg.AbsTol = s.AbsTol
	}
	if s.MaxSteps > 0 {
		cfg.MaxSteps = s.MaxSteps
	}
	cfg.InitialStep = s.InitialStep
	cfg.MinStep = s.MinStep
	cfg.MaxStep = s.MaxStep
	cfg.Timeout = s.Timeout
	return cfg
}
