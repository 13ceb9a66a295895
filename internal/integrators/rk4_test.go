package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/lqrsim/internal/dynamo"
)

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4(dynamo.Config{InitialStep: 0.01})

	samples := dynamo.Linspace(0, 1, 11)
	sol, err := integ.Solve(context.Background(), harmonicOscillator, 0, 1, []float64{1.0, 0.0}, samples)
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	for i, ts := range sol.Times {
		if ts != samples[i] {
			t.Fatalf("time %d = %v, want %v", i, ts, samples[i])
		}

		expectedX := math.Cos(ts)
		expectedV := -math.Sin(ts)

		if math.Abs(sol.Y[i][0]-expectedX) > 1e-8 {
			t.Errorf("position error too large at t=%.2f: got %.9f, expected %.9f", ts, sol.Y[i][0], expectedX)
		}
		if math.Abs(sol.Y[i][1]-expectedV) > 1e-8 {
			t.Errorf("velocity error too large at t=%.2f: got %.9f, expected %.9f", ts, sol.Y[i][1], expectedV)
		}
	}

	if sol.Stats.Steps < 100 {
		t.Errorf("expected at least 100 steps, got %d", sol.Stats.Steps)
	}
}

func TestRK4Divergence(t *testing.T) {
	integ := NewRK4(dynamo.Config{InitialStep: 0.1})
	blowUp := func(t float64, y, dy []float64) { dy[0] = math.Exp(y[0] * y[0]) }

	_, err := integ.Solve(context.Background(), blowUp, 0, 10, []float64{1}, []float64{10})

	var div *dynamo.DivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("expected *DivergenceError, got %v", err)
	}
	if div.Time >= 10 {
		t.Errorf("divergence reported at t=%v, should be before the end", div.Time)
	}
}

func TestRK4StepCeiling(t *testing.T) {
	integ := NewRK4(dynamo.Config{InitialStep: 0.001, MaxSteps: 10})

	_, err := integ.Solve(context.Background(), decay, 0, 1, []float64{1}, []float64{1})
	if !errors.Is(err, dynamo.ErrIntegrationDivergence) {
		t.Errorf("expected ErrIntegrationDivergence, got %v", err)
	}
}

func TestRK4StepCountOverflow(t *testing.T) {
	integ := NewRK4(dynamo.Config{InitialStep: 1e-20})

	sol, err := integ.Solve(context.Background(), decay, 0, 10, []float64{1}, []float64{0, 5, 10})
	if sol != nil {
		t.Errorf("expected no solution, got %v", sol.Y)
	}

	var div *dynamo.DivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("expected *DivergenceError, got %v", err)
	}
	if div.Reason != "step ceiling exceeded" {
		t.Errorf("reason = %q", div.Reason)
	}
	if div.Time != 0 {
		t.Errorf("divergence at t=%v, want 0", div.Time)
	}
}
