package dynamo

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Norm(t *testing.T) {
	tests := []struct {
		state    State
		expected float64
	}{
		{State{3, 4}, 5.0},
		{State{1, 0}, 1.0},
		{State{0, 0}, 0.0},
		{State{1, 1, 1, 1}, 2.0},
	}

	for _, tt := range tests {
		if got := tt.state.Norm(); math.Abs(got-tt.expected) > 1e-10 {
			t.Errorf("Norm(%v) = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	sum := a.Add(b)
	if sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add failed: got %v", sum)
	}

	diff := b.Sub(a)
	if diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}

	scaled := a.Scale(2)
	if scaled[0] != 2 || scaled[1] != 4 || scaled[2] != 6 {
		t.Errorf("Scale failed: got %v", scaled)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RelTol != 1e-6 {
		t.Errorf("RelTol = %g, want 1e-6", cfg.RelTol)
	}
	if cfg.AbsTol != 1e-9 {
		t.Errorf("AbsTol = %g, want 1e-9", cfg.AbsTol)
	}
	if cfg.MaxSteps <= 0 {
		t.Error("DefaultConfig has no step ceiling")
	}
}

func TestDivergenceError(t *testing.T) {
	err := &DivergenceError{Step: 12, Time: 0.5, Reason: "non-finite state"}

	if !errors.Is(err, ErrIntegrationDivergence) {
		t.Error("DivergenceError should match ErrIntegrationDivergence")
	}
	if !strings.Contains(err.Error(), "non-finite state at step 12") {
		t.Errorf("unexpected message %q", err.Error())
	}

	timeout := &DivergenceError{Step: 3, Time: 1, Reason: "canceled", Cause: context.DeadlineExceeded}
	if !errors.Is(timeout, ErrIntegrationDivergence) || !errors.Is(timeout, context.DeadlineExceeded) {
		t.Error("DivergenceError should match both the sentinel and its cause")
	}
}

func TestTrajectory_Component(t *testing.T) {
	tr := Trajectory{
		Times:  []float64{0, 1, 2},
		States: []State{{1, 10}, {2, 20}, {3, 30}},
	}

	vel := tr.Component(1)
	if len(vel) != 3 || vel[0] != 10 || vel[2] != 30 {
		t.Errorf("Component(1) = %v", vel)
	}
	if got := tr.Final(); got[0] != 3 {
		t.Errorf("Final() = %v", got)
	}
	if (Trajectory{}).Final() != nil {
		t.Error("Final() of empty trajectory should be nil")
	}
}
