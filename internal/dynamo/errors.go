package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration and simulation operations.
var (
	// ErrDimensionMismatch indicates a matrix or vector shape inconsistent
	// with the declared state and input dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrSingularControlCost indicates a control cost matrix R that cannot be inverted.
	ErrSingularControlCost = errors.New("dynamo: singular control cost matrix")

	// ErrIntegrationDivergence indicates the solver produced non-finite values,
	// hit its step-size floor or exceeded its step or time ceiling.
	ErrIntegrationDivergence = errors.New("dynamo: integration diverged")

	// ErrNotSymmetric indicates a matrix required to be symmetric is not.
	ErrNotSymmetric = errors.New("dynamo: matrix is not symmetric")

	// ErrInvalidTimeSpan indicates an empty or reversed time span, or sample
	// times that are not strictly increasing inside the span.
	ErrInvalidTimeSpan = errors.New("dynamo: invalid time span or sample times")
)

// DivergenceError wraps a solver failure with the last valid point reached.
type DivergenceError struct {
	Step   int
	Time   float64
	State  State
	Reason string
	// Cause is set when the failure came from outside the solver, e.g. a
	// context deadline.
	Cause error
}

func (e *DivergenceError) Error() string {
	msg := fmt.Sprintf("%s: %s at step %d (t=%.6g)", ErrIntegrationDivergence, e.Reason, e.Step, e.Time)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DivergenceError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrIntegrationDivergence, e.Cause}
	}
	return []error{ErrIntegrationDivergence}
}
