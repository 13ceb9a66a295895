// Package dynamo provides core simulation primitives for continuous-time
// controlled systems.
//
// The package defines the fundamental interfaces and types shared by the
// Riccati integrator and the closed-loop simulator:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Solver]: adaptive or fixed-step ODE solver with sampled output
//   - [Controller]: feedback controller interface
//   - [Simulator]: integrates a system under a controller over sample times
//
// # Example
//
//	sys := lti.MustNew(A, B)
//	solver := integrators.NewDormandPrince(dynamo.DefaultConfig())
//	sim := dynamo.New(sys, solver, ctrl)
//	result, err := sim.Run(ctx, x0, 0, 10, dynamo.Linspace(0, 10, 1000))
//
// # Errors
//
// Failures are reported through the sentinel errors in errors.go. Solver
// failures are returned as [*DivergenceError], which matches
// [ErrIntegrationDivergence] under errors.Is.
//
// # Thread Safety
//
// Simulator instances hold metrics, which are stateful, so a Simulator must
// not be shared across goroutines. Use [Ensemble] to run independent
// scenarios concurrently.
package dynamo
