// Package control turns Riccati solutions into state feedback.
//
// [GainFrom] extracts K = P B from a cost-to-go matrix. A [GainPolicy]
// decides which P samples feed the controller:
//
//   - [SteadyStateGainPolicy]: one constant K from the steady sample
//   - [TimeVaryingGainPolicy]: K(t) from every sample, linearly interpolated
//
// [LQR] implements [dynamo.Controller] with u = -K(t)' (x - target).
//
// # Usage
//
//	sched, _ := control.SteadyStateGainPolicy{}.Schedule(sol, B)
//	lqr, _ := control.NewLQR(sched, target)
//	sim := dynamo.New(plant, solver, lqr)
package control
