// Package analysis characterises a regulated response.
//
//   - [ClosedLoopMatrix] and [Poles]: A - B K' and its eigenvalues
//   - [AnalyzeResponse]: settling time, overshoot and final error per component
//   - [BuildPhasePortrait]: 2D phase space projection of a trajectory
//
// # Stability
//
// The steady LQR gain should place every pole in the open left half plane:
//
//	poles, _ := analysis.Poles(A, B, K)
//	if !analysis.Stable(poles) {
//	    // gain does not stabilise the plant
//	}
package analysis
