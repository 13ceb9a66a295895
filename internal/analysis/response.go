package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/lti"
	"gonum.org/v1/gonum/mat"
)

// SettleBand is the settling band as a fraction of the initial error.
const SettleBand = 0.02

// ClosedLoopMatrix returns A - B K', the system matrix of dx/dt = A x + B u
// under u = -K' x.
func ClosedLoopMatrix(A, B, K mat.Matrix) (*mat.Dense, error) {
	n, _ := A.Dims()
	_, m := B.Dims()
	for _, err := range []error{
		lti.CheckShape("A", A, n, n),
		lti.CheckShape("B", B, n, m),
		lti.CheckShape("K", K, n, m),
	} {
		if err != nil {
			return nil, fmt.Errorf("analysis: %w", err)
		}
	}

	var bk, acl mat.Dense
	bk.Mul(B, K.T())
	acl.Sub(A, &bk)
	return &acl, nil
}

// Poles returns the eigenvalues of A - B K' sorted by real part, then
// imaginary part.
func Poles(A, B, K mat.Matrix) ([]complex128, error) {
	acl, err := ClosedLoopMatrix(A, B, K)
	if err != nil {
		return nil, err
	}
	var eig mat.Eigen
	if !eig.Factorize(acl, mat.EigenNone) {
		return nil, fmt.Errorf("analysis: eigendecomposition did not converge")
	}
	poles := eig.Values(nil)
	sort.Slice(poles, func(i, j int) bool {
		if real(poles[i]) != real(poles[j]) {
			return real(poles[i]) < real(poles[j])
		}
		return imag(poles[i]) < imag(poles[j])
	})
	return poles, nil
}

// Stable reports whether every pole has a strictly negative real part.
func Stable(poles []complex128) bool {
	for _, p := range poles {
		if real(p) >= 0 || cmplx.IsNaN(p) {
			return false
		}
	}
	return len(poles) > 0
}

// Response summarises how each state component approaches its target.
type Response struct {
	// SettlingTime is the first sample time after which the error stays
	// inside the band, or NaN if the last sample is still outside.
	SettlingTime []float64
	// Overshoot is the largest excursion past the target relative to the
	// initial error, zero when the target is never crossed.
	Overshoot    []float64
	FinalError   []float64
}

// Settled reports whether every component settled within the trajectory.
func (r Response) Settled() bool {
	for _, ts := range r.SettlingTime {
		if math.IsNaN(ts) {
			return false
		}
	}
	return true
}

// MaxSettlingTime is the latest component settling time, NaN if any
// component did not settle.
func (r Response) MaxSettlingTime() float64 {
	worst := 0.0
	for _, ts := range r.SettlingTime {
		if math.IsNaN(ts) {
			return math.NaN()
		}
		worst = math.Max(worst, ts)
	}
	return worst
}

// AnalyzeResponse measures the trajectory against target. The band is
// SettleBand times the largest initial error, shared by all components so a
// component that starts on target is judged on the same scale.
func AnalyzeResponse(tr dynamo.Trajectory, target dynamo.State) (Response, error) {
	if tr.Len() == 0 {
		return Response{}, fmt.Errorf("analysis: empty trajectory: %w", dynamo.ErrInvalidTimeSpan)
	}
	n := len(tr.States[0])
	if err := lti.CheckVector("target", target, n); err != nil {
		return Response{}, fmt.Errorf("analysis: %w", err)
	}

	e0 := tr.States[0].Sub(target)
	scale := 0.0
	for _, v := range e0 {
		scale = math.Max(scale, math.Abs(v))
	}
	band := SettleBand * scale
	if band == 0 {
		band = SettleBand
	}

	r := Response{
		SettlingTime: make([]float64, n),
		Overshoot:    make([]float64, n),
		FinalError:   make([]float64, n),
	}
	last := tr.Len() - 1
	for i := 0; i < n; i++ {
		outside := -1
		peak := 0.0
		for k, x := range tr.States {
			e := x[i] - target[i]
			if math.Abs(e) > band {
				outside = k
			}
			if e0[i] != 0 {
				// Error with the opposite sign to the initial error is overshoot.
				if past := -e * math.Copysign(1, e0[i]); past > peak {
					peak = past
				}
			}
		}

		switch {
		case outside == last:
			r.SettlingTime[i] = math.NaN()
		case outside < 0:
			r.SettlingTime[i] = tr.Times[0]
		default:
			r.SettlingTime[i] = tr.Times[outside+1]
		}
		if e0[i] != 0 {
			r.Overshoot[i] = peak / math.Abs(e0[i])
		}
		r.FinalError[i] = math.Abs(tr.States[last][i] - target[i])
	}
	return r, nil
}
