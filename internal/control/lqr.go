package control

import (
	"fmt"

	"github.com/san-kum/lqrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// LQR is full state feedback u = -K(t)' (x - Target).
type LQR struct {
	Gain   GainSchedule
	Target dynamo.State
}

func NewLQR(gain GainSchedule, target dynamo.State) (*LQR, error) {
	n, _ := gain.Dims()
	if len(target) != n {
		return nil, fmt.Errorf("lqr: target has length %d, gain has %d rows: %w", len(target), n, dynamo.ErrDimensionMismatch)
	}
	return &LQR{Gain: gain, Target: target.Clone()}, nil
}

// NewStaticLQR is NewLQR with a constant gain matrix given as rows.
func NewStaticLQR(k [][]float64, target dynamo.State) (*LQR, error) {
	g, err := denseFromRows(k)
	if err != nil {
		return nil, err
	}
	return NewLQR(ConstantGain{K: g}, target)
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	k := l.Gain.At(t)
	n, m := k.Dims()
	u := make(dynamo.Control, m)
	for j := 0; j < n && j < len(x); j++ {
		e := x[j] - l.Target[j]
		if e == 0 {
			continue
		}
		for i := 0; i < m; i++ {
			u[i] -= k.At(j, i) * e
		}
	}
	return u
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("lqr: empty gain: %w", dynamo.ErrDimensionMismatch)
	}
	k := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("lqr: ragged gain row %d: %w", i, dynamo.ErrDimensionMismatch)
		}
		k.SetRow(i, row)
	}
	return k, nil
}
