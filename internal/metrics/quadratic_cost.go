package metrics

import (
	"github.com/san-kum/lqrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// QuadraticCost integrates e'Qe + u'Ru over the sampled trajectory with the
// trapezoidal rule, where e = x - target.
type QuadraticCost struct {
	name   string
	q, r   *mat.Dense
	target dynamo.State

	total    float64
	prevT    float64
	prevCost float64
	samples  int
}

func NewQuadraticCost(Q, R mat.Matrix, target dynamo.State) *QuadraticCost {
	return &QuadraticCost{
		name:   "quadratic_cost",
		q:      mat.DenseCopyOf(Q),
		r:      mat.DenseCopyOf(R),
		target: target.Clone(),
	}
}

func (c *QuadraticCost) Name() string { return c.name }

func (c *QuadraticCost) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if n, _ := c.q.Dims(); n != len(x) {
		return
	}
	e := mat.NewVecDense(len(x), x.Sub(c.target))
	cost := mat.Inner(e, c.q, e)
	if m, _ := c.r.Dims(); m == len(u) {
		uv := mat.NewVecDense(len(u), u)
		cost += mat.Inner(uv, c.r, uv)
	}

	if c.samples > 0 {
		c.total += 0.5 * (cost + c.prevCost) * (t - c.prevT)
	}
	c.prevT = t
	c.prevCost = cost
	c.samples++
}

func (c *QuadraticCost) Value() float64 { return c.total }

func (c *QuadraticCost) Reset() {
	c.total = 0
	c.prevT = 0
	c.prevCost = 0
	c.samples = 0
}
