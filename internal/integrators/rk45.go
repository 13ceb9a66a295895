package integrators

import (
	"context"
	"math"

	"github.com/san-kum/lqrsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// Continuous extension of order 4. Row i weighs stage i, column j the
// power theta^(j+1).
var dense = [7][4]float64{
	{1, -8048581381.0 / 2820520608.0, 8663915743.0 / 2820520608.0, -12715105075.0 / 11282082432.0},
	{0, 0, 0, 0},
	{0, 131558114200.0 / 32700410799.0, -68118460800.0 / 10900136933.0, 87487479700.0 / 32700410799.0},
	{0, -1754552775.0 / 470086768.0, 14199869525.0 / 1410260304.0, -10690763975.0 / 1880347072.0},
	{0, 127303824393.0 / 49829197408.0, -318862633887.0 / 49829197408.0, 701980252875.0 / 199316789632.0},
	{0, -282668133.0 / 205662961.0, 2019193451.0 / 616988883.0, -1453857185.0 / 822651844.0},
	{0, 40617522.0 / 29380423.0, -110615467.0 / 29380423.0, 69997945.0 / 29380423.0},
}

const order = 4

// DormandPrince is an adaptive explicit Runge-Kutta 5(4) solver with
// first-same-as-last stages and dense output, so any number of sample
// times costs no extra steps.
type DormandPrince struct {
	cfg      dynamo.Config
	safety   float64
	minScale float64
	maxScale float64
}

func NewDormandPrince(cfg dynamo.Config) *DormandPrince {
	return &DormandPrince{
		cfg:      withDefaults(cfg),
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *DormandPrince) Name() string { return "dopri5" }

func (r *DormandPrince) Config() dynamo.Config { return r.cfg }

func (r *DormandPrince) Solve(ctx context.Context, f dynamo.Derivative, t0, t1 float64, y0 []float64, samples []float64) (*dynamo.Solution, error) {
	if err := dynamo.ValidateSpan(t0, t1, samples); err != nil {
		return nil, err
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	n := len(y0)
	rtol, atol := r.cfg.RelTol, r.cfg.AbsTol
	maxStep := r.cfg.MaxStep
	if maxStep <= 0 || maxStep > t1-t0 {
		maxStep = t1 - t0
	}

	y := dynamo.State(y0).Clone()
	if !y.IsValid() {
		return nil, &dynamo.DivergenceError{Time: t0, State: y, Reason: "non-finite initial state"}
	}

	var k [7][]float64
	for i := range k {
		k[i] = make([]float64, n)
	}
	yNew := make([]float64, n)
	ytmp := make([]float64, n)

	sol := &dynamo.Solution{
		Times: make([]float64, 0, len(samples)),
		Y:     make([][]float64, 0, len(samples)),
	}

	f(t0, y, k[0])
	sol.Stats.Evaluations++

	next := 0
	if samples[0] == t0 {
		sol.Times = append(sol.Times, t0)
		sol.Y = append(sol.Y, y.Clone())
		next++
	}

	h := r.cfg.InitialStep
	if h <= 0 {
		h = r.initialStep(f, t0, y, k[0], ytmp, yNew, rtol, atol, &sol.Stats)
	}
	h = math.Min(h, maxStep)

	t := t0
	rejected := false
	attempts := 0

	for next < len(samples) {
		select {
		case <-ctx.Done():
			return nil, &dynamo.DivergenceError{Step: sol.Stats.Steps, Time: t, State: y.Clone(), Reason: "interrupted", Cause: ctx.Err()}
		default:
		}

		if attempts >= r.cfg.MaxSteps {
			return nil, &dynamo.DivergenceError{Step: sol.Stats.Steps, Time: t, State: y.Clone(), Reason: "step ceiling exceeded"}
		}
		attempts++

		minStep := math.Max(r.cfg.MinStep, 16*eps*math.Max(math.Abs(t), 1))
		if h < minStep {
			return nil, &dynamo.DivergenceError{Step: sol.Stats.Steps, Time: t, State: y.Clone(), Reason: "step size underflow"}
		}

		tNew := t + h
		if tNew >= t1 {
			tNew = t1
			h = t1 - t
		}

		r.stages(f, t, h, y, k, ytmp, yNew)
		sol.Stats.Evaluations += 6

		errNorm := 0.0
		for i := 0; i < n; i++ {
			errEst := h * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
			scale := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
			errNorm += (errEst / scale) * (errEst / scale)
		}
		errNorm = math.Sqrt(errNorm / float64(max(n, 1)))

		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !dynamo.State(yNew).IsValid() {
			sol.Stats.Rejected++
			rejected = true
			h *= r.minScale
			continue
		}

		if errNorm > 1 {
			sol.Stats.Rejected++
			rejected = true
			h *= math.Max(r.minScale, r.safety*math.Pow(errNorm, -1.0/(order+1)))
			continue
		}

		for next < len(samples) && samples[next] <= tNew {
			ts := samples[next]
			out := make([]float64, n)
			if ts == tNew {
				copy(out, yNew)
			} else {
				interpolate(out, y, k, h, (ts-t)/h)
			}
			sol.Times = append(sol.Times, ts)
			sol.Y = append(sol.Y, out)
			next++
		}

		sol.Stats.Steps++
		sol.Stats.LastStep = h
		t = tNew
		copy(y, yNew)
		k[0], k[6] = k[6], k[0]

		var scale float64
		if errNorm == 0 {
			scale = r.maxScale
		} else {
			scale = math.Min(r.maxScale, r.safety*math.Pow(errNorm, -1.0/(order+1)))
		}
		if rejected {
			scale = math.Min(scale, 1)
		}
		rejected = false
		h = math.Min(h*scale, maxStep)
	}

	return sol, nil
}

// stages evaluates k[1]..k[6] and the fifth-order solution yNew. k[0] must
// hold f(t, y) on entry; k[6] holds f(t+h, yNew) on return.
func (r *DormandPrince) stages(f dynamo.Derivative, t, h float64, y []float64, k [7][]float64, ytmp, yNew []float64) {
	n := len(y)

	for i := 0; i < n; i++ {
		ytmp[i] = y[i] + h*b21*k[0][i]
	}
	f(t+a2*h, ytmp, k[1])

	for i := 0; i < n; i++ {
		ytmp[i] = y[i] + h*(b31*k[0][i]+b32*k[1][i])
	}
	f(t+a3*h, ytmp, k[2])

	for i := 0; i < n; i++ {
		ytmp[i] = y[i] + h*(b41*k[0][i]+b42*k[1][i]+b43*k[2][i])
	}
	f(t+a4*h, ytmp, k[3])

	for i := 0; i < n; i++ {
		ytmp[i] = y[i] + h*(b51*k[0][i]+b52*k[1][i]+b53*k[2][i]+b54*k[3][i])
	}
	f(t+a5*h, ytmp, k[4])

	for i := 0; i < n; i++ {
		ytmp[i] = y[i] + h*(b61*k[0][i]+b62*k[1][i]+b63*k[2][i]+b64*k[3][i]+b65*k[4][i])
	}
	f(t+h, ytmp, k[5])

	for i := 0; i < n; i++ {
		yNew[i] = y[i] + h*(c1*k[0][i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
	}
	f(t+h, yNew, k[6])
}

func interpolate(out, y []float64, k [7][]float64, h, theta float64) {
	var w [7]float64
	for s := range dense {
		p := theta
		for j := 0; j < 4; j++ {
			w[s] += dense[s][j] * p
			p *= theta
		}
	}
	for i := range out {
		acc := 0.0
		for s := range w {
			acc += w[s] * k[s][i]
		}
		out[i] = y[i] + h*acc
	}
}

// initialStep follows Hairer, Norsett and Wanner: an Euler probe estimates
// the second derivative and the step is sized for the method order.
func (r *DormandPrince) initialStep(f dynamo.Derivative, t0 float64, y0, f0, y1, f1 []float64, rtol, atol float64, stats *dynamo.Stats) float64 {
	n := len(y0)
	if n == 0 {
		return math.Inf(1)
	}

	d0, d1 := 0.0, 0.0
	for i := 0; i < n; i++ {
		sc := atol + rtol*math.Abs(y0[i])
		d0 += (y0[i] / sc) * (y0[i] / sc)
		d1 += (f0[i] / sc) * (f0[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(n))
	d1 = math.Sqrt(d1 / float64(n))

	var h0 float64
	if d0 < 1e-5 || d1 < 1e-5 {
		h0 = 1e-6
	} else {
		h0 = 0.01 * d0 / d1
	}

	for i := 0; i < n; i++ {
		y1[i] = y0[i] + h0*f0[i]
	}
	f(t0+h0, y1, f1)
	stats.Evaluations++

	d2 := 0.0
	for i := 0; i < n; i++ {
		sc := atol + rtol*math.Abs(y0[i])
		d2 += ((f1[i] - f0[i]) / sc) * ((f1[i] - f0[i]) / sc)
	}
	d2 = math.Sqrt(d2/float64(n)) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1.0/(order+1))
	}

	h := math.Min(100*h0, h1)
	if math.IsNaN(h) || h <= 0 {
		return 1e-6
	}
	return h
}
