package experiment

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/lqrsim/internal/analysis"
	"github.com/san-kum/lqrsim/internal/config"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/logger"
	"gonum.org/v1/gonum/mat"
)

var _ = Describe("Experiment", func() {
	var (
		ctx  context.Context
		reg  *Registry
		logs *observer.ObservedLogs
	)

	BeforeEach(func() {
		ctx = context.Background()
		reg = NewRegistry()

		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		logger.SetLogger(zap.New(core))
		DeferCleanup(func() { logger.SetLogger(zap.NewNop()) })
	})

	Context("with the reference preset", func() {
		It("regulates position to pi/4 from P0 = I", func() {
			out, err := New(config.GetPreset("reference"), reg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(out.Riccati.Len()).To(Equal(1000))
			Expect(out.Result.Len()).To(Equal(1000))
			Expect(out.Rank).To(Equal(2))

			final := out.Result.Final()
			Expect(math.Abs(final[0] - math.Pi/4)).To(BeNumerically("<", 1e-2))
			Expect(math.Abs(final[1])).To(BeNumerically("<", 1e-2))
			Expect(out.K.At(1, 0)).To(BeNumerically("~", math.Sqrt(3), 1e-3))
		})
	})

	Context("with the reference double integrator", func() {
		var out *Outcome

		BeforeEach(func() {
			var err error
			out, err = New(config.DefaultConfig(), reg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("converges to the algebraic Riccati solution", func() {
			P := out.Riccati.Steady().P
			s3 := math.Sqrt(3)
			Expect(P.At(0, 0)).To(BeNumerically("~", s3, 1e-4))
			Expect(P.At(0, 1)).To(BeNumerically("~", 1, 1e-4))
			Expect(P.At(1, 0)).To(Equal(P.At(0, 1)))
			Expect(P.At(1, 1)).To(BeNumerically("~", s3, 1e-4))
		})

		It("extracts K = P B", func() {
			r, c := out.K.Dims()
			Expect([]int{r, c}).To(Equal([]int{2, 1}))
			Expect(out.K.At(0, 0)).To(BeNumerically("~", 1, 1e-4))
			Expect(out.K.At(1, 0)).To(BeNumerically("~", math.Sqrt(3), 1e-4))
		})

		It("drives the state to the target", func() {
			Expect(out.Result.Len()).To(Equal(config.DefaultSamples))
			Expect(out.Result.Times[0]).To(Equal(0.0))
			Expect(out.Result.Times[out.Result.Len()-1]).To(Equal(10.0))

			final := out.Result.Final()
			Expect(math.Abs(final[0])).To(BeNumerically("<", 1e-2))
			Expect(math.Abs(final[1])).To(BeNumerically("<", 1e-2))
			Expect(out.Response.Settled()).To(BeTrue())
		})

		It("reports a stable, controllable loop", func() {
			Expect(out.Controllable).To(BeTrue())
			Expect(out.Rank).To(Equal(2))
			Expect(out.Poles).To(HaveLen(2))
			for _, p := range out.Poles {
				Expect(real(p)).To(BeNumerically("~", -math.Sqrt(3)/2, 1e-3))
			}
		})

		It("records metrics and logs each stage", func() {
			Expect(out.Result.Metrics).To(HaveKey("control_effort"))
			Expect(out.Result.Metrics).To(HaveKey("quadratic_cost"))
			Expect(out.Result.Metrics["settled_fraction"]).To(BeNumerically(">", 0))

			Expect(logs.FilterMessage("riccati integrated").Len()).To(Equal(1))
			Expect(logs.FilterMessage("simulation complete").Len()).To(Equal(1))
			Expect(logs.FilterMessage("system is not controllable").Len()).To(BeZero())
		})
	})

	Context("with every preset", func() {
		It("runs to a stable loop", func() {
			for _, name := range config.ListPresets() {
				out, err := New(config.GetPreset(name), reg).Run(ctx)
				Expect(err).NotTo(HaveOccurred(), name)
				Expect(out.Result.Final().IsValid()).To(BeTrue(), name)
				Expect(analysis.Stable(out.Poles)).To(BeTrue(), name)

				target := dynamo.State(out.Config.Simulation.XTarget)
				e0 := out.Result.States[0].Sub(target).Norm()
				Expect(out.Result.Final().Sub(target).Norm()).To(BeNumerically("<", e0), name)
			}
		})
	})

	Context("with the finite horizon preset", func() {
		It("ends on the terminal cost gain", func() {
			cfg := config.GetPreset("finite_horizon")
			out, err := New(cfg, reg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(out.Riccati.Steady().T).To(Equal(cfg.Riccati.TStart))
			kEnd := out.Gain.At(cfg.Riccati.TEnd)
			Expect(kEnd.At(0, 0)).To(BeNumerically("~", 0, 1e-12))
			Expect(kEnd.At(1, 0)).To(BeNumerically("~", 5, 1e-12))
		})
	})

	Context("with the rk4 solver", func() {
		It("agrees with dopri5", func() {
			ref, err := New(config.DefaultConfig(), reg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.DefaultConfig()
			cfg.Solver.Method = "rk4"
			out, err := New(cfg, reg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(mat.EqualApprox(out.K, ref.K, 1e-5)).To(BeTrue())
			Expect(out.Result.Final()[0]).To(BeNumerically("~", ref.Result.Final()[0], 1e-5))
		})
	})

	Context("when the input cannot reach every state", func() {
		It("warns and still runs", func() {
			cfg := config.DefaultConfig()
			cfg.System.A = config.Matrix{{0, 0}, {0, 0}}
			cfg.System.B = config.Matrix{{1}, {0}}

			out, err := New(cfg, reg).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Controllable).To(BeFalse())
			Expect(out.Rank).To(Equal(1))
			Expect(logs.FilterMessage("system is not controllable").Len()).To(Equal(1))
		})
	})

	Context("with invalid input", func() {
		It("rejects a singular R before integrating", func() {
			cfg := config.DefaultConfig()
			cfg.Cost.R = config.Matrix{{0}}
			_, err := New(cfg, reg).Run(ctx)
			Expect(err).To(MatchError(dynamo.ErrSingularControlCost))
			Expect(logs.FilterMessage("riccati integrated").Len()).To(BeZero())
		})

		It("rejects mismatched shapes", func() {
			cfg := config.DefaultConfig()
			cfg.Cost.P0 = config.Matrix{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
			_, err := New(cfg, reg).Run(ctx)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("rejects an asymmetric Q", func() {
			cfg := config.DefaultConfig()
			cfg.Cost.Q = config.Matrix{{1, 0.5}, {0, 1}}
			_, err := New(cfg, reg).Run(ctx)
			Expect(err).To(MatchError(dynamo.ErrNotSymmetric))
		})
	})

	Context("when the solver gives up", func() {
		It("reports divergence on a step ceiling", func() {
			cfg := config.DefaultConfig()
			cfg.Solver.MaxSteps = 3
			_, err := New(cfg, reg).Run(ctx)
			Expect(err).To(MatchError(dynamo.ErrIntegrationDivergence))
			Expect(logs.FilterMessage("riccati integration failed").Len()).To(Equal(1))
		})

		It("reports divergence on cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := New(config.DefaultConfig(), reg).Run(cctx)
			Expect(err).To(MatchError(dynamo.ErrIntegrationDivergence))
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})

var _ = Describe("Registry", func() {
	It("resolves solvers and policies by name", func() {
		reg := NewRegistry()
		Expect(reg.ListSolvers()).To(Equal([]string{"dopri5", "rk4", "rk45"}))
		Expect(reg.ListPolicies()).To(Equal([]string{"steady_state", "time_varying"}))

		s, err := reg.GetSolver("RK4", dynamo.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Name()).To(Equal("rk4"))

		p, err := reg.GetPolicy("")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("steady_state"))

		_, err = reg.GetSolver("euler", dynamo.DefaultConfig())
		Expect(err).To(HaveOccurred())
		_, err = reg.GetPolicy("bang_bang")
		Expect(err).To(HaveOccurred())
	})
})
