package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/lqrsim/internal/experiment"
	"gonum.org/v1/gonum/mat"
)

// Summary renders the outcome of one run as a bordered panel.
func Summary(out *experiment.Outcome) string {
	var b strings.Builder
	cfg := out.Config

	b.WriteString(Title.Render(cfg.Name))
	b.WriteString(Subtle.Render(fmt.Sprintf("  %s · %s · %s", cfg.Solver.Method, out.Riccati.Mode, cfg.GainPolicy)))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-18s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("gain K'", MetricValue.Render(fmt.Sprintf("%.6g", mat.Formatted(out.K.T(), mat.Squeeze()))))
	row("steady P", indent(fmt.Sprintf("%.6g", mat.Formatted(out.Riccati.Steady().P, mat.Squeeze())), 18))

	poles := make([]string, len(out.Poles))
	stable := len(out.Poles) > 0
	for i, p := range out.Poles {
		poles[i] = fmt.Sprintf("%.4g%+.4gi", real(p), imag(p))
		stable = stable && real(p) < 0
	}
	verdict := Good.Render("stable")
	if !stable {
		verdict = Bad.Render("not stable")
	}
	row("poles", strings.Join(poles, "  ")+"  "+verdict)

	if !out.Controllable {
		row("controllability", Warn.Render(fmt.Sprintf("rank %d", out.Rank)))
	}

	if ts := out.Response.MaxSettlingTime(); math.IsNaN(ts) {
		row("settling time", Warn.Render("not settled"))
	} else {
		row("settling time", MetricValue.Render(fmt.Sprintf("%.3fs", ts)))
	}
	row("final error", MetricValue.Render(fmt.Sprintf("%.3g", out.Response.FinalError)))

	names := make([]string, 0, len(out.Result.Metrics))
	for name := range out.Result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row(name, MetricValue.Render(fmt.Sprintf("%.6g", out.Result.Metrics[name])))
	}

	errNorm := make([]float64, out.Result.Len())
	for i, x := range out.Result.States {
		errNorm[i] = x.Sub(cfg.Simulation.XTarget).Norm()
	}
	row("|x - target|", Sparkline(errNorm, 40))

	row("solver steps", Subtle.Render(fmt.Sprintf("riccati %d (%d rejected), simulation %d (%d rejected)",
		out.Riccati.Stats.Steps, out.Riccati.Stats.Rejected, out.Result.Stats.Steps, out.Result.Stats.Rejected)))

	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	return strings.ReplaceAll(s, "\n", "\n"+pad)
}
