package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/lqrsim/internal/analysis"
	"github.com/san-kum/lqrsim/internal/config"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/storage"
	"github.com/san-kum/lqrsim/internal/viz"
	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSOLVER\tPOLICY\tMODE\tSETTLED")

	for _, run := range runs {
		settled := "-"
		if run.SettlingTime != nil {
			settled = fmt.Sprintf("%.3fs", *run.SettlingTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Solver,
			run.GainPolicy,
			run.RiccatiMode,
			settled,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(meta.ID))
	fmt.Println(viz.Separator(60))
	fmt.Printf("scenario:     %s\n", meta.Name)
	fmt.Printf("solver:       %s (riccati %d steps, simulation %d steps)\n", meta.Solver, meta.RiccatiStats.Steps, meta.SimulationStats.Steps)
	fmt.Printf("policy:       %s, %s\n", meta.GainPolicy, meta.RiccatiMode)
	fmt.Printf("K:            %v\n", meta.K)
	fmt.Printf("steady P:     %v\n", meta.SteadyP)
	fmt.Printf("poles:        %v\n", meta.Poles)
	fmt.Printf("controllable: %v (rank %d)\n", meta.Controllable, meta.Rank)
	if meta.SettlingTime != nil {
		fmt.Printf("settling:     %.4fs\n", *meta.SettlingTime)
	} else {
		fmt.Printf("settling:     %s\n", viz.Warn.Render("not settled"))
	}
	fmt.Printf("final error:  %v\n", meta.FinalError)
	names := make([]string, 0, len(meta.Metrics))
	for name := range meta.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-14s%.6g\n", name+":", meta.Metrics[name])
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	tr, controls, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if tr.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", tr.Len())

	numVars := min(len(tr.States[0]), 6)
	for varIdx := 0; varIdx < numVars; varIdx++ {
		caption := fmt.Sprintf("x%d vs time", varIdx)
		if meta.Config != nil && varIdx < len(meta.Config.Simulation.XTarget) {
			caption = fmt.Sprintf("x%d vs time (target %g)", varIdx, meta.Config.Simulation.XTarget[varIdx])
		}
		fmt.Println(asciigraph.Plot(tr.Component(varIdx),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		))
		fmt.Println()
	}

	if len(controls) > 0 {
		for j := range controls[0] {
			u := make([]float64, len(controls))
			for i, c := range controls {
				u[i] = c[j]
			}
			fmt.Println(asciigraph.Plot(u,
				asciigraph.Height(8),
				asciigraph.Width(80),
				asciigraph.Caption(fmt.Sprintf("u%d vs time", j)),
			))
			fmt.Println()
		}
	}

	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	portrait := analysis.BuildPhasePortrait(tr, xAxis, yAxis)
	if portrait == nil {
		return fmt.Errorf("state indices %d, %d out of range", xAxis, yAxis)
	}
	if meta.Config != nil {
		target := meta.Config.Simulation.XTarget
		if xAxis < len(target) && yAxis < len(target) {
			portrait.Target = &analysis.PhasePoint{X: target[xAxis], Y: target[yAxis]}
		}
	}

	fmt.Printf("phase space: x%d vs x%d\n\n", xAxis, yAxis)
	fmt.Println(analysis.PhasePortraitToASCII(portrait, 60, 20))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	tr, controls, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	return storage.WriteStatesCSV(os.Stdout, &dynamo.Result{Trajectory: tr, Controls: controls})
}

func exportJSON(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportRun(os.Stdout, args[0])
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATES\tINPUTS\tHORIZON\tMODE\tPOLICY")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%s\t%s\n",
			name,
			len(cfg.System.A),
			len(cfg.System.B[0]),
			cfg.Riccati.TEnd-cfg.Riccati.TStart,
			cfg.Riccati.Mode,
			cfg.GainPolicy,
		)
	}
	return w.Flush()
}
