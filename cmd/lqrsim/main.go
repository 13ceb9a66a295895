package main

import (
	"fmt"
	"os"

	"github.com/san-kum/lqrsim/internal/logger"
	"github.com/spf13/cobra"
)

var (
	dataDir string

	configFile string
	preset     string
	method     string
	policy     string
	mode       string
	tEnd       float64
	samples    int
	rtol       float64
	atol       float64
	maxSteps   int
	timeout    string
	xInitial   []float64
	xTarget    []float64
	noSave     bool

	// Phase plot axes
	xAxis int
	yAxis int

	trials       int
	perturbation float64
	seed         int64
	parallel     int
	bound        float64
)

// main registers the commands and runs the root command, exiting with
// status 1 on error.
func main() {
	if _, err := logger.InitLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.SyncLogger()

	rootCmd := &cobra.Command{
		Use:          "lqrsim",
		Short:        "finite-horizon LQR design and closed-loop simulation",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".lqrsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate the riccati equation and simulate the closed loop",
		RunE:  runScenario,
	}
	scenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	gainCmd := &cobra.Command{
		Use:   "gain",
		Short: "print the riccati solution and feedback gain",
		RunE:  printGain,
	}
	scenarioFlags(gainCmd)

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run every scenario of a batch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (default from file or cpu count)")

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "simulate the closed loop from perturbed initial states",
		RunE:  runMonteCarlo,
	}
	scenarioFlags(mcCmd)
	mcCmd.Flags().IntVar(&trials, "trials", 100, "number of trials")
	mcCmd.Flags().Float64Var(&perturbation, "perturbation", 0.5, "uniform perturbation of each initial component")
	mcCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	mcCmd.Flags().IntVar(&parallel, "parallel", 0, "worker count")
	mcCmd.Flags().Float64Var(&bound, "bound", 0, "final error norm counted as regulated")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot states and controls",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space plot",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x", 0, "state index for x axis")
	phaseCmd.Flags().IntVar(&yAxis, "y", 1, "state index for y axis")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export sampled states and controls as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, gainCmd, batchCmd, mcCmd, listCmd, showCmd, plotCmd, phaseCmd, exportCSVCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.SyncLogger()
		os.Exit(1)
	}
}

func scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&method, "method", "", "solver: dopri5, rk45 or rk4")
	cmd.Flags().StringVar(&policy, "policy", "", "gain policy: steady_state or time_varying")
	cmd.Flags().StringVar(&mode, "mode", "", "riccati mode: forward or backward")
	cmd.Flags().Float64Var(&tEnd, "t-end", 0, "end of both the riccati and simulation spans")
	cmd.Flags().IntVar(&samples, "samples", 0, "samples per span")
	cmd.Flags().Float64Var(&rtol, "rtol", 0, "relative tolerance")
	cmd.Flags().Float64Var(&atol, "atol", 0, "absolute tolerance")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step ceiling per solve")
	cmd.Flags().StringVar(&timeout, "timeout", "", "wall clock limit per solve, e.g. 5s")
	cmd.Flags().Float64SliceVar(&xInitial, "x0", nil, "initial state, comma separated")
	cmd.Flags().Float64SliceVar(&xTarget, "target", nil, "target state, comma separated")
}
