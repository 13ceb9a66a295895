package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/san-kum/lqrsim/internal/automation"
	"github.com/san-kum/lqrsim/internal/config"
	"github.com/san-kum/lqrsim/internal/experiment"
	"github.com/san-kum/lqrsim/internal/storage"
	"github.com/san-kum/lqrsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// loadScenario resolves preset, then config file, then flags that were set
// explicitly.
func loadScenario(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("method") {
		cfg.Solver.Method = strings.ToLower(method)
	}
	if flags.Changed("policy") {
		cfg.GainPolicy = policy
	}
	if flags.Changed("mode") {
		cfg.Riccati.Mode = mode
	}
	if flags.Changed("t-end") {
		cfg.Riccati.TEnd = tEnd
		cfg.Simulation.TEnd = tEnd
	}
	if flags.Changed("samples") {
		cfg.Riccati.Samples = samples
		cfg.Simulation.Samples = samples
	}
	if flags.Changed("rtol") {
		cfg.Solver.RelTol = rtol
	}
	if flags.Changed("atol") {
		cfg.Solver.AbsTol = atol
	}
	if flags.Changed("max-steps") {
		cfg.Solver.MaxSteps = maxSteps
	}
	if flags.Changed("timeout") {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		cfg.Solver.Timeout = d
	}
	if flags.Changed("x0") {
		cfg.Simulation.XInitial = xInitial
	}
	if flags.Changed("target") {
		cfg.Simulation.XTarget = xTarget
	}
	return cfg, cfg.Validate()
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("running %s...\n", cfg.Name)
	out, err := experiment.New(cfg, nil).Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(viz.Summary(out))
	fmt.Printf("completed in %v\n", out.Elapsed)

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(out)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func printGain(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	out, err := experiment.New(cfg, nil).Run(context.Background())
	if err != nil {
		return err
	}

	steady := out.Riccati.Steady()
	fmt.Println(viz.Title.Render(cfg.Name))
	fmt.Printf("P(%g) =\n%.8g\n\n", steady.T, mat.Formatted(steady.P, mat.Prefix("  "), mat.Squeeze()))
	fmt.Printf("K =\n%.8g\n\n", mat.Formatted(out.K, mat.Prefix("  "), mat.Squeeze()))
	fmt.Println("poles:")
	for _, p := range out.Poles {
		fmt.Printf("  %.6g%+.6gi\n", real(p), imag(p))
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	batch, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parallel") {
		batch.Parallel = parallel
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	results := automation.RunBatch(context.Background(), batch, nil)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s %s: %v\n", viz.Bad.Render("FAIL"), r.Name, r.Err)
			continue
		}
		runID, err := st.Save(r.Outcome)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s -> %s\n", viz.Good.Render("ok  "), r.Name, runID)
	}

	if n := automation.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d scenarios failed", n, len(results))
	}
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	mc := automation.MonteCarloConfig{
		Perturbation: perturbation,
		NumTrials:    trials,
		Seed:         seed,
		Parallel:     parallel,
		Bound:        bound,
	}
	results, err := automation.RunMonteCarlo(context.Background(), cfg, mc, nil)
	if err != nil {
		return err
	}

	regulated, unregulated := automation.MonteCarloStats(results)
	worst := 0.0
	for _, r := range results {
		worst = max(worst, r.FinalError)
	}
	fmt.Printf("%s: %d trials\n", cfg.Name, len(results))
	fmt.Printf("  regulated:   %s\n", viz.Good.Render(fmt.Sprint(regulated)))
	if unregulated > 0 {
		fmt.Printf("  unregulated: %s\n", viz.Bad.Render(fmt.Sprint(unregulated)))
	}
	fmt.Printf("  worst final error: %.3g\n", worst)
	return nil
}
