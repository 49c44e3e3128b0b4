// Command qrwlockctl drives the named fairness scenarios and the
// randomized property/bench harnesses against a real FairRWLock from
// the outside.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sysinspect/qrwlock/internal/config"
	"github.com/sysinspect/qrwlock/internal/scenario"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("qrwlockctl failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: qrwlockctl <run|stress|bench> [flags]")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	switch args[0] {
	case "run":
		return runScenarios(args[1:])
	case "stress":
		return runStress(args[1:])
	case "bench":
		return runBench(args[1:])
	default:
		return fmt.Errorf("qrwlockctl: unknown subcommand %q", args[0])
	}
}

func runScenarios(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	confPath := fs.String("config", "", "path to a TOML config file (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*confPath)
	if err != nil {
		return err
	}

	names := fs.Args()
	if len(names) == 0 {
		names = scenario.Names
	}

	_ = cfg // scenario.Run constructs a fresh lock per scenario

	failed := false
	for _, name := range names {
		res := scenario.Run(name)
		if res.Err != nil {
			failed = true
			slog.Error("scenario failed", "scenario", name, "order", res.Order, "err", res.Err)
			continue
		}
		slog.Info("scenario passed", "scenario", name, "order", res.Order)
	}
	if failed {
		return fmt.Errorf("qrwlockctl run: one or more scenarios failed")
	}
	return nil
}

func runStress(args []string) error {
	fs := flag.NewFlagSet("stress", flag.ContinueOnError)
	confPath := fs.String("config", "", "path to a TOML config file (optional)")
	goroutines := fs.Int("goroutines", 0, "override stress.goroutines")
	duration := fs.Duration("duration", 0, "override stress.duration")
	spin := fs.Int("spin", -1, "override spin_count (-1 = use config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*confPath)
	if err != nil {
		return err
	}
	if *goroutines > 0 {
		cfg.Stress.Goroutines = *goroutines
	}
	if *duration > 0 {
		cfg.Stress.Duration = config.Duration(*duration)
	}
	if *spin >= 0 {
		cfg.SpinCount = *spin
	}

	slog.Info("starting stress run",
		"goroutines", cfg.Stress.Goroutines,
		"duration", time.Duration(cfg.Stress.Duration),
		"spin_count", cfg.SpinCount)

	report, err := scenario.Stress(context.Background(), scenario.StressConfig{
		Goroutines:  cfg.Stress.Goroutines,
		Duration:    time.Duration(cfg.Stress.Duration),
		SpinCount:   cfg.SpinCount,
		MaxInFlight: cfg.Stress.MaxInFlight,
		RegionSize:  cfg.Stress.RegionSize,
	})
	if err != nil {
		return fmt.Errorf("qrwlockctl stress: %w", err)
	}

	slog.Info("stress run complete", "ops", report.Ops, "violations", len(report.Violations))
	for _, v := range report.Violations {
		slog.Warn("invariant violation observed", "detail", v)
	}
	if len(report.Violations) > 0 {
		return fmt.Errorf("qrwlockctl stress: %d invariant violation(s) observed", len(report.Violations))
	}
	return nil
}

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	confPath := fs.String("config", "", "path to a TOML config file (optional)")
	readers := fs.Int("readers", 0, "override bench.goroutines")
	trials := fs.Int("trials", 0, "override bench.iterations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*confPath)
	if err != nil {
		return err
	}
	if *readers > 0 {
		cfg.Bench.Goroutines = *readers
	}
	if *trials > 0 {
		cfg.Bench.Iterations = *trials
	}

	rep := scenario.StarvationComparison(cfg.Bench.Goroutines, cfg.Bench.Iterations)
	slog.Info("writer-starvation comparison",
		"trials", rep.Trials,
		"fair_wait", rep.FairWriterWait,
		"naive_wait", rep.NaiveWriterWait,
		"naive_starved", rep.NaiveStarved)
	return nil
}
