package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"piecemeal/internal/driver"
	"piecemeal/internal/project"
)

type globalFlags struct {
	color          bool
	quiet          bool
	timings        bool
	maxDiagnostics int
}

func readGlobalFlags(cmd *cobra.Command) (globalFlags, error) {
	var g globalFlags
	pf := cmd.Root().PersistentFlags()

	colorFlag, err := pf.GetString("color")
	if err != nil {
		return g, fmt.Errorf("failed to get color flag: %w", err)
	}
	if g.color, err = readColorMode(colorFlag, os.Stdout); err != nil {
		return g, err
	}
	if g.quiet, err = pf.GetBool("quiet"); err != nil {
		return g, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if g.timings, err = pf.GetBool("timings"); err != nil {
		return g, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if g.maxDiagnostics, err = pf.GetInt("max-diagnostics"); err != nil {
		return g, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	return g, nil
}

// runSession runs fn with profiling and tracing set up from the persistent
// flags. The trace ring is dumped when fn fails or panics.
func runSession(cmd *cobra.Command, fn func(g globalFlags) error) error {
	g, err := readGlobalFlags(cmd)
	if err != nil {
		return err
	}
	color.NoColor = !g.color

	stopProf, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProf()

	stopTrace, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	failed := true
	defer func() { stopTrace(failed) }()

	err = fn(g)
	failed = err != nil && !errors.Is(err, errDiagnostics)
	return err
}

// loadProject reads the piecemeal.toml governing the working directory, or
// the defaults when there is none.
func loadProject() (project.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return project.Config{}, err
	}
	return project.Discover(wd)
}

// driverOptions maps project settings and global flags onto a driver run.
func driverOptions(cfg project.Config, patterns []string, g globalFlags) driver.Options {
	an := cfg.Analyzer()
	return driver.Options{
		Patterns:       patterns,
		Analyzer:       &an,
		Policy:         cfg.Policy(),
		Output:         cfg.Generate.Output,
		MaxDiagnostics: g.maxDiagnostics,
		Timings:        g.timings,
	}
}
