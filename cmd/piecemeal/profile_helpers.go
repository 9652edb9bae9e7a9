package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"piecemeal/internal/prof"
)

// setupProfiling starts the profilers named by --cpu-profile and
// --mem-profile. The heap profile is written by the returned stop, which
// runs its work once however often it is called.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	cpuPath, err := flags.GetString("cpu-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	memPath, err := flags.GetString("mem-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}

	if cpuPath != "" {
		if err := prof.StartCPU(cpuPath); err != nil {
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
	}
	warn := func(what string, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", what, err)
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if cpuPath != "" {
				warn("failed to close cpu profile", prof.StopCPU())
			}
			if memPath != "" {
				warn("failed to write heap profile", prof.WriteMem(memPath))
			}
		})
	}, nil
}
