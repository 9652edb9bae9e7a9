package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"piecemeal/internal/driver"
)

var genCmd = &cobra.Command{
	Use:   "gen [flags] [packages]",
	Short: "Generate builders and write them next to each package",
	Long: `Run check and write one generated file per package holding the builders
of its marked types. Packages without builders lose a stale generated file.`,
	RunE: runGen,
}

func init() {
	addOutputFlags(genCmd)
	genCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	genCmd.Flags().Bool("dry-run", false, "print generated files instead of writing them")
	genCmd.Flags().String("output", "", "generated file name (overrides piecemeal.toml)")
	genCmd.Flags().Bool("disk-cache", false, "reuse generated sources from the user cache directory")
	genCmd.Flags().Bool("clear-cache", false, "drop cached generated sources before running")
	genCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
}

func runGen(cmd *cobra.Command, args []string) error {
	out, err := readOutputFlags(cmd)
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	useCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	clearCache, err := cmd.Flags().GetBool("clear-cache")
	if err != nil {
		return fmt.Errorf("failed to get clear-cache flag: %w", err)
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	return runSession(cmd, func(g globalFlags) error {
		cfg, err := loadProject()
		if err != nil {
			return err
		}
		if output != "" {
			cfg.Generate.Output = output
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		opts := driverOptions(cfg, args, g)
		opts.Jobs = jobs
		opts.Generate = true
		opts.Write = !dryRun
		if useCache || clearCache {
			cache, err := driver.OpenDiskCache("piecemeal")
			if err != nil {
				return fmt.Errorf("disk cache: %w", err)
			}
			if clearCache {
				if err := cache.DropAll(); err != nil {
					return fmt.Errorf("disk cache: %w", err)
				}
			}
			if useCache {
				opts.Cache = cache
			}
		}

		var res *driver.Result
		if !g.quiet && shouldUseTUI(mode) {
			res, err = runWithUI(cmd.Context(), "generating builders", opts)
		} else {
			res, err = driver.Run(cmd.Context(), opts)
		}
		if err != nil {
			return fmt.Errorf("gen failed: %w", err)
		}

		if err := printDiagnostics(cmd.OutOrStdout(), res, out, g); err != nil {
			return err
		}
		if dryRun {
			printGenerated(cmd.OutOrStdout(), res)
		} else if !g.quiet {
			printWritten(cmd.ErrOrStderr(), res)
		}
		if g.timings {
			printTimings(cmd.ErrOrStderr(), res, out.format)
		}
		if res.HasErrors() {
			return errDiagnostics
		}
		return nil
	})
}

func printGenerated(w io.Writer, res *driver.Result) {
	for _, p := range res.Packages {
		if len(p.Source) == 0 {
			continue
		}
		fmt.Fprintf(w, "==> %s <==\n%s\n", p.Output, p.Source)
	}
}

func printWritten(w io.Writer, res *driver.Result) {
	for _, p := range res.Packages {
		switch {
		case p.Written:
			fmt.Fprintf(w, "wrote %s (%d builder(s))\n", p.Output, p.Registered)
		case p.Removed:
			fmt.Fprintf(w, "removed %s\n", p.Output)
		}
	}
	fmt.Fprintln(w, summaryLine(res))
}
