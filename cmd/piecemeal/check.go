package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"piecemeal/internal/driver"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [packages]",
	Short: "Report builder diagnostics without writing files",
	Long: `Load the packages matched by the patterns (default "."), analyze every
type marked with //piecemeal:builder and print the diagnostics.
Exits with status 1 when any diagnostic is an error.`,
	RunE: runCheck,
}

func init() {
	addOutputFlags(checkCmd)
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	out, err := readOutputFlags(cmd)
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}

	return runSession(cmd, func(g globalFlags) error {
		cfg, err := loadProject()
		if err != nil {
			return err
		}
		opts := driverOptions(cfg, args, g)
		opts.Jobs = jobs

		res, err := driver.Run(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}
		if err := printDiagnostics(cmd.OutOrStdout(), res, out, g); err != nil {
			return err
		}
		if g.timings {
			printTimings(cmd.ErrOrStderr(), res, out.format)
		}
		if res.HasErrors() {
			return errDiagnostics
		}
		if !g.quiet && out.format == "pretty" {
			fmt.Fprintln(cmd.ErrOrStderr(), summaryLine(res))
		}
		return nil
	})
}

// summaryLine counts declarations over all packages.
func summaryLine(res *driver.Result) string {
	var decls, registered int
	for _, p := range res.Packages {
		decls += p.Declarations
		registered += p.Registered
	}
	return fmt.Sprintf("%d package(s), %d builder(s) from %d marked type(s)", len(res.Packages), registered, decls)
}
