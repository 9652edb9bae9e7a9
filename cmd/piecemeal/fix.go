package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"piecemeal/internal/diag"
	"piecemeal/internal/driver"
	"piecemeal/internal/fix"
)

var fixCmd = &cobra.Command{
	Use:   "fix [flags] [packages]",
	Short: "Apply fix suggestions of builder diagnostics",
	Long: `Run check and apply the fixes attached to its diagnostics. Without flags
the first fix is applied. --all applies every fix that is safe or safe with
heuristics; fixes needing review are applied only by --id.`,
	RunE: runFix,
}

func init() {
	fixCmd.Flags().Bool("all", false, "apply all safe fixes")
	fixCmd.Flags().String("id", "", "apply fix with a specific identifier")
	fixCmd.Flags().Bool("dry-run", false, "report fixes without modifying files")
}

func runFix(cmd *cobra.Command, args []string) error {
	applyAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	targetID, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	if targetID != "" && applyAll {
		return fmt.Errorf("--id cannot be combined with --all")
	}

	opts := fix.ApplyOptions{
		Mode:             fix.ApplyModeOnce,
		TargetID:         targetID,
		MaxApplicability: diag.FixApplicabilitySafeWithHeuristics,
		DryRun:           dryRun,
	}
	switch {
	case targetID != "":
		opts.Mode = fix.ApplyModeID
	case applyAll:
		opts.Mode = fix.ApplyModeAll
	}

	return runSession(cmd, func(g globalFlags) error {
		cfg, err := loadProject()
		if err != nil {
			return err
		}
		res, err := driver.Run(cmd.Context(), driverOptions(cfg, args, g))
		if err != nil {
			return fmt.Errorf("fix: check failed: %w", err)
		}
		applied, applyErr := fix.Apply(res.Files, res.Bag.Items(), opts)
		return handleApplyResult(cmd.OutOrStdout(), applied, applyErr, g.quiet)
	})
}

func handleApplyResult(out io.Writer, res *fix.ApplyResult, applyErr error, quiet bool) error {
	if res == nil {
		return applyErr
	}

	if len(res.Applied) > 0 {
		fmt.Fprintf(out, "Applied %d fix(es):\n", len(res.Applied))
		for _, item := range res.Applied {
			location := item.PrimaryPath
			if location == "" {
				location = "(unknown location)"
			}
			fmt.Fprintf(out, "  %s [%s] %s %s (%d edits, %s)\n",
				item.Title, item.ID, item.Code.ID(), location, item.EditCount, item.Applicability)
		}
	}
	if len(res.FileChanges) > 0 {
		fmt.Fprintln(out, "Updated files:")
		for _, change := range res.FileChanges {
			fmt.Fprintf(out, "  %s (%d edits)\n", change.Path, change.EditCount)
		}
	}
	if len(res.Skipped) > 0 && !quiet {
		fmt.Fprintln(out, "Skipped fixes:")
		for _, skip := range res.Skipped {
			id := skip.ID
			if id == "" {
				id = "(unnamed)"
			}
			if skip.Title != "" {
				fmt.Fprintf(out, "  %s [%s]: %s\n", skip.Title, id, skip.Reason)
			} else {
				fmt.Fprintf(out, "  [%s]: %s\n", id, skip.Reason)
			}
		}
	}

	if applyErr != nil {
		if errors.Is(applyErr, fix.ErrNoFixes) && len(res.Applied) == 0 {
			fmt.Fprintln(out, "No applicable fixes found.")
			return nil
		}
		return applyErr
	}
	if len(res.Applied) > 0 && !quiet {
		fmt.Fprintln(out, "Run `piecemeal gen` to regenerate builders.")
	}
	return nil
}
