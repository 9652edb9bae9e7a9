package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"piecemeal/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default piecemeal.toml",
	Long: `Write a piecemeal.toml holding the default settings into dir (default:
the current directory). The directory is created when missing; an existing
piecemeal.toml is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if root, ok, err := project.FindProjectRoot(filepath.Dir(target)); err == nil && ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s is inside the project rooted at %s\n", target, root)
	}
	path, err := project.Init(target)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
	return nil
}
