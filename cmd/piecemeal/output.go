package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"piecemeal/internal/diagfmt"
	"piecemeal/internal/driver"
	"piecemeal/internal/version"
)

type outputOptions struct {
	format    string
	withNotes bool
	suggest   bool
	preview   bool
	pathMode  diagfmt.PathMode
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "pretty", "output format (pretty|json|sarif|short)")
	cmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	cmd.Flags().Bool("suggest", false, "include fix suggestions in output")
	cmd.Flags().Bool("preview", false, "show fix suggestions as before/after lines")
	cmd.Flags().String("path-mode", "auto", "file paths in output (auto|absolute|relative|basename)")
	cmd.Flags().Bool("fullpath", false, "emit absolute file paths in output (same as --path-mode=absolute)")
}

func readOutputFlags(cmd *cobra.Command) (outputOptions, error) {
	var o outputOptions
	var err error
	if o.format, err = cmd.Flags().GetString("format"); err != nil {
		return o, fmt.Errorf("failed to get format flag: %w", err)
	}
	o.format = strings.ToLower(o.format)
	switch o.format {
	case "pretty", "json", "sarif", "short":
	default:
		return o, fmt.Errorf("unknown format: %s", o.format)
	}
	if o.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return o, fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	if o.suggest, err = cmd.Flags().GetBool("suggest"); err != nil {
		return o, fmt.Errorf("failed to get suggest flag: %w", err)
	}
	if o.preview, err = cmd.Flags().GetBool("preview"); err != nil {
		return o, fmt.Errorf("failed to get preview flag: %w", err)
	}
	pathMode, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return o, fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	mode, ok := diagfmt.ParsePathMode(pathMode)
	if !ok {
		return o, fmt.Errorf("unknown path mode: %s", pathMode)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return o, fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	if fullPath {
		mode = diagfmt.PathModeAbsolute
	}
	o.pathMode = mode
	return o, nil
}

// printDiagnostics renders the diagnostics of res to w.
func printDiagnostics(w io.Writer, res *driver.Result, o outputOptions, g globalFlags) error {
	showFixes := o.suggest || o.preview

	switch o.format {
	case "pretty":
		diagfmt.Pretty(w, res.Bag, res.Files, diagfmt.PrettyOpts{
			Color:       g.color,
			Context:     2,
			PathMode:    o.pathMode,
			ShowNotes:   o.withNotes,
			ShowFixes:   showFixes,
			ShowPreview: o.preview,
		})
	case "short":
		return diagfmt.Short(w, res.Bag, res.Files, o.withNotes)
	case "json":
		err := diagfmt.JSON(w, res.Bag, res.Files, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         o.pathMode,
			IncludeNotes:     o.withNotes,
			IncludeFixes:     showFixes,
			IncludePreviews:  o.preview,
		})
		if err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	case "sarif":
		err := diagfmt.Sarif(w, res.Bag, res.Files, diagfmt.SarifRunMeta{
			ToolName:       "piecemeal",
			ToolVersion:    version.Current().Version,
			InvocationArgs: os.Args[1:],
		})
		if err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	}
	return nil
}
