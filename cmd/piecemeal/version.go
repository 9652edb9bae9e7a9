package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"piecemeal/internal/version"
)

const versionTagline = "one piece at a time"

type versionOptions struct {
	showHash bool
	showDate bool
}

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	Tagline   string `json:"tagline"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

var versionCmd = newVersionCmd()

func newVersionCmd() *cobra.Command {
	var (
		format string
		full   bool
		opts   versionOptions
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show piecemeal build metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := readGlobalFlags(cmd)
			if err != nil {
				return err
			}
			color.NoColor = !g.color
			if full {
				opts.showHash, opts.showDate = true, true
			}
			info := version.Current()
			switch strings.ToLower(format) {
			case "json":
				return renderVersionJSON(cmd.OutOrStdout(), info, opts)
			case "pretty":
				renderVersionPretty(cmd.OutOrStdout(), info, opts, g.color)
				return nil
			}
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "pretty", "output format (pretty|json)")
	f.BoolVar(&opts.showHash, "hash", false, "include git commit hash")
	f.BoolVar(&opts.showDate, "date", false, "include build timestamp")
	f.BoolVar(&full, "full", false, "same as --hash --date")
	return cmd
}

// payload fills only the fields opts asks for; missing metadata reads "unknown".
func (o versionOptions) payload(info version.Info) versionPayload {
	p := versionPayload{Tool: "piecemeal", Version: info.Version, Tagline: versionTagline}
	if o.showHash {
		p.GitCommit = orUnknown(info.GitCommit)
	}
	if o.showDate {
		p.BuildDate = orUnknown(info.BuildDate)
	}
	return p
}

func renderVersionPretty(out io.Writer, info version.Info, opts versionOptions, useColor bool) {
	p := opts.payload(info)
	if useColor {
		p.Version = version.Colored(p.Version)
	}
	fmt.Fprintf(out, "%s %s (%s)\n", p.Tool, p.Version, p.Tagline)
	if p.GitCommit != "" {
		fmt.Fprintf(out, "commit: %s\n", p.GitCommit)
	}
	if p.BuildDate != "" {
		fmt.Fprintf(out, "built:  %s\n", p.BuildDate)
	}
}

func renderVersionJSON(out io.Writer, info version.Info, opts versionOptions) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(opts.payload(info))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
