// Package driver runs the generation pipeline: load packages, resolve every
// marked declaration through the registry, then render and write one output
// file per package.
package driver

import (
	"context"
	"fmt"
	"runtime"

	"piecemeal/internal/analyze"
	"piecemeal/internal/buildpipeline"
	"piecemeal/internal/diag"
	"piecemeal/internal/gogen"
	"piecemeal/internal/loader"
	"piecemeal/internal/observ"
	"piecemeal/internal/registry"
	"piecemeal/internal/source"
	"piecemeal/internal/synth"
	"piecemeal/internal/trace"
)

// DefaultMaxDiagnostics bounds the diagnostics kept for one run.
const DefaultMaxDiagnostics = 1000

// Options controls one run.
type Options struct {
	// Dir is where patterns are resolved; empty means the working directory.
	Dir      string
	Patterns []string
	Env      []string
	Tags     []string

	// Analyzer is nil for analyze.DefaultConfig.
	Analyzer *analyze.Config
	Policy   synth.DefaultPolicy
	// Output is the generated file name inside each package directory.
	Output string

	Jobs           int
	MaxDiagnostics int

	// Generate renders output for every package; Write also puts it on disk.
	Generate bool
	Write    bool
	// Cache is optional.
	Cache    *DiskCache
	Progress buildpipeline.ProgressSink
	// Timings appends an OBS6001 diagnostic with the phase report.
	Timings bool
}

func (o Options) withDefaults() Options {
	if o.Analyzer == nil {
		cfg := analyze.DefaultConfig()
		o.Analyzer = &cfg
	}
	if o.Output == "" {
		o.Output = gogen.DefaultOutput
	}
	if o.Jobs <= 0 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	if o.MaxDiagnostics <= 0 {
		o.MaxDiagnostics = DefaultMaxDiagnostics
	}
	if o.Progress == nil {
		o.Progress = buildpipeline.Discard
	}
	if o.Write {
		o.Generate = true
	}
	return o
}

// PackageResult describes what happened to one package.
type PackageResult struct {
	Path string
	Dir  string
	// Output is the path of the generated file.
	Output       string
	Source       []byte
	Declarations int
	Registered   int
	Rejected     int
	Cached       bool
	// Written is false for dry runs and for outputs that did not change.
	Written bool
	// Removed reports that a stale generated file was deleted.
	Removed bool
}

// Result is the outcome of Run. Diagnostics are sorted and deduplicated;
// Registry holds every resolved declaration.
type Result struct {
	Files    *source.FileSet
	Bag      *diag.Bag
	Registry *registry.Registry
	Packages []PackageResult
	Timer    *observ.Timer
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	return r.Bag.HasErrors()
}

// Run executes the pipeline. The returned error is reserved for
// cancellation and failures of the go command; everything about the user's
// code is a diagnostic.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	ctx, root := trace.Start(ctx, trace.ScopeDriver, "run")
	defer root.End("")

	timer := observ.NewTimer()
	opts.Progress.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusWorking})

	idx := timer.Begin("load")
	_, span := trace.Start(ctx, trace.ScopePhase, "load")
	loaded, err := loader.Load(ctx, loader.Config{Dir: opts.Dir, Env: opts.Env, Tags: opts.Tags}, opts.Patterns...)
	if err != nil {
		span.End("error")
		timer.End(idx, "failed")
		return nil, err
	}
	span.Annotate("packages", fmt.Sprint(len(loaded.Packages))).End("")
	timer.End(idx, fmt.Sprintf("%d packages", len(loaded.Packages)))

	res := &Result{
		Files:    loaded.Files,
		Bag:      diag.NewBag(opts.MaxDiagnostics),
		Registry: registry.New(),
		Timer:    timer,
	}
	// the loader may see one directive from two angles
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: res.Bag})
	reportAll(rep, loaded.Diagnostics)
	for _, p := range loaded.Packages {
		opts.Progress.OnEvent(buildpipeline.Event{Package: p.Path, Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusQueued})
	}

	outcomes, err := resolveAll(ctx, res.Registry, loaded.Packages, opts, timer)
	if err != nil {
		return nil, err
	}
	res.Packages = make([]PackageResult, len(loaded.Packages))
	for i, p := range loaded.Packages {
		pr := PackageResult{Path: p.Path, Dir: p.Dir, Declarations: len(p.Classes)}
		for _, o := range outcomes[i] {
			reportAll(rep, o.diags)
			switch o.entry.State {
			case registry.Registered:
				pr.Registered++
			case registry.Rejected:
				pr.Rejected++
			}
		}
		res.Packages[i] = pr
	}

	if opts.Generate {
		problems, err := generateAll(ctx, res, loaded.Packages, opts, timer)
		if err != nil {
			return nil, err
		}
		for _, pb := range problems {
			id := res.Files.AddVirtual(pb.path, nil)
			diag.ReportError(rep, pb.code, source.Span{File: id}, pb.msg).Emit()
		}
	} else {
		for _, pr := range res.Packages {
			status := buildpipeline.StatusDone
			if pr.Rejected > 0 {
				status = buildpipeline.StatusError
			}
			opts.Progress.OnEvent(buildpipeline.Event{Package: pr.Path, Stage: buildpipeline.StageResolve, Status: status})
		}
	}

	res.Bag.Sort()
	res.Bag.Dedup()
	if opts.Timings {
		at := source.Span{File: res.Files.AddVirtual("<timings>", nil)}
		appendTimingDiagnostic(res.Bag, at, timingPayload{Kind: "pipeline", Report: timer.Report()})
	}
	opts.Progress.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageWrite, Status: buildpipeline.StatusDone})
	return res, nil
}

func reportAll(r diag.Reporter, diags []diag.Diagnostic) {
	for _, d := range diags {
		r.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes, d.Fixes)
	}
}
