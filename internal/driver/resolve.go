package driver

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"piecemeal/internal/analyze"
	"piecemeal/internal/buildpipeline"
	"piecemeal/internal/diag"
	"piecemeal/internal/loader"
	"piecemeal/internal/observ"
	"piecemeal/internal/registry"
	"piecemeal/internal/synth"
	"piecemeal/internal/trace"
)

// outcome is the result of resolving one declaration.
type outcome struct {
	entry registry.Entry
	diags []diag.Diagnostic
}

// resolveAll resolves every class concurrently. Outcomes are indexed like
// pkgs[i].Classes[j], so merging them keeps source order regardless of
// scheduling.
func resolveAll(ctx context.Context, reg *registry.Registry, pkgs []*loader.Package, opts Options, timer *observ.Timer) ([][]outcome, error) {
	idx := timer.Begin("resolve")
	ctx, span := trace.Start(ctx, trace.ScopePhase, "resolve")

	an := analyze.New(*opts.Analyzer)
	sy := synth.New(opts.Policy)

	out := make([][]outcome, len(pkgs))
	total := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, p := range pkgs {
		out[i] = make([]outcome, len(p.Classes))
		total += len(p.Classes)
		opts.Progress.OnEvent(buildpipeline.Event{Package: p.Path, Stage: buildpipeline.StageResolve, Status: buildpipeline.StatusWorking})
		for j, c := range p.Classes {
			g.Go(func() error {
				_, dspan := trace.Start(gctx, trace.ScopeDecl, string(c.ID))
				e, err := reg.Resolve(gctx, c, an, sy)
				switch {
				case err == nil:
					out[i][j] = outcome{entry: e, diags: e.Diagnostics}
					dspan.End(e.State.String())
					return nil
				case errors.Is(err, synth.ErrInvariant):
					d := diag.NewError(diag.GenInternalError, c.NameSpan, fmt.Sprintf("internal error while synthesizing %s: %v", c.Name, err))
					out[i][j] = outcome{entry: e, diags: []diag.Diagnostic{d}}
					dspan.End("invariant")
					return nil
				default:
					dspan.End("cancelled")
					return err
				}
			})
		}
	}
	err := g.Wait()
	span.Annotate("declarations", fmt.Sprint(total)).End("")
	timer.End(idx, fmt.Sprintf("%d declarations", total))
	if err != nil {
		return nil, err
	}
	return out, nil
}
