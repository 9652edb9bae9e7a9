package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"piecemeal/internal/buildpipeline"
	"piecemeal/internal/diag"
	"piecemeal/internal/gogen"
	"piecemeal/internal/loader"
	"piecemeal/internal/observ"
	"piecemeal/internal/registry"
	"piecemeal/internal/trace"
)

// problem is a generation failure; it becomes a diagnostic once workers are
// done, because the FileSet is not safe for concurrent use.
type problem struct {
	code diag.Code
	path string
	msg  string
}

func generateAll(ctx context.Context, res *Result, pkgs []*loader.Package, opts Options, timer *observ.Timer) ([]problem, error) {
	idx := timer.Begin("generate")
	ctx, span := trace.Start(ctx, trace.ScopePhase, "generate")

	found := make([][]problem, len(pkgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, p := range pkgs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pctx, pspan := trace.Start(gctx, trace.ScopePackage, p.Path)
			found[i] = generatePackage(res, p, &res.Packages[i], opts)
			if res.Packages[i].Cached {
				trace.Point(pctx, trace.ScopePackage, p.Path, "cache hit")
			}
			detail := "ok"
			if len(found[i]) > 0 {
				detail = "error"
			}
			pspan.End(detail)
			return nil
		})
	}
	err := g.Wait()

	var out []problem
	written, cached := 0, 0
	for i := range found {
		out = append(out, found[i]...)
		if res.Packages[i].Written {
			written++
		}
		if res.Packages[i].Cached {
			cached++
		}
	}
	span.Annotate("written", fmt.Sprint(written)).Annotate("cached", fmt.Sprint(cached)).End("")
	timer.End(idx, fmt.Sprintf("%d written, %d cached", written, cached))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// generatePackage renders, and with opts.Write writes, the output of one
// package. It records what happened in pr.
func generatePackage(res *Result, p *loader.Package, pr *PackageResult, opts Options) []problem {
	start := time.Now()
	emit := func(stage buildpipeline.Stage, status buildpipeline.Status, err error) {
		opts.Progress.OnEvent(buildpipeline.Event{Package: p.Path, Stage: stage, Status: status, Err: err, Elapsed: time.Since(start)})
	}
	if pr.Dir != "" {
		pr.Output = filepath.Join(pr.Dir, opts.Output)
	}

	members := res.Registry.Scope(p.Path)
	if len(members) == 0 || pr.Dir == "" {
		var probs []problem
		if opts.Write && p.Generated != "" {
			if err := os.Remove(p.Generated); err != nil && !errors.Is(err, os.ErrNotExist) {
				probs = append(probs, problem{diag.IOWriteOutputError, p.Generated, fmt.Sprintf("cannot remove stale output: %v", err)})
			} else {
				pr.Removed = true
			}
		}
		emit(buildpipeline.StageGenerate, buildpipeline.StatusSkipped, nil)
		return probs
	}

	emit(buildpipeline.StageGenerate, buildpipeline.StatusWorking, nil)
	src, cached, prob := render(p, members, opts.Cache)
	if prob != nil {
		prob.path = pr.Output
		emit(buildpipeline.StageGenerate, buildpipeline.StatusError, errors.New(prob.msg))
		return []problem{*prob}
	}
	pr.Source, pr.Cached = src, cached

	if !opts.Write {
		emit(buildpipeline.StageGenerate, buildpipeline.StatusDone, nil)
		return nil
	}
	emit(buildpipeline.StageWrite, buildpipeline.StatusWorking, nil)
	var probs []problem
	if p.Generated != "" && p.Generated != pr.Output {
		// output file was renamed in the configuration
		if err := os.Remove(p.Generated); err != nil && !errors.Is(err, os.ErrNotExist) {
			probs = append(probs, problem{diag.IOWriteOutputError, p.Generated, fmt.Sprintf("cannot remove stale output: %v", err)})
		} else {
			pr.Removed = true
		}
	}
	written, err := writeIfChanged(pr.Output, src)
	if err != nil {
		probs = append(probs, problem{diag.IOWriteOutputError, pr.Output, err.Error()})
		emit(buildpipeline.StageWrite, buildpipeline.StatusError, err)
		return probs
	}
	pr.Written = written
	if written {
		emit(buildpipeline.StageWrite, buildpipeline.StatusDone, nil)
	} else {
		emit(buildpipeline.StageWrite, buildpipeline.StatusSkipped, nil)
	}
	return probs
}

// render returns the generated source, consulting cache first. Cache
// failures only cost a regeneration.
func render(p *loader.Package, members []registry.Members, cache *DiskCache) ([]byte, bool, *problem) {
	key, keyErr := cacheKey(p, members)
	if cache != nil && keyErr == nil {
		var payload DiskPayload
		if ok, err := cache.Get(key, &payload); err == nil && ok && payload.Package == p.Path {
			return payload.Source, true, nil
		}
	}
	src, err := gogen.Generate(gogen.Package{Name: p.Name, Path: p.Path, Members: members})
	if err != nil {
		var fe *gogen.FormatError
		if errors.As(err, &fe) {
			return nil, false, &problem{code: diag.GenFormatError, msg: fe.Error()}
		}
		return nil, false, &problem{code: diag.GenInternalError, msg: err.Error()}
	}
	if cache != nil && keyErr == nil {
		_ = cache.Put(key, &DiskPayload{Schema: diskCacheSchemaVersion, Package: p.Path, Source: src})
	}
	return src, false, nil
}

// writeIfChanged replaces path atomically unless it already holds src.
func writeIfChanged(path string, src []byte) (bool, error) {
	// #nosec G304 -- path is a package directory reported by the go command
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, src) {
		return false, nil
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".piecemeal-*")
	if err != nil {
		return false, fmt.Errorf("cannot write %s: %w", path, err)
	}
	tmp := f.Name()
	if _, err := f.Write(src); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return false, fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("cannot write %s: %w", path, err)
	}
	return true, nil
}
