// Package render realizes compiled render steps against the media processor:
// segment production, concatenation with a filter-graph fallback, and
// single-pass effect chains. Each call owns a scoped workspace that is
// removed whether the render succeeds or fails.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/promptcut/promptcut/internal/compile"
	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/ports"
	"github.com/promptcut/promptcut/internal/workspace"
)

type Renderer struct {
	proc    ports.MediaProcessor
	tmpRoot string
	log     zerolog.Logger
}

type Options struct {
	// TempRoot is where per-render workspaces are allocated. Empty means
	// the system temp dir.
	TempRoot string
	Log      zerolog.Logger
}

func New(proc ports.MediaProcessor, opts Options) *Renderer {
	return &Renderer{proc: proc, tmpRoot: opts.TempRoot, log: opts.Log}
}

// Result is the outcome of one render cycle.
type Result struct {
	OutputPath string
	Warnings   []string
}

// Render validates, compiles and executes an edit plan against one input
// file. Validation happens before any file is written or process spawned.
// When outputPath is empty a unique one is generated next to the working
// directory of the caller.
func (r *Renderer) Render(ctx context.Context, p *plan.Plan, inputPath, outputPath string) (Result, error) {
	if err := plan.Validate(p); err != nil {
		return Result{}, err
	}

	duration, err := r.proc.ProbeDuration(ctx, inputPath)
	if err != nil {
		return Result{}, err
	}

	compiled, err := compile.Compile(p, duration)
	if err != nil {
		return Result{}, err
	}

	warnings := append([]string{}, p.Warnings...)
	warnings = append(warnings, compiled.Warnings...)

	if outputPath == "" {
		outputPath = fmt.Sprintf("output_%s.mp4", strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	// An empty plan is a no-op copy of the input.
	if len(compiled.Steps) == 0 {
		if err := copyFile(inputPath, outputPath); err != nil {
			return Result{}, err
		}
		r.log.Info().Str("output", outputPath).Msg("empty plan; copied input unchanged")
		return Result{OutputPath: outputPath, Warnings: warnings}, nil
	}

	ws, err := workspace.New(r.tmpRoot, r.log)
	if err != nil {
		return Result{}, err
	}
	defer ws.Cleanup()

	cur := inputPath
	for i, st := range compiled.Steps {
		last := i == len(compiled.Steps)-1
		target := ws.Path(fmt.Sprintf("stage_%d.mp4", i))
		if last {
			target = outputPath
		}

		switch s := st.(type) {
		case compile.SegmentStep:
			out := ws.Path(s.Output)
			r.log.Debug().Str("segment", s.Output).Float64("start", s.Source.Start).Float64("end", s.Source.End).Msg("cutting segment")
			if err := r.proc.CutSegment(ctx, inputPath, s.Source.Start, s.Source.End, out); err != nil {
				return Result{}, err
			}
		case compile.AssembleStep:
			if len(s.Segments) == 0 {
				// The whole source was cut away; nothing left to
				// assemble or filter.
				warnings = append(warnings, "edit removed all content; wrote an empty output")
				if err := os.WriteFile(outputPath, nil, 0o644); err != nil {
					return Result{}, fmt.Errorf("write empty output: %w", err)
				}
				return Result{OutputPath: outputPath, Warnings: warnings}, nil
			}
			if err := r.assemble(ctx, ws, s.Segments, target, &warnings); err != nil {
				return Result{}, err
			}
			cur = target
		case compile.FilterChainStep:
			if err := r.proc.ApplyFilterChain(ctx, cur, s.Actions, target); err != nil {
				return Result{}, err
			}
			cur = target
		}
	}

	r.log.Info().Str("output", outputPath).Int("warnings", len(warnings)).Msg("render complete")
	return Result{OutputPath: outputPath, Warnings: warnings}, nil
}

// assemble joins segment files in order. The manifest-based concat is tried
// first; if the processor rejects it, the explicit filter-graph concat is
// the second strategy.
func (r *Renderer) assemble(ctx context.Context, ws *workspace.Workspace, segments []string, output string, warnings *[]string) error {
	if len(segments) == 1 {
		return copyFile(ws.Path(segments[0]), output)
	}

	manifest, err := ws.WriteManifest(segments)
	if err != nil {
		return err
	}
	err = r.proc.ConcatManifest(ctx, manifest, output)
	if err == nil {
		return nil
	}
	var pe *ports.ProcessingError
	if !errors.As(err, &pe) {
		return err
	}

	r.log.Warn().Str("op", pe.Op).Msg("manifest concat rejected; retrying with filter-graph concat")
	*warnings = append(*warnings, "manifest concat rejected; fell back to filter-graph concat")
	inputs := make([]string, len(segments))
	for i, seg := range segments {
		inputs[i] = ws.Path(seg)
	}
	return r.proc.ConcatFilter(ctx, inputs, output)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
