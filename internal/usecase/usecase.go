// Package usecase holds the application flows behind the CLI: the full
// prompt-to-render edit flow plus the smaller upload, list and plan-file
// render flows.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/ports"
	"github.com/promptcut/promptcut/internal/render"
	"github.com/promptcut/promptcut/internal/types"
)

// ErrAborted is returned when the user declines the generated plan.
var ErrAborted = errors.New("edit aborted by user")

// Renderer executes a validated plan against one input file.
type Renderer interface {
	Render(ctx context.Context, p *plan.Plan, inputPath, outputPath string) (render.Result, error)
}

type Deps struct {
	Search   ports.VideoSearcher
	LLM      ports.PlanGenerator
	Store    ports.MetadataStore
	Renderer Renderer
	// Confirm is asked before rendering, with the plan's cleaned JSON and
	// any warnings. Nil means proceed without asking.
	Confirm func(planJSON string, warnings []string) (bool, error)
	Log     zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type EditInput struct {
	Prompt string
	// Uploads are local videos to index and register before searching.
	Uploads    []string
	OutDir     string
	OutputName string
}

type EditResult struct {
	OutputPath string
	Warnings   []string
	Clips      []types.Clip
}

// Edit runs the full flow: upload, analyze, search, generate a plan, confirm
// and render.
func (u Usecase) Edit(ctx context.Context, in EditInput) (EditResult, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return EditResult{}, fmt.Errorf("prompt is required")
	}

	for _, path := range in.Uploads {
		if _, err := u.UploadVideo(ctx, path); err != nil {
			return EditResult{}, err
		}
	}

	analysis, err := u.d.LLM.Analyze(ctx, in.Prompt)
	if err != nil {
		return EditResult{}, err
	}
	u.d.Log.Info().Strs("queries", analysis.SearchQueries).Strs("actions", analysis.EditingActions).Msg("request analyzed")

	clips, err := u.searchAll(ctx, analysis.SearchQueries)
	if err != nil {
		return EditResult{}, err
	}
	if len(clips) == 0 {
		return EditResult{}, fmt.Errorf("no indexed clips matched the request")
	}

	inputPath, err := u.d.Store.ResolvePath(ctx, clips[0].VideoID)
	if err != nil {
		if errors.Is(err, ports.ErrVideoNotFound) {
			return EditResult{}, fmt.Errorf("best match is video %s but its original file is not registered; upload it first: %w", clips[0].VideoID, err)
		}
		return EditResult{}, err
	}

	raw, err := u.d.LLM.GeneratePlan(ctx, in.Prompt, clips)
	if err != nil {
		return EditResult{}, err
	}
	p, err := plan.ParseText(raw)
	if err != nil {
		return EditResult{}, err
	}
	if err := plan.Validate(p); err != nil {
		return EditResult{}, err
	}

	if u.d.Confirm != nil {
		ok, err := u.d.Confirm(p.Source, p.Warnings)
		if err != nil {
			return EditResult{}, err
		}
		if !ok {
			return EditResult{}, ErrAborted
		}
	}

	res, err := u.d.Renderer.Render(ctx, p, inputPath, u.outputPath(in.OutDir, in.OutputName))
	if err != nil {
		return EditResult{}, err
	}
	return EditResult{OutputPath: res.OutputPath, Warnings: res.Warnings, Clips: clips}, nil
}

// RenderPlan renders a plan given as JSON text, skipping the search and
// model steps.
func (u Usecase) RenderPlan(ctx context.Context, planText, inputPath, outputPath string) (EditResult, error) {
	p, err := plan.ParseText(planText)
	if err != nil {
		return EditResult{}, err
	}
	if err := plan.Validate(p); err != nil {
		return EditResult{}, err
	}
	res, err := u.d.Renderer.Render(ctx, p, inputPath, outputPath)
	if err != nil {
		return EditResult{}, err
	}
	return EditResult{OutputPath: res.OutputPath, Warnings: res.Warnings}, nil
}

// UploadVideo indexes one local video and records where its original lives.
func (u Usecase) UploadVideo(ctx context.Context, path string) (string, error) {
	u.d.Log.Info().Str("path", path).Msg("uploading video for indexing")
	videoID, err := u.d.Search.Upload(ctx, path)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if err := u.d.Store.Save(ctx, videoID, path); err != nil {
		return "", err
	}
	u.d.Log.Info().Str("video_id", videoID).Str("path", path).Msg("video indexed")
	return videoID, nil
}

// Videos lists every registered video.
func (u Usecase) Videos(ctx context.Context) ([]types.VideoRecord, error) {
	return u.d.Store.List(ctx)
}

// searchAll runs every query and merges the hits, best score first.
func (u Usecase) searchAll(ctx context.Context, queries []string) ([]types.Clip, error) {
	var merged []types.Clip
	seen := map[string]bool{}
	for _, q := range queries {
		clips, err := u.d.Search.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}
		for _, c := range clips {
			key := fmt.Sprintf("%s/%.3f/%.3f", c.VideoID, c.StartTime, c.EndTime)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, c)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged, nil
}

func (u Usecase) outputPath(outDir, name string) string {
	if name == "" {
		name = fmt.Sprintf("output_%s.mp4", strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}
	return filepath.Join(outDir, name)
}
