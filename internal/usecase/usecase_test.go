package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/ports"
	"github.com/promptcut/promptcut/internal/render"
	"github.com/promptcut/promptcut/internal/types"
)

const testPlan = `{"actions": [
	{"type": "trim", "start": "00:00:01", "end": "00:00:03", "output": "clip1.mp4"},
	{"type": "concat", "segments": [{"file": "clip1.mp4", "position": 0}]}
]}`

func TestEdit_FullFlow(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{results: map[string][]types.Clip{
		"goal":        {{VideoID: "vid-1", StartTime: 10, EndTime: 15, Score: 0.9}},
		"celebration": {{VideoID: "vid-1", StartTime: 10, EndTime: 15, Score: 0.9}, {VideoID: "vid-2", StartTime: 2, EndTime: 6, Score: 0.6}},
	}}
	llm := &fakeLLM{
		analysis: types.Analysis{SearchQueries: []string{"goal", "celebration"}, EditingActions: []string{"cut"}},
		planText: "```json\n" + testPlan + "\n```",
	}
	store := &fakeStore{paths: map[string]string{"vid-1": "/videos/match.mp4"}}
	rend := &fakeRenderer{}

	uc := New(Deps{Search: search, LLM: llm, Store: store, Renderer: rend, Log: zerolog.Nop()})
	res, err := uc.Edit(context.Background(), EditInput{
		Prompt:     "keep the goal celebration",
		OutDir:     "/tmp/out",
		OutputName: "final.mp4",
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if rend.input != "/videos/match.mp4" {
		t.Errorf("rendered input = %q, want the best match's original path", rend.input)
	}
	if rend.output != filepath.Join("/tmp/out", "final.mp4") {
		t.Errorf("rendered output = %q", rend.output)
	}
	// The duplicate vid-1 hit across queries is merged away.
	if len(res.Clips) != 2 {
		t.Fatalf("got %d clips, want 2: %+v", len(res.Clips), res.Clips)
	}
	if res.Clips[0].Score < res.Clips[1].Score {
		t.Errorf("clips not sorted by score: %+v", res.Clips)
	}
	if res.OutputPath != rend.output {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
}

func TestEdit_GeneratesOutputNameWhenUnset(t *testing.T) {
	t.Parallel()

	uc, _, rend := editFixture()
	if _, err := uc.Edit(context.Background(), EditInput{Prompt: "p", OutDir: "/tmp/out"}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	name := filepath.Base(rend.output)
	if !strings.HasPrefix(name, "output_") || !strings.HasSuffix(name, ".mp4") {
		t.Errorf("generated name = %q", name)
	}
	if filepath.Dir(rend.output) != "/tmp/out" {
		t.Errorf("output dir = %q", filepath.Dir(rend.output))
	}
}

func TestEdit_ConfirmDecline(t *testing.T) {
	t.Parallel()

	uc, deps, rend := editFixture()
	deps.Confirm = func(planJSON string, warnings []string) (bool, error) {
		if !strings.Contains(planJSON, "concat") {
			t.Errorf("confirm plan JSON missing actions: %q", planJSON)
		}
		return false, nil
	}
	uc = New(deps)

	_, err := uc.Edit(context.Background(), EditInput{Prompt: "p"})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if rend.calls != 0 {
		t.Errorf("renderer ran %d times after decline", rend.calls)
	}
}

func TestEdit_UnregisteredVideo(t *testing.T) {
	t.Parallel()

	uc, deps, _ := editFixture()
	deps.Store = &fakeStore{paths: map[string]string{}}
	uc = New(deps)

	_, err := uc.Edit(context.Background(), EditInput{Prompt: "p"})
	if !errors.Is(err, ports.ErrVideoNotFound) {
		t.Fatalf("err = %v, want ErrVideoNotFound", err)
	}
	if !strings.Contains(err.Error(), "upload") {
		t.Errorf("error %q should tell the user to upload", err)
	}
}

func TestEdit_InvalidPlanFromModel(t *testing.T) {
	t.Parallel()

	uc, deps, rend := editFixture()
	// Keep-trim without a concat is rejected before anything renders.
	deps.LLM.(*fakeLLM).planText = `{"actions": [{"type": "trim", "start": "00:00:01", "end": "00:00:03", "output": "a.mp4"}]}`
	uc = New(deps)

	_, err := uc.Edit(context.Background(), EditInput{Prompt: "p"})
	var ve *plan.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if rend.calls != 0 {
		t.Errorf("renderer ran on an invalid plan")
	}
}

func TestEdit_NoMatchingClips(t *testing.T) {
	t.Parallel()

	uc, deps, _ := editFixture()
	deps.Search = &fakeSearcher{results: map[string][]types.Clip{}}
	uc = New(deps)

	if _, err := uc.Edit(context.Background(), EditInput{Prompt: "p"}); err == nil {
		t.Fatal("expected error when nothing matches")
	}
}

func TestEdit_UploadsAreRegisteredFirst(t *testing.T) {
	t.Parallel()

	uc, deps, _ := editFixture()
	store := deps.Store.(*fakeStore)
	uc = New(deps)

	if _, err := uc.Edit(context.Background(), EditInput{Prompt: "p", Uploads: []string{"/videos/new.mp4"}}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got := store.paths["vid-up"]; got != "/videos/new.mp4" {
		t.Errorf("upload not registered, paths = %v", store.paths)
	}
}

func TestRenderPlan(t *testing.T) {
	t.Parallel()

	uc, _, rend := editFixture()
	res, err := uc.RenderPlan(context.Background(), testPlan, "/videos/in.mp4", "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("RenderPlan: %v", err)
	}
	if rend.input != "/videos/in.mp4" || rend.output != "/tmp/out.mp4" {
		t.Errorf("render call = (%q, %q)", rend.input, rend.output)
	}
	if res.OutputPath != "/tmp/out.mp4" {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
}

// editFixture builds deps where one query matches one registered video.
func editFixture() (Usecase, Deps, *fakeRenderer) {
	rend := &fakeRenderer{}
	deps := Deps{
		Search: &fakeSearcher{
			results: map[string][]types.Clip{
				"q1": {{VideoID: "vid-1", StartTime: 1, EndTime: 4, Score: 0.8}},
			},
			uploadID: "vid-up",
		},
		LLM: &fakeLLM{
			analysis: types.Analysis{SearchQueries: []string{"q1"}},
			planText: testPlan,
		},
		Store:    &fakeStore{paths: map[string]string{"vid-1": "/videos/a.mp4", "vid-up": ""}},
		Renderer: rend,
		Log:      zerolog.Nop(),
	}
	return New(deps), deps, rend
}

type fakeSearcher struct {
	results  map[string][]types.Clip
	uploadID string
	uploaded []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]types.Clip, error) {
	return f.results[query], nil
}

func (f *fakeSearcher) Upload(_ context.Context, path string) (string, error) {
	f.uploaded = append(f.uploaded, path)
	if f.uploadID == "" {
		f.uploadID = "vid-up"
	}
	return f.uploadID, nil
}

type fakeLLM struct {
	analysis types.Analysis
	planText string
	prompts  []string
}

func (f *fakeLLM) Analyze(_ context.Context, prompt string) (types.Analysis, error) {
	f.prompts = append(f.prompts, prompt)
	return f.analysis, nil
}

func (f *fakeLLM) GeneratePlan(_ context.Context, prompt string, _ []types.Clip) (string, error) {
	return f.planText, nil
}

type fakeStore struct {
	paths map[string]string
}

func (f *fakeStore) Save(_ context.Context, videoID, originalPath string) error {
	f.paths[videoID] = originalPath
	return nil
}

func (f *fakeStore) ResolvePath(_ context.Context, videoID string) (string, error) {
	p, ok := f.paths[videoID]
	if !ok {
		return "", fmt.Errorf("video %s: %w", videoID, ports.ErrVideoNotFound)
	}
	return p, nil
}

func (f *fakeStore) List(_ context.Context) ([]types.VideoRecord, error) {
	var out []types.VideoRecord
	for id, p := range f.paths {
		out = append(out, types.VideoRecord{VideoID: id, OriginalPath: p})
	}
	return out, nil
}

type fakeRenderer struct {
	calls  int
	input  string
	output string
}

func (f *fakeRenderer) Render(_ context.Context, p *plan.Plan, inputPath, outputPath string) (render.Result, error) {
	f.calls++
	f.input = inputPath
	f.output = outputPath
	return render.Result{OutputPath: outputPath}, nil
}
