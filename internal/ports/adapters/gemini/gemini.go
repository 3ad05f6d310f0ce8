// Package gemini adapts the Gemini API to the PlanGenerator port: it turns a
// user's natural-language request into search queries and, given matching
// clips, into an edit plan.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/types"
)

const DefaultModel = "gemini-2.0-flash"

type Adapter struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

func New(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Adapter, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Adapter{client: client, model: model, log: log}, nil
}

// Analyze extracts search queries and intended actions from the user's
// request. When the model's reply is not usable JSON the raw prompt itself
// becomes the single search query, so a bad model day degrades to plain
// search instead of failing the run.
func (a *Adapter) Analyze(ctx context.Context, prompt string) (types.Analysis, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(analyzePrompt(prompt)), nil)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("gemini analyze: %w", err)
	}

	analysis, err := parseAnalysis(resp.Text())
	if err != nil {
		a.log.Warn().Err(err).Msg("analysis reply was not valid JSON, falling back to raw prompt")
		return fallbackAnalysis(prompt), nil
	}
	return analysis, nil
}

// GeneratePlan asks the model for an edit plan over the given clips and
// returns the raw reply text. Parsing and validation happen upstream so the
// caller can show the user exactly what the model produced.
func (a *Adapter) GeneratePlan(ctx context.Context, prompt string, clips []types.Clip) (string, error) {
	p, err := planPrompt(prompt, clips)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(p), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate plan: %w", err)
	}
	return resp.Text(), nil
}

func parseAnalysis(text string) (types.Analysis, error) {
	cleaned, err := plan.ExtractJSON(text)
	if err != nil {
		return types.Analysis{}, err
	}
	var out types.Analysis
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return types.Analysis{}, fmt.Errorf("unmarshal analysis: %w", err)
	}
	if len(out.SearchQueries) == 0 {
		return types.Analysis{}, fmt.Errorf("analysis has no search queries")
	}
	return out, nil
}

func fallbackAnalysis(prompt string) types.Analysis {
	return types.Analysis{
		SearchQueries:  []string{prompt},
		EditingActions: []string{"cut"},
		TargetVideos:   []string{"all_indexed_videos"},
	}
}

func analyzePrompt(userPrompt string) string {
	var b strings.Builder
	b.WriteString("You are a video editing assistant. Analyze the user's request and respond with JSON only, no prose, using this shape:\n")
	b.WriteString(`{"search_queries": ["..."], "editing_actions": ["..."], "target_videos": ["..."]}` + "\n\n")
	b.WriteString("search_queries are short phrases describing the visual or audio content to find. ")
	b.WriteString("editing_actions are the operations the user wants, from: cut, concat, crop, zoom, caption, mute, blur, overlay. ")
	b.WriteString("target_videos is [\"all_indexed_videos\"] unless the user names specific videos.\n\n")
	b.WriteString("Request: " + userPrompt)
	return b.String()
}

func planPrompt(userPrompt string, clips []types.Clip) (string, error) {
	clipsJSON, err := json.MarshalIndent(clips, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal clips: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a video editing planner. Produce a JSON edit plan and nothing else.\n\n")
	b.WriteString("The plan shape is:\n")
	b.WriteString(`{"actions": [{"type": "...", "start": "HH:MM:SS", "end": "HH:MM:SS", ...}]}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Timecodes are always HH:MM:SS with end after start.\n")
	b.WriteString("- A trim keeps [start, end) and needs an \"output\" file name like \"clip1.mp4\". ")
	b.WriteString("To remove a span instead, set \"mode\": \"remove\" and no output.\n")
	b.WriteString("- Trimmed outputs must be joined by exactly one concat action: ")
	b.WriteString(`{"type": "concat", "segments": [{"file": "clip1.mp4", "position": 0}, ...]}. `)
	b.WriteString("Positions start at 0 with no gaps.\n")
	b.WriteString("- Effects take a \"params\" object: crop {width, height, x, y}; zoom {scale}; ")
	b.WriteString("caption {text, position}; blur {amount}; mute {}; overlay {path, x, y}.\n")
	b.WriteString("- Only include actions the user asked for.\n\n")
	b.WriteString("Relevant clips found by semantic search, with start/end in seconds:\n")
	b.Write(clipsJSON)
	b.WriteString("\n\nRequest: " + userPrompt)
	return b.String(), nil
}
