//go:build integration

package itest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptcut/promptcut/internal/pipeline"
)

func renderPlan(t *testing.T, planBody, output string) (string, error) {
	t.Helper()
	tmp := t.TempDir()
	in := makeFixture(t, tmp)
	planPath := writePlan(t, tmp, planBody)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := pipeline.RunRender(ctx, pipeline.RenderConfig{
		PlanPath:    planPath,
		InputPath:   in,
		OutputPath:  output,
		TempDir:     tmp,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Log:         zerolog.Nop(),
	})
	assertNoStrayFiles(t, tmp)
	return res.OutputPath, err
}

func TestRender_TrimConcat(t *testing.T) {
	out := filepath.Join(t.TempDir(), "joined.mp4")
	got, err := renderPlan(t, `{"actions": [
		{"type": "trim", "start": "00:00:00", "end": "00:00:02", "output": "a.mp4"},
		{"type": "trim", "start": "00:00:05", "end": "00:00:07", "output": "b.mp4"},
		{"type": "concat", "segments": [
			{"file": "a.mp4", "position": 0},
			{"file": "b.mp4", "position": 1}
		]}
	]}`, out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertDurationNear(t, got, 4.0, 0.5)
}

func TestRender_RemoveMiddle(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cut.mp4")
	got, err := renderPlan(t, `{"actions": [
		{"type": "trim", "mode": "remove", "start": "00:00:03", "end": "00:00:07"}
	]}`, out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertDurationNear(t, got, 6.0, 0.5)
}

func TestRender_MutePreservesDuration(t *testing.T) {
	out := filepath.Join(t.TempDir(), "muted.mp4")
	got, err := renderPlan(t, `{"actions": [
		{"type": "mute", "start": "00:00:02", "end": "00:00:05"}
	]}`, out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertDurationNear(t, got, 10.0, 0.5)
}

func TestRender_InvalidPlanLeavesNothingBehind(t *testing.T) {
	out := filepath.Join(t.TempDir(), "never.mp4")
	_, err := renderPlan(t, `{"actions": [
		{"type": "trim", "start": "00:00:00", "end": "00:00:02", "output": "a.mp4"}
	]}`, out)
	if err == nil {
		t.Fatal("expected validation error for keep-trim without concat")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output exists after failed render, stat err=%v", statErr)
	}
}
