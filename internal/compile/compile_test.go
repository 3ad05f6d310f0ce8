package compile

import (
	"errors"
	"strings"
	"testing"

	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/timecode"
)

func keepTrim(start, end float64, output string) plan.Trim {
	return plan.Trim{Interval: timecode.Interval{Start: start, End: end}, Mode: plan.TrimKeep, Output: output}
}

func TestCompile_SegmentOrderFollowsPositions(t *testing.T) {
	t.Parallel()

	// Trim declaration order is deliberately reversed relative to the
	// concat positions.
	p := &plan.Plan{Actions: []plan.Action{
		keepTrim(30, 33, "segment_1.mp4"),
		keepTrim(10, 15, "segment_0.mp4"),
		plan.Concat{Segments: []plan.ConcatSegment{
			{File: "segment_1.mp4", Position: 1},
			{File: "segment_0.mp4", Position: 0},
		}},
	}}

	res, err := Compile(p, 60)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(res.Steps))
	}
	if _, ok := res.Steps[0].(SegmentStep); !ok {
		t.Fatalf("step 0: expected SegmentStep, got %T", res.Steps[0])
	}
	asm, ok := res.Steps[2].(AssembleStep)
	if !ok {
		t.Fatalf("step 2: expected AssembleStep, got %T", res.Steps[2])
	}
	if asm.Segments[0] != "segment_0.mp4" || asm.Segments[1] != "segment_1.mp4" {
		t.Fatalf("expected position order, got %v", asm.Segments)
	}
}

func TestCompile_RemoveModeMiddleCut(t *testing.T) {
	t.Parallel()

	p := &plan.Plan{Actions: []plan.Action{
		plan.Trim{Interval: timecode.Interval{Start: 10, End: 15}, Mode: plan.TrimRemove},
	}}
	res, err := Compile(p, 60)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Steps) != 3 {
		t.Fatalf("expected 2 segment steps + assemble, got %d steps", len(res.Steps))
	}
	first := res.Steps[0].(SegmentStep)
	second := res.Steps[1].(SegmentStep)
	if first.Source != (timecode.Interval{Start: 0, End: 10}) {
		t.Fatalf("unexpected first piece: %+v", first.Source)
	}
	if second.Source != (timecode.Interval{Start: 15, End: 60}) {
		t.Fatalf("unexpected second piece: %+v", second.Source)
	}
	asm := res.Steps[2].(AssembleStep)
	if len(asm.Segments) != 2 {
		t.Fatalf("expected 2 assembled segments, got %v", asm.Segments)
	}
}

func TestCompile_RemoveModeFullCut(t *testing.T) {
	t.Parallel()

	p := &plan.Plan{Actions: []plan.Action{
		plan.Trim{Interval: timecode.Interval{Start: 0, End: 60}, Mode: plan.TrimRemove},
	}}
	res, err := Compile(p, 60)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("expected only the assemble step, got %d", len(res.Steps))
	}
	asm := res.Steps[0].(AssembleStep)
	if len(asm.Segments) != 0 {
		t.Fatalf("expected empty assembly, got %v", asm.Segments)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "empty") {
		t.Fatalf("expected empty-output warning, got %v", res.Warnings)
	}
}

func TestCompile_EffectOnlyPlan(t *testing.T) {
	t.Parallel()

	p := &plan.Plan{Actions: []plan.Action{
		plan.Mute{Interval: timecode.Interval{Start: 0, End: 5}},
		plan.Blur{Interval: timecode.Interval{Start: 1, End: 2}, Amount: 8},
	}}
	res, err := Compile(p, 60)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("expected a single filter chain step, got %d", len(res.Steps))
	}
	fc := res.Steps[0].(FilterChainStep)
	if len(fc.Actions) != 2 {
		t.Fatalf("expected 2 chained actions, got %d", len(fc.Actions))
	}
}

func TestCompile_PrunesNoOpEffects(t *testing.T) {
	t.Parallel()

	p := &plan.Plan{Actions: []plan.Action{
		plan.Zoom{Interval: timecode.Interval{Start: 0, End: 5}, Scale: 1.0},
		plan.Caption{Interval: timecode.Interval{Start: 0, End: 5}},
		plan.Crop{Interval: timecode.Interval{Start: 0, End: 5}},
		plan.Overlay{Interval: timecode.Interval{Start: 0, End: 5}},
		plan.Mute{Interval: timecode.Interval{Start: 0, End: 5}},
	}}
	res, err := Compile(p, 60)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("expected a single filter chain step, got %d", len(res.Steps))
	}
	fc := res.Steps[0].(FilterChainStep)
	if len(fc.Actions) != 1 {
		t.Fatalf("expected only the mute to survive, got %d actions", len(fc.Actions))
	}
	if len(res.Warnings) != 4 {
		t.Fatalf("expected 4 prune warnings, got %v", res.Warnings)
	}
}

func TestCompile_RemapsEffectsAfterRemove(t *testing.T) {
	t.Parallel()

	// Removing [3, 7] shifts everything after it 4 seconds earlier, so a
	// caption at source [8, 9] must run at [4, 5] of the assembled cut.
	p := &plan.Plan{Actions: []plan.Action{
		plan.Trim{Interval: timecode.Interval{Start: 3, End: 7}, Mode: plan.TrimRemove},
		plan.Caption{Interval: timecode.Interval{Start: 8, End: 9}, Text: "hi"},
	}}
	res, err := Compile(p, 10)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	fc := res.Steps[len(res.Steps)-1].(FilterChainStep)
	if len(fc.Actions) != 1 {
		t.Fatalf("expected 1 effect, got %d", len(fc.Actions))
	}
	got := fc.Actions[0].(plan.Caption).Interval
	if got != (timecode.Interval{Start: 4, End: 5}) {
		t.Fatalf("caption interval = %+v, want [4, 5]", got)
	}
}

func TestCompile_DropsEffectInsideRemovedSpan(t *testing.T) {
	t.Parallel()

	p := &plan.Plan{Actions: []plan.Action{
		plan.Trim{Interval: timecode.Interval{Start: 3, End: 7}, Mode: plan.TrimRemove},
		plan.Blur{Interval: timecode.Interval{Start: 4, End: 6}, Amount: 8},
	}}
	res, err := Compile(p, 10)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, s := range res.Steps {
		if _, ok := s.(FilterChainStep); ok {
			t.Fatalf("expected no filter chain, the only effect was cut away: %+v", s)
		}
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "cut-away") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cut-away warning, got %v", res.Warnings)
	}
}

func TestCompile_SplitsEffectAcrossConcatSegments(t *testing.T) {
	t.Parallel()

	// The mute covers source [12, 32], touching the tail of the first kept
	// segment and the head of the second. In the assembled cut the first
	// segment occupies [0, 5] and the second [5, 8], so the mute becomes
	// two windows: [2, 5] and [5, 7].
	p := &plan.Plan{Actions: []plan.Action{
		keepTrim(10, 15, "a.mp4"),
		keepTrim(30, 33, "b.mp4"),
		plan.Concat{Segments: []plan.ConcatSegment{
			{File: "a.mp4", Position: 0},
			{File: "b.mp4", Position: 1},
		}},
		plan.Mute{Interval: timecode.Interval{Start: 12, End: 32}},
	}}
	res, err := Compile(p, 60)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	fc := res.Steps[len(res.Steps)-1].(FilterChainStep)
	if len(fc.Actions) != 2 {
		t.Fatalf("expected the mute split in two, got %d actions", len(fc.Actions))
	}
	first := fc.Actions[0].(plan.Mute).Interval
	second := fc.Actions[1].(plan.Mute).Interval
	if first != (timecode.Interval{Start: 2, End: 5}) {
		t.Fatalf("first window = %+v, want [2, 5]", first)
	}
	if second != (timecode.Interval{Start: 5, End: 7}) {
		t.Fatalf("second window = %+v, want [5, 7]", second)
	}
}

func TestCompile_EmptyPlan(t *testing.T) {
	t.Parallel()

	res, err := Compile(&plan.Plan{}, 60)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Steps) != 0 {
		t.Fatalf("expected no steps for an empty plan, got %d", len(res.Steps))
	}
}

func TestCompile_IntervalPastDuration(t *testing.T) {
	t.Parallel()

	p := &plan.Plan{Actions: []plan.Action{
		keepTrim(10, 90, "a.mp4"),
		plan.Concat{Segments: []plan.ConcatSegment{{File: "a.mp4", Position: 0}}},
	}}
	_, err := Compile(p, 60)
	var ie *timecode.IntervalError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *timecode.IntervalError, got %v", err)
	}
}

func TestCompile_FullSpanTrimIsLegal(t *testing.T) {
	t.Parallel()

	p := &plan.Plan{Actions: []plan.Action{
		keepTrim(0, 60, "a.mp4"),
		plan.Concat{Segments: []plan.ConcatSegment{{File: "a.mp4", Position: 0}}},
	}}
	if _, err := Compile(p, 60); err != nil {
		t.Fatalf("full-span trim should compile: %v", err)
	}
}
