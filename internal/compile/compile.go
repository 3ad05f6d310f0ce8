// Package compile turns a validated edit plan into an ordered sequence of
// render steps: segment production first, assembly last, with effect chains
// reduced to a single filter pass.
package compile

import (
	"fmt"
	"math"

	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/timecode"
)

// Step is one compiled unit of work consumed by the renderer.
type Step interface {
	step()
}

// SegmentStep cuts one interval of the source into a temporary segment file.
type SegmentStep struct {
	Source timecode.Interval
	// Output is the segment file name, relative to the render workspace.
	Output string
}

func (SegmentStep) step() {}

// AssembleStep joins segment files, in order, into one output. An empty
// segment list is legal: it means the whole source was cut away and the
// output is empty.
type AssembleStep struct {
	Segments []string
}

func (AssembleStep) step() {}

// FilterChainStep applies effect actions as one filter pass, in plan order.
type FilterChainStep struct {
	Actions []plan.Action
}

func (FilterChainStep) step() {}

// Result is the compiled form of one plan.
type Result struct {
	Steps    []Step
	Warnings []string
}

// Compile walks a validated plan and emits render steps. duration is the
// probed length of the source media in seconds; interval bounds are checked
// against it here.
func Compile(p *plan.Plan, duration float64) (*Result, error) {
	var (
		trims   []plan.Trim
		remove  *plan.Trim
		concat  *plan.Concat
		effects []plan.Action
	)
	for i, a := range p.Actions {
		switch v := a.(type) {
		case plan.Trim:
			if err := v.Interval.Validate(duration); err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			if v.Mode == plan.TrimRemove {
				rm := v
				remove = &rm
				continue
			}
			trims = append(trims, v)
		case plan.Concat:
			c := v
			concat = &c
		default:
			if err := effectInterval(a).Validate(duration); err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			effects = append(effects, a)
		}
	}

	res := &Result{}
	effects = pruneEffects(effects, res)

	switch {
	case remove != nil:
		compileRemove(*remove, duration, res)
		effects = remapEffects(effects, remove.Interval.Complement(duration), res)
	case concat != nil:
		compileSegments(trims, *concat, res)
		effects = remapEffects(effects, orderedIntervals(trims, *concat), res)
	}

	if len(effects) > 0 {
		res.Steps = append(res.Steps, FilterChainStep{Actions: effects})
	}
	return res, nil
}

// remapEffects rewrites effect intervals from source time to the assembled
// cut's timeline, since the filter pass runs after assembly. An effect that
// spans several kept pieces is split into one action per piece; one that
// falls entirely in cut-away content is dropped with a warning.
func remapEffects(effects []plan.Action, kept []timecode.Interval, res *Result) []plan.Action {
	var out []plan.Action
	for _, a := range effects {
		src := effectInterval(a)
		mapped := mapToAssembled(src, kept)
		if len(mapped) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s at [%s, %s] falls entirely in cut-away content; ignored", a.Kind(), timecode.FromSeconds(src.Start), timecode.FromSeconds(src.End)))
			continue
		}
		for _, iv := range mapped {
			out = append(out, withEffectInterval(a, iv))
		}
	}
	return out
}

// mapToAssembled intersects a source-time interval with the kept pieces, in
// assembled order, and shifts each overlap by the running length of the
// pieces before it.
func mapToAssembled(src timecode.Interval, kept []timecode.Interval) []timecode.Interval {
	var out []timecode.Interval
	offset := 0.0
	for _, piece := range kept {
		start := math.Max(src.Start, piece.Start)
		end := math.Min(src.End, piece.End)
		if end > start {
			out = append(out, timecode.Interval{
				Start: offset + start - piece.Start,
				End:   offset + end - piece.Start,
			})
		}
		offset += piece.Duration()
	}
	return out
}

// orderedIntervals returns the trims' source intervals sorted by their concat
// position, which is the order they occupy in the assembled output.
func orderedIntervals(trims []plan.Trim, concat plan.Concat) []timecode.Interval {
	byOutput := make(map[string]timecode.Interval, len(trims))
	for _, tr := range trims {
		byOutput[tr.Output] = tr.Interval
	}
	out := make([]timecode.Interval, len(concat.Segments))
	for _, s := range concat.Segments {
		out[s.Position] = byOutput[s.File]
	}
	return out
}

func withEffectInterval(a plan.Action, iv timecode.Interval) plan.Action {
	switch v := a.(type) {
	case plan.Crop:
		v.Interval = iv
		return v
	case plan.Zoom:
		v.Interval = iv
		return v
	case plan.Caption:
		v.Interval = iv
		return v
	case plan.Mute:
		v.Interval = iv
		return v
	case plan.Blur:
		v.Interval = iv
		return v
	case plan.Overlay:
		v.Interval = iv
		return v
	}
	return a
}

// compileSegments emits one SegmentStep per trim, in declaration order, and
// one AssembleStep with segments sorted by ascending concat position. The
// trim array order never affects the final segment order.
func compileSegments(trims []plan.Trim, concat plan.Concat, res *Result) {
	for _, tr := range trims {
		res.Steps = append(res.Steps, SegmentStep{Source: tr.Interval, Output: tr.Output})
	}
	ordered := make([]string, len(concat.Segments))
	for _, s := range concat.Segments {
		ordered[s.Position] = s.File
	}
	res.Steps = append(res.Steps, AssembleStep{Segments: ordered})
}

// compileRemove excises the trim interval by cutting the complement pieces
// and reassembling them.
func compileRemove(tr plan.Trim, duration float64, res *Result) {
	pieces := tr.Interval.Complement(duration)
	if len(pieces) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("remove-mode trim cuts the entire source [0.000, %.3f]; output will be empty", duration))
	}
	segments := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		name := fmt.Sprintf("part_%d.mp4", i)
		res.Steps = append(res.Steps, SegmentStep{Source: piece, Output: name})
		segments = append(segments, name)
	}
	res.Steps = append(res.Steps, AssembleStep{Segments: segments})
}

// pruneEffects drops effects whose required parameters are missing or whose
// settings make them a no-op, recording a warning for each. A half-specified
// minor effect never invalidates the rest of the plan.
func pruneEffects(effects []plan.Action, res *Result) []plan.Action {
	kept := effects[:0]
	for _, a := range effects {
		switch v := a.(type) {
		case plan.Crop:
			if v.Width <= 0 || v.Height <= 0 {
				res.Warnings = append(res.Warnings, "crop without width/height ignored")
				continue
			}
		case plan.Zoom:
			if v.Scale == 1.0 {
				res.Warnings = append(res.Warnings, "zoom with scale 1.0 ignored")
				continue
			}
			if v.Scale <= 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("zoom with scale %.3f ignored", v.Scale))
				continue
			}
		case plan.Caption:
			if v.Text == "" {
				res.Warnings = append(res.Warnings, "caption without text ignored")
				continue
			}
		case plan.Overlay:
			if v.Path == "" {
				res.Warnings = append(res.Warnings, "overlay without a source path ignored")
				continue
			}
		case plan.Blur:
			if v.Amount <= 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("blur with amount %d ignored", v.Amount))
				continue
			}
		}
		kept = append(kept, a)
	}
	return kept
}

func effectInterval(a plan.Action) timecode.Interval {
	switch v := a.(type) {
	case plan.Crop:
		return v.Interval
	case plan.Zoom:
		return v.Interval
	case plan.Caption:
		return v.Interval
	case plan.Mute:
		return v.Interval
	case plan.Blur:
		return v.Interval
	case plan.Overlay:
		return v.Interval
	}
	return timecode.Interval{}
}
