package plan

import (
	"fmt"
	"sort"
)

// Validate checks the structural invariants that must hold before any media
// processing begins: unique trim outputs, a single concat whose positions are
// a gapless permutation of 0..N-1, no dangling segment references, and no
// trim output left unconsumed.
func Validate(p *Plan) error {
	outputs := make(map[string]int)
	var (
		keepTrims   int
		removeTrims int
		concatIdx   = -1
		concat      *Concat
	)

	for i, a := range p.Actions {
		switch v := a.(type) {
		case Trim:
			if v.Mode == TrimRemove {
				removeTrims++
				continue
			}
			if prev, ok := outputs[v.Output]; ok {
				return &ValidationError{Index: i, Rule: fmt.Sprintf("duplicate trim output %q (already declared by action %d)", v.Output, prev)}
			}
			outputs[v.Output] = i
			keepTrims++
		case Concat:
			if concatIdx >= 0 {
				return &ValidationError{Index: i, Rule: "plan declares more than one concat action"}
			}
			concatIdx = i
			c := v
			concat = &c
		}
	}

	if removeTrims > 1 {
		return &ValidationError{Index: firstRemoveTrim(p), Rule: "plan declares more than one remove-mode trim"}
	}
	if removeTrims > 0 && (keepTrims > 0 || concat != nil) {
		return &ValidationError{Index: firstRemoveTrim(p), Rule: "remove-mode trim cannot be combined with keep-mode trims or concat"}
	}
	if keepTrims > 0 && concat == nil {
		return &ValidationError{Index: firstKeepTrim(p), Rule: "trim outputs are never concatenated; add a concat action"}
	}

	if concat != nil {
		seen := make(map[string]bool, len(concat.Segments))
		posSeen := make(map[int]bool, len(concat.Segments))
		positions := make([]int, 0, len(concat.Segments))
		for _, s := range concat.Segments {
			if _, ok := outputs[s.File]; !ok {
				return &ValidationError{Index: concatIdx, Rule: fmt.Sprintf("concat references %q which no trim action outputs", s.File)}
			}
			if seen[s.File] {
				return &ValidationError{Index: concatIdx, Rule: fmt.Sprintf("concat lists segment %q more than once", s.File)}
			}
			seen[s.File] = true
			if posSeen[s.Position] {
				return &ValidationError{Index: concatIdx, Rule: fmt.Sprintf("concat position %d is used more than once", s.Position)}
			}
			posSeen[s.Position] = true
			positions = append(positions, s.Position)
		}
		sort.Ints(positions)
		for want, got := range positions {
			if got != want {
				return &ValidationError{Index: concatIdx, Rule: fmt.Sprintf("concat positions must be a gapless sequence from 0; missing position %d", want)}
			}
		}

		// Every keep-trim must land in the concat, or its cut would be
		// produced and then silently dropped from the output.
		for i, a := range p.Actions {
			t, ok := a.(Trim)
			if !ok || t.Mode == TrimRemove {
				continue
			}
			if !seen[t.Output] {
				return &ValidationError{Index: i, Rule: fmt.Sprintf("trim output %q is never referenced by the concat", t.Output)}
			}
		}
	}

	return nil
}

func firstRemoveTrim(p *Plan) int {
	for i, a := range p.Actions {
		if t, ok := a.(Trim); ok && t.Mode == TrimRemove {
			return i
		}
	}
	return 0
}

func firstKeepTrim(p *Plan) int {
	for i, a := range p.Actions {
		if t, ok := a.(Trim); ok && t.Mode == TrimKeep {
			return i
		}
	}
	return 0
}
