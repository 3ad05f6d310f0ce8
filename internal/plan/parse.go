package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/promptcut/promptcut/internal/timecode"
)

// ValidationError reports a structural plan defect: the offending action
// index and the rule it violates.
type ValidationError struct {
	Index int
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: action %d: %s", e.Index, e.Rule)
}

type rawSegment struct {
	File     string `json:"file"`
	Position int    `json:"position"`
}

type rawAction struct {
	Type     string         `json:"type"`
	Start    string         `json:"start"`
	End      string         `json:"end"`
	Mode     string         `json:"mode"`
	Output   string         `json:"output"`
	Segments []rawSegment   `json:"segments"`
	Params   map[string]any `json:"params"`
}

type rawPlan struct {
	Actions []rawAction `json:"actions"`
}

// ParseText extracts a JSON object from free-form model output (stripping
// code fences and surrounding prose) and parses it as an edit plan.
func ParseText(s string) (*Plan, error) {
	clean, err := ExtractJSON(s)
	if err != nil {
		return nil, err
	}
	return Parse([]byte(clean))
}

// Parse decodes a JSON edit plan into typed actions. Unknown action kinds
// become warnings, not errors; missing required fields fail with a
// ValidationError identifying the action.
func Parse(b []byte) (*Plan, error) {
	var rp rawPlan
	if err := json.Unmarshal(b, &rp); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	p := &Plan{Source: string(b)}
	for i, ra := range rp.Actions {
		a, warn, err := parseAction(i, ra)
		if err != nil {
			return nil, err
		}
		if warn != "" {
			p.Warnings = append(p.Warnings, warn)
			continue
		}
		p.Actions = append(p.Actions, a)
	}
	return p, nil
}

func parseAction(i int, ra rawAction) (Action, string, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(ra.Type)))
	if kind == KindConcat {
		if len(ra.Segments) == 0 {
			return nil, "", &ValidationError{Index: i, Rule: "concat requires a non-empty segments list"}
		}
		segs := make([]ConcatSegment, 0, len(ra.Segments))
		for _, s := range ra.Segments {
			if s.File == "" {
				return nil, "", &ValidationError{Index: i, Rule: "concat segment is missing a file name"}
			}
			segs = append(segs, ConcatSegment{File: s.File, Position: s.Position})
		}
		return Concat{Segments: segs}, "", nil
	}

	switch kind {
	case KindTrim, KindCrop, KindZoom, KindCaption, KindMute, KindBlur, KindOverlay:
	default:
		return nil, fmt.Sprintf("action %d: unknown type %q ignored", i, ra.Type), nil
	}

	iv, err := parseInterval(i, ra)
	if err != nil {
		return nil, "", err
	}

	switch kind {
	case KindTrim:
		mode := TrimMode(strings.ToLower(strings.TrimSpace(ra.Mode)))
		switch mode {
		case "":
			mode = TrimKeep
		case TrimKeep, TrimRemove:
		default:
			return nil, "", &ValidationError{Index: i, Rule: fmt.Sprintf("unknown trim mode %q", ra.Mode)}
		}
		if mode == TrimKeep && ra.Output == "" {
			return nil, "", &ValidationError{Index: i, Rule: "trim requires an output segment name"}
		}
		return Trim{Interval: iv, Mode: mode, Output: ra.Output}, "", nil
	case KindCrop:
		return Crop{
			Interval: iv,
			Width:    intParam(ra.Params, "width", 0),
			Height:   intParam(ra.Params, "height", 0),
			X:        intParam(ra.Params, "x", 0),
			Y:        intParam(ra.Params, "y", 0),
		}, "", nil
	case KindZoom:
		return Zoom{Interval: iv, Scale: floatParam(ra.Params, "scale", 1.0)}, "", nil
	case KindCaption:
		pos := strParam(ra.Params, "position", "bottom")
		if pos != "top" {
			pos = "bottom"
		}
		return Caption{Interval: iv, Text: strParam(ra.Params, "text", ""), Position: pos}, "", nil
	case KindMute:
		return Mute{Interval: iv}, "", nil
	case KindBlur:
		return Blur{Interval: iv, Amount: intParam(ra.Params, "amount", 5)}, "", nil
	case KindOverlay:
		return Overlay{
			Interval: iv,
			Path:     strParam(ra.Params, "path", ""),
			X:        intParam(ra.Params, "x", 0),
			Y:        intParam(ra.Params, "y", 0),
		}, "", nil
	}
	return nil, "", &ValidationError{Index: i, Rule: fmt.Sprintf("unhandled action kind %q", kind)}
}

func parseInterval(i int, ra rawAction) (timecode.Interval, error) {
	if ra.Start == "" || ra.End == "" {
		return timecode.Interval{}, &ValidationError{Index: i, Rule: "start and end timecodes are required"}
	}
	start, err := timecode.ToSeconds(ra.Start)
	if err != nil {
		return timecode.Interval{}, err
	}
	end, err := timecode.ToSeconds(ra.End)
	if err != nil {
		return timecode.Interval{}, err
	}
	iv := timecode.Interval{Start: start, End: end}
	// Duration-dependent bounds are re-checked at compile time once the
	// media has been probed.
	if err := iv.Validate(0); err != nil {
		return timecode.Interval{}, err
	}
	return iv, nil
}

// ExtractJSON locates a JSON object in model output, stripping markdown code
// fences and any surrounding prose.
func ExtractJSON(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("empty plan text")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("could not locate JSON object in %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func intParam(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	default:
		return def
	}
}

func floatParam(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	default:
		return def
	}
}

func strParam(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
