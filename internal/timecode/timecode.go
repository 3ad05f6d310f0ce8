// Package timecode converts between "HH:MM:SS" timecodes and seconds and
// computes derived time intervals over a known media duration.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a timecode that is not in HH:MM:SS form.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed timecode %q: %s", e.Input, e.Reason)
}

// IntervalError reports a degenerate or out-of-range time interval.
type IntervalError struct {
	Start  float64
	End    float64
	Reason string
}

func (e *IntervalError) Error() string {
	return fmt.Sprintf("invalid interval [%.3f, %.3f]: %s", e.Start, e.End, e.Reason)
}

// ToSeconds parses "HH:MM:SS" into seconds. The seconds field may carry a
// fractional part.
func ToSeconds(tc string) (float64, error) {
	parts := strings.Split(tc, ":")
	if len(parts) != 3 {
		return 0, &ParseError{Input: tc, Reason: fmt.Sprintf("expected 3 colon-separated fields, got %d", len(parts))}
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, &ParseError{Input: tc, Reason: fmt.Sprintf("field %d is not numeric", i+1)}
		}
		if v < 0 {
			return 0, &ParseError{Input: tc, Reason: fmt.Sprintf("field %d is negative", i+1)}
		}
		vals[i] = v
	}
	return vals[0]*3600 + vals[1]*60 + vals[2], nil
}

// FromSeconds formats whole seconds as "HH:MM:SS", truncating any fraction.
func FromSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int(sec)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// Interval is a [Start, End] span in seconds of the source media.
type Interval struct {
	Start float64
	End   float64
}

func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// Validate checks the interval shape and, when total > 0, its bounds against
// the media duration. total <= 0 means the duration is not known yet.
func (iv Interval) Validate(total float64) error {
	if iv.Start < 0 {
		return &IntervalError{Start: iv.Start, End: iv.End, Reason: "start is negative"}
	}
	if iv.End <= iv.Start {
		return &IntervalError{Start: iv.Start, End: iv.End, Reason: "end must be greater than start"}
	}
	if total > 0 && iv.End > total {
		return &IntervalError{Start: iv.Start, End: iv.End, Reason: fmt.Sprintf("end exceeds media duration %.3fs", total)}
	}
	return nil
}

// Complement returns the 0, 1 or 2 sub-intervals of [0, total] that remain
// after cutting iv out. A cut spanning the whole duration leaves nothing.
func (iv Interval) Complement(total float64) []Interval {
	var out []Interval
	if iv.Start > 0 {
		end := iv.Start
		if end > total {
			end = total
		}
		out = append(out, Interval{Start: 0, End: end})
	}
	if iv.End < total {
		out = append(out, Interval{Start: iv.End, End: total})
	}
	return out
}
