// Package plan models edit plans: the ordered action lists produced by the
// plan generator. Parsing treats the generator as an untrusted boundary and
// validation rejects structurally broken plans before any media processing.
package plan

import (
	"github.com/promptcut/promptcut/internal/timecode"
)

// Kind discriminates the action variants.
type Kind string

const (
	KindTrim    Kind = "trim"
	KindConcat  Kind = "concat"
	KindCrop    Kind = "crop"
	KindZoom    Kind = "zoom"
	KindCaption Kind = "caption"
	KindMute    Kind = "mute"
	KindBlur    Kind = "blur"
	KindOverlay Kind = "overlay"
)

// TrimMode selects which side of a trim's interval survives.
type TrimMode string

const (
	// TrimKeep keeps only the interval. Default.
	TrimKeep TrimMode = "keep"
	// TrimRemove excises the interval and keeps the rest.
	TrimRemove TrimMode = "remove"
)

// Action is a closed tagged variant; one concrete type per kind.
type Action interface {
	Kind() Kind
}

type Trim struct {
	Interval timecode.Interval
	Mode     TrimMode
	// Output names the segment file this trim produces. Required in keep
	// mode, unused in remove mode.
	Output string
}

func (Trim) Kind() Kind { return KindTrim }

type ConcatSegment struct {
	File     string
	Position int
}

type Concat struct {
	Segments []ConcatSegment
}

func (Concat) Kind() Kind { return KindConcat }

type Crop struct {
	Interval      timecode.Interval
	Width, Height int
	X, Y          int
}

func (Crop) Kind() Kind { return KindCrop }

type Zoom struct {
	Interval timecode.Interval
	Scale    float64
}

func (Zoom) Kind() Kind { return KindZoom }

type Caption struct {
	Interval timecode.Interval
	Text     string
	// Position is "top" or "bottom". Defaults to "bottom".
	Position string
}

func (Caption) Kind() Kind { return KindCaption }

type Mute struct {
	Interval timecode.Interval
}

func (Mute) Kind() Kind { return KindMute }

type Blur struct {
	Interval timecode.Interval
	Amount   int
}

func (Blur) Kind() Kind { return KindBlur }

type Overlay struct {
	Interval timecode.Interval
	Path     string
	X, Y     int
}

func (Overlay) Kind() Kind { return KindOverlay }

// Plan is a parsed edit plan. Warnings are soft diagnostics collected while
// parsing (unknown action kinds and the like); they never fail a render.
type Plan struct {
	Actions  []Action
	Warnings []string

	// Source is the cleaned JSON text the plan was parsed from, kept for
	// display to the user before rendering.
	Source string
}
