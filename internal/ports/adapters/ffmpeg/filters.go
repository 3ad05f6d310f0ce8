package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/promptcut/promptcut/internal/plan"
)

// filterGraph is a compiled -filter_complex expression plus the stream
// labels to map and any extra inputs (overlay sources) to add.
type filterGraph struct {
	text   string
	inputs []string
	video  string
	audio  string
}

// buildFilterGraph renders effect actions into one ordered filter graph.
// width/height are only consulted for zoom (which rescales and crops back to
// the source frame size).
func buildFilterGraph(actions []plan.Action, width, height int) filterGraph {
	var (
		b      strings.Builder
		inputs []string
		vcur   = "[0:v]"
		acur   = "[0:a]"
		vn, an int
	)

	nextV := func(filter string) {
		vn++
		label := fmt.Sprintf("[v%d]", vn)
		fmt.Fprintf(&b, "%s%s%s;", vcur, filter, label)
		vcur = label
	}
	nextA := func(filter string) {
		an++
		label := fmt.Sprintf("[a%d]", an)
		fmt.Fprintf(&b, "%s%s%s;", acur, filter, label)
		acur = label
	}

	for _, a := range actions {
		switch v := a.(type) {
		case plan.Crop:
			nextV(fmt.Sprintf("crop=%d:%d:%d:%d", v.Width, v.Height, v.X, v.Y))
		case plan.Zoom:
			nw := int(float64(width) * v.Scale)
			nh := int(float64(height) * v.Scale)
			nextV(fmt.Sprintf("scale=%d:%d,crop=%d:%d", nw, nh, width, height))
		case plan.Caption:
			y := "h-th-10"
			if v.Position == "top" {
				y = "10"
			}
			nextV(fmt.Sprintf(
				"drawtext=text=%s:fontsize=24:fontcolor=white:box=1:boxcolor=black@0.5:x=(w-text_w)/2:y=%s:enable=%s",
				escapeDrawtext(v.Text), y, enableExpr(v.Interval.Start, v.Interval.End),
			))
		case plan.Blur:
			nextV(fmt.Sprintf("boxblur=%d:enable=%s", v.Amount, enableExpr(v.Interval.Start, v.Interval.End)))
		case plan.Overlay:
			inputs = append(inputs, v.Path)
			vn++
			label := fmt.Sprintf("[v%d]", vn)
			fmt.Fprintf(&b, "%s[%d:v]overlay=%d:%d:enable=%s%s;", vcur, len(inputs), v.X, v.Y, enableExpr(v.Interval.Start, v.Interval.End), label)
			vcur = label
		case plan.Mute:
			nextA(fmt.Sprintf("volume=enable=%s:volume=0", enableExpr(v.Interval.Start, v.Interval.End)))
		}
	}

	g := filterGraph{
		text:   strings.TrimSuffix(b.String(), ";"),
		inputs: inputs,
		video:  vcur,
		audio:  acur,
	}
	if vn == 0 {
		g.video = "0:v"
	}
	if an == 0 {
		g.audio = "0:a"
	}
	return g
}

func concatFilterGraph(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:v]setpts=PTS-STARTPTS[v%d];[%d:a]asetpts=PTS-STARTPTS[a%d];", i, i, i, i)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[vout][aout]", n)
	return b.String()
}

func needsDimensions(actions []plan.Action) bool {
	for _, a := range actions {
		if _, ok := a.(plan.Zoom); ok {
			return true
		}
	}
	return false
}

func enableExpr(start, end float64) string {
	return fmt.Sprintf("'between(t,%s,%s)'", fmtSeconds(start), fmtSeconds(end))
}

var drawtextEscaper = strings.NewReplacer(
	`\`, `\\`,
	`:`, `\:`,
	`'`, `\\'`,
	`,`, `\,`,
	`;`, `\;`,
	`%`, `\%`,
)

func escapeDrawtext(s string) string {
	return drawtextEscaper.Replace(s)
}
