// Package ffmpeg adapts the ffmpeg/ffprobe binaries to the MediaProcessor
// port. Every segment is written with one fixed codec profile so that
// concatenation never has to negotiate across mixed codecs.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/ports"
)

const (
	videoCodec   = "libx264"
	videoPreset  = "veryfast"
	videoCRF     = "18"
	audioCodec   = "aac"
	audioBitrate = "192k"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) CutSegment(ctx context.Context, input string, start, end float64, output string) error {
	args := append([]string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("trim=start=%s:end=%s,setpts=PTS-STARTPTS", fmtSeconds(start), fmtSeconds(end)),
		"-af", fmt.Sprintf("atrim=start=%s:end=%s,asetpts=PTS-STARTPTS", fmtSeconds(start), fmtSeconds(end)),
	}, codecArgs(output)...)
	return a.run(ctx, "cut segment", args)
}

func (a *Adapter) ConcatManifest(ctx context.Context, manifest, output string) error {
	args := append([]string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
	}, codecArgs(output)...)
	return a.run(ctx, "concat manifest", args)
}

func (a *Adapter) ConcatFilter(ctx context.Context, inputs []string, output string) error {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", concatFilterGraph(len(inputs)),
		"-map", "[vout]",
		"-map", "[aout]",
	)
	args = append(args, codecArgs(output)...)
	return a.run(ctx, "concat filter", args)
}

func (a *Adapter) ApplyFilterChain(ctx context.Context, input string, actions []plan.Action, output string) error {
	w, h := 0, 0
	if needsDimensions(actions) {
		var err error
		w, h, err = a.probeDimensions(ctx, input)
		if err != nil {
			return err
		}
	}

	g := buildFilterGraph(actions, w, h)
	args := []string{"-y", "-i", input}
	for _, extra := range g.inputs {
		args = append(args, "-i", extra)
	}
	if g.text != "" {
		args = append(args, "-filter_complex", g.text)
	}
	args = append(args, "-map", g.video, "-map", g.audio)
	args = append(args, codecArgs(output)...)
	return a.run(ctx, "apply filter chain", args)
}

func (a *Adapter) ProbeDuration(ctx context.Context, input string) (float64, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, &ports.ProcessingError{Op: "probe duration", Output: string(b), Err: err}
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func (a *Adapter) probeDimensions(ctx context.Context, input string) (int, int, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		input,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, &ports.ProcessingError{Op: "probe dimensions", Output: string(b), Err: err}
	}
	s := strings.TrimSpace(string(b))
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("parse dimensions %q", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse width %q: %w", parts[0], err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse height %q: %w", parts[1], err)
	}
	return w, h, nil
}

func (a *Adapter) run(ctx context.Context, op string, args []string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return &ports.ProcessingError{Op: op, Output: string(b), Err: err}
	}
	return nil
}

func codecArgs(output string) []string {
	return []string{
		"-c:v", videoCodec,
		"-preset", videoPreset,
		"-crf", videoCRF,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		output,
	}
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
