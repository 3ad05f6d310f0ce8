//go:build integration

package itest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	t.Fatal("could not locate go.mod")
	return ""
}

func probeDurationSeconds(t *testing.T, path string) float64 {
	t.Helper()
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ffprobe: %v\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse duration %q: %v", s, err)
	}
	return sec
}

// makeFixture renders a 10 second test video with a tone track so both the
// video and audio paths of every edit are exercised.
func makeFixture(t *testing.T, dir string) string {
	t.Helper()
	in := filepath.Join(dir, "input.mp4")
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "testsrc=size=1280x720:rate=25:duration=10",
		"-f", "lavfi",
		"-i", "sine=frequency=440:duration=10",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		in,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
	return in
}

func writePlan(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func assertDurationNear(t *testing.T, path string, want, tolerance float64) {
	t.Helper()
	got := probeDurationSeconds(t, path)
	if diff := got - want; diff < -tolerance || diff > tolerance {
		t.Fatalf("duration = %.2fs, want %.2fs (±%.2f)", got, want, tolerance)
	}
}

func assertNoStrayFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "promptcut-") {
			t.Fatalf("workspace %s left behind in %s", e.Name(), dir)
		}
	}
}
