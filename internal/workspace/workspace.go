// Package workspace owns the temporary artifacts of one render cycle: a
// scoped directory for segment files and the concat manifest, removed
// unconditionally when the cycle ends.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const manifestName = "concat_list.txt"

type Workspace struct {
	dir string
	log zerolog.Logger
}

// New allocates a uniquely named working directory under root. An empty root
// falls back to the system temp dir.
func New(root string, log zerolog.Logger) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "promptcut-"+uuid.NewString()[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir, log: log}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Path resolves a segment file name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteManifest writes the concat manifest listing the given segment files,
// one absolute path per line, and returns the manifest path.
func (w *Workspace) WriteManifest(segments []string) (string, error) {
	var b strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(w.Path(seg))
		if err != nil {
			return "", fmt.Errorf("resolve segment path: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	p := w.Path(manifestName)
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}
	return p, nil
}

// Cleanup removes the working directory and everything in it. A failed
// deletion is logged as a warning and never escalated: it must not mask the
// render's own result or error.
func (w *Workspace) Cleanup() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.log.Warn().Err(err).Str("dir", w.dir).Msg("could not remove render workspace")
	}
}
