package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/promptcut/promptcut/internal/plan"
	"github.com/promptcut/promptcut/internal/types"
)

// ErrVideoNotFound is returned by MetadataStore when a video id has no
// record.
var ErrVideoNotFound = errors.New("video not found")

// ProcessingError is a media-processor invocation that exited non-zero. It
// carries the processor's combined output verbatim so the caller can see the
// real diagnostic.
type ProcessingError struct {
	Op     string
	Output string
	Err    error
}

func (e *ProcessingError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("media processor: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("media processor: %s: %v\n%s", e.Op, e.Err, out)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// MediaProcessor abstracts the external tool that does the actual
// decode/filter/encode work. Every call is synchronous and returns a
// *ProcessingError on a non-zero exit.
type MediaProcessor interface {
	// CutSegment writes the [start, end] interval of input to output with
	// timestamps rebased to zero and the fixed codec profile applied.
	CutSegment(ctx context.Context, input string, start, end float64, output string) error
	// ConcatManifest joins the segments listed in a concat manifest file.
	ConcatManifest(ctx context.Context, manifest, output string) error
	// ConcatFilter joins segment files through an explicit filter graph.
	// Fallback path for inputs the manifest-based concat rejects.
	ConcatFilter(ctx context.Context, inputs []string, output string) error
	// ApplyFilterChain renders input to output with the effect actions
	// applied as one ordered filter graph.
	ApplyFilterChain(ctx context.Context, input string, actions []plan.Action, output string) error
	// ProbeDuration returns the media duration in seconds.
	ProbeDuration(ctx context.Context, input string) (float64, error)
}

// VideoSearcher is the semantic video search/indexing service.
type VideoSearcher interface {
	Search(ctx context.Context, query string) ([]types.Clip, error)
	// Upload indexes a local video and blocks until indexing completes,
	// returning the service's video id.
	Upload(ctx context.Context, path string) (string, error)
}

// PlanGenerator is the language model that turns a user's prose request into
// search queries and an edit plan. GeneratePlan returns raw text: the model
// is an untrusted boundary and its output is parsed defensively by the
// caller.
type PlanGenerator interface {
	Analyze(ctx context.Context, prompt string) (types.Analysis, error)
	GeneratePlan(ctx context.Context, prompt string, clips []types.Clip) (string, error)
}

// MetadataStore resolves indexed video ids back to original files.
type MetadataStore interface {
	Save(ctx context.Context, videoID, originalPath string) error
	ResolvePath(ctx context.Context, videoID string) (string, error)
	List(ctx context.Context) ([]types.VideoRecord, error)
}
