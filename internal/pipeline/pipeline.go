// Package pipeline wires the adapters into the application flows and owns
// run-scoped output directory layout.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/promptcut/promptcut/internal/ports"
	"github.com/promptcut/promptcut/internal/ports/adapters/ffmpeg"
	"github.com/promptcut/promptcut/internal/ports/adapters/gemini"
	"github.com/promptcut/promptcut/internal/ports/adapters/twelvelabs"
	"github.com/promptcut/promptcut/internal/render"
	"github.com/promptcut/promptcut/internal/store"
	"github.com/promptcut/promptcut/internal/types"
	"github.com/promptcut/promptcut/internal/usecase"
)

type Config struct {
	Prompt     string
	Uploads    []string
	OutDir     string
	OutputName string

	// TempDir is where per-render workspaces live. Empty means the system
	// temp dir.
	TempDir string

	FFmpegPath  string
	FFprobePath string

	TwelveLabsAPIKey       string
	TwelveLabsIndexID      string
	TwelveLabsBaseURL      string
	TwelveLabsAllowedHosts []string

	GeminiAPIKey string
	GeminiModel  string

	DBPath string

	// Confirm gates rendering on the generated plan. Nil proceeds without
	// asking.
	Confirm func(planJSON string, warnings []string) (bool, error)

	Log zerolog.Logger
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Prompt) == "" {
		return errors.New("prompt is empty")
	}
	for _, path := range c.Uploads {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("stat upload: %w", err)
		}
	}
	if c.TwelveLabsAPIKey == "" {
		return errors.New("twelve labs api key is required")
	}
	if c.TwelveLabsIndexID == "" {
		return errors.New("twelve labs index id is required")
	}
	if c.GeminiAPIKey == "" {
		return errors.New("gemini api key is required")
	}
	return twelvelabs.ValidateBaseURL(c.TwelveLabsBaseURL, c.TwelveLabsAllowedHosts)
}

// Run executes the full prompt-to-render flow. The output lands in a
// run-scoped directory under cfg.OutDir.
func Run(ctx context.Context, cfg Config) (usecase.EditResult, error) {
	llm, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Log)
	if err != nil {
		return usecase.EditResult{}, err
	}
	st, err := store.Open(dbPath(cfg.DBPath), cfg.Log)
	if err != nil {
		return usecase.EditResult{}, err
	}
	defer st.Close()

	proc := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	uc := usecase.New(usecase.Deps{
		Search:   twelvelabs.New(cfg.TwelveLabsAPIKey, cfg.TwelveLabsIndexID, cfg.TwelveLabsBaseURL),
		LLM:      llm,
		Store:    st,
		Renderer: render.New(proc, render.Options{TempRoot: cfg.TempDir, Log: cfg.Log}),
		Confirm:  cfg.Confirm,
		Log:      cfg.Log,
	})

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.Prompt, time.Now().UTC())
	cfg.Log.Info().Str("dir", runOutDir).Msg("output run dir")

	return uc.Edit(ctx, usecase.EditInput{
		Prompt:     cfg.Prompt,
		Uploads:    cfg.Uploads,
		OutDir:     runOutDir,
		OutputName: cfg.OutputName,
	})
}

type RenderConfig struct {
	PlanPath   string
	InputPath  string
	OutputPath string

	TempDir     string
	FFmpegPath  string
	FFprobePath string

	Log zerolog.Logger
}

func (c RenderConfig) Validate() error {
	if c.PlanPath == "" {
		return errors.New("plan file is required")
	}
	if _, err := os.Stat(c.PlanPath); err != nil {
		return fmt.Errorf("stat plan: %w", err)
	}
	if c.InputPath == "" {
		return errors.New("input is required")
	}
	if _, err := os.Stat(c.InputPath); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	return nil
}

// RunRender renders a plan file against one input, skipping search and the
// model.
func RunRender(ctx context.Context, cfg RenderConfig) (usecase.EditResult, error) {
	planText, err := os.ReadFile(cfg.PlanPath)
	if err != nil {
		return usecase.EditResult{}, fmt.Errorf("read plan: %w", err)
	}

	proc := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	uc := usecase.New(usecase.Deps{
		Renderer: render.New(proc, render.Options{TempRoot: cfg.TempDir, Log: cfg.Log}),
		Log:      cfg.Log,
	})
	return uc.RenderPlan(ctx, string(planText), cfg.InputPath, cfg.OutputPath)
}

type UploadConfig struct {
	Paths []string

	TwelveLabsAPIKey       string
	TwelveLabsIndexID      string
	TwelveLabsBaseURL      string
	TwelveLabsAllowedHosts []string

	DBPath string

	Log zerolog.Logger
}

func (c UploadConfig) Validate() error {
	if len(c.Paths) == 0 {
		return errors.New("at least one video is required")
	}
	for _, path := range c.Paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("stat video: %w", err)
		}
	}
	if c.TwelveLabsAPIKey == "" {
		return errors.New("twelve labs api key is required")
	}
	if c.TwelveLabsIndexID == "" {
		return errors.New("twelve labs index id is required")
	}
	return twelvelabs.ValidateBaseURL(c.TwelveLabsBaseURL, c.TwelveLabsAllowedHosts)
}

// RunUpload indexes local videos and registers their original paths.
func RunUpload(ctx context.Context, cfg UploadConfig) ([]string, error) {
	st, err := store.Open(dbPath(cfg.DBPath), cfg.Log)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	uc := usecase.New(usecase.Deps{
		Search: twelvelabs.New(cfg.TwelveLabsAPIKey, cfg.TwelveLabsIndexID, cfg.TwelveLabsBaseURL),
		Store:  st,
		Log:    cfg.Log,
	})

	ids := make([]string, 0, len(cfg.Paths))
	for _, path := range cfg.Paths {
		id, err := uc.UploadVideo(ctx, path)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RunVideos lists every registered video.
func RunVideos(ctx context.Context, dbFile string, log zerolog.Logger) ([]types.VideoRecord, error) {
	st, err := store.Open(dbPath(dbFile), log)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return usecase.New(usecase.Deps{Store: st, Log: log}).Videos(ctx)
}

// dbPath resolves the metadata database location, defaulting to
// ~/.promptcut/promptcut.db.
func dbPath(configured string) string {
	if configured != "" {
		return configured
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".promptcut", "promptcut.db")
	}
	return filepath.Join(home, ".promptcut", "promptcut.db")
}

func buildRunOutDir(outRoot, prompt string, now time.Time) string {
	name := normalizePathSegment(prompt)
	if len(name) > 40 {
		name = strings.Trim(name[:40], "-")
	}
	if name == "" {
		name = "edit"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", prompt, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.MediaProcessor = (*ffmpeg.Adapter)(nil)
var _ ports.VideoSearcher = (*twelvelabs.Adapter)(nil)
var _ ports.PlanGenerator = (*gemini.Adapter)(nil)
var _ ports.MetadataStore = (*store.Store)(nil)
