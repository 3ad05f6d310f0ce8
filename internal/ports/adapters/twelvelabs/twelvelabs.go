// Package twelvelabs adapts the Twelve Labs semantic video search API to the
// VideoSearcher port: clip search over an index, and upload/indexing tasks
// polled to completion.
package twelvelabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptcut/promptcut/internal/types"
)

const (
	defaultBaseURL = "https://api.twelvelabs.io/v1.3"

	// Clips scoring at or above this are considered strong matches; when
	// any hit clears it, weaker hits are dropped from the result set.
	highScoreThreshold = 0.7

	pageLimit       = 5
	defaultInterval = 5 * time.Second
)

type Adapter struct {
	apiKey  string
	indexID string
	baseURL string
	client  *http.Client

	// pollInterval is how often indexing tasks are re-checked.
	pollInterval time.Duration
}

func New(apiKey, indexID, baseURL string) *Adapter {
	return &Adapter{
		apiKey:       apiKey,
		indexID:      indexID,
		baseURL:      normalizeBaseURL(baseURL),
		client:       &http.Client{Timeout: 5 * time.Minute},
		pollInterval: defaultInterval,
	}
}

type searchHit struct {
	Score        float64     `json:"score"`
	Start        float64     `json:"start"`
	End          float64     `json:"end"`
	VideoID      string      `json:"video_id"`
	ThumbnailURL string      `json:"thumbnail_url"`
	Clips        []searchHit `json:"clips,omitempty"`
}

func (a *Adapter) Search(ctx context.Context, query string) ([]types.Clip, error) {
	payload := map[string]any{
		"index_id":       a.indexID,
		"query_text":     strings.ToLower(strings.TrimSpace(query)),
		"search_options": []string{"visual", "audio"},
		"group_by":       "clip",
		"operator":       "or",
		"page_limit":     pageLimit,
		"sort_option":    "score",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twelvelabs search status %d: %s", resp.StatusCode, truncate(string(rb), 400))
	}

	var raw struct {
		Data []searchHit `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return filterClips(flatten(raw.Data)), nil
}

// flatten unwraps group-by-video entries into a flat clip list.
func flatten(hits []searchHit) []types.Clip {
	var out []types.Clip
	for _, h := range hits {
		if len(h.Clips) > 0 {
			for _, c := range h.Clips {
				out = append(out, toClip(c))
			}
			continue
		}
		out = append(out, toClip(h))
	}
	return out
}

// filterClips keeps only strong matches when any clip clears the high-score
// threshold; otherwise everything is returned.
func filterClips(clips []types.Clip) []types.Clip {
	highest := 0.0
	for _, c := range clips {
		if c.Score > highest {
			highest = c.Score
		}
	}
	if highest < highScoreThreshold {
		return clips
	}
	kept := clips[:0]
	for _, c := range clips {
		if c.Score >= highScoreThreshold {
			kept = append(kept, c)
		}
	}
	return kept
}

func toClip(h searchHit) types.Clip {
	return types.Clip{
		VideoID:      h.VideoID,
		StartTime:    h.Start,
		EndTime:      h.End,
		Score:        h.Score,
		ThumbnailURL: h.ThumbnailURL,
	}
}

// Upload creates an indexing task for a local video and blocks until the
// task reaches a terminal state.
func (a *Adapter) Upload(ctx context.Context, path string) (string, error) {
	taskID, err := a.createTask(ctx, path)
	if err != nil {
		return "", err
	}
	return a.waitForTask(ctx, taskID)
}

func (a *Adapter) createTask(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	// The file is streamed through a pipe rather than buffered; videos are
	// routinely larger than memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeTaskForm(mw, a.indexID, path, f)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/tasks", pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("twelvelabs create task status %d: %s", resp.StatusCode, truncate(string(rb), 400))
	}

	var out struct {
		ID string `json:"_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode task response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("twelvelabs create task: empty task id")
	}
	return out.ID, nil
}

func writeTaskForm(mw *multipart.Writer, indexID, path string, f io.Reader) error {
	if err := mw.WriteField("index_id", indexID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("video_file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read video: %w", err)
	}
	return nil
}

func (a *Adapter) waitForTask(ctx context.Context, taskID string) (string, error) {
	for {
		status, videoID, err := a.taskStatus(ctx, taskID)
		if err != nil {
			return "", err
		}
		switch status {
		case "ready":
			return videoID, nil
		case "failed", "error":
			return "", fmt.Errorf("twelvelabs indexing task %s ended with status %q", taskID, status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
}

func (a *Adapter) taskStatus(ctx context.Context, taskID string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("twelvelabs task status %d: %s", resp.StatusCode, truncate(string(rb), 400))
	}

	var out struct {
		Status  string `json:"status"`
		VideoID string `json:"video_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode task status: %w", err)
	}
	return out.Status, out.VideoID, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
