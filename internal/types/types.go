package types

import "time"

// Clip is one semantic search hit: a time range inside an indexed video.
type Clip struct {
	VideoID      string  `json:"video_id"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Score        float64 `json:"score"`
	ThumbnailURL string  `json:"thumbnail_url"`
}

// VideoRecord maps an indexed video back to its original file on disk.
type VideoRecord struct {
	VideoID      string
	OriginalPath string
	UploadedAt   time.Time
}

// Analysis is the structured reading of a user's editing request.
type Analysis struct {
	SearchQueries  []string `json:"search_queries"`
	EditingActions []string `json:"editing_actions"`
	TargetVideos   []string `json:"target_videos"`
}
