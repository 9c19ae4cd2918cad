package database

import "time"

// Asset lifecycle states. Transitions: uploaded -> processing -> completed or
// failed. Reprocessing moves failed or completed back through processing.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Asset is one uploaded video and its processing state.
type Asset struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	OriginalFilename string     `json:"original_filename"`
	OriginalPath     string     `json:"-"`
	Status           string     `json:"status"`
	DurationSeconds  *int       `json:"duration_seconds,omitempty"`
	HLSPath          string     `json:"hls_path,omitempty"`
	ThumbnailPath    string     `json:"thumbnail_path,omitempty"`
	Tracks           []string   `json:"tracks,omitempty"`
	FileSize         int64      `json:"file_size"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// Terminal reports whether the asset is in a terminal state.
func (a *Asset) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}
