package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobType represents the kind of job
type JobType string

const (
	JobTranscribe JobType = "transcribe"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Active reports whether the job may still produce a result.
func (s JobStatus) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Job is a handle on one unit of background work
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Key         string          `json:"key"` // deduplication key, e.g. "<video_id>/<model>"
	Status      JobStatus       `json:"status"`
	Params      json.RawMessage `json:"params"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TranscribeParams are parameters for a transcription job
type TranscribeParams struct {
	VideoID string `json:"video_id"`
	Model   string `json:"model"`
}

// TranscribeResult is the output of a successful transcription
type TranscribeResult struct {
	OutputPath string  `json:"output_path"` // artifact written by the job
	Segments   int     `json:"segments"`
	Duration   float64 `json:"duration"` // processing time in seconds
}

// JobHandler processes a job and returns a JSON-serializable result.
type JobHandler func(ctx context.Context, job *Job) (interface{}, error)
