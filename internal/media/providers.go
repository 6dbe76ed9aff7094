// Package media implements the download and transcription orchestration
// over the media store, registry and external providers.
package media

import (
	"context"

	"github.com/audio-scribe/backend/internal/job"
	"github.com/audio-scribe/backend/internal/transcript"
	"github.com/audio-scribe/backend/internal/whisper"
	"github.com/audio-scribe/backend/internal/ytdlp"
)

// DownloadProvider fetches audio for a source URL into a directory.
// *ytdlp.Client implements it.
type DownloadProvider interface {
	Download(ctx context.Context, req ytdlp.Request) (*ytdlp.Result, error)
}

// TranscriptionProvider turns an audio file into a raw transcript.
// *whisper.Service and every whisper engine implement it.
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, req whisper.TranscribeRequest) (*transcript.Transcript, error)
}

// DurationProber measures an audio file. *ffmpeg.Prober implements it.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Scheduler hands out task handles. *job.JobQueue implements it.
type Scheduler interface {
	EnqueueOnce(jobType job.JobType, key string, params interface{}) (*job.Job, bool, error)
}
