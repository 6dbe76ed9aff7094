package media

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/errors"
	"github.com/audio-scribe/backend/internal/job"
	"github.com/audio-scribe/backend/internal/keylock"
	"github.com/audio-scribe/backend/internal/sanitize"
	"github.com/audio-scribe/backend/internal/storage"
	"github.com/audio-scribe/backend/internal/transcript"
	"github.com/audio-scribe/backend/internal/whisper"
)

// Outcome is either a cached transcript or a handle on the job producing it.
type Outcome struct {
	Transcript *transcript.Transcript
	Job        *job.Job
}

// Pending reports whether the transcript is still being produced.
func (o *Outcome) Pending() bool {
	return o.Transcript == nil
}

// Transcriber serves transcription artifacts from the store and schedules
// background jobs on a miss.
type Transcriber struct {
	store        *storage.MediaStore
	provider     TranscriptionProvider
	scheduler    Scheduler
	locks        *keylock.Table
	defaultModel string
	logger       logrus.FieldLogger
}

func NewTranscriber(store *storage.MediaStore, provider TranscriptionProvider, scheduler Scheduler, locks *keylock.Table, defaultModel string, logger logrus.FieldLogger) *Transcriber {
	if locks == nil {
		locks = keylock.New()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Transcriber{
		store:        store,
		provider:     provider,
		scheduler:    scheduler,
		locks:        locks,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// JobKey is the deduplication key for a (video, model) transcription.
func JobKey(id, model string) string {
	return id + "/" + sanitize.ModelName(model)
}

func (t *Transcriber) model(model string) string {
	if model == "" {
		return t.defaultModel
	}
	return model
}

// EnsureTranscription returns the cached artifact for (id, model), or schedules
// a job and returns its handle. An active job for the same key is reused.
func (t *Transcriber) EnsureTranscription(ctx context.Context, id, model string) (*Outcome, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	model = t.model(model)

	if !t.store.HasAudio(id) {
		return nil, errors.New(errors.CodeAudioNotFound, "audio file not found for "+id)
	}

	if t.store.HasTranscription(id, model) {
		tr, err := t.store.ReadTranscription(id, model)
		if err != nil {
			return nil, err
		}
		return &Outcome{Transcript: tr}, nil
	}

	if t.scheduler == nil {
		return nil, errors.New(errors.CodeInternal, "no job scheduler configured")
	}
	handle, created, err := t.scheduler.EnqueueOnce(job.JobTranscribe, JobKey(id, model), job.TranscribeParams{
		VideoID: id,
		Model:   model,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to schedule transcription")
	}

	t.logger.WithFields(logrus.Fields{
		"video_id": id,
		"model":    model,
		"job_id":   handle.ID,
		"created":  created,
	}).Info("[media] transcription pending")
	return &Outcome{Job: handle}, nil
}

// Run transcribes id with model and persists the corrected artifact. It is
// the body of a transcription job and returns the cached artifact if one
// appeared since scheduling.
func (t *Transcriber) Run(ctx context.Context, id, model string) (*transcript.Transcript, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	model = t.model(model)

	unlock := t.locks.Lock("transcription:" + JobKey(id, model))
	defer unlock()

	if !t.store.HasAudio(id) {
		return nil, errors.New(errors.CodeAudioNotFound, "audio file not found for "+id)
	}
	if t.store.HasTranscription(id, model) {
		return t.store.ReadTranscription(id, model)
	}

	raw, err := t.provider.Transcribe(ctx, whisper.TranscribeRequest{
		AudioPath:      t.store.AudioPath(id),
		Model:          model,
		WordTimestamps: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("transcription with model %s failed", model))
	}

	corrected := transcript.CorrectWordTimings(raw)
	if corrected.Segments == nil {
		corrected.Segments = []transcript.Segment{}
	}
	if err := t.store.WriteTranscription(id, model, corrected); err != nil {
		return nil, err
	}
	return corrected, nil
}

// HandleJob is the job.JobHandler for transcription jobs.
func (t *Transcriber) HandleJob(ctx context.Context, j *job.Job) (interface{}, error) {
	var params job.TranscribeParams
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid transcription params: %w", err)
	}

	start := time.Now()
	tr, err := t.Run(ctx, params.VideoID, params.Model)
	if err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"video_id": params.VideoID,
			"model":    params.Model,
			"job_id":   j.ID,
		}).Error("[media] background transcription failed")
		return nil, err
	}

	return job.TranscribeResult{
		OutputPath: t.store.TranscriptionPath(params.VideoID, t.model(params.Model)),
		Segments:   len(tr.Segments),
		Duration:   time.Since(start).Seconds(),
	}, nil
}
