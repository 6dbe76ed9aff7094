package media

import (
	"context"

	"github.com/audio-scribe/backend/internal/keylock"
	"github.com/audio-scribe/backend/internal/storage"
	"github.com/audio-scribe/backend/internal/transcript"
)

// Editor writes manual transcription corrections.
type Editor struct {
	store *storage.MediaStore
	locks *keylock.Table
}

// NewEditor creates an editor. Share locks with the Transcriber so edits and
// jobs for the same (video, model) do not interleave.
func NewEditor(store *storage.MediaStore, locks *keylock.Table) *Editor {
	if locks == nil {
		locks = keylock.New()
	}
	return &Editor{store: store, locks: locks}
}

// OverwriteTranscription replaces a transcription with segments and returns
// the path written. Without a model the per-video edit file is written; with
// a model the (video, model) artifact is replaced so later reads see the edit.
func (e *Editor) OverwriteTranscription(ctx context.Context, id, model string, segments []transcript.Segment) (string, error) {
	if err := storage.ValidateID(id); err != nil {
		return "", err
	}
	if segments == nil {
		segments = []transcript.Segment{}
	}

	if model == "" {
		if err := e.store.WriteEdit(id, segments); err != nil {
			return "", err
		}
		return e.store.EditPath(id), nil
	}

	unlock := e.locks.Lock("transcription:" + JobKey(id, model))
	defer unlock()

	t := &transcript.Transcript{
		Text:     transcript.JoinText(segments),
		Segments: segments,
	}
	if err := e.store.WriteTranscription(id, model, t); err != nil {
		return "", err
	}
	return e.store.TranscriptionPath(id, model), nil
}
