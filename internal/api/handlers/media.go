package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/media"
	"github.com/audio-scribe/backend/internal/registry"
	"github.com/audio-scribe/backend/internal/sanitize"
	"github.com/audio-scribe/backend/internal/storage"
	"github.com/audio-scribe/backend/internal/transcript"
)

const transcriptionPendingMessage = "Transcription started, please check back later for results."

type MediaHandler struct {
	downloader  *media.Downloader
	transcriber *media.Transcriber
	editor      *media.Editor
	store       *storage.MediaStore
	registry    registry.Registry
	logger      logrus.FieldLogger
}

func NewMediaHandler(downloader *media.Downloader, transcriber *media.Transcriber, editor *media.Editor,
	store *storage.MediaStore, reg registry.Registry, logger logrus.FieldLogger) *MediaHandler {
	return &MediaHandler{
		downloader:  downloader,
		transcriber: transcriber,
		editor:      editor,
		store:       store,
		registry:    reg,
		logger:      logger,
	}
}

type downloadRequest struct {
	URL string `json:"url" validate:"required"`
}

type transcribeRequest struct {
	VideoID string `json:"video_id" validate:"required"`
	Model   string `json:"model"`
}

type updateTranscriptionRequest struct {
	VideoID  string               `json:"video_id" validate:"required"`
	Segments []transcript.Segment `json:"segments" validate:"required"`
	Model    string               `json:"model"`
}

// Download fetches the audio for a video URL, or returns the cached copy.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.downloader.EnsureAudio(r.Context(), req.URL)
	if err != nil {
		h.logger.WithError(err).WithField("url", req.URL).Error("[api] download failed")
		writeAppError(w, err)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"message":  "Audio downloaded",
		"path":     res.AudioPath,
		"title":    res.Record.Title,
		"video_id": res.Record.ID,
	}, http.StatusOK)
}

// Play streams the stored audio for a video.
func (h *MediaHandler) Play(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "video_id")
	if err := storage.ValidateID(id); err != nil {
		writeAppError(w, err)
		return
	}
	if !h.store.HasAudio(id) {
		jsonError(w, "Audio file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", h.store.AudioContentType())
	if rec, err := h.registry.Get(r.Context(), id); err == nil && rec.Title != "" {
		if name := sanitize.Title(rec.Title); name != "" {
			w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.%s"`, name, h.store.AudioExt()))
		}
	}
	http.ServeFile(w, r, h.store.AudioPath(id))
}

// Transcribe returns the cached transcription or schedules one.
func (h *MediaHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.transcriber.EnsureTranscription(r.Context(), req.VideoID, req.Model)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if !out.Pending() {
		jsonResponse(w, out.Transcript, http.StatusOK)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"message": transcriptionPendingMessage,
		"job_id":  out.Job.ID,
		"status":  out.Job.Status,
	}, http.StatusOK)
}

// UpdateTranscription overwrites a transcription with client-edited segments.
func (h *MediaHandler) UpdateTranscription(w http.ResponseWriter, r *http.Request) {
	var req updateTranscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	path, err := h.editor.OverwriteTranscription(r.Context(), req.VideoID, req.Model, req.Segments)
	if err != nil {
		h.logger.WithError(err).WithField("video_id", req.VideoID).Error("[api] transcription update failed")
		writeAppError(w, err)
		return
	}

	jsonResponse(w, map[string]string{
		"message": "Transcription updated successfully.",
		"path":    path,
	}, http.StatusOK)
}
