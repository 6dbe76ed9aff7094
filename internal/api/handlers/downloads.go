package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/audio-scribe/backend/internal/registry"
	"github.com/audio-scribe/backend/internal/storage"
)

type DownloadsHandler struct {
	registry registry.Registry
}

func NewDownloadsHandler(reg registry.Registry) *DownloadsHandler {
	return &DownloadsHandler{registry: reg}
}

// List returns every registered download, sorted by video id
func (h *DownloadsHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.List(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	jsonResponse(w, records, http.StatusOK)
}

// Get returns a single registry entry
func (h *DownloadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "video_id")
	if err := storage.ValidateID(id); err != nil {
		writeAppError(w, err)
		return
	}

	rec, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	jsonResponse(w, rec, http.StatusOK)
}
