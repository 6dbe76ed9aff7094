package api

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/api/handlers"
	"github.com/audio-scribe/backend/internal/api/middleware"
	"github.com/audio-scribe/backend/internal/config"
	"github.com/audio-scribe/backend/internal/job"
	"github.com/audio-scribe/backend/internal/media"
	"github.com/audio-scribe/backend/internal/registry"
	"github.com/audio-scribe/backend/internal/storage"
)

// Services are the components the HTTP layer serves.
type Services struct {
	Downloader  *media.Downloader
	Transcriber *media.Transcriber
	Editor      *media.Editor
	Store       *storage.MediaStore
	Registry    registry.Registry
	Jobs        *job.JobQueue
}

// NewRouter builds the HTTP handler. ctx bounds background middleware state.
func NewRouter(ctx context.Context, cfg *config.Config, svc *Services, logger logrus.FieldLogger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(middleware.CORSOptions(cfg.CORSOrigins)))

	// Handlers
	mediaHandler := handlers.NewMediaHandler(svc.Downloader, svc.Transcriber, svc.Editor, svc.Store, svc.Registry, logger)
	downloadsHandler := handlers.NewDownloadsHandler(svc.Registry)
	jobHandler := handlers.NewJobHandler(svc.Jobs)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(ctx, cfg.RateLimit, time.Minute)
	}

	editLimit := cfg.MaxEditBodyBytes
	if editLimit <= 0 {
		editLimit = config.DefaultMaxEditBodyBytes
	}

	// Media routes are served at the root for existing clients and under /api.
	mountMedia := func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
			if limiter != nil {
				r.Use(limiter.Handler)
			}
			r.Post("/download", mediaHandler.Download)
			r.Post("/transcribe", mediaHandler.Transcribe)
		})
		r.Get("/play/{video_id}", mediaHandler.Play)
		// Edits carry the whole word-level transcript.
		r.With(middleware.MaxBodySize(editLimit)).Post("/update-transcription", mediaHandler.UpdateTranscription)
	}

	mountMedia(r)

	r.Route("/api", func(r chi.Router) {
		mountMedia(r)

		r.Get("/health", handlers.Health)

		// Registry
		r.Get("/downloads", downloadsHandler.List)
		r.Get("/downloads/{video_id}", downloadsHandler.Get)

		// Jobs
		r.Get("/jobs", jobHandler.ListJobs)
		r.Get("/jobs/{id}", jobHandler.GetJob)
	})

	return r
}
