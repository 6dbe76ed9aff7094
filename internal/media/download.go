package media

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/errors"
	"github.com/audio-scribe/backend/internal/keylock"
	"github.com/audio-scribe/backend/internal/registry"
	"github.com/audio-scribe/backend/internal/storage"
	"github.com/audio-scribe/backend/internal/youtube"
	"github.com/audio-scribe/backend/internal/ytdlp"
)

// DownloadResult is the outcome of EnsureAudio
type DownloadResult struct {
	Record    *registry.MediaRecord
	AudioPath string
	Cached    bool // audio was already on disk
}

// Downloader makes sure the audio for a video is on disk and registered.
type Downloader struct {
	store    *storage.MediaStore
	registry registry.Registry
	provider DownloadProvider
	prober   DurationProber
	locks    *keylock.Table
	quality  string
	logger   logrus.FieldLogger
}

func NewDownloader(store *storage.MediaStore, reg registry.Registry, provider DownloadProvider, locks *keylock.Table, logger logrus.FieldLogger) *Downloader {
	if locks == nil {
		locks = keylock.New()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Downloader{
		store:    store,
		registry: reg,
		provider: provider,
		locks:    locks,
		logger:   logger,
	}
}

// WithProber sets the prober used when the provider reports no duration.
func (d *Downloader) WithProber(p DurationProber) *Downloader {
	d.prober = p
	return d
}

// WithQuality sets the audio quality passed to the provider.
func (d *Downloader) WithQuality(q string) *Downloader {
	d.quality = q
	return d
}

// EnsureAudio resolves rawURL to a video id and returns its record, downloading
// the audio first when the store has none.
func (d *Downloader) EnsureAudio(ctx context.Context, rawURL string) (*DownloadResult, error) {
	id, ok := youtube.ExtractVideoID(rawURL)
	if !ok {
		return nil, errors.New(errors.CodeInvalidSource, "invalid YouTube URL")
	}
	if err := storage.ValidateID(id); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidSource, "invalid YouTube URL")
	}

	unlock := d.locks.Lock("audio:" + id)
	defer unlock()

	log := d.logger.WithField("video_id", id)
	audioPath := d.store.AudioPath(id)

	if d.store.HasAudio(id) {
		rec, err := d.registry.Get(ctx, id)
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.New(errors.CodeRegistryInconsistent, "audio exists but the registry has no entry for "+id)
		}
		if err != nil {
			return nil, err
		}
		log.Debug("[media] audio cache hit")
		return &DownloadResult{Record: rec, AudioPath: audioPath, Cached: true}, nil
	}

	dir, err := d.store.EnsureAudioDir(id)
	if err != nil {
		return nil, err
	}

	log.WithField("url", rawURL).Info("[media] downloading audio")
	res, err := d.provider.Download(ctx, ytdlp.Request{
		URL:       rawURL,
		OutputDir: dir,
		Format:    d.store.AudioExt(),
		Quality:   d.quality,
	})
	if err != nil {
		if errors.Is(err, errors.CodeDownloadFailed) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeDownloadFailed, "audio download failed")
	}

	if res.FilePath != audioPath {
		if err := os.Rename(res.FilePath, audioPath); err != nil {
			return nil, errors.Wrap(err, errors.CodePersistFailed, "failed to move downloaded audio")
		}
	}

	duration := res.Duration
	if duration <= 0 && d.prober != nil {
		if probed, err := d.prober.Duration(ctx, audioPath); err == nil {
			duration = probed
		} else {
			log.WithError(err).Warn("[media] could not probe audio duration")
		}
	}

	rec := &registry.MediaRecord{
		ID:        id,
		Title:     res.Title,
		URL:       rawURL,
		Duration:  duration,
		Thumbnail: res.Thumbnail,
	}
	if err := d.registry.Put(ctx, rec); err != nil {
		if errors.Is(err, errors.CodePersistFailed) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodePersistFailed, "failed to register download")
	}

	log.WithField("title", rec.Title).Info("[media] audio downloaded")
	return &DownloadResult{Record: rec, AudioPath: audioPath}, nil
}
