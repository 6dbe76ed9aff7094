package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/config"
	"github.com/audio-scribe/backend/internal/db"
	"github.com/audio-scribe/backend/internal/execx"
	"github.com/audio-scribe/backend/internal/ffmpeg"
	"github.com/audio-scribe/backend/internal/job"
	"github.com/audio-scribe/backend/internal/keylock"
	"github.com/audio-scribe/backend/internal/media"
	"github.com/audio-scribe/backend/internal/registry"
	"github.com/audio-scribe/backend/internal/storage"
	"github.com/audio-scribe/backend/internal/whisper"
	"github.com/audio-scribe/backend/internal/ytdlp"
)

// app wires the components shared by every command.
type app struct {
	cfg         *config.Config
	logger      *logrus.Logger
	database    *db.Database // nil unless jobs are enabled
	jobs        *job.JobQueue
	store       *storage.MediaStore
	registry    *registry.JSONFile
	downloader  *media.Downloader
	transcriber *media.Transcriber
	editor      *media.Editor
	engines     *whisper.Service
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// newApp builds the components. withJobs opens the job database and
// registers the transcription job handler.
func newApp(withJobs bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := config.NewLogger(cfg)

	if err := os.MkdirAll(cfg.AudioPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	runner := execx.NewCmdRunner()
	store := storage.NewMediaStore(cfg.AudioPath, cfg.AudioFormat)
	reg := registry.NewJSONFile(cfg.RegistryPath)
	locks := keylock.New()
	engines := newEngines(cfg, runner, logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: reg,
		engines:  engines,
	}

	a.downloader = media.NewDownloader(store, reg, ytdlp.NewClient(cfg.YtDlpBin, runner, logger), locks, logger).
		WithProber(ffmpeg.NewProber(cfg.FFprobeBin, runner)).
		WithQuality(cfg.AudioQuality)
	a.editor = media.NewEditor(store, locks)

	var scheduler media.Scheduler
	if withJobs {
		database, err := db.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.database = database
		a.jobs = job.NewJobQueue(database.DB(), logger)
		scheduler = a.jobs
	}

	a.transcriber = media.NewTranscriber(store, engines, scheduler, locks, cfg.DefaultModel, logger)
	if a.jobs != nil {
		a.jobs.RegisterHandler(job.JobTranscribe, a.transcriber.HandleJob)
	}

	return a, nil
}

// newEngines registers every engine the config can run; TranscribeEngine picks the default.
func newEngines(cfg *config.Config, runner execx.CmdRunner, logger logrus.FieldLogger) *whisper.Service {
	svc := whisper.NewService(cfg.TranscribeEngine, logger)
	encoder := ffmpeg.NewEncoder(cfg.FFmpegBin, runner)

	svc.RegisterEngine(whisper.NewCLIEngine(cfg.WhisperBin, runner, ""))
	if cfg.WhisperServerURL != "" {
		svc.RegisterEngine(whisper.NewWhisperCppClient(cfg.WhisperServerURL, encoder, logger))
	}
	if cfg.OpenAIAPIKey != "" {
		svc.RegisterEngine(whisper.NewOpenAIWhisperClient(cfg.OpenAIAPIKey, encoder, logger))
	}
	return svc
}

func (a *app) Close() {
	if a.jobs != nil {
		a.jobs.Stop()
	}
	if a.database != nil {
		a.database.Close()
	}
}
