package whisper

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/transcript"
)

// Service routes transcription requests to the configured engine
type Service struct {
	engines       map[string]Transcriber
	defaultEngine string
	logger        logrus.FieldLogger
}

// NewService creates a whisper service; defaultEngine names the engine used by Transcribe.
func NewService(defaultEngine string, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		engines:       make(map[string]Transcriber),
		defaultEngine: defaultEngine,
		logger:        logger,
	}
}

// RegisterEngine adds an engine
func (s *Service) RegisterEngine(engine Transcriber) {
	s.engines[engine.Name()] = engine
	s.logger.WithField("engine", engine.Name()).Info("[whisper] registered engine")
}

// Engine returns a registered engine by name
func (s *Service) Engine(name string) (Transcriber, bool) {
	e, ok := s.engines[name]
	return e, ok
}

// DefaultEngine returns the name of the engine Transcribe uses
func (s *Service) DefaultEngine() string {
	return s.defaultEngine
}

// Transcribe runs req on the default engine
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (*transcript.Transcript, error) {
	engine, ok := s.engines[s.defaultEngine]
	if !ok {
		return nil, fmt.Errorf("unknown whisper engine: %s (available: %v)", s.defaultEngine, s.EngineNames())
	}

	s.logger.WithFields(logrus.Fields{
		"engine": engine.Name(),
		"model":  req.Model,
		"audio":  req.AudioPath,
	}).Info("[whisper] starting transcription")

	return engine.Transcribe(ctx, req)
}

// EngineNames lists registered engines, sorted
func (s *Service) EngineNames() []string {
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
