package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audio-scribe/backend/internal/errors"
	"github.com/audio-scribe/backend/internal/sanitize"
	"github.com/audio-scribe/backend/internal/transcript"
)

var audioContentTypes = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"opus": "audio/ogg",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
}

// MediaStore addresses downloaded audio and transcription artifacts on disk.
// Layout, relative to root:
//
//	<id>/<id>.<ext>                          audio
//	<id>/<id>_<model>_transcription.json     per-model transcription
//	<id>/<id>_transcription.json             manual edit without a model
//
// Presence of a file at its path is the only cache signal.
type MediaStore struct {
	root     string
	audioExt string
}

func NewMediaStore(root, audioExt string) *MediaStore {
	return &MediaStore{
		root:     root,
		audioExt: strings.TrimPrefix(audioExt, "."),
	}
}

func (s *MediaStore) Root() string {
	return s.root
}

func (s *MediaStore) AudioExt() string {
	return s.audioExt
}

// AudioContentType is the MIME type served for stored audio.
func (s *MediaStore) AudioContentType() string {
	if ct, ok := audioContentTypes[strings.ToLower(s.audioExt)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidateID rejects identities that would escape the per-video directory.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return errors.New(errors.CodeInvalidArg, fmt.Sprintf("invalid video id %q", id))
	}
	return nil
}

func (s *MediaStore) AudioDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *MediaStore) AudioPath(id string) string {
	return filepath.Join(s.AudioDir(id), id+"."+s.audioExt)
}

// TranscriptionPath is the artifact path for the (id, model) composite key.
func (s *MediaStore) TranscriptionPath(id, model string) string {
	return filepath.Join(s.AudioDir(id), fmt.Sprintf("%s_%s_transcription.json", id, sanitize.ModelName(model)))
}

// EditPath is the unqualified per-video manual edit path.
func (s *MediaStore) EditPath(id string) string {
	return filepath.Join(s.AudioDir(id), id+"_transcription.json")
}

func (s *MediaStore) HasAudio(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	return fileExists(s.AudioPath(id))
}

func (s *MediaStore) HasTranscription(id, model string) bool {
	if ValidateID(id) != nil {
		return false
	}
	return fileExists(s.TranscriptionPath(id, model))
}

// EnsureAudioDir creates the per-video directory.
func (s *MediaStore) EnsureAudioDir(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	dir := s.AudioDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, errors.CodePersistFailed, "failed to create audio directory")
	}
	return dir, nil
}

func (s *MediaStore) ReadTranscription(id, model string) (*transcript.Transcript, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var t transcript.Transcript
	if err := readJSON(s.TranscriptionPath(id, model), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MediaStore) WriteTranscription(id, model string, t *transcript.Transcript) error {
	if _, err := s.EnsureAudioDir(id); err != nil {
		return err
	}
	return writeJSON(s.TranscriptionPath(id, model), t)
}

func (s *MediaStore) ReadEdit(id string) (*transcript.Edit, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var e transcript.Edit
	if err := readJSON(s.EditPath(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MediaStore) WriteEdit(id string, segments []transcript.Segment) error {
	if _, err := s.EnsureAudioDir(id); err != nil {
		return err
	}
	if segments == nil {
		segments = []transcript.Segment{}
	}
	return writeJSON(s.EditPath(id), transcript.Edit{Segments: segments})
}

// ListAudio returns the identities that have an audio file, in directory order.
func (s *MediaStore) ListAudio() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, entry := range entries {
		// Skip hidden files
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if s.HasAudio(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.New(errors.CodeNotFound, "artifact not found: "+filepath.Base(path))
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to read "+filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to parse "+filepath.Base(path))
	}
	return nil
}

// writeJSON replaces path via a temp file and rename so concurrent readers
// never see a partial artifact.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.Wrap(err, errors.CodePersistFailed, "failed to encode "+filepath.Base(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, errors.CodePersistFailed, "failed to write "+filepath.Base(path))
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp.Name(), 0644)
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), path)
	}
	if werr != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(werr, errors.CodePersistFailed, "failed to write "+filepath.Base(path))
	}
	return nil
}
