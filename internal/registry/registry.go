// Package registry persists download metadata keyed by video identity.
package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/audio-scribe/backend/internal/errors"
)

// MediaRecord describes one downloaded video. Records are written once, when
// the download completes.
type MediaRecord struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
}

// Registry is a key-value store of MediaRecords.
type Registry interface {
	// Get returns the record for id, or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*MediaRecord, error)
	// Put stores rec under rec.ID, replacing any existing record.
	Put(ctx context.Context, rec *MediaRecord) error
	// List returns all records ordered by ID.
	List(ctx context.Context) ([]*MediaRecord, error)
}

// JSONFile keeps the registry as a single JSON object on disk. Every Put
// rewrites the whole file. Writers inside this process are serialized; writers
// in other processes are not, and the last one wins.
type JSONFile struct {
	path string
	mu   sync.Mutex
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (r *JSONFile) Path() string {
	return r.path
}

func (r *JSONFile) Get(ctx context.Context, id string) (*MediaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[id]
	if !ok || rec == nil {
		return nil, errors.New(errors.CodeNotFound, "no registry entry for "+id)
	}
	return rec, nil
}

func (r *JSONFile) Put(ctx context.Context, rec *MediaRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New(errors.CodeInvalidArg, "record id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	records[rec.ID] = rec
	return r.save(records)
}

func (r *JSONFile) List(ctx context.Context) ([]*MediaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]*MediaRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// load reads the whole file; a missing file is an empty registry.
func (r *JSONFile) load() (map[string]*MediaRecord, error) {
	records := make(map[string]*MediaRecord)

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read registry")
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to parse registry")
	}
	return records, nil
}

func (r *JSONFile) save(records map[string]*MediaRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return errors.Wrap(err, errors.CodePersistFailed, "failed to encode registry")
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, errors.CodePersistFailed, "failed to create registry directory")
		}
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return errors.Wrap(err, errors.CodePersistFailed, "failed to write registry")
	}
	return nil
}
