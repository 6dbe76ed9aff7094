package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audio-scribe/backend/internal/config"
	"github.com/audio-scribe/backend/internal/db"
	"github.com/audio-scribe/backend/internal/job"
	"github.com/audio-scribe/backend/internal/keylock"
	"github.com/audio-scribe/backend/internal/media"
	"github.com/audio-scribe/backend/internal/registry"
	"github.com/audio-scribe/backend/internal/storage"
	"github.com/audio-scribe/backend/internal/transcript"
	"github.com/audio-scribe/backend/internal/whisper"
	"github.com/audio-scribe/backend/internal/ytdlp"
)

const videoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type fakeDownloader struct {
	err error
}

func (f *fakeDownloader) Download(ctx context.Context, req ytdlp.Request) (*ytdlp.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(req.OutputDir, "Rick Astley - Never Gonna Give You Up."+req.Format)
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0644); err != nil {
		return nil, err
	}
	return &ytdlp.Result{FilePath: path, Title: "Rick Astley - Never Gonna Give You Up", Duration: 213}, nil
}

type fakeEngine struct {
	err error
}

func (f *fakeEngine) Transcribe(ctx context.Context, req whisper.TranscribeRequest) (*transcript.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &transcript.Transcript{
		Text: " Never gonna",
		Segments: []transcript.Segment{{
			Start: 0, End: 2, Text: " Never gonna",
			Words: []transcript.Word{{Word: " Never", Start: 1.0, End: 1.5}},
		}},
	}, nil
}

type testEnv struct {
	server *httptest.Server
	store  *storage.MediaStore
	reg    *registry.JSONFile
	jobs   *job.JobQueue
}

func newTestEnv(t *testing.T, cfg *config.Config, downloader *fakeDownloader, engine *fakeEngine) *testEnv {
	t.Helper()
	dir := t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	database, err := db.NewSQLite(filepath.Join(dir, "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	jobs := job.NewJobQueue(database.DB(), logger)
	t.Cleanup(jobs.Stop)

	store := storage.NewMediaStore(filepath.Join(dir, "audio"), "wav")
	reg := registry.NewJSONFile(filepath.Join(dir, "downloads.json"))
	locks := keylock.New()

	transcriber := media.NewTranscriber(store, engine, jobs, locks, "base", logger)
	jobs.RegisterHandler(job.JobTranscribe, transcriber.HandleJob)

	svc := &Services{
		Downloader:  media.NewDownloader(store, reg, downloader, locks, logger),
		Transcriber: transcriber,
		Editor:      media.NewEditor(store, locks),
		Store:       store,
		Registry:    reg,
		Jobs:        jobs,
	}

	if cfg == nil {
		cfg = &config.Config{CORSOrigins: []string{"*"}, MaxBodyBytes: 1 << 20}
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := httptest.NewServer(NewRouter(ctx, cfg, svc, logger))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, reg: reg, jobs: jobs}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	resp, err := http.Post(e.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	for _, prefix := range []string{"", "/api"} {
		resp, body := env.post(t, prefix+"/download", map[string]string{"url": videoURL})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Audio downloaded", body["message"])
		assert.Equal(t, "Rick Astley - Never Gonna Give You Up", body["title"])
		assert.Equal(t, env.store.AudioPath("dQw4w9WgXcQ"), body["path"])
	}

	rec, err := env.reg.Get(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, videoURL, rec.URL)
	assert.Equal(t, 213.0, rec.Duration)
}

func TestDownload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		downloader *fakeDownloader
		body       interface{}
		wantStatus int
	}{
		{"invalid url", &fakeDownloader{}, map[string]string{"url": "https://example.com/video"}, http.StatusBadRequest},
		{"missing url", &fakeDownloader{}, map[string]string{}, http.StatusBadRequest},
		{"malformed json", &fakeDownloader{}, "{not json", http.StatusBadRequest},
		{"tool failure", &fakeDownloader{err: assert.AnError}, map[string]string{"url": videoURL}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.downloader, &fakeEngine{})
			resp, body := env.post(t, "/download", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestPlay(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	resp, _ := env.get(t, "/play/dQw4w9WgXcQ")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.post(t, "/download", map[string]string{"url": videoURL})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.get(t, "/api/play/dQw4w9WgXcQ")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, `inline; filename="rick_astley_never_gonna_give_you_up.wav"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "RIFF....WAVEfmt ", string(data))
}

func TestTranscribe_Flow(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	resp, body := env.post(t, "/transcribe", map[string]string{"video_id": "dQw4w9WgXcQ", "model": "base"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = env.post(t, "/download", map[string]string{"url": videoURL})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.post(t, "/transcribe", map[string]string{"video_id": "dQw4w9WgXcQ", "model": "base"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Transcription started, please check back later for results.", body["message"])
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		resp, data := env.get(t, "/api/jobs/"+jobID)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var j job.Job
		return json.Unmarshal(data, &j) == nil && j.Status == job.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	var first, second map[string]interface{}
	for _, out := range []*map[string]interface{}{&first, &second} {
		resp, body = env.post(t, "/api/transcribe", map[string]string{"video_id": "dQw4w9WgXcQ", "model": "base"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		*out = body
	}
	assert.Equal(t, " Never gonna", first["text"])
	assert.Equal(t, first, second)

	segments := first["segments"].([]interface{})
	words := segments[0].(map[string]interface{})["words"].([]interface{})
	word := words[0].(map[string]interface{})
	assert.InDelta(t, 0.64, word["start"], 1e-9)
	assert.InDelta(t, 1.31, word["end"], 1e-9)
}

func TestTranscribe_Validation(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	resp, body := env.post(t, "/transcribe", map[string]string{"model": "base"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "VideoID")

	resp, _ = env.post(t, "/transcribe", map[string]string{"video_id": "../../etc", "model": "base"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateTranscription(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	payload := map[string]interface{}{
		"video_id": "dQw4w9WgXcQ",
		"segments": []map[string]interface{}{
			{"start": 0, "end": 1.5, "text": " Edited line.", "words": []interface{}{}},
		},
	}
	resp, body := env.post(t, "/update-transcription", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Transcription updated successfully.", body["message"])

	edit, err := env.store.ReadEdit("dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Len(t, edit.Segments, 1)
	assert.Equal(t, " Edited line.", edit.Segments[0].Text)

	// With a model the composite-key artifact is replaced.
	payload["model"] = "base"
	resp, _ = env.post(t, "/api/update-transcription", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tr, err := env.store.ReadTranscription("dQw4w9WgXcQ", "base")
	require.NoError(t, err)
	assert.Equal(t, " Edited line.", tr.Text)

	resp, _ = env.post(t, "/update-transcription", map[string]string{"video_id": "dQw4w9WgXcQ"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateTranscription_LongTranscript(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	// About two hours of speech at word granularity.
	segments := make([]map[string]interface{}, 1500)
	for i := range segments {
		words := make([]map[string]interface{}, 12)
		for j := range words {
			at := float64(i)*4.8 + float64(j)*0.4
			words[j] = map[string]interface{}{"word": " word", "start": at + 0.123456789, "end": at + 0.387654321}
		}
		segments[i] = map[string]interface{}{
			"start": float64(i) * 4.8, "end": float64(i+1) * 4.8,
			"text": strings.Repeat(" word", 12), "words": words,
		}
	}
	payload := map[string]interface{}{"video_id": "dQw4w9WgXcQ", "segments": segments}

	encoded, err := json.Marshal(payload)
	require.NoError(t, err)
	require.Greater(t, len(encoded), 1<<20)

	resp, body := env.post(t, "/update-transcription", string(encoded))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	edit, err := env.store.ReadEdit("dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Len(t, edit.Segments, 1500)
}

func TestUpdateTranscription_KeepsClientFields(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	body := `{"video_id":"dQw4w9WgXcQ","segments":[{"id":3,"start":0,"end":1,"text":" Hi.",
		"words":[{"word":" Hi.","start":0.1,"end":0.5,"probability":0.87}]}]}`
	resp, _ := env.post(t, "/update-transcription", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := os.ReadFile(env.store.EditPath("dQw4w9WgXcQ"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"segments":[{"id":3,"start":0,"end":1,"text":" Hi.",
		"words":[{"word":" Hi.","start":0.1,"end":0.5,"probability":0.87}]}]}`, string(data))
}

func TestDownloadsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	resp, data := env.get(t, "/api/downloads")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))

	env.post(t, "/download", map[string]string{"url": videoURL})

	resp, data = env.get(t, "/api/downloads/dQw4w9WgXcQ")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec registry.MediaRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "dQw4w9WgXcQ", rec.ID)

	resp, _ = env.get(t, "/api/downloads/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	resp, data := env.get(t, "/api/jobs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))

	resp, _ = env.get(t, "/api/jobs/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDownloader{}, &fakeEngine{})

	resp, data := env.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestBodyLimit(t *testing.T) {
	cfg := &config.Config{CORSOrigins: []string{"*"}, MaxBodyBytes: 64}
	env := newTestEnv(t, cfg, &fakeDownloader{}, &fakeEngine{})

	big := `{"url":"` + strings.Repeat("a", 200) + `"}`
	resp, _ := env.post(t, "/download", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	// Edits have their own limit.
	edit := `{"video_id":"dQw4w9WgXcQ","segments":[{"start":0,"end":1,"text":"` + strings.Repeat("a", 200) + `","words":[]}]}`
	resp, _ = env.post(t, "/update-transcription", edit)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cfg = &config.Config{CORSOrigins: []string{"*"}, MaxBodyBytes: 64, MaxEditBodyBytes: 128}
	env = newTestEnv(t, cfg, &fakeDownloader{}, &fakeEngine{})
	resp, _ = env.post(t, "/update-transcription", edit)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{CORSOrigins: []string{"*"}, MaxBodyBytes: 1 << 20, RateLimit: 2}
	env := newTestEnv(t, cfg, &fakeDownloader{}, &fakeEngine{})

	body := map[string]string{"url": "https://example.com"}
	for i := 0; i < 2; i++ {
		resp, _ := env.post(t, "/download", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	resp, _ := env.post(t, "/download", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Unlimited routes are unaffected.
	resp, _ = env.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	cfg := &config.Config{CORSOrigins: []string{"http://localhost:3000"}, MaxBodyBytes: 1 << 20}
	env := newTestEnv(t, cfg, &fakeDownloader{}, &fakeEngine{})

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/transcribe", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
