package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/transcript"
)

// AudioConverter prepares audio for an engine and returns a temp file path.
type AudioConverter interface {
	ExtractPCM16k(ctx context.Context, audioPath string) (string, error)
}

// WhisperCppClient talks to the whisper.cpp HTTP server (whisper-server)
type WhisperCppClient struct {
	baseURL    string
	httpClient *http.Client
	converter  AudioConverter
	logger     logrus.FieldLogger
}

// NewWhisperCppClient creates a client for the whisper.cpp server. converter
// may be nil when the server runs with --convert.
func NewWhisperCppClient(baseURL string, converter AudioConverter, logger logrus.FieldLogger) *WhisperCppClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WhisperCppClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		converter:  converter,
		logger:     logger,
	}
}

func (c *WhisperCppClient) Name() string {
	return "whisper.cpp"
}

// Transcribe sends an audio file to whisper-server. The server decides the
// model; req.Model only keys the cache.
func (c *WhisperCppClient) Transcribe(ctx context.Context, req TranscribeRequest) (*transcript.Transcript, error) {
	audioPath := req.AudioPath
	if c.converter != nil {
		converted, err := c.converter.ExtractPCM16k(ctx, req.AudioPath)
		if err != nil {
			return nil, fmt.Errorf("extract audio: %w", err)
		}
		defer os.Remove(converted)
		audioPath = converted
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	audioFile, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer audioFile.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audioFile); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("temperature", "0.0")
	writer.Close()

	url := c.baseURL + "/inference"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.WithFields(logrus.Fields{"url": url, "audio": audioPath}).Debug("[whisper.cpp] sending request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper server request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper server error (status %d): %s", resp.StatusCode, string(body))
	}

	var result verboseJSON
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse whisper server response: %w", err)
	}

	return result.toTranscript(), nil
}
