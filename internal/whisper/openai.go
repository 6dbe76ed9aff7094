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

	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/transcript"
)

const openAITranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"
const maxOpenAIFileSize = 25 * 1024 * 1024 // 25MB limit

// MP3Encoder shrinks audio before upload.
type MP3Encoder interface {
	ExtractMP3(ctx context.Context, audioPath string) (string, error)
}

// OpenAIWhisperClient uses the OpenAI audio transcription API
type OpenAIWhisperClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	encoder    MP3Encoder
	logger     logrus.FieldLogger
}

func NewOpenAIWhisperClient(apiKey string, encoder MP3Encoder, logger logrus.FieldLogger) *OpenAIWhisperClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &OpenAIWhisperClient{
		apiKey:     apiKey,
		endpoint:   openAITranscriptionURL,
		httpClient: &http.Client{},
		encoder:    encoder,
		logger:     logger,
	}
}

// WithEndpoint points the client at a compatible server.
func (c *OpenAIWhisperClient) WithEndpoint(endpoint string) *OpenAIWhisperClient {
	c.endpoint = endpoint
	return c
}

func (c *OpenAIWhisperClient) Name() string {
	return "openai"
}

func (c *OpenAIWhisperClient) Transcribe(ctx context.Context, req TranscribeRequest) (*transcript.Transcript, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	audioPath := req.AudioPath
	if c.encoder != nil {
		mp3, err := c.encoder.ExtractMP3(ctx, req.AudioPath)
		if err != nil {
			return nil, fmt.Errorf("extract audio: %w", err)
		}
		defer os.Remove(mp3)
		audioPath = mp3
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxOpenAIFileSize {
		return nil, fmt.Errorf("audio is %d bytes, over the %d byte upload limit", info.Size(), maxOpenAIFileSize)
	}

	model := req.Model
	if model == "" {
		model = "whisper-1"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	audioFile, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer audioFile.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, audioFile); err != nil {
		return nil, err
	}

	writer.WriteField("model", model)
	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("timestamp_granularities[]", "segment")
	if req.WordTimestamps {
		writer.WriteField("timestamp_granularities[]", "word")
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.WithField("model", model).Debug("[whisper-openai] sending request to OpenAI API")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result verboseJSON
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse OpenAI response: %w", err)
	}

	return result.toTranscript(), nil
}
