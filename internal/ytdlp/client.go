// Package ytdlp downloads audio through the yt-dlp command line tool.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/errors"
	"github.com/audio-scribe/backend/internal/execx"
)

// Request is the input for a download
type Request struct {
	URL       string // source video URL
	OutputDir string // directory the tool writes into
	Format    string // target audio codec, e.g. "wav"
	Quality   string // passed to --audio-quality: a bitrate such as "192K" or a VBR level 0-9
}

// Result is the output of a download
type Result struct {
	FilePath  string  // final file written by the tool
	Title     string  // video title
	Duration  float64 // seconds, 0 when unknown
	Thumbnail string  // thumbnail URL
}

// info is the subset of the yt-dlp info dict we read
type info struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration"`
	Thumbnail string   `json:"thumbnail"`
	FilePath  string   `json:"filepath"`
}

var audioExtensions = []string{".wav", ".m4a", ".mp3", ".webm", ".ogg", ".opus", ".flac", ".aac"}

// Client invokes yt-dlp
type Client struct {
	bin       string
	cmdRunner execx.CmdRunner
	logger    logrus.FieldLogger
}

// NewClient creates a yt-dlp client. bin defaults to "yt-dlp".
func NewClient(bin string, cmdRunner execx.CmdRunner, logger logrus.FieldLogger) *Client {
	if bin == "" {
		bin = "yt-dlp"
	}
	if cmdRunner == nil {
		cmdRunner = execx.NewCmdRunner()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{bin: bin, cmdRunner: cmdRunner, logger: logger}
}

// Args builds the yt-dlp argument list for req.
func Args(req Request) []string {
	format := req.Format
	if format == "" {
		format = "wav"
	}
	args := []string{
		"-f", "bestaudio/best",
		"-x",                     // Extract audio only
		"--audio-format", format, // Transcode to the target codec
	}
	if req.Quality != "" {
		args = append(args, "--audio-quality", req.Quality)
	}
	args = append(args,
		"-o", filepath.Join(req.OutputDir, "%(title)s.%(ext)s"),
		"--no-playlist",
		"--no-simulate",
		"--print", "after_move:%()j", // info dict, including the final filepath
		req.URL,
	)
	return args
}

// Download fetches the best available audio for req.URL and transcodes it.
func (c *Client) Download(ctx context.Context, req Request) (*Result, error) {
	if req.URL == "" {
		return nil, errors.New(errors.CodeInvalidArg, "video URL is required")
	}
	if req.OutputDir == "" {
		return nil, errors.New(errors.CodeInvalidArg, "output directory is required")
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.CodeDownloadFailed, "failed to create output directory")
	}

	c.logger.WithFields(logrus.Fields{"url": req.URL, "format": req.Format}).Info("[ytdlp] starting download")

	out, err := c.cmdRunner.Run(ctx, c.bin, Args(req)...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDownloadFailed, "yt-dlp audio download failed")
	}

	meta, err := parseInfo(out)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDownloadFailed, "failed to parse yt-dlp output")
	}

	path := meta.FilePath
	if path == "" || !isFile(path) {
		path, err = findDownloadedAudio(req.OutputDir, req.Format)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDownloadFailed, "failed to find downloaded audio file")
		}
	}

	res := &Result{
		FilePath:  path,
		Title:     meta.Title,
		Thumbnail: meta.Thumbnail,
	}
	if meta.Duration != nil {
		res.Duration = *meta.Duration
	}
	return res, nil
}

// parseInfo reads the last JSON object line printed by yt-dlp.
func parseInfo(out []byte) (*info, error) {
	var last string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "{") {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if last == "" {
		return nil, fmt.Errorf("no info JSON in yt-dlp output")
	}

	var meta info
	if err := json.Unmarshal([]byte(last), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// findDownloadedAudio picks an audio file in outputDir, preferring the requested format.
func findDownloadedAudio(outputDir, format string) (string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("failed to read output directory: %w", err)
	}

	preferred := "." + strings.TrimPrefix(format, ".")
	var fallback string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == preferred {
			return filepath.Join(outputDir, entry.Name()), nil
		}
		if fallback == "" && isAudioExt(ext) {
			fallback = filepath.Join(outputDir, entry.Name())
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("no audio files found in %s", outputDir)
	}
	return fallback, nil
}

func isAudioExt(ext string) bool {
	for _, e := range audioExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
