package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audio-scribe/backend/internal/execx"
	"github.com/audio-scribe/backend/internal/transcript"
)

// CLIEngine runs the openai-whisper command line tool
type CLIEngine struct {
	bin       string
	cmdRunner execx.CmdRunner
	tempRoot  string // parent for per-run output dirs; os.TempDir() when empty
}

// NewCLIEngine creates the whisper CLI engine. bin defaults to "whisper".
func NewCLIEngine(bin string, cmdRunner execx.CmdRunner, tempRoot string) *CLIEngine {
	if bin == "" {
		bin = "whisper"
	}
	if cmdRunner == nil {
		cmdRunner = execx.NewCmdRunner()
	}
	return &CLIEngine{bin: bin, cmdRunner: cmdRunner, tempRoot: tempRoot}
}

func (e *CLIEngine) Name() string {
	return "whisper-cli"
}

// CLIArgs builds the whisper argument list.
func CLIArgs(req TranscribeRequest, outputDir string) []string {
	args := []string{
		req.AudioPath,
		"--model", req.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if req.WordTimestamps {
		args = append(args, "--word_timestamps", "True")
	}
	return args
}

func (e *CLIEngine) Transcribe(ctx context.Context, req TranscribeRequest) (*transcript.Transcript, error) {
	if req.AudioPath == "" {
		return nil, fmt.Errorf("audio path is required")
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	outputDir, err := os.MkdirTemp(e.tempRoot, "scribe-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(outputDir)

	if _, err := e.cmdRunner.Run(ctx, e.bin, CLIArgs(req, outputDir)...); err != nil {
		return nil, fmt.Errorf("whisper execution failed with model '%s': %w", req.Model, err)
	}

	// Output is <output_dir>/<audio basename>.json
	baseName := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	jsonData, err := os.ReadFile(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	var result verboseJSON
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	return result.toTranscript(), nil
}
