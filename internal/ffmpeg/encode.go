package ffmpeg

import (
	"context"
	"os"

	"github.com/audio-scribe/backend/internal/execx"
)

// Encoder re-encodes audio for engines with upload size limits
type Encoder struct {
	bin       string
	cmdRunner execx.CmdRunner
}

func NewEncoder(bin string, cmdRunner execx.CmdRunner) *Encoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	if cmdRunner == nil {
		cmdRunner = execx.NewCmdRunner()
	}
	return &Encoder{bin: bin, cmdRunner: cmdRunner}
}

// ExtractMP3 writes audioPath as a mono MP3 temp file; the caller removes it.
func (e *Encoder) ExtractMP3(ctx context.Context, audioPath string) (string, error) {
	tmpFile, err := os.CreateTemp("", "scribe-audio-*.mp3")
	if err != nil {
		return "", err
	}
	tmpFile.Close()

	_, err = e.cmdRunner.Run(ctx, e.bin,
		"-hide_banner",
		"-loglevel", "error",
		"-i", audioPath,
		"-vn",
		"-ac", "1",
		"-acodec", "libmp3lame",
		"-q:a", "4", // ~130kbps VBR
		"-y",
		tmpFile.Name(),
	)
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}

// ExtractPCM16k writes audioPath as 16kHz mono WAV, the input whisper.cpp expects.
func (e *Encoder) ExtractPCM16k(ctx context.Context, audioPath string) (string, error) {
	tmpFile, err := os.CreateTemp("", "scribe-audio-*.wav")
	if err != nil {
		return "", err
	}
	tmpFile.Close()

	_, err = e.cmdRunner.Run(ctx, e.bin,
		"-hide_banner",
		"-loglevel", "error",
		"-i", audioPath,
		"-vn",          // no video
		"-acodec", "pcm_s16le",
		"-ar", "16000", // 16kHz
		"-ac", "1",     // mono
		"-y",           // overwrite
		tmpFile.Name(),
	)
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}
