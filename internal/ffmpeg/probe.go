// Package ffmpeg wraps the ffprobe/ffmpeg tools used around downloads and
// transcription uploads.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/audio-scribe/backend/internal/execx"
)

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

type ProbeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio, subtitle
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Prober runs ffprobe
type Prober struct {
	bin       string
	cmdRunner execx.CmdRunner
}

func NewProber(bin string, cmdRunner execx.CmdRunner) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	if cmdRunner == nil {
		cmdRunner = execx.NewCmdRunner()
	}
	return &Prober{bin: bin, cmdRunner: cmdRunner}
}

func (p *Prober) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	output, err := p.cmdRunner.Run(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	if err != nil {
		return nil, err
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Duration returns the container duration of filePath in seconds.
func (p *Prober) Duration(ctx context.Context, filePath string) (float64, error) {
	result, err := p.Probe(ctx, filePath)
	if err != nil {
		return 0, err
	}
	if result.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", filePath)
	}
	return strconv.ParseFloat(result.Format.Duration, 64)
}
