package whisper

import (
	"context"

	"github.com/audio-scribe/backend/internal/transcript"
)

// TranscribeRequest is the input for a transcription
type TranscribeRequest struct {
	AudioPath      string // absolute path to the audio file
	Model          string // model identifier, engine specific
	WordTimestamps bool   // request word-level timing
}

// Transcriber is the common interface for all whisper engines
type Transcriber interface {
	// Transcribe converts audio to time-aligned text. Word timings are raw
	// engine output; correction happens in the caller.
	Transcribe(ctx context.Context, req TranscribeRequest) (*transcript.Transcript, error)
	// Name returns the engine name
	Name() string
}

// verboseJSON is the whisper verbose_json layout shared by the CLI, whisper.cpp and OpenAI.
type verboseJSON struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []verboseSegment `json:"segments"`
	Words    []verboseWord    `json:"words"` // OpenAI returns words at the top level
}

type verboseSegment struct {
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []verboseWord `json:"words"`
}

type verboseWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// toTranscript converts verbose_json output, distributing top-level words
// into segments by start time when segments carry none.
func (v *verboseJSON) toTranscript() *transcript.Transcript {
	out := &transcript.Transcript{
		Text:     v.Text,
		Segments: make([]transcript.Segment, len(v.Segments)),
	}
	for i, seg := range v.Segments {
		out.Segments[i] = transcript.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
			Words: convertWords(seg.Words),
		}
	}

	if len(v.Words) > 0 && len(out.Segments) > 0 && !v.hasSegmentWords() {
		idx := 0
		for _, w := range v.Words {
			for idx < len(out.Segments)-1 && w.Start >= out.Segments[idx].End {
				idx++
			}
			out.Segments[idx].Words = append(out.Segments[idx].Words, transcript.Word{
				Word:  w.Word,
				Start: w.Start,
				End:   w.End,
			})
		}
	}

	if out.Text == "" {
		out.Text = transcript.JoinText(out.Segments)
	}
	return out
}

func (v *verboseJSON) hasSegmentWords() bool {
	for _, seg := range v.Segments {
		if len(seg.Words) > 0 {
			return true
		}
	}
	return false
}

func convertWords(in []verboseWord) []transcript.Word {
	words := make([]transcript.Word, len(in))
	for i, w := range in {
		words[i] = transcript.Word{Word: w.Word, Start: w.Start, End: w.End}
	}
	return words
}
