// Package transcript holds the transcription artifact types and the word
// timing correction applied to raw engine output.
package transcript

import (
	"encoding/json"
	"math"
	"strings"
)

// Word timings reported by the engines lag the audio; these offsets pull them
// back into sync.
const (
	WordStartOffset = 0.36
	WordEndOffset   = 0.19
)

// Word is a single time-aligned word, in seconds.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Extra keeps fields a client sent beyond the ones above (e.g. "probability").
	Extra map[string]json.RawMessage `json:"-"`
}

// Segment is a time-aligned span of text with its words.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`

	// Extra keeps fields a client sent beyond the ones above (e.g. "id").
	Extra map[string]json.RawMessage `json:"-"`
}

// Transcript is the persisted transcription artifact.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Edit is the artifact written by a manual correction without a model.
type Edit struct {
	Segments []Segment `json:"segments"`
}

// CorrectWordTimings returns a copy of t with every word shifted earlier by
// the fixed offsets, floored at zero. Segment bounds and text are untouched.
func CorrectWordTimings(t *Transcript) *Transcript {
	if t == nil {
		return nil
	}

	out := &Transcript{
		Text:     t.Text,
		Segments: make([]Segment, len(t.Segments)),
	}
	for i, seg := range t.Segments {
		words := make([]Word, len(seg.Words))
		for j, w := range seg.Words {
			words[j] = Word{
				Word:  w.Word,
				Start: shift(w.Start, WordStartOffset),
				End:   shift(w.End, WordEndOffset),
				Extra: w.Extra,
			}
		}
		out.Segments[i] = Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
			Words: words,
			Extra: seg.Extra,
		}
	}
	return out
}

func shift(v, offset float64) float64 {
	return math.Max(0, v-offset)
}

// JoinText rebuilds the full text from segment texts.
func JoinText(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}
