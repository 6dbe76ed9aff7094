package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectWordTimings(t *testing.T) {
	raw := &Transcript{
		Text: " Hello there.",
		Segments: []Segment{
			{
				Start: 0.0,
				End:   2.0,
				Text:  " Hello there.",
				Words: []Word{
					{Word: " Hello", Start: 0.1, End: 0.15},
					{Word: " there.", Start: 1.0, End: 1.5},
				},
			},
		},
	}

	got := CorrectWordTimings(raw)
	require.NotNil(t, got)
	require.Len(t, got.Segments, 1)

	seg := got.Segments[0]
	assert.Equal(t, 0.0, seg.Start)
	assert.Equal(t, 2.0, seg.End)
	assert.Equal(t, " Hello there.", seg.Text)
	assert.Equal(t, " Hello there.", got.Text)

	require.Len(t, seg.Words, 2)
	assert.Equal(t, 0.0, seg.Words[0].Start, "start floored at zero")
	assert.Equal(t, 0.0, seg.Words[0].End, "end floored at zero")
	assert.InDelta(t, 0.64, seg.Words[1].Start, 1e-9)
	assert.InDelta(t, 1.31, seg.Words[1].End, 1e-9)
	assert.Equal(t, " there.", seg.Words[1].Word)
}

func TestCorrectWordTimings_DoesNotMutateInput(t *testing.T) {
	raw := &Transcript{Segments: []Segment{{Words: []Word{{Word: "a", Start: 2, End: 3}}}}}

	CorrectWordTimings(raw)

	assert.Equal(t, 2.0, raw.Segments[0].Words[0].Start)
	assert.Equal(t, 3.0, raw.Segments[0].Words[0].End)
}

func TestCorrectWordTimings_Nil(t *testing.T) {
	assert.Nil(t, CorrectWordTimings(nil))
}

func TestCorrectWordTimings_EmptySegmentKeepsEmptyWords(t *testing.T) {
	got := CorrectWordTimings(&Transcript{Segments: []Segment{{Text: "x"}}})
	require.Len(t, got.Segments, 1)
	assert.NotNil(t, got.Segments[0].Words)
	assert.Empty(t, got.Segments[0].Words)
}

func TestJoinText(t *testing.T) {
	segs := []Segment{{Text: " one"}, {Text: " two"}}
	assert.Equal(t, " one two", JoinText(segs))
	assert.Equal(t, "", JoinText(nil))
}
