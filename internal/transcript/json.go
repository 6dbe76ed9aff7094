package transcript

import (
	"encoding/json"
	"strings"
)

// wordFields and segmentFields drop the methods so the default codec can be
// reused for the known fields.
type (
	wordFields    Word
	segmentFields Segment
)

func (w *Word) UnmarshalJSON(data []byte) error {
	var known wordFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := unknownFields(data, "word", "start", "end")
	if err != nil {
		return err
	}
	*w = Word(known)
	w.Extra = extra
	return nil
}

func (w Word) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(wordFields(w), w.Extra)
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var known segmentFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := unknownFields(data, "start", "end", "text", "words")
	if err != nil {
		return err
	}
	*s = Segment(known)
	s.Extra = extra
	return nil
}

func (s Segment) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(segmentFields(s), s.Extra)
}

// unknownFields returns the members of a JSON object not named in known, or
// nil when there are none. Matching is case-insensitive like encoding/json.
func unknownFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for key := range all {
		for _, k := range known {
			if strings.EqualFold(key, k) {
				delete(all, key)
				break
			}
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra encodes v and merges extra into the resulting object.
// Known fields win over extra members with the same name.
func marshalWithExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}
