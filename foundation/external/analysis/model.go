package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Field names of the analysis response.
const (
	FieldTranscript          = "transcript"
	FieldReadability         = "readability"
	FieldDisfluencyCount     = "disfluencyCount"
	FieldDominantEmotion     = "dominantEmotion"
	FieldEmotionScores       = "emotionScores"
	FieldPersuasivenessScore = "persuasivenessScore"
	FieldSuggestedChange     = "suggestedChange"
)

type EmotionScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

// Readability is service defined: either a label such as "Grade 8" or a
// numeric score.
type Readability struct {
	Text    string
	Value   float64
	Numeric bool
}

func (r Readability) String() string {
	if r.Numeric {
		return strconv.FormatFloat(r.Value, 'f', -1, 64)
	}
	return r.Text
}

func (r *Readability) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*r = Readability{Value: f, Numeric: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = Readability{Text: s}
	return nil
}

func (r Readability) MarshalJSON() ([]byte, error) {
	if r.Numeric {
		return json.Marshal(r.Value)
	}
	return json.Marshal(r.Text)
}

// FeedbackRecord is the analysis result for one artifact. Pointer fields are
// nil when the service did not report them.
type FeedbackRecord struct {
	Transcript          string         `json:"transcript"`
	Readability         *Readability   `json:"readability"`
	DisfluencyCount     *int           `json:"disfluencyCount"`
	DominantEmotion     string         `json:"dominantEmotion"`
	EmotionScores       []EmotionScore `json:"emotionScores"`
	PersuasivenessScore *float64       `json:"persuasivenessScore"`
	SuggestedChange     string         `json:"suggestedChange"`

	// Malformed lists the expected fields that were absent or wrong-shaped.
	Malformed []string `json:"malformed,omitempty"`
}

// Complete reports whether every expected field was present and well formed.
func (f FeedbackRecord) Complete() bool {
	return len(f.Malformed) == 0
}

// Decode parses a response body leniently. Every field is decoded on its
// own; a field that is missing or has the wrong shape is left at its zero
// value and recorded in Malformed. Decode never fails.
func Decode(body []byte) FeedbackRecord {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		fields = nil
	}

	var f FeedbackRecord
	decode := func(name string, v interface{}, optional bool) bool {
		raw, exists := fields[name]
		if !exists || bytes.Equal(raw, []byte("null")) {
			if !optional {
				f.Malformed = append(f.Malformed, name)
			}
			return false
		}
		if err := json.Unmarshal(raw, v); err != nil {
			f.Malformed = append(f.Malformed, name)
			return false
		}
		return true
	}

	decode(FieldTranscript, &f.Transcript, false)

	var readability Readability
	if decode(FieldReadability, &readability, false) {
		f.Readability = &readability
	}

	var disfluency int
	if decode(FieldDisfluencyCount, &disfluency, false) {
		if disfluency < 0 {
			f.Malformed = append(f.Malformed, FieldDisfluencyCount)
		} else {
			f.DisfluencyCount = &disfluency
		}
	}

	decode(FieldDominantEmotion, &f.DominantEmotion, false)
	decode(FieldEmotionScores, &f.EmotionScores, false)

	var persuasiveness float64
	if decode(FieldPersuasivenessScore, &persuasiveness, false) {
		f.PersuasivenessScore = &persuasiveness
	}

	decode(FieldSuggestedChange, &f.SuggestedChange, true)

	return f
}

// serviceError extracts the message of an {"error": "..."} body, which the
// service returns with a success status when analysis throws.
func serviceError(body []byte) (string, bool) {
	var r struct {
		Error      string          `json:"error"`
		Transcript json.RawMessage `json:"transcript"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", false
	}
	if r.Error == "" || r.Transcript != nil {
		return "", false
	}
	return r.Error, true
}
