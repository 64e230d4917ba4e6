// Package submission defines the survey submission data model.
package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the timestamp shape stored in submittedAt (ISO-8601, UTC, milliseconds).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidAnswer is returned when an answer is neither a string nor a list of strings.
var ErrInvalidAnswer = errors.New("answer must be a string or an array of strings")

// Answer is either a single string or an ordered list of strings (multi-select).
type Answer struct {
	text  string
	multi []string
	isSeq bool
}

// Text builds a single-string answer.
func Text(s string) Answer {
	return Answer{text: s}
}

// Multi builds a multi-select answer. A nil list is stored as an empty one.
func Multi(values ...string) Answer {
	v := make([]string, len(values))
	copy(v, values)
	return Answer{multi: v, isSeq: true}
}

// IsMulti reports whether the answer is a sequence.
func (a Answer) IsMulti() bool { return a.isSeq }

// Value returns the single-string value. It is empty for sequences.
func (a Answer) Value() string { return a.text }

// Values returns a copy of the sequence. It is nil for single-string answers.
func (a Answer) Values() []string {
	if !a.isSeq {
		return nil
	}
	v := make([]string, len(a.multi))
	copy(v, a.multi)
	return v
}

// Join renders the answer as one string, joining sequences with sep.
func (a Answer) Join(sep string) string {
	if a.isSeq {
		return strings.Join(a.multi, sep)
	}
	return a.text
}

// Equal reports whether two answers hold the same shape and values.
func (a Answer) Equal(b Answer) bool {
	if a.isSeq != b.isSeq || a.text != b.text || len(a.multi) != len(b.multi) {
		return false
	}
	for i := range a.multi {
		if a.multi[i] != b.multi[i] {
			return false
		}
	}
	return true
}

// MarshalJSON writes the answer without HTML escaping, so <, > and & stay
// literal in the encoded form.
func (a Answer) MarshalJSON() ([]byte, error) {
	var v any = a.text
	if a.isSeq {
		v = a.multi
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ErrInvalidAnswer
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}
		*a = Text(s)
		return nil
	case '[':
		var v []string
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}
		*a = Multi(v...)
		return nil
	}
	return ErrInvalidAnswer
}

// Answers maps question ids to answers.
type Answers map[string]Answer

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	if a == nil {
		return Answers{}
	}
	out := make(Answers, len(a))
	for k, v := range a {
		if v.isSeq {
			v = Multi(v.multi...)
		}
		out[k] = v
	}
	return out
}

// Submission is one completed survey response. It is never modified after creation.
type Submission struct {
	ID          string  `json:"id"`
	SubmittedAt string  `json:"submittedAt"`
	Data        Answers `json:"data"`
}

// New stamps answers with a fresh id and the given time.
func New(answers Answers, now time.Time) Submission {
	return Submission{
		ID:          uuid.NewString(),
		SubmittedAt: FormatTime(now),
		Data:        answers.Clone(),
	}
}

// Time parses SubmittedAt.
func (s Submission) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s.SubmittedAt)
}

// Clone returns a deep copy.
func (s Submission) Clone() Submission {
	s.Data = s.Data.Clone()
	return s
}

// FormatTime renders t the way submittedAt is stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
