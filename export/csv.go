// Package export renders submissions as a CSV document and delivers it as a
// downloadable artifact.
package export

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/stevemurr/flash-survey/catalog"
	"github.com/stevemurr/flash-survey/submission"
)

const (
	MIMEType       = "text/csv;charset=utf-8"
	filenamePrefix = "flash_survey_export_"

	headerID   = "Submission ID"
	headerDate = "Date"
)

// ErrExportIO is returned when an artifact cannot be delivered.
var ErrExportIO = errors.New("export delivery failed")

// Exporter converts submissions into CSV using the catalog for column order.
type Exporter struct {
	questions []catalog.Question
	dates     DateFormatter
	now       func() time.Time
	legacy    bool
}

type Option func(*Exporter)

func WithDateFormatter(f DateFormatter) Option {
	return func(e *Exporter) { e.dates = f }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLegacyQuoting keeps inner double quotes of multi-select answers
// unescaped, matching files produced by the first dashboard release.
func WithLegacyQuoting(on bool) Option {
	return func(e *Exporter) { e.legacy = on }
}

func New(c *catalog.Catalog, opts ...Option) *Exporter {
	e := &Exporter{
		questions: c.Questions(),
		dates:     NewDateFormatter("", time.UTC),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Header returns the header row fields, quoted only when a question text
// contains a delimiter.
func (e *Exporter) Header() []string {
	h := make([]string, 0, len(e.questions)+2)
	h = append(h, headerID, headerDate)
	for _, q := range e.questions {
		h = append(h, quoteIfNeeded(q.Text))
	}
	return h
}

// Render returns the CSV document for subs, in the order given.
func (e *Exporter) Render(subs []submission.Submission) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes never fail
	_ = e.Write(&buf, subs)
	return buf.Bytes()
}

// Write streams the CSV document to w. Rows are newline-joined with no
// trailing newline; an empty list yields the header line only.
func (e *Exporter) Write(w io.Writer, subs []submission.Submission) error {
	if _, err := io.WriteString(w, strings.Join(e.Header(), ",")); err != nil {
		return err
	}
	for _, s := range subs {
		if _, err := io.WriteString(w, "\n"+strings.Join(e.row(s), ",")); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) row(s submission.Submission) []string {
	fields := make([]string, 0, len(e.questions)+2)
	fields = append(fields, s.ID, e.date(s))
	for _, q := range e.questions {
		fields = append(fields, e.answerField(s.Data, q.ID))
	}
	return fields
}

func (e *Exporter) date(s submission.Submission) string {
	t, err := s.Time()
	if err != nil {
		return quoteIfNeeded(s.SubmittedAt)
	}
	return quoteIfNeeded(e.dates.Format(t))
}

func (e *Exporter) answerField(data submission.Answers, id string) string {
	a, ok := data[id]
	if !ok {
		return ""
	}
	if a.IsMulti() {
		joined := a.Join(", ")
		if e.legacy {
			return `"` + joined + `"`
		}
		return quote(joined)
	}
	if a.Value() == "" {
		return ""
	}
	return quote(a.Value())
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteIfNeeded quotes values containing a delimiter, quote or line break.
func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
