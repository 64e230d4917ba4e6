// Package dashboard computes the admin overview of collected submissions.
package dashboard

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/stevemurr/flash-survey/export"
	"github.com/stevemurr/flash-survey/submission"
)

// DefaultTarget is the number of responses the campaign aims for.
const DefaultTarget = 100

const (
	anonymous = "Anonymous"
	missing   = "-"
)

// Stats is the summary shown above the response table.
type Stats struct {
	Total           int        `json:"total"`
	LastSubmittedAt *time.Time `json:"lastSubmittedAt"`
	Target          int        `json:"target"`
	ProgressPercent int        `json:"progressPercent"`
	// ProgressBar is ProgressPercent capped at 100.
	ProgressBar float64 `json:"progressBar"`
}

// Summarize computes totals for subs, which must be in save order. A
// non-positive target uses DefaultTarget.
func Summarize(subs []submission.Submission, target int) Stats {
	if target <= 0 {
		target = DefaultTarget
	}
	st := Stats{Total: len(subs), Target: target}

	if len(subs) > 0 {
		if t, err := subs[len(subs)-1].Time(); err == nil {
			st.LastSubmittedAt = &t
		}
	}

	ratio := float64(len(subs)) / float64(target) * 100
	st.ProgressPercent = int(math.Round(ratio))
	st.ProgressBar = math.Min(ratio, 100)
	return st
}

// Filter keeps submissions whose JSON-encoded answers contain query,
// ignoring case. An empty query keeps everything.
func Filter(subs []submission.Submission, query string) []submission.Submission {
	if query == "" {
		return subs
	}
	q := strings.ToLower(query)
	out := make([]submission.Submission, 0, len(subs))
	for _, s := range subs {
		if strings.Contains(strings.ToLower(encodeData(s.Data)), q) {
			out = append(out, s)
		}
	}
	return out
}

func encodeData(data submission.Answers) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Row is one line of the response table.
type Row struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Crypto   string `json:"crypto"`
	Interest string `json:"interest"`
}

// Rows builds table rows newest first.
func Rows(subs []submission.Submission, dates export.DateFormatter) []Row {
	rows := make([]Row, 0, len(subs))
	for i := len(subs) - 1; i >= 0; i-- {
		s := subs[i]
		r := Row{
			ID:       s.ID,
			Date:     s.SubmittedAt,
			Name:     cell(s.Data, "q1", anonymous),
			Phone:    cell(s.Data, "q2", missing),
			Location: cell(s.Data, "q4", missing),
			Crypto:   cell(s.Data, "q5", missing),
			Interest: cell(s.Data, "q18", missing),
		}
		if t, err := s.Time(); err == nil {
			r.Date = dates.FormatDate(t)
			r.Time = dates.FormatTime(t)
		}
		rows = append(rows, r)
	}
	return rows
}

func cell(data submission.Answers, id, fallback string) string {
	a, ok := data[id]
	if !ok {
		return fallback
	}
	if v := a.Join(", "); v != "" {
		return v
	}
	return fallback
}
