package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stevemurr/flash-survey/catalog"
	"github.com/stevemurr/flash-survey/export"
	"github.com/stevemurr/flash-survey/submission"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testCatalog = `
sections:
  - id: about
    questions:
      - {id: q1, text: Name}
      - {id: q2, text: Phone}
  - id: crypto
    questions:
      - {id: q6, text: Assets, type: multi}
      - {id: q17, text: Notes}
`

func newExporter(t *testing.T, opts ...export.Option) *export.Exporter {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return export.New(c, opts...)
}

func sub(id, at string, data submission.Answers) submission.Submission {
	return submission.Submission{ID: id, SubmittedAt: at, Data: data}
}

func lines(b []byte) []string {
	return strings.Split(string(b), "\n")
}

func TestEmptyExportIsHeaderOnly(t *testing.T) {
	out := newExporter(t).Render(nil)
	assert.Equal(t, "Submission ID,Date,Name,Phone,Assets,Notes", string(out))
}

func TestFieldQuoting(t *testing.T) {
	e := newExporter(t, export.WithDateFormatter(export.NewDateFormatter("en-GB", time.UTC)))
	out := e.Render([]submission.Submission{
		sub("id-1", "2026-10-17T09:30:00.000Z", submission.Answers{
			"q1": submission.Text(`He said "hi"`),
			"q6": submission.Multi("BTC", "ETH"),
		}),
	})

	ls := lines(out)
	require.Len(t, ls, 2)
	assert.Equal(t, `id-1,"17/10/2026, 09:30:00","He said ""hi""",,"BTC, ETH",`, ls[1])
}

func TestMissingAndEmptyAnswersKeepColumnCount(t *testing.T) {
	e := newExporter(t)
	out := e.Render([]submission.Submission{
		sub("a", "2026-10-17T09:30:00.000Z", submission.Answers{}),
		sub("b", "2026-10-17T10:30:00.000Z", submission.Answers{"q2": submission.Text(""), "q17": submission.Text("x, y\nz")}),
		sub("c", "2026-10-17T11:30:00.000Z", submission.Answers{"q6": submission.Multi()}),
		sub("d", "2026-10-17T12:30:00.000Z", submission.Answers{"unknown": submission.Text("ignored")}),
	})

	r := csv.NewReader(bytes.NewReader(out))
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Len(t, rec, len(e.Header()), "row %d", i)
	}

	assert.Equal(t, []string{"a", "10/17/2026, 9:30:00 AM", "", "", "", ""}, records[1])
	assert.Equal(t, "", records[2][3])
	assert.Equal(t, "x, y\nz", records[2][5])
	assert.Equal(t, "", records[3][4])
	assert.True(t, strings.HasSuffix(lines(out)[4], `,,,"",`), lines(out)[4])
	assert.Equal(t, []string{"d", "10/17/2026, 12:30:00 PM", "", "", "", ""}, records[4])
}

func TestRowOrderFollowsInput(t *testing.T) {
	e := newExporter(t)
	subs := []submission.Submission{
		sub("oldest", "2026-01-01T00:00:00.000Z", nil),
		sub("middle", "2026-02-01T00:00:00.000Z", nil),
		sub("newest", "2026-03-01T00:00:00.000Z", nil),
	}
	records, err := csv.NewReader(bytes.NewReader(e.Render(subs))).ReadAll()
	require.NoError(t, err)

	var ids []string
	for _, rec := range records[1:] {
		ids = append(ids, rec[0])
	}
	assert.Equal(t, []string{"oldest", "middle", "newest"}, ids)
}

func TestArrayEscaping(t *testing.T) {
	subs := []submission.Submission{
		sub("a", "2026-10-17T09:30:00.000Z", submission.Answers{"q6": submission.Multi(`the "good" one`, "ETH")}),
	}

	unified := lines(newExporter(t).Render(subs))[1]
	assert.Contains(t, unified, `"the ""good"" one, ETH"`)

	legacy := lines(newExporter(t, export.WithLegacyQuoting(true)).Render(subs))[1]
	assert.Contains(t, legacy, `"the "good" one, ETH"`)

	plain := []submission.Submission{
		sub("b", "2026-10-17T09:30:00.000Z", submission.Answers{"q6": submission.Multi("BTC", "ETH")}),
	}
	assert.Equal(t,
		newExporter(t).Render(plain),
		newExporter(t, export.WithLegacyQuoting(true)).Render(plain),
	)
}

func TestUnparseableTimestampPassesThrough(t *testing.T) {
	out := newExporter(t).Render([]submission.Submission{sub("a", "yesterday, noon", nil)})
	assert.Equal(t, `a,"yesterday, noon",,,,`, lines(out)[1])
}

func TestHeaderQuotesCommas(t *testing.T) {
	c, err := catalog.Parse([]byte("sections:\n  - id: a\n    questions:\n      - {id: q1, text: \"City, country\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, `Submission ID,Date,"City, country"`, string(export.New(c).Render(nil)))
}

func TestDateFormatterLocales(t *testing.T) {
	ts := time.Date(2026, 3, 4, 17, 5, 6, 0, time.UTC)
	cases := []struct {
		locale string
		want   string
	}{
		{"", "3/4/2026, 5:05:06 PM"},
		{"en-US", "3/4/2026, 5:05:06 PM"},
		{"en-GB", "04/03/2026, 17:05:06"},
		{"de-DE", "4.3.2026, 17:05:06"},
		{"fr-FR,fr;q=0.9", "04/03/2026 17:05:06"},
		{"ja", "2026/3/4 17:05:06"},
		{"xx-invalid-###", "3/4/2026, 5:05:06 PM"},
	}
	for _, tc := range cases {
		t.Run(tc.locale, func(t *testing.T) {
			f := export.NewDateFormatter(tc.locale, time.UTC)
			assert.Equal(t, tc.want, f.Format(ts))
		})
	}

	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, "3/5/2026, 2:05:06 AM", export.NewDateFormatter("en-US", tokyo).Format(ts))
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 10, 17, 23, 59, 0, 0, time.FixedZone("X", -5*3600))
	assert.Equal(t, "flash_survey_export_2026-10-18.csv", export.Filename(now))
}

func TestExportToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	e := newExporter(t, export.WithClock(func() time.Time { return now }))

	sink := &export.DirSink{Dir: dir}
	a, err := e.Export(context.Background(), nil, sink)
	require.NoError(t, err)
	assert.Equal(t, "flash_survey_export_2026-10-17.csv", a.Filename)
	assert.Equal(t, "text/csv;charset=utf-8", a.MIMEType)

	body, err := os.ReadFile(sink.Path)
	require.NoError(t, err)
	assert.Equal(t, a.Body, body)
}

func TestExportToHTTP(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	e := newExporter(t, export.WithClock(func() time.Time { return now }))

	rec := httptest.NewRecorder()
	_, err := e.Export(context.Background(), nil, export.HTTPSink{W: rec})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv;charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="flash_survey_export_2026-10-17.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Submission ID,Date,Name,Phone,Assets,Notes", rec.Body.String())
}

type failingSink struct{}

func (failingSink) Deliver(context.Context, export.Artifact) error {
	return errors.New("disk full")
}

func TestExportSinkFailure(t *testing.T) {
	_, err := newExporter(t).Export(context.Background(), nil, failingSink{})
	assert.ErrorIs(t, err, export.ErrExportIO)
	assert.Contains(t, err.Error(), "disk full")
}
