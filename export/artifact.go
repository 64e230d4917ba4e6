package export

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/stevemurr/flash-survey/submission"
)

// Artifact is a rendered export ready for download.
type Artifact struct {
	Filename string
	MIMEType string
	Body     []byte
}

// Filename returns flash_survey_export_<YYYY-MM-DD>.csv for the UTC date of now.
func Filename(now time.Time) string {
	return filenamePrefix + now.UTC().Format("2006-01-02") + ".csv"
}

// Build renders subs into an artifact named after the current date.
func (e *Exporter) Build(subs []submission.Submission) Artifact {
	return Artifact{
		Filename: Filename(e.now()),
		MIMEType: MIMEType,
		Body:     e.Render(subs),
	}
}

// Sink delivers an artifact to wherever the user downloads it from.
type Sink interface {
	Deliver(ctx context.Context, a Artifact) error
}

// Export builds the artifact and hands it to sink. Sink failures wrap ErrExportIO.
func (e *Exporter) Export(ctx context.Context, subs []submission.Submission, sink Sink) (Artifact, error) {
	a := e.Build(subs)
	if err := sink.Deliver(ctx, a); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %v", ErrExportIO, a.Filename, err)
	}
	return a, nil
}

// HTTPSink writes the artifact as an attachment response.
type HTTPSink struct {
	W http.ResponseWriter
}

func (s HTTPSink) Deliver(_ context.Context, a Artifact) error {
	h := s.W.Header()
	h.Set("Content-Type", a.MIMEType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	h.Set("Content-Length", strconv.Itoa(len(a.Body)))
	s.W.WriteHeader(http.StatusOK)
	_, err := s.W.Write(a.Body)
	return err
}

// DirSink writes the artifact into a directory and records the written path.
type DirSink struct {
	Dir  string
	Path string
}

func (s *DirSink) Deliver(_ context.Context, a Artifact) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.Dir, a.Filename)
	if err := os.WriteFile(path, a.Body, 0o644); err != nil {
		return err
	}
	s.Path = path
	return nil
}
