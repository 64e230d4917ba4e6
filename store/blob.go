package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/stevemurr/flash-survey/logging"
	"github.com/stevemurr/flash-survey/submission"
)

const (
	DefaultKey        = "flash_survey_responses"
	DefaultMaxRetries = 5
)

var _ Store = (*BlobStore)(nil)

// BlobStore keeps the whole submission collection as one versioned JSON
// envelope under a single backend key. Writes are read-modify-write guarded
// by a compare-and-swap on the previous blob, so concurrent writers retry
// instead of overwriting each other.
type BlobStore struct {
	backend    Backend
	key        string
	maxRetries int
	now        func() time.Time
	logger     *logging.Logger
}

type Option func(*BlobStore)

func WithKey(key string) Option {
	return func(s *BlobStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMaxRetries bounds how many times Save re-reads after a conflict.
func WithMaxRetries(n int) Option {
	return func(s *BlobStore) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *BlobStore) { s.now = now }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *BlobStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewBlobStore(backend Backend, opts ...Option) *BlobStore {
	s := &BlobStore{
		backend:    backend,
		key:        DefaultKey,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the slot name.
func (s *BlobStore) Key() string { return s.key }

// Backend exposes the underlying backend, mainly for health checks.
func (s *BlobStore) Backend() Backend { return s.backend }

func (s *BlobStore) Save(ctx context.Context, answers submission.Answers) (submission.Submission, error) {
	sub := submission.New(answers, s.now())

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		prev, env, err := s.load(ctx)
		if err != nil {
			return submission.Submission{}, fmt.Errorf("save submission: %w", err)
		}

		for containsID(env.Submissions, sub.ID) {
			sub = submission.New(answers, s.now())
		}

		env.Submissions = append(env.Submissions, sub)
		env.Revision++
		next, err := encodeEnvelope(env)
		if err != nil {
			return submission.Submission{}, fmt.Errorf("save submission: %w", err)
		}

		err = s.backend.Swap(ctx, s.key, prev, next)
		if err == nil {
			s.logger.Debug(ctx, "submission saved",
				zap.String("id", sub.ID),
				zap.Int64("revision", env.Revision),
				zap.Int("total", len(env.Submissions)),
			)
			return sub.Clone(), nil
		}
		if !errors.Is(err, ErrConflict) {
			return submission.Submission{}, fmt.Errorf("save submission: %w", err)
		}
		s.logger.Warn(ctx, "slot changed during save, retrying",
			zap.String("key", s.key),
			zap.Int("attempt", attempt+1),
		)
	}
	return submission.Submission{}, fmt.Errorf("save submission after %d attempts: %w", s.maxRetries+1, ErrConflict)
}

func (s *BlobStore) GetAll(ctx context.Context) ([]submission.Submission, error) {
	_, env, err := s.load(ctx)
	if errors.Is(err, ErrUnavailable) {
		s.logger.Warn(ctx, "storage unavailable, returning no submissions", zap.Error(err))
		return []submission.Submission{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	return env.Submissions, nil
}

func (s *BlobStore) Clear(ctx context.Context) error {
	if err := s.backend.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("clear submissions: %w", err)
	}
	s.logger.Info(ctx, "submissions cleared", zap.String("key", s.key))
	return nil
}

// Close releases the backend when it holds resources.
func (s *BlobStore) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// load returns the raw blob (nil when the slot is empty) and its decoded envelope.
func (s *BlobStore) load(ctx context.Context) ([]byte, envelope, error) {
	blob, err := s.backend.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil, emptyEnvelope(), nil
	}
	if err != nil {
		return nil, envelope{}, err
	}
	env, err := decodeEnvelope(blob)
	if err != nil {
		return nil, envelope{}, err
	}
	return blob, env, nil
}

func containsID(subs []submission.Submission, id string) bool {
	for _, s := range subs {
		if s.ID == id {
			return true
		}
	}
	return false
}
