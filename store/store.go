// Package store persists survey submissions in a single named slot of a
// pluggable key-value backend.
package store

import (
	"context"
	"errors"

	"github.com/stevemurr/flash-survey/submission"
)

var (
	// ErrNotFound is returned by a Backend when the slot holds nothing.
	ErrNotFound = errors.New("slot is empty")
	// ErrUnavailable means no storage backend could be reached.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrCorrupt means the persisted blob could not be decoded into submissions.
	ErrCorrupt = errors.New("storage corrupt")
	// ErrConflict means the slot changed between read and write.
	ErrConflict = errors.New("storage conflict")
)

// Store is the submission persistence contract used by the HTTP API and CLI.
type Store interface {
	// Save stamps answers with a new id and timestamp and appends the result.
	Save(ctx context.Context, answers submission.Answers) (submission.Submission, error)

	// GetAll returns every submission in save order. An unreachable backend
	// yields an empty slice and no error.
	GetAll(ctx context.Context) ([]submission.Submission, error)

	// Clear removes every submission.
	Clear(ctx context.Context) error
}

// Backend holds opaque blobs under string keys.
type Backend interface {
	// Load returns the blob stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Swap replaces the blob under key with next if the current blob equals
	// prev. A nil prev requires the key to be empty. Returns ErrConflict
	// when the precondition does not hold.
	Swap(ctx context.Context, key string, prev, next []byte) error

	// Remove deletes key. Removing an empty key is not an error.
	Remove(ctx context.Context, key string) error
}
