package store

import (
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/stevemurr/flash-survey/logging"
)

// Options selects and configures a backend for New.
type Options struct {
	Backend    string
	DataDir    string
	Key        string
	MaxRetries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Logger *logging.Logger
}

// New creates a BlobStore based on the backend name.
//
// Supported backends:
//
//	"json"   - one JSON file per slot in DataDir (default)
//	"sqlite" - SQLite database at DataDir/survey.db
//	"redis"  - Redis server at RedisAddr
//	"memory" - in-memory (ephemeral, for testing)
//	"none"   - no storage; reads come back empty, writes fail
func New(opts Options) (*BlobStore, error) {
	backend, err := newBackend(opts)
	if err != nil {
		return nil, err
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return NewBlobStore(backend,
		WithKey(opts.Key),
		WithMaxRetries(retries),
		WithLogger(opts.Logger),
	), nil
}

func newBackend(opts Options) (Backend, error) {
	switch opts.Backend {
	case "json", "":
		return NewJsonFileBackend(opts.DataDir)
	case "sqlite":
		return NewSqliteBackend(filepath.Join(opts.DataDir, "survey.db"))
	case "redis":
		return NewRedisBackend(redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})), nil
	case "memory":
		return NewMemoryBackend(), nil
	case "none":
		return UnavailableBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, redis, memory, none)", opts.Backend)
	}
}
