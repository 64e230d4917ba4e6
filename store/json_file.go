package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JsonFileBackend stores each slot as a separate JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  flash_survey_responses.json   # default submissions slot
type JsonFileBackend struct {
	mu  sync.Mutex
	dir string
}

func NewJsonFileBackend(dir string) (*JsonFileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrUnavailable, err)
	}
	return &JsonFileBackend{dir: dir}, nil
}

func (s *JsonFileBackend) slotPath(key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key == "." || key == ".." {
		return "", fmt.Errorf("invalid slot key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *JsonFileBackend) read(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *JsonFileBackend) Load(_ context.Context, key string) ([]byte, error) {
	path, err := s.slotPath(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Swap writes through a temp file and rename so readers never see a partial blob.
func (s *JsonFileBackend) Swap(_ context.Context, key string, prev, next []byte) error {
	path, err := s.slotPath(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.read(path)
	if err != nil {
		return err
	}
	if !matches(cur, ok, prev) {
		return ErrConflict
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(next); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *JsonFileBackend) Remove(_ context.Context, key string) error {
	path, err := s.slotPath(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
