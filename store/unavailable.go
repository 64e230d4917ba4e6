package store

import "context"

// UnavailableBackend models an environment with no usable storage.
// Every call fails with ErrUnavailable.
type UnavailableBackend struct{}

func (UnavailableBackend) Load(context.Context, string) ([]byte, error) {
	return nil, ErrUnavailable
}

func (UnavailableBackend) Swap(context.Context, string, []byte, []byte) error {
	return ErrUnavailable
}

func (UnavailableBackend) Remove(context.Context, string) error {
	return ErrUnavailable
}
