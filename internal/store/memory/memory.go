// Package memory provides an in-memory dataset store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sync"

	"tempo/internal/core"
)

type Store struct {
	mu sync.Mutex
	ds *core.Dataset
}

func New() *Store {
	return &Store{ds: core.NewDataset()}
}

// NewSeeded returns a store primed with an existing snapshot.
func NewSeeded(ds *core.Dataset) *Store {
	ds.Normalize()
	return &Store{ds: ds.Clone()}
}

// Load returns a deep copy so callers never alias the stored state.
func (s *Store) Load(_ context.Context) (*core.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ds.Clone(), nil
}

func (s *Store) Save(_ context.Context, ds *core.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ds = ds.Clone()

	return nil
}

func (s *Store) Close() error { return nil }
