// Package store defines the dataset snapshot storage capability and a
// transactional wrapper that serializes load-mutate-save cycles.
package store

import (
	"context"
	"sync"

	"tempo/internal/core"
)

// Store reads and atomically replaces the whole dataset snapshot.
type Store interface {
	Load(ctx context.Context) (*core.Dataset, error)
	Save(ctx context.Context, ds *core.Dataset) error
	Close() error
}

// DB serializes access to a Store. Every mutation runs as one
// load-mutate-save cycle under the write lock, so no caller can
// observe or persist a partially mutated snapshot. Read-only views
// share the read lock and may run concurrently.
type DB struct {
	mu    sync.RWMutex
	store Store
}

// NewDB wraps a Store in the transactional guard.
func NewDB(s Store) *DB {
	return &DB{store: s}
}

// Update runs fn against the current snapshot and persists the result.
// If fn returns an error the snapshot is not saved.
func (db *DB) Update(ctx context.Context, fn func(*core.Dataset) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ds, err := db.store.Load(ctx)
	if err != nil {
		return err
	}

	ds.Normalize()

	if err := fn(ds); err != nil {
		return err
	}

	return db.store.Save(ctx, ds)
}

// View runs fn against a read-only copy of the current snapshot.
func (db *DB) View(ctx context.Context, fn func(*core.Dataset) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	ds, err := db.store.Load(ctx)
	if err != nil {
		return err
	}

	ds.Normalize()

	return fn(ds)
}

// Snapshot returns a deep copy of the current dataset, for callers
// that need to hold it across long-running remote calls.
func (db *DB) Snapshot(ctx context.Context) (*core.Dataset, error) {
	var out *core.Dataset

	err := db.View(ctx, func(ds *core.Dataset) error {
		out = ds.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Close releases the underlying store.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.store.Close()
}
