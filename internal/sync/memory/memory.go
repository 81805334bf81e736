// Package memory holds a remote snapshot in process memory. It backs
// tests and local development where no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"tempo/internal/core"
)

type Remote struct {
	mu   sync.Mutex
	ds   *core.Dataset
	fail error
}

func New() *Remote {
	return &Remote{ds: core.NewDataset()}
}

// SetFail makes every subsequent Pull and Push return err until reset
// with nil.
func (r *Remote) SetFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fail = err
}

func (r *Remote) Pull(ctx context.Context) (*core.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return nil, r.fail
	}

	return r.ds.Clone(), nil
}

func (r *Remote) Push(ctx context.Context, ds *core.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return r.fail
	}

	r.ds = ds.Clone()

	return nil
}

// Snapshot returns a copy of what the remote currently holds.
func (r *Remote) Snapshot() *core.Dataset {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ds.Clone()
}
