package sync

import (
	"context"

	"tempo/internal/core"
)

// RemoteStore is the far side of replication. Pull fetches the whole
// remote snapshot; Push replaces it with the given one. Both operate
// on full-snapshot granularity.
type RemoteStore interface {
	Pull(ctx context.Context) (*core.Dataset, error)
	Push(ctx context.Context, ds *core.Dataset) error
}
