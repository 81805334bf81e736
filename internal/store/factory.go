package store

import (
	"fmt"

	"tempo/internal/config"
	"tempo/internal/store/bolt"
	"tempo/internal/store/memory"
	"tempo/internal/store/sqlite"
)

// Open creates the dataset store selected by the configuration.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.DataBackend {
	case "memory":
		return memory.New(), nil
	case "bolt":
		return bolt.New(cfg.BoltDBPath)
	case "sqlite":
		return sqlite.New(cfg.SQLiteDBPath)
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

// compile-time interface checks for the backends
var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*bolt.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)
