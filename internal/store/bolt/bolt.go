// Package bolt persists the dataset snapshot in a BoltDB file.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"tempo/internal/core"
)

var (
	bucketName  = []byte("dataset")
	snapshotKey = []byte("snapshot")
)

var errAlreadyOpen = errors.New(
	"database file is locked: is another instance already running?",
)

// Store is a BoltDB-backed snapshot store. The whole dataset lives
// under a single key, so load and save are atomic by construction.
type Store struct {
	db *bbolt.DB
}

func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	var fileMode fs.FileMode = 0o600

	db, err := bbolt.Open(path, fileMode, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, errAlreadyOpen
		}

		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Load(_ context.Context) (*core.Dataset, error) {
	ds := core.NewDataset()

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(snapshotKey)
		if len(raw) == 0 {
			// first run, empty dataset
			return nil
		}

		return json.Unmarshal(raw, ds)
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	return ds, nil
}

func (s *Store) Save(_ context.Context, ds *core.Dataset) error {
	raw, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(snapshotKey, raw)
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
