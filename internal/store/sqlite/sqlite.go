// Package sqlite persists the dataset snapshot in a SQLite database,
// one row per record with a JSON document payload. Save replaces the
// whole snapshot inside a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tempo/internal/core"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

var tables = []string{"users", "categories", "accounts", "sessions", "user_ops"}

func (s *Store) Load(ctx context.Context) (*core.Dataset, error) {
	ds := core.NewDataset()

	for _, table := range tables {
		docs, err := s.loadTable(ctx, table)
		if err != nil {
			return nil, err
		}

		if err := decodeInto(ds, table, docs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", table, err)
		}
	}

	return ds, nil
}

func (s *Store) loadTable(ctx context.Context, table string) ([][]byte, error) {
	rows, err := s.db.QueryContext(
		ctx,
		fmt.Sprintf("SELECT doc FROM %s ORDER BY id", table),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var docs [][]byte

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return docs, nil
}

func decodeInto(ds *core.Dataset, table string, docs [][]byte) error {
	for _, doc := range docs {
		switch table {
		case "users":
			var v core.User
			if err := json.Unmarshal(doc, &v); err != nil {
				return err
			}
			ds.Users = append(ds.Users, v)
		case "categories":
			var v core.Category
			if err := json.Unmarshal(doc, &v); err != nil {
				return err
			}
			ds.Categories = append(ds.Categories, v)
		case "accounts":
			var v core.Account
			if err := json.Unmarshal(doc, &v); err != nil {
				return err
			}
			ds.Accounts = append(ds.Accounts, v)
		case "sessions":
			var v core.Session
			if err := json.Unmarshal(doc, &v); err != nil {
				return err
			}
			ds.Sessions = append(ds.Sessions, v)
		case "user_ops":
			var v core.OpEntry
			if err := json.Unmarshal(doc, &v); err != nil {
				return err
			}
			ds.Ops = append(ds.Ops, v)
		}
	}

	return nil
}

func (s *Store) Save(ctx context.Context, ds *core.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertAll(ctx, tx, "users", len(ds.Users), func(i int) (int64, any) {
		return ds.Users[i].ID, ds.Users[i]
	}); err != nil {
		return err
	}

	if err := insertAll(ctx, tx, "categories", len(ds.Categories), func(i int) (int64, any) {
		return ds.Categories[i].ID, ds.Categories[i]
	}); err != nil {
		return err
	}

	if err := insertAll(ctx, tx, "accounts", len(ds.Accounts), func(i int) (int64, any) {
		return ds.Accounts[i].ID, ds.Accounts[i]
	}); err != nil {
		return err
	}

	if err := insertAll(ctx, tx, "sessions", len(ds.Sessions), func(i int) (int64, any) {
		return ds.Sessions[i].ID, ds.Sessions[i]
	}); err != nil {
		return err
	}

	if err := insertAll(ctx, tx, "user_ops", len(ds.Ops), func(i int) (int64, any) {
		return ds.Ops[i].ID, ds.Ops[i]
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	return nil
}

func insertAll(
	ctx context.Context,
	tx *sql.Tx,
	table string,
	n int,
	record func(i int) (int64, any),
) error {
	stmt, err := tx.PrepareContext(
		ctx,
		fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", table),
	)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		id, v := record(i)

		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s record: %w", table, err)
		}

		if _, err := stmt.ExecContext(ctx, id, doc); err != nil {
			return fmt.Errorf("insert %s record %d: %w", table, id, err)
		}
	}

	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}
