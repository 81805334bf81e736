package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tempo/internal/core"
	"tempo/internal/store"
	"tempo/internal/store/memory"
)

func TestUpdatePersistsMutation(t *testing.T) {
	db := store.NewDB(memory.New())
	ctx := context.Background()

	err := db.Update(ctx, func(ds *core.Dataset) error {
		ds.Sessions = append(ds.Sessions, core.Session{
			ID:     ds.NextSessionID(),
			Status: core.StatusRunning,
		})
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = db.View(ctx, func(ds *core.Dataset) error {
		if len(ds.Sessions) != 1 {
			t.Fatalf("expected 1 session, got %d", len(ds.Sessions))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateErrorDiscardsMutation(t *testing.T) {
	db := store.NewDB(memory.New())
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Update(ctx, func(ds *core.Dataset) error {
		ds.Users = append(ds.Users, core.User{ID: 1, Username: "a"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = db.View(ctx, func(ds *core.Dataset) error {
		if len(ds.Users) != 0 {
			t.Fatal("mutation leaked despite error")
		}
		return nil
	})
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	db := store.NewDB(memory.New())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = db.Update(ctx, func(ds *core.Dataset) error {
				ds.Sessions = append(ds.Sessions, core.Session{
					ID: ds.NextSessionID(),
				})
				return nil
			})
		}()
	}
	wg.Wait()

	_ = db.View(ctx, func(ds *core.Dataset) error {
		if len(ds.Sessions) != 20 {
			t.Fatalf("lost updates: have %d sessions, want 20", len(ds.Sessions))
		}
		if id := ds.NextSessionID(); id != 21 {
			t.Fatalf("expected next id 21, got %d", id)
		}
		return nil
	})
}

func TestSnapshotIsDetached(t *testing.T) {
	db := store.NewDB(memory.New())
	ctx := context.Background()

	_ = db.Update(ctx, func(ds *core.Dataset) error {
		ds.Sessions = append(ds.Sessions, core.Session{
			ID:       1,
			Segments: []core.Segment{{StartTime: 5}},
		})
		return nil
	})

	snap, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	snap.Sessions[0].Segments[0].StartTime = 99

	_ = db.View(ctx, func(ds *core.Dataset) error {
		if ds.Sessions[0].Segments[0].StartTime != 5 {
			t.Fatal("snapshot aliases stored state")
		}
		return nil
	})
}
