package sync

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"tempo/internal/core"
)

func TestMergeLocalNewerWins(t *testing.T) {
	local := core.NewDataset()
	local.Sessions = append(local.Sessions, core.Session{
		ID: 1, CategoryID: 1, TotalMs: 500, Status: core.StatusStopped, UpdatedAt: 200,
	})

	remote := core.NewDataset()
	remote.Sessions = append(remote.Sessions, core.Session{
		ID: 1, CategoryID: 1, TotalMs: 300, Status: core.StatusStopped, UpdatedAt: 100,
	})

	merged := Merge(local, remote)

	if diff := cmp.Diff(local.Sessions[0], merged.Sessions[0]); diff != "" {
		t.Errorf("newer local record must win (-want +got):\n%s", diff)
	}
}

func TestMergeRemoteWinsTies(t *testing.T) {
	local := core.NewDataset()
	local.Sessions = append(local.Sessions, core.Session{ID: 1, TotalMs: 500, UpdatedAt: 100})

	remote := core.NewDataset()
	remote.Sessions = append(remote.Sessions, core.Session{ID: 1, TotalMs: 300, UpdatedAt: 100})

	merged := Merge(local, remote)

	if merged.Sessions[0].TotalMs != 300 {
		t.Errorf("equal timestamps must pick the remote record, got %+v", merged.Sessions[0])
	}
}

func TestMergeMissingTimestampCountsAsZero(t *testing.T) {
	local := core.NewDataset()
	local.Sessions = append(local.Sessions, core.Session{ID: 1, TotalMs: 500})

	remote := core.NewDataset()
	remote.Sessions = append(remote.Sessions, core.Session{ID: 1, TotalMs: 300, UpdatedAt: 1})

	merged := Merge(local, remote)

	if merged.Sessions[0].TotalMs != 300 {
		t.Errorf("a stamped remote must beat an unstamped local, got %+v", merged.Sessions[0])
	}
}

func TestMergeDisjointIDs(t *testing.T) {
	local := core.NewDataset()
	local.Users = append(local.Users, core.User{ID: 1, Username: "ada"})
	local.Categories = append(local.Categories, core.Category{ID: 3, Name: "local-only"})

	remote := core.NewDataset()
	remote.Users = append(remote.Users, core.User{ID: 2, Username: "bob"})
	remote.Categories = append(remote.Categories, core.Category{ID: 4, Name: "remote-only"})

	merged := Merge(local, remote)

	if len(merged.Users) != 2 || len(merged.Categories) != 2 {
		t.Fatalf("both sides must survive a disjoint merge, got %+v", merged)
	}

	// local records keep their position, remote-only ones follow
	if merged.Users[0].ID != 1 || merged.Users[1].ID != 2 {
		t.Errorf("unexpected user order %+v", merged.Users)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	local := core.NewDataset()
	local.Sessions = append(local.Sessions, core.Session{ID: 1, TotalMs: 500, UpdatedAt: 1})

	remote := core.NewDataset()
	remote.Sessions = append(remote.Sessions, core.Session{ID: 1, TotalMs: 300, UpdatedAt: 2})
	remote.Sessions = append(remote.Sessions, core.Session{ID: 2, TotalMs: 100, UpdatedAt: 2})

	_ = Merge(local, remote)

	if local.Sessions[0].TotalMs != 500 || len(local.Sessions) != 1 {
		t.Error("merge must leave the local input alone")
	}
	if len(remote.Sessions) != 2 {
		t.Error("merge must leave the remote input alone")
	}
}

func TestMergeAllCollections(t *testing.T) {
	local := core.NewDataset()
	local.Accounts = append(local.Accounts, core.Account{ID: 1, Name: "old", UpdatedAt: 1})
	local.Ops = append(local.Ops, core.OpEntry{ID: 1, Type: "start_session", UpdatedAt: 5})

	remote := core.NewDataset()
	remote.Accounts = append(remote.Accounts, core.Account{ID: 1, Name: "new", UpdatedAt: 2})
	remote.Ops = append(remote.Ops, core.OpEntry{ID: 1, Type: "stale", UpdatedAt: 1})

	merged := Merge(local, remote)

	if merged.Accounts[0].Name != "new" {
		t.Errorf("expected remote account to win, got %+v", merged.Accounts[0])
	}
	if merged.Ops[0].Type != "start_session" {
		t.Errorf("expected local op to win, got %+v", merged.Ops[0])
	}
}
