package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"tempo/internal/core"
)

func TestCreateUserRejectsDuplicate(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	u, err := e.CreateUser(ctx, "ada")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID != 1 {
		t.Errorf("expected id 1, got %d", u.ID)
	}

	if _, err := e.CreateUser(ctx, "ada"); !errors.Is(err, core.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	found, err := e.UserByName(ctx, "ada")
	if err != nil || found.ID != u.ID {
		t.Fatalf("lookup failed: %v %+v", err, found)
	}

	if _, err := e.UserByID(ctx, 42); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCategoryAndAccountCreation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	catID, err := e.CreateCategory(ctx, 1, "Consulting")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	if _, err := e.CreateCategory(ctx, 1, "Consulting"); !errors.Is(err, core.ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}

	// the same name under a different user is fine
	if _, err := e.CreateCategory(ctx, 2, "Consulting"); err != nil {
		t.Fatalf("per-user uniqueness violated: %v", err)
	}

	if _, err := e.CreateAccount(ctx, 1, 999, "Acme"); !errors.Is(err, core.ErrCategoryMissing) {
		t.Fatalf("expected ErrCategoryMissing, got %v", err)
	}

	accID, err := e.CreateAccount(ctx, 1, catID, "Acme")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	if _, err := e.CreateAccount(ctx, 1, catID, "Acme"); !errors.Is(err, core.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	accounts, err := e.ListAccounts(ctx, 1, catID)
	if err != nil || len(accounts) != 1 || accounts[0].ID != accID {
		t.Fatalf("list accounts: %v %+v", err, accounts)
	}
}

func TestListCategoriesStatsAndOrder(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	ctx := context.Background()

	zebra, _ := e.CreateCategory(ctx, 1, "Zebra")
	if _, err := e.CreateCategory(ctx, 1, "Alpha"); err != nil {
		t.Fatalf("create category: %v", err)
	}

	id, _ := e.Start(ctx, 1, zebra, 1, 60)
	clock.Advance(time.Hour)
	_, _ = e.Stop(ctx, id)

	infos, err := e.ListCategories(ctx, 1)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}

	if len(infos) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(infos))
	}
	if infos[0].Name != "Alpha" || infos[1].Name != "Zebra" {
		t.Fatalf("expected name order Alpha,Zebra, got %s,%s", infos[0].Name, infos[1].Name)
	}

	if infos[0].Stats.Count != 0 {
		t.Errorf("Alpha should have no stats, got %+v", infos[0].Stats)
	}
	if infos[1].Stats.Count != 1 || infos[1].Stats.AverageMs != 3_600_000 || infos[1].Stats.AverageAmount != 60 {
		t.Errorf("unexpected Zebra stats %+v", infos[1].Stats)
	}
}

func TestRecommendAveragesStoppedSessions(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	ctx := context.Background()

	// empty category: zero recommendation, no error
	rec, err := e.Recommend(ctx, 7)
	if err != nil || rec.AverageMs != 0 || rec.AverageAmount != 0 {
		t.Fatalf("expected zero recommendation, got %+v err=%v", rec, err)
	}

	a, _ := e.Start(ctx, 1, 7, 1, 60)
	clock.Advance(time.Hour)
	_, _ = e.Stop(ctx, a)

	b, _ := e.Start(ctx, 1, 7, 2, 60)
	clock.Advance(3 * time.Hour)
	_, _ = e.Stop(ctx, b)

	rec, _ = e.Recommend(ctx, 7)
	if rec.AverageMs != 2*3_600_000 {
		t.Errorf("expected average 2h in ms, got %v", rec.AverageMs)
	}
	if rec.AverageAmount != 120 {
		t.Errorf("expected average amount 120, got %v", rec.AverageAmount)
	}
}

func TestBatchReassignValidatesTargetPair(t *testing.T) {
	e, _, db := newTestEngine(t)
	ctx := context.Background()

	catA, _ := e.CreateCategory(ctx, 1, "A")
	catB, _ := e.CreateCategory(ctx, 1, "B")
	accA, _ := e.CreateAccount(ctx, 1, catA, "acc-a")

	id, _ := e.Start(ctx, 1, catA, accA, 10)

	// account belongs to catA, target category is catB: whole batch rejected
	_, err := e.BatchReassign(ctx, 1, []int64{id}, catB, accA, false)
	if !errors.Is(err, core.ErrAccountCategoryMismatch) {
		t.Fatalf("expected ErrAccountCategoryMismatch, got %v", err)
	}

	_ = db.View(ctx, func(ds *core.Dataset) error {
		s := ds.FindSession(id)
		if s.CategoryID != catA {
			t.Fatal("rejected batch must not mutate any session")
		}
		return nil
	})

	// consistent pair succeeds
	accB, _ := e.CreateAccount(ctx, 1, catB, "acc-b")
	n, err := e.BatchReassign(ctx, 1, []int64{id}, catB, accB, false)
	if err != nil || n != 1 {
		t.Fatalf("reassign: n=%d err=%v", n, err)
	}
}

func TestBatchReassignMissingTarget(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.BatchReassign(ctx, 1, []int64{1}, 999, 0, false); !errors.Is(err, core.ErrCategoryMissing) {
		t.Fatalf("expected ErrCategoryMissing, got %v", err)
	}

	if _, err := e.BatchReassign(ctx, 1, []int64{1}, 0, 999, false); !errors.Is(err, core.ErrAccountMissing) {
		t.Fatalf("expected ErrAccountMissing, got %v", err)
	}
}

func TestBatchReassignOwnership(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	cat, _ := e.CreateCategory(ctx, 2, "theirs")
	id, _ := e.Start(ctx, 2, cat, 1, 10)

	// user 1 owns neither the session nor the target category
	if _, err := e.BatchReassign(ctx, 1, []int64{id}, cat, 0, false); !errors.Is(err, core.ErrCategoryMissing) {
		t.Fatalf("foreign category must not resolve: %v", err)
	}

	// admin override resolves targets and sessions regardless of owner
	n, err := e.BatchReassign(ctx, 1, []int64{id}, cat, 0, true)
	if err != nil || n != 1 {
		t.Fatalf("admin reassign: n=%d err=%v", n, err)
	}
}

func TestBatchDelete(t *testing.T) {
	e, _, db := newTestEngine(t)
	ctx := context.Background()

	mine, _ := e.Start(ctx, 1, 1, 1, 10)
	theirs, _ := e.Start(ctx, 2, 1, 2, 10)

	n, err := e.BatchDelete(ctx, 1, []int64{mine, theirs}, false)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deletion (ownership), got %d", n)
	}

	_ = db.View(ctx, func(ds *core.Dataset) error {
		if ds.FindSession(theirs) == nil {
			t.Fatal("foreign session must survive non-admin delete")
		}
		return nil
	})

	n, _ = e.BatchDelete(ctx, 1, []int64{theirs}, true)
	if n != 1 {
		t.Fatalf("admin delete should remove foreign session, got %d", n)
	}
}
