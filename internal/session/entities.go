package session

import (
	"context"
	"sort"

	"tempo/internal/core"
	"tempo/internal/log"
)

// CategoryStats summarizes the stopped sessions of one category.
type CategoryStats struct {
	Count         int     `json:"count"`
	AverageMs     float64 `json:"averageMs"`
	AverageAmount float64 `json:"averageAmount"`
}

// CategoryInfo is a category listing row with its session stats.
type CategoryInfo struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Stats CategoryStats `json:"stats"`
}

// Recommendation is the historic average cost of a category, used to
// suggest a budget for the next session.
type Recommendation struct {
	AverageMs     float64 `json:"averageMs"`
	AverageAmount float64 `json:"averageAmount"`
}

// CreateUser registers a user with a unique username.
func (e *Engine) CreateUser(ctx context.Context, username string) (*core.User, error) {
	var (
		user  core.User
		entry core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		for i := range ds.Users {
			if ds.Users[i].Username == username {
				return core.ErrUserExists
			}
		}

		now := e.clock.Now().UnixMilli()
		user = core.User{
			ID:        ds.NextUserID(),
			Username:  username,
			CreatedAt: now,
		}
		ds.Users = append(ds.Users, user)

		entry = ds.AppendOp(now, user.ID, "create_user", map[string]any{
			"id":       user.ID,
			"username": username,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, entry)

	return &user, nil
}

// UserByName looks a user up by username.
func (e *Engine) UserByName(ctx context.Context, username string) (*core.User, error) {
	var user *core.User

	err := e.db.View(ctx, func(ds *core.Dataset) error {
		for i := range ds.Users {
			if ds.Users[i].Username == username {
				u := ds.Users[i]
				user = &u

				return nil
			}
		}

		return core.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// UserByID looks a user up by id.
func (e *Engine) UserByID(ctx context.Context, id int64) (*core.User, error) {
	var user *core.User

	err := e.db.View(ctx, func(ds *core.Dataset) error {
		for i := range ds.Users {
			if ds.Users[i].ID == id {
				u := ds.Users[i]
				user = &u

				return nil
			}
		}

		return core.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// CreateCategory creates a category owned by the user. Names are
// unique per user.
func (e *Engine) CreateCategory(ctx context.Context, userID int64, name string) (int64, error) {
	var (
		id    int64
		entry core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		for i := range ds.Categories {
			c := &ds.Categories[i]
			if c.UserID == userID && c.Name == name {
				return core.ErrCategoryExists
			}
		}

		now := e.clock.Now().UnixMilli()
		id = ds.NextCategoryID()
		ds.Categories = append(ds.Categories, core.Category{
			ID:     id,
			UserID: userID,
			Name:   name,
		})

		entry = ds.AppendOp(now, userID, "create_category", map[string]any{
			"id":   id,
			"name": name,
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	e.publish(ctx, entry)

	return id, nil
}

// ListCategories returns the user's categories sorted by name, each
// with the count and averages of its finished sessions.
func (e *Engine) ListCategories(ctx context.Context, userID int64) ([]CategoryInfo, error) {
	var out []CategoryInfo

	err := e.db.View(ctx, func(ds *core.Dataset) error {
		for i := range ds.Categories {
			c := &ds.Categories[i]
			if c.UserID != userID {
				continue
			}

			var (
				count     int
				sumMs     int64
				sumAmount float64
			)

			for j := range ds.Sessions {
				s := &ds.Sessions[j]
				if s.CategoryID != c.ID || s.UserID != userID {
					continue
				}

				if s.Status != core.StatusStopped || s.TotalMs == 0 || s.TotalAmount == 0 {
					continue
				}

				count++
				sumMs += s.TotalMs
				sumAmount += s.TotalAmount
			}

			info := CategoryInfo{ID: c.ID, Name: c.Name}
			if count > 0 {
				info.Stats = CategoryStats{
					Count:         count,
					AverageMs:     float64(sumMs) / float64(count),
					AverageAmount: sumAmount / float64(count),
				}
			}

			out = append(out, info)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// CreateAccount creates an account under one of the user's
// categories. Names are unique within a category.
func (e *Engine) CreateAccount(
	ctx context.Context,
	userID, categoryID int64,
	name string,
) (int64, error) {
	var (
		id    int64
		entry core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		parent := ds.FindCategory(categoryID)
		if parent == nil || parent.UserID != userID {
			return core.ErrCategoryMissing
		}

		for i := range ds.Accounts {
			a := &ds.Accounts[i]
			if a.CategoryID == categoryID && a.UserID == userID && a.Name == name {
				return core.ErrAccountExists
			}
		}

		now := e.clock.Now().UnixMilli()
		id = ds.NextAccountID()
		ds.Accounts = append(ds.Accounts, core.Account{
			ID:         id,
			UserID:     userID,
			CategoryID: categoryID,
			Name:       name,
		})

		entry = ds.AppendOp(now, userID, "create_account", map[string]any{
			"id":          id,
			"category_id": categoryID,
			"name":        name,
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	e.publish(ctx, entry)

	return id, nil
}

// ListAccounts returns the user's accounts under a category, sorted
// by name.
func (e *Engine) ListAccounts(
	ctx context.Context,
	userID, categoryID int64,
) ([]core.Account, error) {
	var out []core.Account

	err := e.db.View(ctx, func(ds *core.Dataset) error {
		for i := range ds.Accounts {
			a := ds.Accounts[i]
			if a.CategoryID == categoryID && a.UserID == userID {
				out = append(out, a)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// SessionsByCategory returns the category's sessions, newest first.
func (e *Engine) SessionsByCategory(ctx context.Context, categoryID int64) ([]core.Session, error) {
	var out []core.Session

	err := e.db.View(ctx, func(ds *core.Dataset) error {
		for i := range ds.Sessions {
			if ds.Sessions[i].CategoryID == categoryID {
				out = append(out, ds.Sessions[i])
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime > out[j].StartTime })

	return out, nil
}

// Recommend averages the stopped sessions of a category. An empty
// category yields a zero recommendation, never an error.
func (e *Engine) Recommend(ctx context.Context, categoryID int64) (Recommendation, error) {
	var rec Recommendation

	err := e.db.View(ctx, func(ds *core.Dataset) error {
		var (
			count     int
			sumMs     int64
			sumAmount float64
		)

		for i := range ds.Sessions {
			s := &ds.Sessions[i]
			if s.CategoryID != categoryID || s.Status != core.StatusStopped {
				continue
			}

			count++
			sumMs += s.TotalMs
			sumAmount += s.TotalAmount
		}

		if count > 0 {
			rec.AverageMs = float64(sumMs) / float64(count)
			rec.AverageAmount = sumAmount / float64(count)
		}

		return nil
	})
	if err != nil {
		return Recommendation{}, err
	}

	return rec, nil
}

// BatchReassign moves a set of the user's sessions to a new category
// and/or account. The target pair is validated before any row is
// touched: a target that does not resolve, or an account that does
// not belong to the target category, rejects the whole batch. With
// admin set, ownership checks are skipped.
func (e *Engine) BatchReassign(
	ctx context.Context,
	userID int64,
	ids []int64,
	categoryID, accountID int64,
	admin bool,
) (int, error) {
	var (
		updated int
		entry   core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		var target *core.Account

		if categoryID != 0 {
			c := ds.FindCategory(categoryID)
			if c == nil || (!admin && c.UserID != userID) {
				return core.ErrCategoryMissing
			}
		}

		if accountID != 0 {
			target = ds.FindAccount(accountID)
			if target == nil || (!admin && target.UserID != userID) {
				return core.ErrAccountMissing
			}
		}

		if categoryID != 0 && target != nil && target.CategoryID != categoryID {
			return core.ErrAccountCategoryMismatch
		}

		wanted := make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}

		for i := range ds.Sessions {
			s := &ds.Sessions[i]
			if !wanted[s.ID] {
				continue
			}

			if !admin && s.UserID != userID {
				continue
			}

			if categoryID != 0 {
				s.CategoryID = categoryID
			}

			if accountID != 0 {
				s.AccountID = accountID
			}

			updated++
		}

		now := e.clock.Now().UnixMilli()
		entry = ds.AppendOp(now, userID, "batch_update_sessions", map[string]any{
			"ids":         ids,
			"category_id": categoryID,
			"account_id":  accountID,
			"updated":     updated,
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	e.publish(ctx, entry)
	e.logger.InfoContext(ctx, "sessions reassigned",
		log.FieldUserID, userID,
		log.FieldCount, updated)

	return updated, nil
}

// BatchDelete removes a set of the user's sessions and returns how
// many were deleted. With admin set, ownership checks are skipped.
func (e *Engine) BatchDelete(
	ctx context.Context,
	userID int64,
	ids []int64,
	admin bool,
) (int, error) {
	var (
		deleted int
		entry   core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		wanted := make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}

		kept := ds.Sessions[:0]

		for i := range ds.Sessions {
			s := ds.Sessions[i]
			if wanted[s.ID] && (admin || s.UserID == userID) {
				deleted++
				continue
			}

			kept = append(kept, s)
		}

		ds.Sessions = kept

		now := e.clock.Now().UnixMilli()
		entry = ds.AppendOp(now, userID, "batch_delete_sessions", map[string]any{
			"ids":     ids,
			"deleted": deleted,
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	e.publish(ctx, entry)
	e.logger.InfoContext(ctx, "sessions deleted",
		log.FieldUserID, userID,
		log.FieldCount, deleted)

	return deleted, nil
}
