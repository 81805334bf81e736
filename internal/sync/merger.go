// Package sync reconciles the local dataset with a remote copy: a
// last-write-wins merge on pull, a whole-snapshot upsert on push, and
// a periodic push loop.
package sync

import "tempo/internal/core"

// Merge reconciles a local snapshot against a remote one, collection
// by collection, keyed by id. Remote-only records are adopted,
// local-only records are kept, and when an id appears on both sides
// the record with the greater updated_at wins; remote wins ties. A
// missing updated_at counts as zero. Neither input is mutated.
func Merge(local, remote *core.Dataset) *core.Dataset {
	return &core.Dataset{
		Users: mergeByID(local.Users, remote.Users,
			func(u core.User) int64 { return u.ID },
			func(u core.User) int64 { return u.UpdatedAt }),
		Categories: mergeByID(local.Categories, remote.Categories,
			func(c core.Category) int64 { return c.ID },
			func(c core.Category) int64 { return c.UpdatedAt }),
		Accounts: mergeByID(local.Accounts, remote.Accounts,
			func(a core.Account) int64 { return a.ID },
			func(a core.Account) int64 { return a.UpdatedAt }),
		Sessions: mergeByID(local.Sessions, remote.Sessions,
			func(s core.Session) int64 { return s.ID },
			func(s core.Session) int64 { return s.UpdatedAt }),
		Ops: mergeByID(local.Ops, remote.Ops,
			func(o core.OpEntry) int64 { return o.ID },
			func(o core.OpEntry) int64 { return o.UpdatedAt }),
	}
}

// mergeByID keeps local order for ids known locally and appends
// remote-only records in remote order.
func mergeByID[T any](
	local, remote []T,
	id func(T) int64,
	updatedAt func(T) int64,
) []T {
	remoteByID := make(map[int64]T, len(remote))
	for _, r := range remote {
		remoteByID[id(r)] = r
	}

	out := make([]T, 0, len(local)+len(remote))
	seen := make(map[int64]bool, len(local))

	for _, l := range local {
		key := id(l)
		seen[key] = true

		r, ok := remoteByID[key]
		if !ok {
			out = append(out, l)
			continue
		}

		if updatedAt(l) > updatedAt(r) {
			out = append(out, l)
		} else {
			out = append(out, r)
		}
	}

	for _, r := range remote {
		if !seen[id(r)] {
			out = append(out, r)
		}
	}

	return out
}
