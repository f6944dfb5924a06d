/*
store.go - Persistence interfaces the tracker depends on

PURPOSE:
  The balance engine and resolver never talk to a database directly. They
  read through these interfaces, which are satisfied by the in-memory store
  (tests, demos) and the SQLite store (production).

KEY INTERFACES:
  EntryStore: tracking entries by user, period and daytype
  UserStore:  user records
  LinkStore:  authorization links and related users
  Store:      all of the above

NOT-FOUND CONVENTION:
  Single-record getters return a *generic.NotFoundError wrapping the
  matching sentinel (ErrUserNotFound, ErrEntryNotFound, ErrLinkNotFound).
  List queries return an empty slice, never a not-found error.

IMPLEMENTATIONS:
  - store/memory/memory.go
  - store/sqlite/sqlite.go
*/
package tracker

import (
	"context"

	"github.com/warp/timetracker/generic"
)

// EntryFilter narrows an entry query. A nil Daytypes slice means any daytype.
type EntryFilter struct {
	Period   generic.PeriodFilter
	Daytypes []Daytype
}

func (f EntryFilter) Matches(e Entry) bool {
	if !f.Period.Matches(e.Date) {
		return false
	}
	if f.Daytypes == nil {
		return true
	}
	for _, d := range f.Daytypes {
		if e.Daytype == d {
			return true
		}
	}
	return false
}

type EntryStore interface {
	// Entries returns the user's entries matching the filter, ordered by date.
	Entries(ctx context.Context, userID generic.UserID, filter EntryFilter) ([]Entry, error)

	GetEntry(ctx context.Context, id generic.EntryID) (*Entry, error)
	SaveEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id generic.EntryID) error
}

type UserStore interface {
	GetUser(ctx context.Context, id generic.UserID) (*User, error)

	// UsersByID skips unknown IDs.
	UsersByID(ctx context.Context, ids []generic.UserID) ([]User, error)

	ListUsers(ctx context.Context) ([]User, error)
	SaveUser(ctx context.Context, u User) error
}

type LinkStore interface {
	// LinksForSubordinate returns every link listing the user as a team member.
	LinksForSubordinate(ctx context.Context, userID generic.UserID) ([]AuthorizationLink, error)

	// LinkForAdmin returns ErrLinkNotFound when the administrator has no team.
	LinkForAdmin(ctx context.Context, adminID generic.UserID) (*AuthorizationLink, error)

	// RelatedForAdmin returns nil, nil when no related users are recorded.
	RelatedForAdmin(ctx context.Context, adminID generic.UserID) (*RelatedUsers, error)

	SaveLink(ctx context.Context, l AuthorizationLink) error
	SaveRelated(ctx context.Context, r RelatedUsers) error
}

type Store interface {
	EntryStore
	UserStore
	LinkStore
}
