// Package memory provides in-process implementations of the tracker store
// and the balance cache, for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
)

// =============================================================================
// MEMORY STORE - In-memory tracker.Store (for testing/dev)
// =============================================================================

type Store struct {
	mu      sync.RWMutex
	users   map[generic.UserID]tracker.User
	entries map[generic.UserID][]tracker.Entry // sorted by date
	owner   map[generic.EntryID]generic.UserID
	links   map[generic.LinkID]tracker.AuthorizationLink
	related map[generic.UserID]tracker.RelatedUsers
}

var _ tracker.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   make(map[generic.UserID]tracker.User),
		entries: make(map[generic.UserID][]tracker.Entry),
		owner:   make(map[generic.EntryID]generic.UserID),
		links:   make(map[generic.LinkID]tracker.AuthorizationLink),
		related: make(map[generic.UserID]tracker.RelatedUsers),
	}
}

// =============================================================================
// ENTRIES
// =============================================================================

func (s *Store) Entries(_ context.Context, userID generic.UserID, filter tracker.EntryFilter) ([]tracker.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []tracker.Entry{}
	for _, e := range s.entries[userID] {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) GetEntry(_ context.Context, id generic.EntryID) (*tracker.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.owner[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: generic.ErrEntryNotFound, ID: string(id)}
	}
	for _, e := range s.entries[userID] {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, &generic.NotFoundError{Kind: generic.ErrEntryNotFound, ID: string(id)}
}

// SaveEntry inserts or replaces the entry with the same ID.
func (s *Store) SaveEntry(_ context.Context, e tracker.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owner[e.ID]; ok {
		s.removeLocked(e.ID)
	}

	list := s.entries[e.UserID]
	// Binary search for insertion point keeps the list date-ordered
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Date.After(e.Date)
	})
	list = append(list, tracker.Entry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	s.entries[e.UserID] = list
	s.owner[e.ID] = e.UserID
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, id generic.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owner[id]; !ok {
		return &generic.NotFoundError{Kind: generic.ErrEntryNotFound, ID: string(id)}
	}
	s.removeLocked(id)
	return nil
}

func (s *Store) removeLocked(id generic.EntryID) {
	userID := s.owner[id]
	list := s.entries[userID]
	for i, e := range list {
		if e.ID == id {
			s.entries[userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	delete(s.owner, id)
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) GetUser(_ context.Context, id generic.UserID) (*tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: generic.ErrUserNotFound, ID: string(id)}
	}
	return &u, nil
}

func (s *Store) UsersByID(_ context.Context, ids []generic.UserID) ([]tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]tracker.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

// ListUsers returns every user ordered by last name.
func (s *Store) ListUsers(_ context.Context) ([]tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]tracker.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastName != result[j].LastName {
			return result[i].LastName < result[j].LastName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) SaveUser(_ context.Context, u tracker.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

// LinksForSubordinate returns links ordered by ID.
func (s *Store) LinksForSubordinate(_ context.Context, userID generic.UserID) ([]tracker.AuthorizationLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []tracker.AuthorizationLink{}
	for _, l := range s.links {
		if l.Has(userID) {
			result = append(result, copyLink(l))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) LinkForAdmin(_ context.Context, adminID generic.UserID) (*tracker.AuthorizationLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.links {
		if l.Admin == adminID {
			l := copyLink(l)
			return &l, nil
		}
	}
	return nil, &generic.NotFoundError{Kind: generic.ErrLinkNotFound, ID: string(adminID)}
}

func (s *Store) RelatedForAdmin(_ context.Context, adminID generic.UserID) (*tracker.RelatedUsers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.related[adminID]
	if !ok {
		return nil, nil
	}
	r.Users = append([]generic.UserID(nil), r.Users...)
	return &r, nil
}

// SaveLink replaces any link with the same ID. An administrator owns at
// most one link, so a different link for the same administrator is
// replaced as well.
func (s *Store) SaveLink(_ context.Context, l tracker.AuthorizationLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.links {
		if existing.Admin == l.Admin && id != l.ID {
			delete(s.links, id)
		}
	}
	s.links[l.ID] = copyLink(l)
	return nil
}

func (s *Store) SaveRelated(_ context.Context, r tracker.RelatedUsers) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Users = append([]generic.UserID(nil), r.Users...)
	s.related[r.Admin] = r
	return nil
}

func copyLink(l tracker.AuthorizationLink) tracker.AuthorizationLink {
	l.Users = append([]generic.UserID(nil), l.Users...)
	return l
}
