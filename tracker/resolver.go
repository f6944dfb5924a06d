/*
resolver.go - Authorization and team resolution

PURPOSE:
  Answers two questions for a user: who is their effective administrator,
  and which users may they see. Visibility comes from the user's role and
  the authorization links alone; there is no permissions table.

ADMINISTRATOR RESOLUTION:
  SUPER, ADMIN   -> themselves
  one link       -> that link's administrator
  two links      -> the administrator who is not a SUPER
  no link        -> the user themselves
  anything else  -> AmbiguousAdministratorError

  Two links is the expected shape of a user who has a direct manager and is
  also listed under an overriding super-user.

SUBORDINATE RESOLUTION:
  RUSER               -> teammates (same administrator and process)
  TEAML, ADMIN, SUPER -> the administrator's link users, plus their related
                         users, plus the administrator when the caller is not
                         that administrator or is SUPER/ADMIN
  INENG               -> nobody

  A missing authorization link resolves to an empty set, not an error.
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/warp/timetracker/generic"
)

// AmbiguousAdministratorError is returned when a user's links do not
// resolve to a single administrator.
type AmbiguousAdministratorError struct {
	UserID generic.UserID
	Admins []generic.UserID
}

func (e *AmbiguousAdministratorError) Error() string {
	return fmt.Sprintf("user %s is linked to %d administrators %v", e.UserID, len(e.Admins), e.Admins)
}

func (e *AmbiguousAdministratorError) Unwrap() error {
	return generic.ErrAmbiguousAdministrator
}

type Resolver struct {
	users UserStore
	links LinkStore
}

func NewResolver(users UserStore, links LinkStore) *Resolver {
	return &Resolver{users: users, links: links}
}

// Administrator resolves the user's effective manager.
func (r *Resolver) Administrator(ctx context.Context, user User) (User, error) {
	if user.Role.IsOwnAdministrator() {
		return user, nil
	}

	links, err := r.links.LinksForSubordinate(ctx, user.ID)
	if err != nil {
		return User{}, fmt.Errorf("links for %s: %w", user.ID, err)
	}

	switch len(links) {
	case 0:
		return user, nil
	case 1:
		return r.getUser(ctx, links[0].Admin)
	case 2:
		for _, link := range links {
			admin, err := r.getUser(ctx, link.Admin)
			if err != nil {
				return User{}, err
			}
			if admin.Role != RoleSuper {
				return admin, nil
			}
		}
	}
	return User{}, &AmbiguousAdministratorError{UserID: user.ID, Admins: linkAdmins(links)}
}

// Subordinates lists the users visible to user, sorted by last name. Disabled
// link members are dropped unless includeDisabled is set; disabled related
// users are always dropped.
func (r *Resolver) Subordinates(ctx context.Context, user User, includeDisabled bool) ([]User, error) {
	switch user.Role {
	case RoleUser:
		return r.Teammates(ctx, user, includeDisabled)
	case RoleTeamLead, RoleAdmin, RoleSuper:
		return r.team(ctx, user, includeDisabled)
	case RoleIndustrial:
		return []User{}, nil
	default:
		return []User{}, nil
	}
}

// Teammates lists the users under the same administrator sharing the user's
// process. The user appears in their own list.
func (r *Resolver) Teammates(ctx context.Context, user User, includeDisabled bool) ([]User, error) {
	admin, err := r.Administrator(ctx, user)
	if err != nil {
		return nil, err
	}
	link, err := r.links.LinkForAdmin(ctx, admin.ID)
	if errors.Is(err, generic.ErrLinkNotFound) {
		return []User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("link for %s: %w", admin.ID, err)
	}

	members, err := r.users.UsersByID(ctx, link.Users)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(members))
	for _, m := range members {
		if m.Process != user.Process {
			continue
		}
		if m.Disabled && !includeDisabled {
			continue
		}
		out = append(out, m)
	}
	sortByLastName(out)
	return out, nil
}

func (r *Resolver) team(ctx context.Context, user User, includeDisabled bool) ([]User, error) {
	admin := user
	if user.Role == RoleTeamLead {
		var err error
		if admin, err = r.Administrator(ctx, user); err != nil {
			return nil, err
		}
	}

	link, err := r.links.LinkForAdmin(ctx, admin.ID)
	if errors.Is(err, generic.ErrLinkNotFound) {
		return []User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("link for %s: %w", admin.ID, err)
	}

	seen := make(map[generic.UserID]bool)
	var out []User
	add := func(u User) {
		if seen[u.ID] {
			return
		}
		seen[u.ID] = true
		out = append(out, u)
	}

	members, err := r.users.UsersByID(ctx, link.Users)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.Disabled && !includeDisabled {
			continue
		}
		add(m)
	}

	related, err := r.links.RelatedForAdmin(ctx, admin.ID)
	if err != nil {
		return nil, fmt.Errorf("related users for %s: %w", admin.ID, err)
	}
	if related != nil {
		extra, err := r.users.UsersByID(ctx, related.Users)
		if err != nil {
			return nil, err
		}
		for _, u := range extra {
			if !u.Disabled {
				add(u)
			}
		}
	}

	if user.ID != admin.ID || user.Role.IsOwnAdministrator() {
		add(admin)
	}

	if out == nil {
		out = []User{}
	}
	sortByLastName(out)
	return out, nil
}

func (r *Resolver) getUser(ctx context.Context, id generic.UserID) (User, error) {
	u, err := r.users.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	return *u, nil
}

func linkAdmins(links []AuthorizationLink) []generic.UserID {
	ids := make([]generic.UserID, len(links))
	for i, l := range links {
		ids[i] = l.Admin
	}
	return ids
}

// sortByLastName orders by last name, then ID for a stable result.
func sortByLastName(users []User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		return users[i].ID < users[j].ID
	})
}
