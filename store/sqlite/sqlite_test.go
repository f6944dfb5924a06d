package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(s string) generic.TimePoint {
	d, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestUsers_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := tracker.User{
		ID:             "u1",
		Email:          "u1@example.com",
		FirstName:      "Ada",
		LastName:       "Brown",
		Role:           tracker.RoleUser,
		Market:         "BG",
		Process:        "AD",
		JobCode:        "J-7",
		StartDate:      day("2021-02-01"),
		Shift:          generic.NewClock(7, 30),
		Break:          generic.NewClock(0, 30),
		HolidayBalance: 20,
	}
	require.NoError(t, store.SaveUser(ctx, u))

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, *got)

	u.Disabled = true
	u.HolidayBalance = 25
	require.NoError(t, store.SaveUser(ctx, u))
	got, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Disabled)
	assert.Equal(t, 25, got.HolidayBalance)

	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrUserNotFound)
}

func TestUsers_ListingOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, u := range []tracker.User{
		{ID: "c", LastName: "Zed", Role: tracker.RoleUser},
		{ID: "b", LastName: "Adams", Role: tracker.RoleUser},
		{ID: "a", LastName: "Adams", Role: tracker.RoleUser},
	} {
		require.NoError(t, store.SaveUser(ctx, u))
	}

	all, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []generic.UserID{"a", "b", "c"}, []generic.UserID{all[0].ID, all[1].ID, all[2].ID})

	some, err := store.UsersByID(ctx, []generic.UserID{"c", "nobody", "a"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, generic.UserID("a"), some[0].ID)

	none, err := store.UsersByID(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEntries_Filtering(t *testing.T) {
	// GIVEN: Entries across two months, out of insertion order
	// WHEN: Querying by period and daytype
	// THEN: Only matching entries come back, ordered by date

	store := newTestStore(t)
	ctx := context.Background()

	entries := []tracker.Entry{
		{ID: "e3", UserID: "u1", Date: day("2024-03-05"), Daytype: tracker.DaytypeWorkDay, Start: generic.NewClock(9, 0), End: generic.NewClock(17, 0), Breaks: generic.NewClock(0, 30)},
		{ID: "e1", UserID: "u1", Date: day("2024-02-28"), Daytype: tracker.DaytypeWorkDay, Start: generic.NewClock(8, 15), End: generic.NewClock(16, 45)},
		{ID: "e2", UserID: "u1", Date: day("2024-03-01"), Daytype: tracker.DaytypeSick, Comment: "flu"},
		{ID: "x1", UserID: "u2", Date: day("2024-03-01"), Daytype: tracker.DaytypeWorkDay},
	}
	for _, e := range entries {
		require.NoError(t, store.SaveEntry(ctx, e))
	}

	all, err := store.Entries(ctx, "u1", tracker.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.EntryID("e1"), all[0].ID)
	assert.Equal(t, generic.EntryID("e3"), all[2].ID)
	assert.Equal(t, generic.NewClock(8, 15), all[0].Start)
	assert.Equal(t, "flu", all[1].Comment)

	march, err := store.Entries(ctx, "u1", tracker.EntryFilter{Period: generic.InMonth(2024, time.March)})
	require.NoError(t, err)
	assert.Len(t, march, 2)

	work, err := store.Entries(ctx, "u1", tracker.EntryFilter{
		Period:   generic.InYear(2024),
		Daytypes: []tracker.Daytype{tracker.DaytypeWorkDay},
	})
	require.NoError(t, err)
	assert.Len(t, work, 2)

	none, err := store.Entries(ctx, "u1", tracker.EntryFilter{Daytypes: []tracker.Daytype{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEntries_UpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := tracker.Entry{ID: "e1", UserID: "u1", Date: day("2024-03-04"), Daytype: tracker.DaytypeWorkDay}
	require.NoError(t, store.SaveEntry(ctx, e))

	e.Daytype = tracker.DaytypeHoliday
	e.LinkedTo = "e0"
	require.NoError(t, store.SaveEntry(ctx, e))

	got, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, tracker.DaytypeHoliday, got.Daytype)
	assert.True(t, got.IsLinked())

	require.NoError(t, store.DeleteEntry(ctx, "e1"))
	_, err = store.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
	assert.ErrorIs(t, store.DeleteEntry(ctx, "e1"), generic.ErrEntryNotFound)
}

func TestLinks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLink(ctx, tracker.AuthorizationLink{ID: "l2", Admin: "super", Users: []generic.UserID{"u1"}}))
	require.NoError(t, store.SaveLink(ctx, tracker.AuthorizationLink{ID: "l1", Admin: "admin", Users: []generic.UserID{"u2", "u1"}}))

	links, err := store.LinksForSubordinate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, generic.LinkID("l1"), links[0].ID)
	assert.Equal(t, []generic.UserID{"u1", "u2"}, links[0].Users)

	link, err := store.LinkForAdmin(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, link.Has("u2"))

	t.Run("saving a new link replaces the admin's old one", func(t *testing.T) {
		require.NoError(t, store.SaveLink(ctx, tracker.AuthorizationLink{ID: "l3", Admin: "admin", Users: []generic.UserID{"u3"}}))

		link, err := store.LinkForAdmin(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, generic.LinkID("l3"), link.ID)

		links, err := store.LinksForSubordinate(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, generic.UserID("super"), links[0].Admin)
	})

	_, err = store.LinkForAdmin(ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrLinkNotFound)
}

func TestRelated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	none, err := store.RelatedForAdmin(ctx, "admin")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, store.SaveRelated(ctx, tracker.RelatedUsers{Admin: "admin", Users: []generic.UserID{"r2", "r1"}}))
	related, err := store.RelatedForAdmin(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []generic.UserID{"r1", "r2"}, related.Users)
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, tracker.User{ID: "u1", Role: tracker.RoleUser}))
	require.NoError(t, store.SaveEntry(ctx, tracker.Entry{ID: "e1", UserID: "u1", Date: day("2024-03-04"), Daytype: tracker.DaytypeWorkDay}))
	require.NoError(t, store.Reset(ctx))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	_, err = store.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
}

func TestEngineOverSQLite(t *testing.T) {
	// GIVEN: A user with one 9:00 workday over a 7:30 shift
	// WHEN: The engine computes the balance from SQLite
	// THEN: The surplus is an hour and a half

	store := newTestStore(t)
	ctx := context.Background()
	u := tracker.User{ID: "u1", Role: tracker.RoleUser, Shift: generic.NewClock(7, 30), Break: generic.NewClock(0, 30)}
	require.NoError(t, store.SaveUser(ctx, u))
	require.NoError(t, store.SaveEntry(ctx, tracker.Entry{
		ID: "e1", UserID: "u1", Date: day("2024-03-04"), Daytype: tracker.DaytypeWorkDay,
		Start: generic.NewClock(8, 0), End: generic.NewClock(17, 30), Breaks: generic.NewClock(0, 30),
	}))

	engine := tracker.NewEngine(store)
	got, err := engine.FormatBalance(ctx, u, generic.AllTime(), string(tracker.FormatDuration))
	require.NoError(t, err)
	assert.Equal(t, "01:30", got)
}
