package tracker

import (
	"github.com/shopspring/decimal"
	"github.com/warp/timetracker/generic"
)

// =============================================================================
// USER
// =============================================================================

// User is an employee and, depending on Role, possibly a manager.
type User struct {
	ID        generic.UserID
	Email     string
	FirstName string
	LastName  string
	Role      Role

	// Market and Process classify the user's account; Market selects
	// calculation and notification overrides.
	Market  string
	Process string
	JobCode string

	StartDate generic.TimePoint
	Shift     generic.Clock
	Break     generic.Clock

	// HolidayBalance is the yearly baseline before entries are applied.
	HolidayBalance int
	Disabled       bool
}

func (u User) Name() string { return u.FirstName + " " + u.LastName }

func (u User) ReversedName() string { return u.LastName + ", " + u.FirstName }

// ShiftHours is the length of a full working day including the break.
func (u User) ShiftHours() generic.Amount {
	return generic.Hours(u.Shift.Hour+u.Break.Hour, u.Shift.Minute+u.Break.Minute)
}

// FTE is the fraction of an eight hour day the user's shift represents.
func (u User) FTE() decimal.Decimal {
	shift := u.ShiftHours()
	if shift.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(8).Div(shift.Value)
}

// =============================================================================
// TRACKING ENTRY
// =============================================================================

// Entry is one day of tracking for one user. One entry per (user, date) is
// the expected steady state but it is not enforced here.
type Entry struct {
	ID      generic.EntryID
	UserID  generic.UserID
	Date    generic.TimePoint
	Daytype Daytype
	Start   generic.Clock
	End     generic.Clock
	Breaks  generic.Clock
	Comment string

	// LinkedTo points at the entry whose hours already cover this one.
	LinkedTo generic.EntryID
}

func (e Entry) IsLinked() bool { return e.LinkedTo != "" }

// TotalHours is end minus start minus breaks, hours and minutes subtracted
// separately.
func (e Entry) TotalHours() generic.Amount {
	return generic.Hours(
		e.End.Hour-e.Start.Hour-e.Breaks.Hour,
		e.End.Minute-e.Start.Minute-e.Breaks.Minute,
	)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

// AuthorizationLink ties an administrator (ADMIN or SUPER) to the users on
// their team.
type AuthorizationLink struct {
	ID    generic.LinkID
	Admin generic.UserID
	Users []generic.UserID
}

func (l AuthorizationLink) Has(id generic.UserID) bool {
	for _, u := range l.Users {
		if u == id {
			return true
		}
	}
	return false
}

// RelatedUsers widens what an administrator can see without making those
// users part of the team.
type RelatedUsers struct {
	Admin generic.UserID
	Users []generic.UserID
}
