/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the tracker's domain model from the external API contract: dates travel
  as YYYY-MM-DD strings, clocks as HH:MM, balances as decimal strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"

	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
)

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	RoleLabel      string `json:"role_label"`
	Market         string `json:"market"`
	Process        string `json:"process"`
	JobCode        string `json:"job_code,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	Shift          string `json:"shift"`
	Break          string `json:"break"`
	HolidayBalance int    `json:"holiday_balance"`
	Disabled       bool   `json:"disabled"`
}

// SaveUserRequest creates a user, or replaces one when ID is set.
type SaveUserRequest struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Role           string `json:"role"`
	Market         string `json:"market"`
	Process        string `json:"process"`
	JobCode        string `json:"job_code"`
	StartDate      string `json:"start_date"`
	Shift          string `json:"shift"`
	Break          string `json:"break"`
	HolidayBalance int    `json:"holiday_balance"`
	Disabled       bool   `json:"disabled"`
}

func toUserDTO(u tracker.User) UserDTO {
	dto := UserDTO{
		ID:             string(u.ID),
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Name:           u.Name(),
		Role:           string(u.Role),
		RoleLabel:      u.Role.Label(),
		Market:         u.Market,
		Process:        u.Process,
		JobCode:        u.JobCode,
		Shift:          u.Shift.String(),
		Break:          u.Break.String(),
		HolidayBalance: u.HolidayBalance,
		Disabled:       u.Disabled,
	}
	if !u.StartDate.IsZero() {
		dto.StartDate = u.StartDate.String()
	}
	return dto
}

func toUserDTOs(users []tracker.User) []UserDTO {
	out := make([]UserDTO, len(users))
	for i, u := range users {
		out[i] = toUserDTO(u)
	}
	return out
}

func (req SaveUserRequest) toUser() (tracker.User, error) {
	role, err := tracker.ParseRole(req.Role)
	if err != nil {
		return tracker.User{}, fmt.Errorf("%v: %w", err, generic.ErrInvalidArgument)
	}
	u := tracker.User{
		ID:             generic.UserID(req.ID),
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           role,
		Market:         req.Market,
		Process:        req.Process,
		JobCode:        req.JobCode,
		HolidayBalance: req.HolidayBalance,
		Disabled:       req.Disabled,
	}
	if req.StartDate != "" {
		if u.StartDate, err = generic.ParseDate(req.StartDate); err != nil {
			return u, fmt.Errorf("start_date: %v: %w", err, generic.ErrInvalidArgument)
		}
	}
	if u.Shift, err = optionalClock("shift", req.Shift); err != nil {
		return u, err
	}
	if u.Break, err = optionalClock("break", req.Break); err != nil {
		return u, err
	}
	return u, nil
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Date         string `json:"date"`
	Daytype      string `json:"daytype"`
	DaytypeLabel string `json:"daytype_label"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Breaks       string `json:"breaks"`
	TotalHours   string `json:"total_hours"`
	Comment      string `json:"comment,omitempty"`
	LinkedTo     string `json:"linked_to,omitempty"`
}

type SaveEntryRequest struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Daytype  string `json:"daytype"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Breaks   string `json:"breaks"`
	Comment  string `json:"comment"`
	LinkedTo string `json:"linked_to"`
}

type SaveEntryResponse struct {
	Entry             EntryDTO `json:"entry"`
	SickLeaveNotified bool     `json:"sick_leave_notified"`
}

func toEntryDTO(e tracker.Entry) EntryDTO {
	return EntryDTO{
		ID:           string(e.ID),
		UserID:       string(e.UserID),
		Date:         e.Date.String(),
		Daytype:      string(e.Daytype),
		DaytypeLabel: e.Daytype.Label(),
		Start:        e.Start.String(),
		End:          e.End.String(),
		Breaks:       e.Breaks.String(),
		TotalHours:   tracker.DurationString(e.TotalHours()),
		Comment:      e.Comment,
		LinkedTo:     string(e.LinkedTo),
	}
}

func (req SaveEntryRequest) toEntry(userID generic.UserID) (tracker.Entry, error) {
	daytype, err := tracker.ParseDaytype(req.Daytype)
	if err != nil {
		return tracker.Entry{}, fmt.Errorf("%v: %w", err, generic.ErrInvalidArgument)
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		return tracker.Entry{}, fmt.Errorf("date: %v: %w", err, generic.ErrInvalidArgument)
	}
	e := tracker.Entry{
		ID:       generic.EntryID(req.ID),
		UserID:   userID,
		Date:     date,
		Daytype:  daytype,
		Comment:  req.Comment,
		LinkedTo: generic.EntryID(req.LinkedTo),
	}
	if e.Start, err = optionalClock("start", req.Start); err != nil {
		return e, err
	}
	if e.End, err = optionalClock("end", req.End); err != nil {
		return e, err
	}
	if e.Breaks, err = optionalClock("breaks", req.Breaks); err != nil {
		return e, err
	}
	if daytype.IsWorking() && e.End.Duration() < e.Start.Duration() {
		return e, fmt.Errorf("end %s before start %s: %w", e.End, e.Start, generic.ErrInvalidArgument)
	}
	return e, nil
}

func optionalClock(field, s string) (generic.Clock, error) {
	if s == "" {
		return generic.Clock{}, nil
	}
	c, err := generic.ParseClock(s)
	if err != nil {
		return c, fmt.Errorf("%s: %v: %w", field, err, generic.ErrInvalidArgument)
	}
	return c, nil
}

// =============================================================================
// BALANCES
// =============================================================================

// BalanceDTO always carries the raw decimal hours, the HH:MM rendering and
// the severity. Formatted is set when the request named a format.
type BalanceDTO struct {
	UserID    string `json:"user_id"`
	Period    string `json:"period"`
	Hours     string `json:"hours"`
	Duration  string `json:"duration"`
	Severity  string `json:"severity"`
	Format    string `json:"format,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

type HolidaysDTO struct {
	UserID         string `json:"user_id"`
	Year           int    `json:"year"`
	HolidayBalance int    `json:"holiday_balance"`
}

type BalancesDTO struct {
	UserID   string         `json:"user_id"`
	Year     int            `json:"year"`
	Balances map[string]int `json:"balances"`
}

type BreakdownLineDTO struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type BreakdownDTO struct {
	UserID        string             `json:"user_id"`
	ZeroesMonthly bool               `json:"zeroes_monthly"`
	Lines         []BreakdownLineDTO `json:"lines"`
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

type SaveLinkRequest struct {
	ID    string   `json:"id"`
	Admin string   `json:"admin"`
	Users []string `json:"users"`
}

type SaveRelatedRequest struct {
	Admin string   `json:"admin"`
	Users []string `json:"users"`
}

func toUserIDs(ids []string) []generic.UserID {
	out := make([]generic.UserID, len(ids))
	for i, id := range ids {
		out[i] = generic.UserID(id)
	}
	return out
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
