/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates users, authorization links and
	tracking entries relative to today, so balances are always current.

AVAILABLE SCENARIOS:

	small-team:      Admin, team lead, super-user and three agents with
	                 overtime, exact and short days plus holidays
	sick-escalation: An agent one sick day short of the escalation threshold
	ambiguous-admin: An agent listed under three administrators

HOW SCENARIOS WORK:
 1. Invalidate cached figures of the existing users
 2. Reset database (clear all data)
 3. Create users and links
 4. Add tracking entries

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-team"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: entry and balance endpoints to explore the result
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-team",
		Name:        "Small Team",
		Description: "Admin with a team lead, three agents, a related user and a super-user override",
	},
	{
		ID:          "sick-escalation",
		Name:        "Sick Leave Escalation",
		Description: "Agent with 29 sick days in the last 30; recording one more mails the manager",
	},
	{
		ID:          "ambiguous-admin",
		Name:        "Ambiguous Administrator",
		Description: "Agent listed under three administrators; administrator lookup fails with 409",
	},
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "small-team":
		load = h.loadSmallTeamScenario
	case "sick-escalation":
		load = h.loadSickEscalationScenario
	case "ambiguous-admin":
		load = h.loadAmbiguousAdminScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// reset clears the database, dropping cached figures for this and last
// year of every existing user first.
func (h *Handler) reset(ctx context.Context) error {
	users, err := h.Store.ListUsers(ctx)
	if err != nil {
		return err
	}
	year := h.today().Year()
	for _, u := range users {
		h.invalidate(ctx, u.ID, year, year-1)
	}
	return h.Store.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSmallTeamScenario(ctx context.Context) error {
	users := []tracker.User{
		demoUser("admin", "Alex", "Adams", tracker.RoleAdmin, "AD"),
		demoUser("super", "Sam", "Stone", tracker.RoleSuper, "AD"),
		demoUser("lead", "Terry", "Teal", tracker.RoleTeamLead, "TL"),
		demoUser("brown", "Ann", "Brown", tracker.RoleUser, "AD"),
		demoUser("clark", "Cal", "Clark", tracker.RoleUser, "AD"),
		demoUser("davis", "Dee", "Davis", tracker.RoleUser, "XX"),
		demoUser("young", "Yan", "Young", tracker.RoleUser, "AD"),
	}
	if err := h.saveUsers(ctx, users); err != nil {
		return err
	}

	if err := h.Store.SaveLink(ctx, tracker.AuthorizationLink{
		ID: "link-admin", Admin: "admin", Users: []generic.UserID{"lead", "brown", "clark", "davis"},
	}); err != nil {
		return err
	}
	if err := h.Store.SaveLink(ctx, tracker.AuthorizationLink{
		ID: "link-super", Admin: "super", Users: []generic.UserID{"brown"},
	}); err != nil {
		return err
	}
	if err := h.Store.SaveRelated(ctx, tracker.RelatedUsers{Admin: "admin", Users: []generic.UserID{"young"}}); err != nil {
		return err
	}

	days := h.pastWorkdays(15)
	for i, day := range days {
		// Brown works 90 minutes over every day
		if err := h.addEntry(ctx, "brown", day, tracker.DaytypeWorkDay, "08:00", "17:30", "00:30"); err != nil {
			return err
		}

		// Clark works the exact shift and takes two holidays
		clarkType, start, end := tracker.DaytypeWorkDay, "09:00", "17:00"
		if i == 3 || i == 4 {
			clarkType, start, end = tracker.DaytypeHoliday, "", ""
		}
		if err := h.addEntry(ctx, "clark", day, clarkType, start, end, "00:30"); err != nil {
			return err
		}

		// Davis leaves 45 minutes early from home
		if err := h.addEntry(ctx, "davis", day, tracker.DaytypeWorkFromHome, "09:00", "16:15", "00:30"); err != nil {
			return err
		}
	}

	// Brown takes one overtime day back
	return h.addEntry(ctx, "brown", h.today(), tracker.DaytypeReturnOvertime, "", "", "")
}

func (h *Handler) loadSickEscalationScenario(ctx context.Context) error {
	if err := h.saveUsers(ctx, []tracker.User{
		demoUser("admin", "Alex", "Adams", tracker.RoleAdmin, "AD"),
		demoUser("brown", "Ann", "Brown", tracker.RoleUser, "AD"),
	}); err != nil {
		return err
	}
	if err := h.Store.SaveLink(ctx, tracker.AuthorizationLink{
		ID: "link-admin", Admin: "admin", Users: []generic.UserID{"brown"},
	}); err != nil {
		return err
	}

	// 29 consecutive sick days ending yesterday
	yesterday := h.today().AddDays(-1)
	for i := 0; i < tracker.SickLeaveThreshold-1; i++ {
		if err := h.addEntry(ctx, "brown", yesterday.AddDays(-i), tracker.DaytypeSick, "", "", ""); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadAmbiguousAdminScenario(ctx context.Context) error {
	users := []tracker.User{
		demoUser("admin1", "Alex", "Adams", tracker.RoleAdmin, "AD"),
		demoUser("admin2", "Bo", "Baker", tracker.RoleAdmin, "AD"),
		demoUser("admin3", "Cy", "Cole", tracker.RoleAdmin, "AD"),
		demoUser("brown", "Ann", "Brown", tracker.RoleUser, "AD"),
	}
	if err := h.saveUsers(ctx, users); err != nil {
		return err
	}
	for _, admin := range []generic.UserID{"admin1", "admin2", "admin3"} {
		if err := h.Store.SaveLink(ctx, tracker.AuthorizationLink{
			ID: generic.LinkID("link-" + admin), Admin: admin, Users: []generic.UserID{"brown"},
		}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func demoUser(id, first, last string, role tracker.Role, process string) tracker.User {
	return tracker.User{
		ID:             generic.UserID(id),
		Email:          id + "@example.com",
		FirstName:      first,
		LastName:       last,
		Role:           role,
		Market:         "BG",
		Process:        process,
		StartDate:      generic.NewTimePoint(2020, time.January, 6),
		Shift:          generic.NewClock(7, 30),
		Break:          generic.NewClock(0, 30),
		HolidayBalance: 20,
	}
}

func (h *Handler) saveUsers(ctx context.Context, users []tracker.User) error {
	for _, u := range users {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("save user %s: %w", u.ID, err)
		}
	}
	return nil
}

func (h *Handler) addEntry(ctx context.Context, userID generic.UserID, day generic.TimePoint, daytype tracker.Daytype, start, end, breaks string) error {
	req := SaveEntryRequest{
		ID:      uuid.NewString(),
		Date:    day.String(),
		Daytype: string(daytype),
		Start:   start,
		End:     end,
		Breaks:  breaks,
	}
	entry, err := req.toEntry(userID)
	if err != nil {
		return err
	}
	return h.Store.SaveEntry(ctx, entry)
}

// pastWorkdays returns the last n weekdays before today, oldest first.
func (h *Handler) pastWorkdays(n int) []generic.TimePoint {
	days := make([]generic.TimePoint, 0, n)
	for day := h.today().AddDays(-1); len(days) < n; day = day.AddDays(-1) {
		if !day.IsWeekend() {
			days = append(days, day)
		}
	}
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days
}
