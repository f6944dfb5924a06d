/*
handlers_test.go - Tests for API handlers

Tests for:
- User creation, lookup and validation
- Balance endpoint formats and period parsing
- Cache invalidation on entry writes and deletes
- Sick leave escalation on entry save
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
	"github.com/xuri/excelize/v2"
)

func TestSaveUser_AndGet(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/users", agentRequest("u1"))
	expectStatus(t, rec, http.StatusCreated)

	rec = s.do(t, http.MethodGet, "/api/users/u1", nil)
	expectStatus(t, rec, http.StatusOK)
	user := decode[UserDTO](t, rec)
	if user.Shift != "07:30" || user.Break != "00:30" {
		t.Errorf("Expected shift 07:30 and break 00:30, got %s and %s", user.Shift, user.Break)
	}
	if user.RoleLabel != "Regular User" {
		t.Errorf("Expected role label Regular User, got %s", user.RoleLabel)
	}
}

func TestSaveUser_GeneratesID(t *testing.T) {
	s := newTestServer(t)

	req := agentRequest("")
	rec := s.do(t, http.MethodPost, "/api/users", req)
	expectStatus(t, rec, http.StatusCreated)

	user := decode[UserDTO](t, rec)
	if user.ID == "" {
		t.Fatal("Expected a generated ID")
	}
}

func TestSaveUser_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(*SaveUserRequest)
	}{
		{"unknown role", func(r *SaveUserRequest) { r.Role = "BOSS" }},
		{"bad shift", func(r *SaveUserRequest) { r.Shift = "7h30" }},
		{"bad start date", func(r *SaveUserRequest) { r.StartDate = "01/02/2024" }},
		{"missing email", func(r *SaveUserRequest) { r.Email = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := agentRequest("u1")
			tt.mutate(&req)
			expectStatus(t, s.do(t, http.MethodPost, "/api/users", req), http.StatusBadRequest)
		})
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/api/users/nobody", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/api/users/nobody/balance", nil), http.StatusNotFound)
}

func TestSaveUser_BaselineEditShowsImmediately(t *testing.T) {
	// GIVEN: A cached holiday balance of 19 (baseline 20, one holiday)
	// WHEN: The user is saved again with a baseline of 25
	// THEN: The holiday balance reads 24 without touching any entry

	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest("u1")), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users/u1/entries",
		SaveEntryRequest{Date: "2024-02-12", Daytype: "HOLIS"}), http.StatusCreated)

	holidays := func() int {
		rec := s.do(t, http.MethodGet, "/api/users/u1/holidays?year=2024", nil)
		expectStatus(t, rec, http.StatusOK)
		return decode[HolidaysDTO](t, rec).HolidayBalance
	}
	if got := holidays(); got != 19 {
		t.Fatalf("Expected 19, got %d", got)
	}

	req := agentRequest("u1")
	req.HolidayBalance = 25
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", req), http.StatusCreated)

	if got := holidays(); got != 24 {
		t.Fatalf("Expected 24 after the baseline edit, got %d", got)
	}
}

func TestGetBalance(t *testing.T) {
	// GIVEN: An agent with one 9:00 day over a 7:30 shift
	// WHEN: Requesting the balance in several formats
	// THEN: Every format renders the same +1:30

	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest("u1")), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users/u1/entries", SaveEntryRequest{
		Date: "2024-03-04", Daytype: "WKDAY", Start: "08:00", End: "17:30", Breaks: "00:30",
	}), http.StatusCreated)

	tests := []struct {
		query     string
		formatted string
	}{
		{"?year=2024&format=int", "01:30"},
		{"?year=2024&month=3&format=num", "1"},
		{"?from=2024-03-01&to=2024-03-31&format=flo", "1.5"},
		{"?format=HTML", "<p class=tracker-val-ok>01:30</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/users/u1/balance"+tt.query, nil)
			expectStatus(t, rec, http.StatusOK)
			dto := decode[BalanceDTO](t, rec)
			if dto.Formatted != tt.formatted {
				t.Errorf("Expected %q, got %q", tt.formatted, dto.Formatted)
			}
			if dto.Duration != "01:30" || dto.Severity != "ok" {
				t.Errorf("Expected 01:30/ok, got %s/%s", dto.Duration, dto.Severity)
			}
		})
	}

	rec := s.do(t, http.MethodGet, "/api/users/u1/balance?year=2023", nil)
	expectStatus(t, rec, http.StatusOK)
	if dto := decode[BalanceDTO](t, rec); dto.Duration != "00:00" {
		t.Errorf("Expected an empty 2023, got %s", dto.Duration)
	}
}

func TestGetBalance_ClientErrors(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest("u1")), http.StatusCreated)

	for _, query := range []string{
		"?format=xml",
		"?year=2024&month=13",
		"?month=3",
		"?from=2024-03-01",
		"?from=2024-03-31&to=2024-03-01",
		"?year=twenty",
	} {
		t.Run(query, func(t *testing.T) {
			expectStatus(t, s.do(t, http.MethodGet, "/api/users/u1/balance"+query, nil), http.StatusBadRequest)
		})
	}
}

func TestEntryWrites_InvalidateHolidayBalance(t *testing.T) {
	// GIVEN: A cached holiday balance of 20
	// WHEN: A holiday is recorded, then deleted
	// THEN: The balance follows immediately both times

	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest("u1")), http.StatusCreated)

	holidays := func() int {
		rec := s.do(t, http.MethodGet, "/api/users/u1/holidays?year=2024", nil)
		expectStatus(t, rec, http.StatusOK)
		return decode[HolidaysDTO](t, rec).HolidayBalance
	}

	if got := holidays(); got != 20 {
		t.Fatalf("Expected 20, got %d", got)
	}
	if s.cache.Len() == 0 {
		t.Fatal("Expected the holiday balance to be cached")
	}

	rec := s.do(t, http.MethodPost, "/api/users/u1/entries", SaveEntryRequest{Date: "2024-05-02", Daytype: "holis"})
	expectStatus(t, rec, http.StatusCreated)
	saved := decode[SaveEntryResponse](t, rec)

	if got := holidays(); got != 19 {
		t.Fatalf("Expected 19 after a holiday, got %d", got)
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/api/entries/"+saved.Entry.ID, nil), http.StatusNoContent)
	if got := holidays(); got != 20 {
		t.Fatalf("Expected 20 after deleting, got %d", got)
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/api/entries/"+saved.Entry.ID, nil), http.StatusNotFound)
}

func TestSaveEntry_MovingYearsInvalidatesBoth(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest("u1")), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users/u1/entries",
		SaveEntryRequest{ID: "e1", Date: "2023-12-29", Daytype: "HOLIS"}), http.StatusCreated)

	rec := s.do(t, http.MethodGet, "/api/users/u1/holidays?year=2023", nil)
	if got := decode[HolidaysDTO](t, rec).HolidayBalance; got != 19 {
		t.Fatalf("Expected 19 in 2023, got %d", got)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/users/u1/entries",
		SaveEntryRequest{ID: "e1", Date: "2024-01-02", Daytype: "HOLIS"}), http.StatusCreated)

	rec = s.do(t, http.MethodGet, "/api/users/u1/holidays?year=2023", nil)
	if got := decode[HolidaysDTO](t, rec).HolidayBalance; got != 20 {
		t.Errorf("Expected 2023 back to 20, got %d", got)
	}
}

func TestSaveEntry_Invalid(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest("u1")), http.StatusCreated)

	for name, req := range map[string]SaveEntryRequest{
		"unknown daytype":  {Date: "2024-03-04", Daytype: "NAPPY"},
		"bad date":         {Date: "2024-13-01", Daytype: "WKDAY"},
		"bad time":         {Date: "2024-03-04", Daytype: "WKDAY", Start: "nine"},
		"end before start": {Date: "2024-03-04", Daytype: "WKDAY", Start: "17:00", End: "09:00"},
	} {
		t.Run(name, func(t *testing.T) {
			expectStatus(t, s.do(t, http.MethodPost, "/api/users/u1/entries", req), http.StatusBadRequest)
		})
	}
}

func TestSaveEntry_SickLeaveEscalation(t *testing.T) {
	// GIVEN: An agent with 29 sick days ending yesterday
	// WHEN: Today's sick day is recorded through the API
	// THEN: The response reports the escalation and the manager is mailed

	s := newTestServer(t)
	s.loadScenario(t, "sick-escalation")

	rec := s.do(t, http.MethodPost, "/api/users/brown/entries", SaveEntryRequest{Date: "2024-03-20", Daytype: "SICKD"})
	expectStatus(t, rec, http.StatusCreated)

	if !decode[SaveEntryResponse](t, rec).SickLeaveNotified {
		t.Fatal("Expected a sick leave notification")
	}
	sent := s.sender.Sent()
	if len(sent) != 1 || sent[0].To[0] != "admin@example.com" {
		t.Fatalf("Expected one mail to admin@example.com, got %+v", sent)
	}
}

func TestListEntries(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	rec := s.do(t, http.MethodGet, "/api/users/clark/entries?year=2024&month=3", nil)
	expectStatus(t, rec, http.StatusOK)
	entries := decode[[]EntryDTO](t, rec)
	if len(entries) == 0 {
		t.Fatal("Expected March entries")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Date < entries[i-1].Date {
			t.Fatalf("Entries out of order: %s before %s", entries[i-1].Date, entries[i].Date)
		}
	}
}

func TestAdministratorAndSubordinates(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	rec := s.do(t, http.MethodGet, "/api/users/brown/administrator", nil)
	expectStatus(t, rec, http.StatusOK)
	if admin := decode[UserDTO](t, rec); admin.ID != "admin" {
		t.Errorf("Expected admin over the super-user, got %s", admin.ID)
	}

	rec = s.do(t, http.MethodGet, "/api/users/admin/subordinates", nil)
	expectStatus(t, rec, http.StatusOK)
	var names []string
	for _, u := range decode[[]UserDTO](t, rec) {
		names = append(names, u.LastName)
	}
	want := "Adams,Brown,Clark,Davis,Teal,Young"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestAdministrator_AmbiguousIsConflict(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "ambiguous-admin")

	expectStatus(t, s.do(t, http.MethodGet, "/api/users/brown/administrator", nil), http.StatusConflict)
}

func TestSaveLinkAndRelated(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, id := range []string{"boss", "u1", "u2"} {
		expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest(id)), http.StatusCreated)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/links", SaveLinkRequest{Admin: "ghost", Users: []string{"u1"}}), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPost, "/api/links", SaveLinkRequest{Admin: "boss", Users: []string{"u1"}}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/related", SaveRelatedRequest{Admin: "boss", Users: []string{"u2"}}), http.StatusCreated)

	link, err := s.handler.Store.LinkForAdmin(ctx, "boss")
	if err != nil {
		t.Fatalf("Failed to load link: %v", err)
	}
	if !link.Has(generic.UserID("u1")) {
		t.Error("Expected u1 in the link")
	}
	related, err := s.handler.Store.RelatedForAdmin(ctx, "boss")
	if err != nil || related == nil || len(related.Users) != 1 {
		t.Errorf("Expected one related user, got %+v (%v)", related, err)
	}
}

func TestBalancesAndBreakdown(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	rec := s.do(t, http.MethodGet, "/api/users/clark/balances?year=2024", nil)
	expectStatus(t, rec, http.StatusOK)
	balances := decode[BalancesDTO](t, rec).Balances
	if balances[tracker.DaytypeHoliday.Label()] != 2 || balances[tracker.CalculatedHolidaysLabel] != 18 {
		t.Errorf("Expected 2 holidays and 18 left, got %v", balances)
	}

	rec = s.do(t, http.MethodGet, "/api/users/brown/breakdown", nil)
	expectStatus(t, rec, http.StatusOK)
	breakdown := decode[BreakdownDTO](t, rec)
	if len(breakdown.Lines) != 2 || breakdown.Lines[0].Label != "Last 7 Days" {
		t.Errorf("Unexpected breakdown %+v", breakdown)
	}
}

func TestTeamReport(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	expectStatus(t, s.do(t, http.MethodGet, "/api/reports/2024", nil), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodGet, "/api/reports/2024?admin=ghost", nil), http.StatusNotFound)

	rec := s.do(t, http.MethodGet, "/api/reports/2024?admin=admin", nil)
	expectStatus(t, rec, http.StatusOK)
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "balances_admin_2024.xlsx") {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Balances 2024")
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	// title, header, six team members
	if len(rows) != 8 {
		t.Errorf("Expected 8 rows, got %d", len(rows))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/healthz", nil), http.StatusOK)

	expectStatus(t, s.do(t, http.MethodPost, "/api/users", agentRequest("u1")), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodGet, "/api/users/u1/balance", nil), http.StatusOK)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "timetracker_balance_computations_total") {
		t.Error("Expected the balance computation counter in /metrics")
	}
}
