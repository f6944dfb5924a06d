package api

import (
	"net/http"
	"testing"
)

func TestListScenarios(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]ScenarioDTO](t, rec); len(got) != 3 {
		t.Errorf("Expected 3 scenarios, got %d", len(got))
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}), http.StatusBadRequest)
}

func TestSmallTeamScenario_Balances(t *testing.T) {
	// GIVEN: The small team loaded 15 workdays back from a Wednesday
	// WHEN: Requesting all-time balances
	// THEN: Overtime, exact and short days show up as expected

	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	tests := []struct {
		user     string
		duration string
		severity string
	}{
		// 15 days at +1:30, minus one return day of shift plus break
		{"brown", "14:30", "danger"},
		{"clark", "00:00", "ok"},
		// 15 days at -0:45
		{"davis", "-11:15", "danger"},
		{"young", "00:00", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/users/"+tt.user+"/balance", nil)
			expectStatus(t, rec, http.StatusOK)
			dto := decode[BalanceDTO](t, rec)
			if dto.Duration != tt.duration {
				t.Errorf("Expected %s, got %s", tt.duration, dto.Duration)
			}
			if dto.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, dto.Severity)
			}
		})
	}

	rec := s.do(t, http.MethodGet, "/api/users/clark/holidays", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[HolidaysDTO](t, rec).HolidayBalance; got != 18 {
		t.Errorf("Expected clark to have 18 holidays left, got %d", got)
	}
}

func TestLoadScenario_ResetsPreviousData(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	// warm the cache for a user that exists in both scenarios
	rec := s.do(t, http.MethodGet, "/api/users/brown/holidays", nil)
	expectStatus(t, rec, http.StatusOK)

	s.loadScenario(t, "sick-escalation")

	expectStatus(t, s.do(t, http.MethodGet, "/api/users/clark", nil), http.StatusNotFound)

	rec = s.do(t, http.MethodGet, "/api/users/brown/balances", nil)
	expectStatus(t, rec, http.StatusOK)
	balances := decode[BalancesDTO](t, rec).Balances
	// 29 sick days ending 2024-03-19 all fall in 2024
	if balances["Sickness Absence"] != 29 {
		t.Errorf("Expected 29 sick days, got %d", balances["Sickness Absence"])
	}

	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[ScenarioDTO](t, rec); got.ID != "sick-escalation" {
		t.Errorf("Expected current scenario sick-escalation, got %q", got.ID)
	}
}
