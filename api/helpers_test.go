package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/timetracker/mail"
	"github.com/warp/timetracker/store/memory"
	"github.com/warp/timetracker/store/sqlite"
	"github.com/warp/timetracker/tracker"
	"go.uber.org/zap"
)

// Wednesday
var fixedNow = time.Date(2024, time.March, 20, 10, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  http.Handler
	sender  *mail.LogSender
	cache   *memory.Cache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	cache := memory.NewCache()
	clock := func() time.Time { return fixedNow }
	engine := tracker.NewEngine(store,
		tracker.WithCache(cache),
		tracker.WithClock(clock),
		tracker.WithMetrics(tracker.NewMetrics(reg)),
	)
	sender := mail.NewLogSender(zap.NewNop())
	notifier := tracker.NewNotifier(engine, tracker.NewResolver(store, store), sender, tracker.NotifyConfig{}, zap.NewNop())

	h := NewHandler(store, engine, notifier, zap.NewNop())
	h.now = clock

	return &testServer{
		handler: h,
		router:  NewRouter(h, RouterConfig{Gatherer: reg}),
		sender:  sender,
		cache:   cache,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) loadScenario(t *testing.T, id string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	if rec.Code != http.StatusOK {
		t.Fatalf("Failed to load %s: %d %s", id, rec.Code, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func agentRequest(id string) SaveUserRequest {
	return SaveUserRequest{
		ID:             id,
		Email:          id + "@example.com",
		FirstName:      "First",
		LastName:       "Last-" + id,
		Role:           "RUSER",
		Market:         "BG",
		Process:        "AD",
		Shift:          "07:30",
		Break:          "00:30",
		HolidayBalance: 20,
	}
}
