/*
handlers.go - HTTP API handlers for the time tracker

PURPOSE:
  Exposes the balance engine, the team resolver and entry bookkeeping via a
  JSON API. Handles HTTP request/response, JSON serialization, and
  delegates to the tracker package.

ENDPOINTS:
  Users:
    GET    /api/users                          List all users
    POST   /api/users                          Create or replace a user
    GET    /api/users/{id}                     User details
    GET    /api/users/{id}/administrator       Resolved administrator
    GET    /api/users/{id}/subordinates        Visible team (?all=true adds disabled)

  Balances:
    GET    /api/users/{id}/balance             Overtime (?year&month&from&to&format)
    GET    /api/users/{id}/holidays            Holiday balance (?year)
    GET    /api/users/{id}/balances            Daytype counts (?year)
    GET    /api/users/{id}/breakdown           Last 7 days and last month

  Entries:
    GET    /api/users/{id}/entries             Entries (?year&month&from&to)
    POST   /api/users/{id}/entries             Save an entry
    DELETE /api/entries/{id}                   Delete an entry

  Authorization:
    POST   /api/links                          Save an administrator's link
    POST   /api/related                        Save related users

  Reports:
    GET    /api/reports/{year}?admin={id}      Team balances as XLSX

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the engine, resolver or store
  4. Serialize response
  5. Map errors to a status

ENTRY WRITES:
  Every entry save or delete invalidates the cached holiday balance and
  daytype counts of the affected years, then runs the recorded-entry
  notification (sick leave escalation).

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, unsupported format, malformed period
  - 404: User, entry or link not found
  - 409: Ambiguous administrator
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Visibility rules are exposed, not enforced.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/report"
	"github.com/warp/timetracker/store/sqlite"
	"github.com/warp/timetracker/tracker"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *tracker.Engine
	Resolver *tracker.Resolver
	Notifier *tracker.Notifier
	Reports  *report.Generator

	log *zap.Logger
	now func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the handler. The notifier may be nil, in which case no
// notification is sent on entry writes.
func NewHandler(store *sqlite.Store, engine *tracker.Engine, notifier *tracker.Notifier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	resolver := tracker.NewResolver(store, store)
	return &Handler{
		Store:    store,
		Engine:   engine,
		Resolver: resolver,
		Notifier: notifier,
		Reports:  report.NewGenerator(engine, resolver, log),
		log:      log,
		now:      time.Now,
	}
}

func (h *Handler) today() generic.TimePoint { return generic.Day(h.now()) }

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users ordered by last name.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// SaveUser creates a user (generating an ID when absent) or replaces one.
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "email and last_name are required", nil)
		return
	}

	user, err := req.toUser()
	if err != nil {
		h.writeDomainError(w, "Invalid user", err)
		return
	}
	if user.ID == "" {
		user.ID = generic.UserID(uuid.NewString())
	}

	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		h.writeDomainError(w, "Failed to save user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// GetAdministrator returns the user's resolved administrator.
func (h *Handler) GetAdministrator(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	admin, err := h.Resolver.Administrator(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve administrator", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(admin))
}

// GetSubordinates returns the users visible to the user's role.
func (h *Handler) GetSubordinates(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	includeDisabled, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	team, err := h.Resolver.Subordinates(r.Context(), user, includeDisabled)
	if err != nil {
		h.writeDomainError(w, "Failed to list subordinates", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(team))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the overtime balance for the requested period.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	filter, err := parsePeriodFilter(r)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}

	ctx := r.Context()
	dto := BalanceDTO{UserID: string(user.ID), Period: filter.String()}

	if format := r.URL.Query().Get("format"); format != "" {
		formatted, err := h.Engine.FormatBalance(ctx, user, filter, format)
		if err != nil {
			h.writeDomainError(w, "Failed to format balance", err)
			return
		}
		dto.Format = format
		dto.Formatted = formatted
	}

	balance, err := h.Engine.TotalBalance(ctx, user, filter)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balance", err)
		return
	}
	dto.Hours = balance.Value.String()
	dto.Duration = tracker.DurationString(balance)
	dto.Severity = string(tracker.Classify(balance))

	writeJSON(w, http.StatusOK, dto)
}

// GetHolidays returns the holiday balance for ?year (default: this year).
func (h *Handler) GetHolidays(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	year, err := h.yearParam(r)
	if err != nil {
		h.writeDomainError(w, "Invalid year", err)
		return
	}

	balance, err := h.Engine.HolidayBalance(r.Context(), user, year)
	if err != nil {
		h.writeDomainError(w, "Failed to compute holiday balance", err)
		return
	}
	writeJSON(w, http.StatusOK, HolidaysDTO{UserID: string(user.ID), Year: year, HolidayBalance: balance})
}

// GetBalances returns the per-daytype counts and the holiday balance.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	year, err := h.yearParam(r)
	if err != nil {
		h.writeDomainError(w, "Invalid year", err)
		return
	}

	balances, err := h.Engine.Balances(r.Context(), user, year)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balances", err)
		return
	}
	writeJSON(w, http.StatusOK, BalancesDTO{UserID: string(user.ID), Year: year, Balances: balances})
}

// GetBreakdown returns the last-7-days and last-month balances as HTML.
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	lines, err := h.Engine.Breakdown(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, "Failed to compute breakdown", err)
		return
	}

	dto := BreakdownDTO{UserID: string(user.ID), ZeroesMonthly: h.Engine.ZeroesHours(user)}
	for _, l := range lines {
		dto.Lines = append(dto.Lines, BreakdownLineDTO{Label: l.Label, Value: l.Value})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns the user's entries for the requested period.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	filter, err := parsePeriodFilter(r)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}
	if err := filter.Validate(); err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}

	entries, err := h.Store.Entries(r.Context(), user.ID, tracker.EntryFilter{Period: filter})
	if err != nil {
		h.writeDomainError(w, "Failed to list entries", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveEntry records an entry for the user, invalidates the cached yearly
// figures and runs the recorded-entry notification.
func (h *Handler) SaveEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	var req SaveEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	entry, err := req.toEntry(user.ID)
	if err != nil {
		h.writeDomainError(w, "Invalid entry", err)
		return
	}

	ctx := r.Context()
	years := []int{entry.Date.Year()}
	if entry.ID == "" {
		entry.ID = generic.EntryID(uuid.NewString())
	} else if previous, err := h.Store.GetEntry(ctx, entry.ID); err == nil {
		if previous.UserID != user.ID {
			writeError(w, http.StatusBadRequest, "Entry belongs to another user", nil)
			return
		}
		if previous.Date.Year() != entry.Date.Year() {
			years = append(years, previous.Date.Year())
		}
	} else if !errors.Is(err, generic.ErrEntryNotFound) {
		h.writeDomainError(w, "Failed to load entry", err)
		return
	}

	if err := h.Store.SaveEntry(ctx, entry); err != nil {
		h.writeDomainError(w, "Failed to save entry", err)
		return
	}
	h.invalidate(ctx, user.ID, years...)

	resp := SaveEntryResponse{Entry: toEntryDTO(entry)}
	if h.Notifier != nil {
		sent, err := h.Notifier.RecordedEntry(ctx, user, entry)
		if err != nil {
			h.log.Warn("recorded entry notification failed",
				zap.String("user", string(user.ID)),
				zap.String("entry", string(entry.ID)),
				zap.Error(err),
			)
		}
		resp.SickLeaveNotified = sent
	}
	writeJSON(w, http.StatusCreated, resp)
}

// DeleteEntry removes an entry and invalidates its year.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.EntryID(chi.URLParam(r, "id"))

	entry, err := h.Store.GetEntry(ctx, id)
	if err != nil {
		h.writeDomainError(w, "Failed to load entry", err)
		return
	}
	if err := h.Store.DeleteEntry(ctx, id); err != nil {
		h.writeDomainError(w, "Failed to delete entry", err)
		return
	}
	h.invalidate(ctx, entry.UserID, entry.Date.Year())

	w.WriteHeader(http.StatusNoContent)
}

// invalidate drops cached figures. A failing cache is logged; the write
// itself already succeeded.
func (h *Handler) invalidate(ctx context.Context, userID generic.UserID, years ...int) {
	for _, year := range years {
		if err := h.Engine.Invalidate(ctx, userID, year); err != nil {
			h.log.Warn("cache invalidation failed",
				zap.String("user", string(userID)),
				zap.Int("year", year),
				zap.Error(err),
			)
		}
	}
}

// =============================================================================
// AUTHORIZATION HANDLERS
// =============================================================================

// SaveLink stores an administrator's link, replacing any previous one.
func (h *Handler) SaveLink(w http.ResponseWriter, r *http.Request) {
	var req SaveLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Admin == "" {
		writeError(w, http.StatusBadRequest, "admin is required", nil)
		return
	}
	if _, err := h.Store.GetUser(r.Context(), generic.UserID(req.Admin)); err != nil {
		h.writeDomainError(w, "Unknown administrator", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	link := tracker.AuthorizationLink{ID: generic.LinkID(req.ID), Admin: generic.UserID(req.Admin), Users: toUserIDs(req.Users)}
	if err := h.Store.SaveLink(r.Context(), link); err != nil {
		h.writeDomainError(w, "Failed to save link", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SaveRelated stores the administrator's related users.
func (h *Handler) SaveRelated(w http.ResponseWriter, r *http.Request) {
	var req SaveRelatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Admin == "" {
		writeError(w, http.StatusBadRequest, "admin is required", nil)
		return
	}

	related := tracker.RelatedUsers{Admin: generic.UserID(req.Admin), Users: toUserIDs(req.Users)}
	if err := h.Store.SaveRelated(r.Context(), related); err != nil {
		h.writeDomainError(w, "Failed to save related users", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// REPORTS
// =============================================================================

// GetTeamReport streams the admin's team balances for the year as XLSX.
func (h *Handler) GetTeamReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	adminID := r.URL.Query().Get("admin")
	if adminID == "" {
		writeError(w, http.StatusBadRequest, "admin is required", nil)
		return
	}

	ctx := r.Context()
	admin, err := h.Store.GetUser(ctx, generic.UserID(adminID))
	if err != nil {
		h.writeDomainError(w, "Failed to load administrator", err)
		return
	}
	team, err := h.Reports.TeamYear(ctx, *admin, year)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, team); err != nil {
		h.writeDomainError(w, "Failed to render report", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", team.Filename()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (tracker.User, bool) {
	id := generic.UserID(chi.URLParam(r, "id"))
	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to load user", err)
		return tracker.User{}, false
	}
	return *user, true
}

func (h *Handler) yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return h.today().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 {
		return 0, fmt.Errorf("year %q: %w", raw, generic.ErrInvalidArgument)
	}
	return year, nil
}

// parsePeriodFilter reads ?from&to, or ?year with an optional ?month. No
// parameters means all time.
func parsePeriodFilter(r *http.Request) (generic.PeriodFilter, error) {
	q := r.URL.Query()

	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		if from == "" || to == "" {
			return generic.PeriodFilter{}, fmt.Errorf("from and to go together: %w", generic.ErrInvalidArgument)
		}
		start, err := generic.ParseDate(from)
		if err != nil {
			return generic.PeriodFilter{}, fmt.Errorf("from: %v: %w", err, generic.ErrInvalidArgument)
		}
		end, err := generic.ParseDate(to)
		if err != nil {
			return generic.PeriodFilter{}, fmt.Errorf("to: %v: %w", err, generic.ErrInvalidArgument)
		}
		return generic.Between(start, end), nil
	}

	var filter generic.PeriodFilter
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("year %q: %w", raw, generic.ErrInvalidArgument)
		}
		filter.Year = year
	}
	if raw := q.Get("month"); raw != "" {
		if filter.Year == 0 {
			return filter, fmt.Errorf("month needs a year: %w", generic.ErrInvalidArgument)
		}
		month, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("month %q: %w", raw, generic.ErrInvalidArgument)
		}
		filter.Month = time.Month(month)
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's kind.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, generic.ErrAmbiguousAdministrator):
		status = http.StatusConflict
	default:
		h.log.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}
