/*
engine.go - Balance engine

PURPOSE:
  Turns a user's tracking entries and shift configuration into balances:
  signed overtime hours for any period, the holiday balance for a year and
  per-daytype counts. Every computation is a synchronous read-only
  reduction over one user's entries for a bounded period.

KEY CONCEPTS:
  Countable working days: entries whose daytype CountsTowardHours
  Return days:            ROVER entries, expected but not worked
  Override:               per-market Calculation replacing the default

CACHING:
  Holiday balances and daytype counts are read through generic.Cache with
  no expiry. A cached value is authoritative until Invalidate removes it;
  whoever mutates entries must call Invalidate for the affected year.
  A failing cache is logged and bypassed, never returned to the caller.

USAGE:
  engine := tracker.NewEngine(store,
      tracker.WithCache(cache),
      tracker.WithOverrides(overrides),
      tracker.WithLogger(log),
  )
  balance, err := engine.TotalBalance(ctx, user, generic.InYear(2024))
  html, err := tracker.FormatAmount(balance, tracker.FormatHTML)

SEE ALSO:
  - calculation.go: RegularCalculation
  - format.go: output formats and severity classes
  - factory/strategy.go: building the override map from config
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/timetracker/generic"
	"go.uber.org/zap"
)

// DefaultWorkingDays is the number of working days in a week.
const DefaultWorkingDays = 5

// SickLeaveThreshold is the number of sick entries in the lookback window
// that triggers an escalation.
const SickLeaveThreshold = 30

// sickLeaveLookbackDays is subtracted from the new entry's date; the window
// includes both ends.
const sickLeaveLookbackDays = 30

// CalculatedHolidaysLabel is the Balances key carrying the holiday balance.
const CalculatedHolidaysLabel = "Calculated Holidays"

// Engine computes balances from tracking entries, reading yearly figures
// through a cache.
type Engine struct {
	entries     EntryStore
	cache       generic.Cache
	overrides   map[string]Calculation
	zeroing     map[string]bool
	workingDays int
	now         func() time.Time
	log         *zap.Logger
	metrics     *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the cache for yearly figures. A nil cache is ignored.
func WithCache(c generic.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithOverrides registers per-market calculations. The map is copied.
func WithOverrides(overrides map[string]Calculation) Option {
	return func(e *Engine) {
		for market, calc := range overrides {
			e.overrides[market] = calc
		}
	}
}

// WithZeroingMarkets lists the markets whose balance restarts every month.
func WithZeroingMarkets(markets ...string) Option {
	return func(e *Engine) {
		for _, m := range markets {
			e.zeroing[m] = true
		}
	}
}

// WithWorkingDays sets the working days per week. Values below 1 are ignored.
func WithWorkingDays(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workingDays = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics records computations and cache lookups on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds an engine over the entry store with no cache, no
// overrides and a five day week unless options say otherwise.
func NewEngine(entries EntryStore, opts ...Option) *Engine {
	e := &Engine{
		entries:     entries,
		cache:       generic.NopCache{},
		overrides:   make(map[string]Calculation),
		zeroing:     make(map[string]bool),
		workingDays: DefaultWorkingDays,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) today() generic.TimePoint { return generic.Day(e.now()) }

// =============================================================================
// WORKED-HOURS BALANCE
// =============================================================================

// TotalBalance computes the overtime balance for the period. An explicit
// range in the filter takes precedence over year and month. A user with no
// entries has a zero balance.
func (e *Engine) TotalBalance(ctx context.Context, user User, filter generic.PeriodFilter) (generic.Amount, error) {
	if err := filter.Validate(); err != nil {
		return generic.Amount{}, err
	}

	working, err := e.entries.Entries(ctx, user.ID, EntryFilter{Period: filter, Daytypes: HourDaytypes()})
	if err != nil {
		return generic.Amount{}, fmt.Errorf("load working days for %s: %w", user.ID, err)
	}
	returns, err := e.entries.Entries(ctx, user.ID, EntryFilter{Period: filter, Daytypes: []Daytype{DaytypeReturnOvertime}})
	if err != nil {
		return generic.Amount{}, fmt.Errorf("load return days for %s: %w", user.ID, err)
	}

	calc, strategy := e.calculationFor(user.Market)
	e.metrics.computed("total", strategy)
	return calc(user, working, returns), nil
}

func (e *Engine) calculationFor(market string) (Calculation, string) {
	if calc, ok := e.overrides[market]; ok && calc != nil {
		return calc, "override"
	}
	return RegularCalculation, "regular"
}

// FormatBalance computes and renders the balance. The format is checked
// before any entry is loaded.
func (e *Engine) FormatBalance(ctx context.Context, user User, filter generic.PeriodFilter, format string) (string, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return "", err
	}
	balance, err := e.TotalBalance(ctx, user, filter)
	if err != nil {
		return "", err
	}
	return FormatAmount(balance, f)
}

// ThisMonthsBalance is the balance for the current calendar month only.
func (e *Engine) ThisMonthsBalance(ctx context.Context, user User) (generic.Amount, error) {
	today := e.today()
	return e.TotalBalance(ctx, user, generic.InMonth(today.Year(), today.Month()))
}

// LastSevenDays covers the seven days up to today, clipped to the first of
// the current month.
func (e *Engine) LastSevenDays(ctx context.Context, user User) (generic.Amount, error) {
	today := e.today()
	day := today.Day() - 7
	if day <= 0 {
		day = 1
	}
	from := generic.NewTimePoint(today.Year(), today.Month(), day)
	return e.TotalBalance(ctx, user, generic.Between(from, today))
}

// ZeroesHours reports whether the user's market restarts its balance monthly.
func (e *Engine) ZeroesHours(user User) bool { return e.zeroing[user.Market] }

// NormalizedBalance is this month's balance in zeroing markets and the
// all-time balance elsewhere.
func (e *Engine) NormalizedBalance(ctx context.Context, user User) (generic.Amount, error) {
	if e.ZeroesHours(user) {
		return e.ThisMonthsBalance(ctx, user)
	}
	return e.TotalBalance(ctx, user, generic.AllTime())
}

type BreakdownLine struct {
	Label string
	Value string
}

// Breakdown pairs the last seven days with the normalized balance, both in
// HTML format.
func (e *Engine) Breakdown(ctx context.Context, user User) ([]BreakdownLine, error) {
	week, err := e.LastSevenDays(ctx, user)
	if err != nil {
		return nil, err
	}
	month, err := e.NormalizedBalance(ctx, user)
	if err != nil {
		return nil, err
	}
	weekHTML, _ := FormatAmount(week, FormatHTML)
	monthHTML, _ := FormatAmount(month, FormatHTML)
	return []BreakdownLine{
		{Label: "Last 7 Days", Value: weekHTML},
		{Label: "Last Month", Value: monthHTML},
	}, nil
}

// PreviousWeekBalance is the hours accounted over the last seven days:
// worked hours of WKDAY and SATUR entries, plus a full shift for every
// working day with no such entry.
func (e *Engine) PreviousWeekBalance(ctx context.Context, user User) (generic.Amount, error) {
	today := e.today()
	entries, err := e.entries.Entries(ctx, user.ID, EntryFilter{
		Period:   generic.Between(today.AddDays(-7), today),
		Daytypes: []Daytype{DaytypeSaturday, DaytypeWorkDay},
	})
	if err != nil {
		return generic.Amount{}, fmt.Errorf("load last week for %s: %w", user.ID, err)
	}

	missing := decimal.NewFromInt(int64(e.workingDays - len(entries)))
	total := user.ShiftHours().Mul(missing)
	for _, entry := range entries {
		total = total.Add(entry.TotalHours())
	}
	e.metrics.computed("weekly", "regular")
	return total, nil
}

// ExpectedWeeklyBalance is a full shift for every working day of the week.
func (e *Engine) ExpectedWeeklyBalance(user User) generic.Amount {
	return user.ShiftHours().Mul(decimal.NewFromInt(int64(e.workingDays)))
}

// =============================================================================
// HOLIDAY BALANCE AND DAYTYPE COUNTS
// =============================================================================

func holidayKey(userID generic.UserID, year int) string {
	return fmt.Sprintf("holidaybalance:%s:%d", userID, year)
}

func daytypeKey(userID generic.UserID, year int, d Daytype) string {
	return fmt.Sprintf("numdaytype:%s:%d:%s", userID, year, d)
}

// HolidayBalance is the user's baseline plus the holiday delta of every
// entry in the year. It is not clamped.
//
// Only the summed deltas are cached; the baseline is added on every call so
// an edited user record is reflected without invalidation.
func (e *Engine) HolidayBalance(ctx context.Context, user User, year int) (int, error) {
	delta, err := e.cached(ctx, holidayKey(user.ID, year), func() (int, error) {
		entries, err := e.entries.Entries(ctx, user.ID, EntryFilter{Period: generic.InYear(year)})
		if err != nil {
			return 0, fmt.Errorf("load %d entries for %s: %w", year, user.ID, err)
		}
		sum := 0
		for _, entry := range entries {
			sum += entry.Daytype.HolidayDelta()
		}
		e.metrics.computed("holiday", "regular")
		return sum, nil
	})
	if err != nil {
		return 0, err
	}
	return user.HolidayBalance + delta, nil
}

// CountDaytype counts the user's entries of one daytype in the year.
func (e *Engine) CountDaytype(ctx context.Context, user User, year int, d Daytype) (int, error) {
	if !d.Valid() {
		return 0, fmt.Errorf("daytype %q: %w", d, generic.ErrInvalidArgument)
	}
	return e.cached(ctx, daytypeKey(user.ID, year, d), func() (int, error) {
		entries, err := e.entries.Entries(ctx, user.ID, EntryFilter{
			Period:   generic.InYear(year),
			Daytypes: []Daytype{d},
		})
		if err != nil {
			return 0, fmt.Errorf("count %s for %s: %w", d, user.ID, err)
		}
		e.metrics.computed("count", "regular")
		return len(entries), nil
	})
}

// Balances maps every daytype label to its yearly count and adds the
// holiday balance under CalculatedHolidaysLabel.
func (e *Engine) Balances(ctx context.Context, user User, year int) (map[string]int, error) {
	out := make(map[string]int, len(daytypes)+1)
	for _, d := range AllDaytypes() {
		n, err := e.CountDaytype(ctx, user, year, d)
		if err != nil {
			return nil, err
		}
		out[d.Label()] = n
	}
	holidays, err := e.HolidayBalance(ctx, user, year)
	if err != nil {
		return nil, err
	}
	out[CalculatedHolidaysLabel] = holidays
	return out, nil
}

// Invalidate drops every cached value for the user and year. Call it after
// any entry in that year is created, changed or deleted.
func (e *Engine) Invalidate(ctx context.Context, userID generic.UserID, year int) error {
	keys := []string{holidayKey(userID, year)}
	for _, d := range AllDaytypes() {
		keys = append(keys, daytypeKey(userID, year, d))
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate %s/%d: %w", userID, year, err)
	}
	return nil
}

// cached reads key through the cache, falling back to compute on a miss,
// a cache failure or an unreadable value.
func (e *Engine) cached(ctx context.Context, key string, compute func() (int, error)) (int, error) {
	raw, err := e.cache.Get(ctx, key)
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			e.metrics.lookup("hit")
			return n, nil
		}
		e.log.Warn("discarding unreadable cache value", zap.String("key", key), zap.String("value", raw))
		e.metrics.lookup("error")
	case errors.Is(err, generic.ErrCacheMiss):
		e.metrics.lookup("miss")
	default:
		e.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		e.metrics.lookup("error")
	}

	n, err := compute()
	if err != nil {
		return 0, err
	}
	if err := e.cache.Set(ctx, key, strconv.Itoa(n)); err != nil {
		e.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return n, nil
}

// =============================================================================
// SICK LEAVE
// =============================================================================

// ShouldNotifySick reports whether recording entry brings the user to the
// sick leave threshold within the lookback window ending on its date.
func (e *Engine) ShouldNotifySick(ctx context.Context, user User, entry Entry) (bool, error) {
	sick, err := e.entries.Entries(ctx, user.ID, EntryFilter{
		Period:   generic.Between(entry.Date.AddDays(-sickLeaveLookbackDays), entry.Date),
		Daytypes: []Daytype{DaytypeSick},
	})
	if err != nil {
		return false, fmt.Errorf("load sick days for %s: %w", user.ID, err)
	}
	return len(sick) >= SickLeaveThreshold, nil
}
