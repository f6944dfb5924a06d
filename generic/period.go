package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive day range
// =============================================================================

// Period is the closed interval [Start, End] of calendar days.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

func YearPeriod(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// =============================================================================
// PERIOD FILTER - Which entries a balance looks at
// =============================================================================

// PeriodFilter selects entries by one of four shapes: everything, a year,
// a month of a year, or an explicit range. An explicit range always wins
// over Year/Month when both are set.
type PeriodFilter struct {
	Year  int
	Month time.Month
	Range *Period
}

func AllTime() PeriodFilter                             { return PeriodFilter{} }
func InYear(year int) PeriodFilter                      { return PeriodFilter{Year: year} }
func InMonth(year int, month time.Month) PeriodFilter   { return PeriodFilter{Year: year, Month: month} }
func Between(from, to TimePoint) PeriodFilter           { return PeriodFilter{Range: &Period{Start: from, End: to}} }

// Bounds resolves the filter to a concrete period. ok is false when the
// filter is unbounded. A month without a year is ignored.
func (f PeriodFilter) Bounds() (p Period, ok bool) {
	switch {
	case f.Range != nil:
		return *f.Range, true
	case f.Year != 0 && f.Month != 0:
		return MonthPeriod(f.Year, f.Month), true
	case f.Year != 0:
		return YearPeriod(f.Year), true
	default:
		return Period{}, false
	}
}

// Matches reports whether a day falls inside the filter.
func (f PeriodFilter) Matches(t TimePoint) bool {
	p, ok := f.Bounds()
	return !ok || p.Contains(t)
}

func (f PeriodFilter) Validate() error {
	if f.Month < 0 || f.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, f.Month)
	}
	if f.Range != nil {
		return f.Range.Validate()
	}
	return nil
}

func (f PeriodFilter) String() string {
	if p, ok := f.Bounds(); ok {
		return p.String()
	}
	return "all"
}
