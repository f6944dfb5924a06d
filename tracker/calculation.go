package tracker

import "github.com/warp/timetracker/generic"

// Calculation reduces a user's countable working days and return days to a
// signed hour balance. Positive means overtime.
//
// Per-market replacements are registered on the Engine with WithOverrides;
// factory/strategy.go builds them from configuration.
type Calculation func(user User, working, returns []Entry) generic.Amount

// RegularCalculation is the default reduction.
//
// Hours and minutes are summed separately across all entries and only
// combined as hours + minutes/60 at the end. A day of 07:50 and a day of
// 08:10 therefore contribute 15 hours and 60 minutes, not 16:00 per entry.
// Linked entries are skipped. Each return day adds shift plus break to the
// expected side and nothing to the worked side.
func RegularCalculation(user User, working, returns []Entry) generic.Amount {
	var shiftHours, shiftMinutes, totalHours, totalMinutes int

	for _, e := range working {
		if e.IsLinked() {
			continue
		}
		shiftHours += user.Shift.Hour
		shiftMinutes += user.Shift.Minute

		totalHours += e.End.Hour - e.Start.Hour - e.Breaks.Hour
		totalMinutes += e.End.Minute - e.Start.Minute - e.Breaks.Minute
	}

	for range returns {
		shiftHours += user.Shift.Hour + user.Break.Hour
		shiftMinutes += user.Shift.Minute + user.Break.Minute
	}

	expected := generic.Hours(shiftHours, shiftMinutes)
	worked := generic.Hours(totalHours, totalMinutes)
	return expected.Sub(worked).Neg()
}
