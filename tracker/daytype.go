// Package tracker implements the time-tracking domain on top of the generic
// primitives: daytypes, roles, the balance engine, the team resolver and the
// notification rules.
package tracker

import (
	"fmt"
	"strings"
)

// =============================================================================
// DAYTYPE TAXONOMY
// =============================================================================

// Daytype classifies a tracking entry. The stored value is the five-letter code.
type Daytype string

const (
	DaytypeWorkDay        Daytype = "WKDAY"
	DaytypeWorkFromHome   Daytype = "WKHOM"
	DaytypeTraining       Daytype = "TRAIN"
	DaytypeTravel         Daytype = "TRAVE"
	DaytypePublicWorked   Daytype = "PUWRK"
	DaytypeSaturday       Daytype = "SATUR"
	DaytypeLinked         Daytype = "LINKD"
	DaytypeHoliday        Daytype = "HOLIS"
	DaytypeDayOnDemand    Daytype = "DAYOD"
	DaytypeSick           Daytype = "SICKD"
	DaytypeSpecialLeave   Daytype = "SPECI"
	DaytypePublicAbsence  Daytype = "PUABS"
	DaytypePublicReturned Daytype = "RETRN"
	DaytypeReturnOvertime Daytype = "ROVER"
	DaytypeOther          Daytype = "OTHER"
)

type daytypeInfo struct {
	label string
	// working daytypes carry start/end times that count as hours worked
	working bool
	// holidayDelta is applied to the holiday balance once per entry
	holidayDelta int
}

// daytypes is ordered; AllDaytypes returns it in this order.
var daytypes = []struct {
	code Daytype
	info daytypeInfo
}{
	{DaytypeWorkDay, daytypeInfo{"Work Day", true, 0}},
	{DaytypeWorkFromHome, daytypeInfo{"Work from Home", true, 0}},
	{DaytypeTraining, daytypeInfo{"Training", true, 0}},
	{DaytypeTravel, daytypeInfo{"Travel Day", true, 0}},
	{DaytypePublicWorked, daytypeInfo{"Public Holiday (Worked)", true, 2}},
	{DaytypeSaturday, daytypeInfo{"Work on Saturday", true, 1}},
	{DaytypeLinked, daytypeInfo{"Linked Day", true, 0}},
	{DaytypeHoliday, daytypeInfo{"Scheduled Holiday", false, -1}},
	{DaytypeDayOnDemand, daytypeInfo{"Day on Demand", false, -1}},
	{DaytypeSick, daytypeInfo{"Sickness Absence", false, 0}},
	{DaytypeSpecialLeave, daytypeInfo{"Special Leave", false, 0}},
	{DaytypePublicAbsence, daytypeInfo{"Public Holiday (Absence)", false, 0}},
	{DaytypePublicReturned, daytypeInfo{"Return for Public Holiday Worked", false, -1}},
	{DaytypeReturnOvertime, daytypeInfo{"Return for Overtime", false, 0}},
	{DaytypeOther, daytypeInfo{"Other", false, 0}},
}

var daytypeIndex = func() map[Daytype]daytypeInfo {
	m := make(map[Daytype]daytypeInfo, len(daytypes))
	for _, d := range daytypes {
		m[d.code] = d.info
	}
	return m
}()

// AllDaytypes returns every known daytype in display order.
func AllDaytypes() []Daytype {
	out := make([]Daytype, len(daytypes))
	for i, d := range daytypes {
		out[i] = d.code
	}
	return out
}

// ParseDaytype accepts a code in any case.
func ParseDaytype(s string) (Daytype, error) {
	d := Daytype(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown daytype %q", s)
	}
	return d, nil
}

func (d Daytype) Valid() bool {
	_, ok := daytypeIndex[d]
	return ok
}

func (d Daytype) Label() string {
	if info, ok := daytypeIndex[d]; ok {
		return info.label
	}
	return string(d)
}

func (d Daytype) IsWorking() bool { return daytypeIndex[d].working }

// HolidayDelta is the effect of one entry of this daytype on the holiday balance.
func (d Daytype) HolidayDelta() int { return daytypeIndex[d].holidayDelta }

// CountsTowardHours reports whether entries of this daytype are tallied as
// expected-vs-actual working hours. Saturday work is paid back in holiday
// days instead and linked days are accounted on the entry they link to.
func (d Daytype) CountsTowardHours() bool {
	return d.IsWorking() && d != DaytypeSaturday && d != DaytypeLinked
}

// IsReturnDay marks a day taken in lieu; the full shift is expected but
// nothing was worked.
func (d Daytype) IsReturnDay() bool { return d == DaytypeReturnOvertime }

// HourDaytypes lists the daytypes for which CountsTowardHours is true.
func HourDaytypes() []Daytype {
	var out []Daytype
	for _, d := range daytypes {
		if d.code.CountsTowardHours() {
			out = append(out, d.code)
		}
	}
	return out
}
