/*
Package generic provides the domain-agnostic building blocks of the tracker.

PURPOSE:
  This package holds the value types every other package agrees on: signed
  amounts, calendar days, times of day, periods and the cache contract.
  Nothing in here knows about daytypes, roles or teams; that lives in the
  tracker package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A signed quantity with a unit (e.g., -1.5 hours, 21 days)
  - Identifiers: Type-safe user and entry IDs

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so 30/60 stays exactly 0.5
  2. Type Safety: UserID and EntryID cannot be mixed up
  3. Values, not pointers: Amounts are immutable and copied freely

USAGE:
  expected := generic.NewAmount(8, generic.UnitHours)
  worked := generic.Hours(7, 30)
  balance := worked.Sub(expected) // -0.5 hours

SEE ALSO:
  - time.go: TimePoint and Clock
  - period.go: Period and PeriodFilter
  - cache.go: Cache interface used by the balance engine
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const UnitHours Unit = "hours"

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

// Hours builds an hour amount from whole hours plus minutes, dividing the
// minutes by sixty only once.
func Hours(hours, minutes int) Amount {
	h := decimal.NewFromInt(int64(hours))
	m := decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
	return Amount{Value: h.Add(m), Unit: UnitHours}
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }

// Int truncates toward zero, the same way a balance is bucketed for display.
func (a Amount) Int() int { return int(a.Value.Truncate(0).IntPart()) }

func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EntryID string
type LinkID string
