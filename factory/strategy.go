/*
Package factory builds market calculation overrides from configuration.

PURPOSE:
  Some markets account overtime differently from the default calculation.
  Instead of a process-wide registry, overrides are described in config
  (or JSON) and turned into a map[string]tracker.Calculation that is handed
  to the engine at construction.

JSON SCHEMA:
  [
    {"market": "IE", "strategy": "rounded", "increment_minutes": 15},
    {"market": "PL", "strategy": "capped", "cap_hours": 20},
    {"market": "DE", "strategy": "truncated", "increment_minutes": 30}
  ]

STRATEGIES:
  regular    the default calculation, explicitly selected
  rounded    default result rounded to the nearest increment (default 15m)
  truncated  default result cut toward zero to the increment (default 15m)
  capped     default result clamped to [-cap_hours, +cap_hours]

USAGE:
  f := factory.NewStrategyFactory()
  overrides, err := f.ParseOverrides(jsonString)
  engine := tracker.NewEngine(store, tracker.WithOverrides(overrides))

SEE ALSO:
  - tracker/calculation.go: Calculation and RegularCalculation
  - config/config.go: tracker.overrides
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// OverrideJSON is the JSON (and config) representation of one override.
type OverrideJSON struct {
	Market           string  `json:"market" mapstructure:"market"`
	Strategy         string  `json:"strategy" mapstructure:"strategy"`
	IncrementMinutes int     `json:"increment_minutes,omitempty" mapstructure:"increment_minutes"`
	CapHours         float64 `json:"cap_hours,omitempty" mapstructure:"cap_hours"`
}

const (
	StrategyRegular   = "regular"
	StrategyRounded   = "rounded"
	StrategyTruncated = "truncated"
	StrategyCapped    = "capped"
)

const defaultIncrementMinutes = 15

// =============================================================================
// STRATEGY FACTORY
// =============================================================================

// StrategyFactory converts override definitions into calculations.
type StrategyFactory struct{}

func NewStrategyFactory() *StrategyFactory {
	return &StrategyFactory{}
}

// Strategies lists the names FromJSON accepts.
func (f *StrategyFactory) Strategies() []string {
	names := []string{StrategyRegular, StrategyRounded, StrategyTruncated, StrategyCapped}
	sort.Strings(names)
	return names
}

// ParseOverrides parses a JSON array of overrides.
func (f *StrategyFactory) ParseOverrides(jsonStr string) (map[string]tracker.Calculation, error) {
	var defs []OverrideJSON
	if err := json.Unmarshal([]byte(jsonStr), &defs); err != nil {
		return nil, fmt.Errorf("failed to parse overrides JSON: %w", err)
	}
	return f.Build(defs)
}

// Build converts every definition. A market may appear only once.
func (f *StrategyFactory) Build(defs []OverrideJSON) (map[string]tracker.Calculation, error) {
	out := make(map[string]tracker.Calculation, len(defs))
	for _, def := range defs {
		if def.Market == "" {
			return nil, fmt.Errorf("override without market: %w", generic.ErrInvalidArgument)
		}
		if _, dup := out[def.Market]; dup {
			return nil, fmt.Errorf("market %s overridden twice: %w", def.Market, generic.ErrInvalidArgument)
		}
		calc, err := f.FromJSON(def)
		if err != nil {
			return nil, err
		}
		out[def.Market] = calc
	}
	return out, nil
}

// FromJSON converts one definition.
func (f *StrategyFactory) FromJSON(def OverrideJSON) (tracker.Calculation, error) {
	increment := def.IncrementMinutes
	if increment == 0 {
		increment = defaultIncrementMinutes
	}
	if increment < 0 || increment > 60 {
		return nil, fmt.Errorf("market %s: increment_minutes %d out of range: %w", def.Market, def.IncrementMinutes, generic.ErrInvalidArgument)
	}

	switch strings.ToLower(def.Strategy) {
	case StrategyRegular:
		return tracker.RegularCalculation, nil
	case StrategyRounded:
		return Rounded(increment), nil
	case StrategyTruncated:
		return Truncated(increment), nil
	case StrategyCapped:
		if def.CapHours <= 0 {
			return nil, fmt.Errorf("market %s: capped strategy needs a positive cap_hours: %w", def.Market, generic.ErrInvalidArgument)
		}
		return Capped(decimal.NewFromFloat(def.CapHours)), nil
	default:
		return nil, fmt.Errorf("market %s: unknown strategy %q, want one of %v: %w", def.Market, def.Strategy, f.Strategies(), generic.ErrInvalidArgument)
	}
}

// =============================================================================
// STRATEGIES
// =============================================================================

// Rounded rounds the default result to the nearest increment of minutes.
func Rounded(incrementMinutes int) tracker.Calculation {
	step := decimal.NewFromInt(int64(incrementMinutes)).Div(decimal.NewFromInt(60))
	return func(user tracker.User, working, returns []tracker.Entry) generic.Amount {
		balance := tracker.RegularCalculation(user, working, returns)
		balance.Value = balance.Value.Div(step).Round(0).Mul(step)
		return balance
	}
}

// Truncated cuts the default result toward zero to a whole increment.
func Truncated(incrementMinutes int) tracker.Calculation {
	step := decimal.NewFromInt(int64(incrementMinutes)).Div(decimal.NewFromInt(60))
	return func(user tracker.User, working, returns []tracker.Entry) generic.Amount {
		balance := tracker.RegularCalculation(user, working, returns)
		balance.Value = balance.Value.Div(step).Truncate(0).Mul(step)
		return balance
	}
}

// Capped clamps the default result to [-cap, +cap] hours.
func Capped(capHours decimal.Decimal) tracker.Calculation {
	return func(user tracker.User, working, returns []tracker.Entry) generic.Amount {
		balance := tracker.RegularCalculation(user, working, returns)
		switch {
		case balance.Value.GreaterThan(capHours):
			balance.Value = capHours
		case balance.Value.LessThan(capHours.Neg()):
			balance.Value = capHours.Neg()
		}
		return balance
	}
}
