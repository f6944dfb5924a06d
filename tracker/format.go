package tracker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/timetracker/generic"
)

// =============================================================================
// OUTPUT FORMATS
// =============================================================================

// Format selects how a balance is rendered. The codes are the ones the web
// layer has always passed and are matched case-insensitively.
type Format string

const (
	// FormatFloat is the raw decimal value.
	FormatFloat Format = "flo"
	// FormatNum is the balance truncated toward zero.
	FormatNum Format = "num"
	// FormatDuration is a signed HH:MM string.
	FormatDuration Format = "int"
	// FormatHTML wraps the duration in a paragraph carrying a severity class.
	FormatHTML Format = "html"
)

// UnsupportedFormatError is returned for an unknown format code.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported balance format %q: must be html, int, num or flo", e.Format)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return generic.ErrInvalidArgument
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatFloat, FormatNum, FormatDuration, FormatHTML:
		return f, nil
	default:
		return "", &UnsupportedFormatError{Format: s}
	}
}

// =============================================================================
// SEVERITY
// =============================================================================

type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Classify buckets a balance by its truncated integer value:
// -3..2 ok, -6..-4 and 3..5 warning, anything else danger.
func Classify(balance generic.Amount) Severity {
	n := balance.Int()
	switch {
	case n >= -3 && n <= 2:
		return SeverityOK
	case n >= -6 && n <= -4:
		return SeverityWarning
	case n >= 3 && n <= 5:
		return SeverityWarning
	default:
		return SeverityDanger
	}
}

// CSSClass is the class attribute value used by the HTML format.
func (s Severity) CSSClass() string { return "tracker-val-" + string(s) }

// =============================================================================
// RENDERING
// =============================================================================

var sixty = decimal.NewFromInt(60)

// DurationString renders hours as [-]HH:MM. Minutes are truncated, not
// rounded; the value is first rounded to six places so that thirds of an
// hour survive the decimal division.
func DurationString(balance generic.Amount) string {
	prefix := ""
	if balance.IsNegative() {
		prefix = "-"
	}
	total := balance.Value.Abs().Mul(sixty).Round(6).Truncate(0).IntPart()
	return fmt.Sprintf("%s%02d:%02d", prefix, total/60, total%60)
}

// FormatAmount renders a balance. The amount is used as-is whether it came
// from the default calculation or a market override.
func FormatAmount(balance generic.Amount, f Format) (string, error) {
	switch f {
	case FormatFloat:
		return balance.Value.String(), nil
	case FormatNum:
		return strconv.Itoa(balance.Int()), nil
	case FormatDuration:
		return DurationString(balance), nil
	case FormatHTML:
		return fmt.Sprintf("<p class=%s>%s</p>", Classify(balance).CSSClass(), DurationString(balance)), nil
	default:
		return "", &UnsupportedFormatError{Format: string(f)}
	}
}
