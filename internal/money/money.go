// =============================================================================
// mpledger - Money
// =============================================================================
//
// Amounts are kept as a signed count of minor units (øre). All arithmetic in
// the engine happens on these integers; conversion to a decimal string only
// happens when rendering output.
//
// =============================================================================

package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a string cannot be parsed as an amount.
var ErrInvalidAmount = errors.New("invalid amount")

// minorPerMajor is the number of minor units in one major unit.
const minorPerMajor = 100

// Amount is a signed amount of money in minor units.
type Amount int64

// FromMinor returns the amount for a count of minor units.
func FromMinor(minor int64) Amount {
	return Amount(minor)
}

// FromMajor returns the amount for a whole number of major units.
func FromMajor(major int64) Amount {
	return Amount(major * minorPerMajor)
}

// Minor returns the amount as a count of minor units.
func (a Amount) Minor() int64 { return int64(a) }

func (a Amount) Add(b Amount) Amount { return a + b }
func (a Amount) Sub(b Amount) Amount { return a - b }
func (a Amount) Neg() Amount         { return -a }

// Mul multiplies the amount by a small integer factor.
func (a Amount) Mul(n int) Amount { return a * Amount(n) }

// Percent returns p percent of the amount, rounded half away from zero.
func (a Amount) Percent(p int) Amount {
	v := int64(a) * int64(p)
	if v < 0 {
		return Amount(-((-v + 50) / 100))
	}
	return Amount((v + 50) / 100)
}

// Cmp returns -1, 0 or +1 depending on whether a is less than, equal to or
// greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (a Amount) IsZero() bool     { return a == 0 }
func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsNegative() bool { return a < 0 }

// Abs returns the absolute value of the amount.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// =============================================================================
// RENDERING
// =============================================================================

// Style controls how an amount is rendered as a major-unit decimal string.
type Style struct {
	// DecimalSep separates major and minor units.
	DecimalSep string

	// GroupSep separates thousands when Grouping is set.
	GroupSep string

	// Grouping enables thousands grouping.
	Grouping bool
}

// Plain is the machine-readable Danish style used in ledger files: "1234,50".
var Plain = Style{DecimalSep: ",", GroupSep: ".", Grouping: false}

// Grouped is the human-readable Danish style used in reports: "1.234,50".
var Grouped = Style{DecimalSep: ",", GroupSep: ".", Grouping: true}

// Format renders the amount in major units using the given style. The
// rendering is exact; no floating point is involved.
func (a Amount) Format(style Style) string {
	v := int64(a)
	neg := v < 0
	if neg {
		v = -v
	}

	major := strconv.FormatInt(v/minorPerMajor, 10)
	if style.Grouping {
		major = group(major, style.GroupSep)
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(major)
	b.WriteString(style.DecimalSep)
	fmt.Fprintf(&b, "%02d", v%minorPerMajor)
	return b.String()
}

// String renders the amount in the Plain style.
func (a Amount) String() string {
	return a.Format(Plain)
}

// group inserts sep between every third digit counted from the right.
func group(digits, sep string) string {
	if len(digits) <= 3 || sep == "" {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// =============================================================================
// PARSING
// =============================================================================

// Parse reads a major-unit decimal string written in the given style, such as
// "1.234,50" for the Grouped style. Group separators are optional. At most two
// fractional digits are accepted.
func Parse(s string, style Style) (Amount, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}

	normalized := strings.ReplaceAll(raw, " ", "")
	if style.GroupSep != "" && style.GroupSep != style.DecimalSep {
		normalized = strings.ReplaceAll(normalized, style.GroupSep, "")
	}
	if style.DecimalSep != "" && style.DecimalSep != "." {
		normalized = strings.ReplaceAll(normalized, style.DecimalSep, ".")
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	minor := d.Mul(decimal.NewFromInt(minorPerMajor))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than two decimals", ErrInvalidAmount, raw)
	}
	return Amount(minor.IntPart()), nil
}

// MustParse is like Parse but panics on error. It is intended for constants
// and tests.
func MustParse(s string) Amount {
	a, err := Parse(s, Grouped)
	if err != nil {
		panic(err)
	}
	return a
}
