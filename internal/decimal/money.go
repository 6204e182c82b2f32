package decimal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// Bounds on accepted numbers. Amounts beyond them are treated as
// non-numeric so formatting stays proportional to the input.
const (
	maxExponent      = 30
	maxIntegerDigits = 30
	maxScale         = 30
)

// leading numeric prefix, the same portion a lenient float reader accepts:
// sign, integer digits, fraction digits, exponent
var numberPrefix = regexp.MustCompile(`^([+-]?)(\d*)(?:\.(\d*))?(?:[eE]([+-]?\d+))?`)

// Parse reads the leading number of s. Trailing garbage is ignored,
// so "12.5abc" parses as 12.5. ok is false when s has no numeric prefix
// or the number is out of bounds. Fraction digits past the 30th are dropped.
func Parse(s string) (d decimal.Decimal, ok bool) {
	m := numberPrefix.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Zero, false
	}
	sign, intPart, frac, exp := m[1], m[2], m[3], m[4]
	if intPart == "" && frac == "" {
		return Zero, false
	}
	if exp != "" {
		e, err := strconv.Atoi(exp)
		if err != nil || e > maxExponent || e < -maxExponent {
			return Zero, false
		}
		exp = "e" + exp
	}
	intPart = strings.TrimLeft(intPart, "0")
	if len(intPart) > maxIntegerDigits {
		return Zero, false
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(frac) > maxScale {
		frac = frac[:maxScale]
	}
	if frac != "" {
		frac = "." + frac
	}

	d, err := decimal.NewFromString(sign + intPart + frac + exp)
	if err != nil {
		return Zero, false
	}
	return d, true
}

// FormatBR formats d with a fixed number of fraction digits using
// Brazilian separators: "." for thousands and "," for decimals.
func FormatBR(d decimal.Decimal, places int32) string {
	fixed := d.StringFixed(places)

	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if places > 0 {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}
