package document

import (
	"math"
	"strconv"
	"strings"
)

// Text renders the field's typed value as text.
// Fields without a typed value render as the empty string.
func (f Field) Text() string {
	switch {
	case f.ValueString != nil:
		return *f.ValueString
	case f.ValueDate != nil:
		return *f.ValueDate
	case f.ValueTime != nil:
		return *f.ValueTime
	case f.ValuePhoneNumber != nil:
		return *f.ValuePhoneNumber
	case f.ValueNumber != nil:
		return strconv.FormatFloat(*f.ValueNumber, 'f', -1, 64)
	case f.ValueInteger != nil:
		return strconv.FormatInt(*f.ValueInteger, 10)
	case f.ValueCurrency != nil:
		return strconv.FormatFloat(f.ValueCurrency.Amount, 'f', -1, 64)
	case f.ValueAddress != nil:
		return f.Content
	}
	return ""
}

// Monetary renders a numeric or currency value the way a float prints in
// the downstream consumers (always with a fractional part: 5 -> "5.0").
// Non-numeric values fall back to Text.
func (f Field) Monetary() string {
	switch {
	case f.ValueCurrency != nil:
		return FormatFloat(f.ValueCurrency.Amount)
	case f.ValueNumber != nil:
		return FormatFloat(*f.ValueNumber)
	case f.ValueInteger != nil:
		return FormatFloat(float64(*f.ValueInteger))
	}
	return f.Text()
}

// FormatFloat returns the shortest round-trip representation of v, keeping
// a ".0" suffix on integral values and switching to exponent notation
// outside [1e-4, 1e16).
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
