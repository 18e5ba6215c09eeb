package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// normalizeNumeric rewrites a locale-formatted number ("1.234,5", "12 %",
// "$1,200") into strconv syntax. Separators are auto-detected per value: when
// both ',' and '.' appear the later one is the decimal mark; a lone comma
// followed by exactly three digits is a thousands separator.
func normalizeNumeric(s string) (string, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.TrimLeft(raw, "$€£")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	dec, thou := '.', ','
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			dec, thou = ',', '.'
		}
	case cpos >= 0:
		if strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3 {
			dec, thou = ',', '.'
		}
	}
	raw = strings.ReplaceAll(raw, string(thou), "")
	raw = strings.ReplaceAll(raw, " ", "")
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	for _, ch := range raw {
		switch {
		case ch >= '0' && ch <= '9', ch == '.', ch == '-', ch == '+', ch == 'e', ch == 'E':
		default:
			return "", false
		}
	}
	return raw, true
}

// ParseFloat parses a cell as a number, tolerating thousands separators,
// decimal commas, currency prefixes and a trailing percent sign.
func ParseFloat(s string) (float64, bool) {
	raw, ok := normalizeNumeric(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// maxDecimalExponent bounds the base-10 exponent ParseDecimal accepts.
// Rescaling a value like 1e99999999 to a common exponent never finishes.
const maxDecimalExponent = 400

// ParseDecimal is ParseFloat with exact decimal arithmetic. Values outside
// the float64 range are not numbers.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	raw, ok := normalizeNumeric(s)
	if !ok {
		return decimal.Zero, false
	}
	if f, err := strconv.ParseFloat(raw, 64); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxDecimalExponent || exp < -maxDecimalExponent {
		return decimal.Zero, false
	}
	return d, true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime recognizes the common date layouts found in spreadsheet exports.
func ParseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
