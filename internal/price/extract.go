// Package price parses and formats Brazilian-locale currency amounts.
package price

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Extract parses localized currency text such as "R$ 1.234,56".
//
// Periods are thousands separators and the first comma is the decimal
// separator. Parsing stops at the first character that cannot extend the
// number, so trailing junk after a valid prefix is ignored.
func Extract(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Replace(b.String(), ",", ".", 1)

	end := 0
	seenDot := false
	digits := 0
	for end < len(cleaned) {
		c := cleaned[end]
		if c == '.' && !seenDot {
			seenDot = true
		} else if c >= '0' && c <= '9' {
			digits++
		} else {
			break
		}
		end++
	}
	if digits == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(cleaned[:end], "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatBRL formats an amount as "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var parts []string
	for len(intPart) > 3 {
		parts = append([]string{intPart[len(intPart)-3:]}, parts...)
		intPart = intPart[:len(intPart)-3]
	}
	parts = append([]string{intPart}, parts...)
	return "R$ " + sign + strings.Join(parts, ".") + "," + frac
}

// FormatFloatBRL is FormatBRL for a float amount.
func FormatFloatBRL(f float64) string {
	return FormatBRL(decimal.NewFromFloat(f))
}
