// Package money handles monetary amounts for the storefront client.
//
// The backend is inconsistent about how it serializes prices: some
// endpoints return plain JSON numbers, others return display strings
// like "₱1,234.50". Everything crossing into this module is parsed
// here into a decimal.Decimal and never re-inspected downstream.
package money

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PesoSign is the currency prefix used by the backend's display strings.
const PesoSign = "₱"

var printer = message.NewPrinter(language.English)

// Parse converts a price string into a decimal amount.
//
// Accepts plain numerics ("125", "125.00") and display-formatted
// strings ("₱125.00", "₱1,234.50"). Grouping commas and surrounding
// whitespace are stripped before parsing.
func Parse(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, PesoSign)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("parse amount %q: empty after cleanup", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// ParseJSON converts a raw JSON value into a decimal amount.
//
// The value may be a JSON number or a JSON string in any form Parse
// accepts. A JSON null yields zero, matching how the original client
// treated missing prices.
func ParseJSON(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("decode amount string: %w", err)
		}
		return Parse(s)
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Zero, fmt.Errorf("decode amount number: %w", err)
	}
	return d, nil
}

// Round2 rounds an amount to two fraction digits, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Format renders an amount for display: peso sign, comma grouping,
// exactly two fraction digits ("₱1,234.50").
//
// The amount is rendered from its exact decimal form, never through a
// float, so integer parts beyond float64 precision keep every digit.
func Format(d decimal.Decimal) string {
	s := Round2(d).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		return sign + printer.Sprintf("%s%d", PesoSign, n) + "." + frac
	}
	return sign + PesoSign + groupDigits(intPart) + "." + frac
}

// groupDigits inserts thousands separators into a bare digit string,
// covering integer parts too large for the locale printer's int64 path.
func groupDigits(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
