package model

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Price is a money amount. Legacy cart entries persisted prices as display
// strings ("Rs. 15,000.00"), so unmarshalling accepts both JSON numbers and
// strings, strips everything that is not part of a decimal literal, and
// degrades to zero when nothing parseable remains.
type Price struct {
	decimal.Decimal
}

// NewPrice builds a Price from a decimal value.
func NewPrice(d decimal.Decimal) Price {
	return Price{Decimal: d}
}

// PriceFromFloat builds a Price from a float, for tests and static data.
func PriceFromFloat(f float64) Price {
	return Price{Decimal: decimal.NewFromFloat(f)}
}

// CoercePrice parses a legacy price representation. Currency symbols,
// thousands separators, and surrounding text are discarded; an uncoercible
// value yields zero rather than an error.
func CoercePrice(raw string) decimal.Decimal {
	start := strings.IndexFunc(raw, isDigit)
	if start < 0 {
		return decimal.Zero
	}
	end := start
	for end < len(raw) {
		c := rune(raw[end])
		if !isDigit(c) && c != '.' && c != ',' {
			break
		}
		end++
	}

	// The numeric run stops at the first foreign character, so a stray dot
	// before it ("Rs. 15,000.00") never leaks into the literal.
	lit := strings.ReplaceAll(raw[start:end], ",", "")
	lit = strings.TrimRight(lit, ".")
	if first := strings.Index(lit, "."); first >= 0 {
		if last := strings.LastIndex(lit, "."); last != first {
			// Multiple dots: only the final one is the decimal point.
			lit = strings.ReplaceAll(lit[:last], ".", "") + lit[last:]
		}
	}
	if start > 0 && raw[start-1] == '-' {
		lit = "-" + lit
	}

	d, err := decimal.NewFromString(lit)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// UnmarshalJSON accepts a number, a numeric string, or a legacy formatted
// string. It never fails on malformed values; they become zero.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		p.Decimal = decimal.Zero
		return nil
	}
	raw := string(bytes.Trim(data, `"`))
	p.Decimal = CoercePrice(raw)
	return nil
}
