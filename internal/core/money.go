// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals. Nothing in this package converts through
// float64 except the percentage helpers, which round at the output boundary.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// currencySymbols are stripped from the front (or back) of imported amounts.
var currencySymbols = []string{"$", "€", "£", "₹", "¥", "Rs.", "Rs", "INR", "USD", "EUR", "GBP"}

// Money is a non-negative amount in the user's currency.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money { return Money{d: d} }

// MoneyFromInt is a shorthand for whole amounts.
func MoneyFromInt(v int64) Money { return Money{d: decimal.NewFromInt(v)} }

// MustMoney parses s or panics. Meant for fixtures and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return Money{d: d}
}

func (m Money) Decimal() decimal.Decimal { return m.d }
func (m Money) Add(o Money) Money        { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money        { return Money{d: m.d.Sub(o.d)} }
func (m Money) Abs() Money               { return Money{d: m.d.Abs()} }
func (m Money) Cmp(o Money) int          { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }

// DivInt divides by a count, keeping 2 decimal places. A zero count yields zero.
func (m Money) DivInt(n int) Money {
	if n == 0 {
		return Money{}
	}
	return Money{d: m.d.DivRound(decimal.NewFromInt(int64(n)), 2)}
}

// Percent returns m/of*100 rounded to 2 places, or 0 when of is not positive.
func (m Money) Percent(of Money) float64 {
	if !of.d.IsPositive() {
		return 0
	}
	f, _ := m.d.Mul(hundred).DivRound(of.d, 2).Float64()
	return f
}

func (m Money) String() string { return m.d.StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and strings in plain decimal
// notation. Exponents are rejected.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := parsePlain(s)
	if err != nil {
		return err
	}
	*m = Money{d: d}
	return nil
}

// parsePlain parses digits with an optional sign and fraction. Exponent
// notation is refused: "1e5000000" is a short input whose expansion is not.
func parsePlain(s string) (decimal.Decimal, error) {
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// ParseAmount parses user-supplied amounts such as "1,234.50", "$99",
// "€ 1,000" or "-42.10".
//
// Commas are thousands separators. A leading or trailing currency symbol and
// surrounding whitespace are ignored. The sign is preserved; callers that only
// accept non-negative values take Abs.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			break
		}
		if strings.HasSuffix(s, sym) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sym))
			break
		}
	}
	// A sign may also follow the symbol, as in "$-12".
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	d, err := parsePlain(s)
	if err != nil {
		return Money{}, err
	}
	if negative {
		d = d.Neg()
	}
	return Money{d: d}, nil
}
