// Package money wraps go-money and shopspring/decimal for the few monetary
// operations the importer needs: exact totals, display formatting and the
// currency symbol table used when cleaning raw amount cells.
package money

import (
	"sort"
	"strings"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	JPY = "JPY"
)

// knownCodes are the currencies whose symbols and codes are stripped from
// amount cells.
var knownCodes = []string{
	"USD", "EUR", "GBP", "BRL", "JPY", "CHF", "CAD", "AUD", "NZD", "CNY",
	"MXN", "INR", "SEK", "NOK", "DKK", "PLN", "CZK", "HUF", "ZAR", "SGD",
	"HKD", "KRW", "TRY", "RUB", "ILS", "AED", "THB", "PHP", "IDR", "MYR",
}

// Money is an amount in minor units together with its currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal converts a decimal amount into minor units of currencyCode,
// rounding half away from zero. Unknown currencies fall back to USD rules.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currencyCode = USD
		currency = money.GetCurrency(USD)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currencyCode)
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the absolute value
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(USD)
	}
	return &Money{m: m.m.Absolute()}
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// String returns the amount as a fixed-point decimal string.
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

// Totals splits amounts into money in and money out for one currency.
type Totals struct {
	Inflow  *Money
	Outflow *Money
	Net     *Money
}

// Sum totals signed decimal amounts in currencyCode. Outflow is reported as
// a positive value.
func Sum(amounts []decimal.Decimal, currencyCode string) Totals {
	in := decimal.Zero
	out := decimal.Zero
	for _, a := range amounts {
		if a.IsNegative() {
			out = out.Add(a.Neg())
		} else {
			in = in.Add(a)
		}
	}
	return Totals{
		Inflow:  NewFromDecimal(in, currencyCode),
		Outflow: NewFromDecimal(out, currencyCode),
		Net:     NewFromDecimal(in.Sub(out), currencyCode),
	}
}

var (
	symbolsOnce sync.Once
	symbols     []string
)

// Symbols returns the graphemes and ISO codes of known currencies, longest
// first so that "R$" is removed before "$".
func Symbols() []string {
	symbolsOnce.Do(func() {
		seen := make(map[string]struct{})
		add := func(s string) {
			if s == "" {
				return
			}
			if _, ok := seen[s]; ok {
				return
			}
			seen[s] = struct{}{}
			symbols = append(symbols, s)
		}

		for _, code := range knownCodes {
			add(code)
			if c := money.GetCurrency(code); c != nil {
				add(strings.TrimSpace(c.Grapheme))
			}
		}

		sort.SliceStable(symbols, func(i, j int) bool {
			return len(symbols[i]) > len(symbols[j])
		})
	})
	return symbols
}
