package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-importer/pkg/money"
)

var (
	europeanDecimalPattern = regexp.MustCompile(`,\d{2}$`)
	plainNumberPattern     = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)
)

// NormalizeAmount parses a raw amount cell into a signed decimal.
//
// Parentheses and a leading minus both mark a negative value; either one is
// enough. Currency symbols, ISO codes and whitespace are removed. A trailing
// comma followed by exactly two digits means a European number (periods are
// thousands separators); otherwise commas are thousands separators. The
// second result is false for empty or non-numeric input.
func NormalizeAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\u2212", "-"))
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = stripCurrency(s)

	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	if europeanDecimalPattern.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if !plainNumberPattern.MatchString(s) {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}

	if negative {
		amount = amount.Neg()
	}
	return amount, true
}

// stripCurrency removes known currency symbols and codes, any other
// currency-symbol runes, and all whitespace.
func stripCurrency(s string) string {
	for _, sym := range money.Symbols() {
		if strings.Contains(s, sym) {
			s = strings.ReplaceAll(s, sym, "")
		}
	}

	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
}
