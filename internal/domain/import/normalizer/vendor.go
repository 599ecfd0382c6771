package normalizer

import (
	"regexp"
	"strings"
	"unicode"
)

// vendorPrefixes are payment-type phrases banks put in front of the payee.
var vendorPrefixes = []string{
	"card payment to ", "card purchase at ", "direct debit to ", "direct debit ",
	"standing order to ", "faster payment to ", "bill payment to ",
	"payment to ", "transfer to ", "transfer from ", "purchase at ",
	"contactless ", "pos ", "visa ", "mastercard ", "maestro ",
	"compra ", "pagamento ", "trf ", "transf ", "mb way ",
}

var (
	trailingDatePattern = regexp.MustCompile(`\s+on\s+\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}.*$`)
	trailingRefPattern  = regexp.MustCompile(`\s+ref(?:[:.#]|\s+\S*\d).*$`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// minRefCodeLen is the shortest trailing token treated as a reference code.
const minRefCodeLen = 6

// NormalizeVendor reduces a vendor string to a comparison key: lowercase,
// without payment-type prefixes, trailing "on DD/MM/YYYY" dates, trailing
// "ref: ..." or "ref <code>" text, punctuation or trailing reference codes. The result is
// only meant for matching, never for display.
func NormalizeVendor(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = whitespacePattern.ReplaceAllString(s, " ")

	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range vendorPrefixes {
			if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
				s = strings.TrimSpace(s[len(prefix):])
				stripped = true
			}
		}
	}

	s = trailingDatePattern.ReplaceAllString(s, "")
	s = trailingRefPattern.ReplaceAllString(s, "")

	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	for len(words) > 1 && isRefCode(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// isRefCode reports whether a token looks like a bank reference: long,
// alphanumeric and containing at least one digit.
func isRefCode(token string) bool {
	if len(token) < minRefCodeLen {
		return false
	}
	hasDigit := false
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return hasDigit
}
