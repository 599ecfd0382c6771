package format

import "regexp"

type family struct {
	field   SemanticField
	pattern *regexp.Regexp
}

// families are tried in order and the first match wins. Split-amount
// families precede the single amount so "Debit Amount" is an outflow, and
// memo-like headers precede vendor-like ones so "Notes" is a description.
var families = []family{
	{FieldDate, regexp.MustCompile(`\b(date|fecha|datum|data|when)\b|^posted$`)},
	{FieldOutflow, regexp.MustCompile(`\b(outflows?|debits?|d[eé]bito|withdrawals?|paid out|money out|spent|expenses?|cargo)\b`)},
	{FieldInflow, regexp.MustCompile(`\b(inflows?|credits?|cr[eé]dito|deposits?|paid in|money in|received|income|abono)\b`)},
	{FieldAmount, regexp.MustCompile(`\b(amount|amt|value|valor|importe|montante|montant|betrag|sum|total)\b`)},
	{FieldCategoryGroup, regexp.MustCompile(`\b(category group|master category|group)\b`)},
	{FieldCategory, regexp.MustCompile(`\b(category|categoria|sub ?category)\b`)},
	{FieldAccount, regexp.MustCompile(`\b(account|conta|konto)\b`)},
	{FieldDescription, regexp.MustCompile(`\b(memo|notes?|comments?|reference|details|narrative|remarks?)\b`)},
	{FieldVendor, regexp.MustCompile(`\b(payee|vendor|merchant|description|descri[cç][aã]o|descripci[oó]n|name|counter ?party|beneficiary|recipient|payer|store)\b`)},
}

// AutoMap guesses a semantic field for every header. Each header maps to at
// most one field; headers matching no family are ignored.
func AutoMap(headers []string) []ColumnMapping {
	mappings := make([]ColumnMapping, len(headers))
	for i, h := range headers {
		mappings[i] = ColumnMapping{SourceHeader: h, Field: GuessField(h)}
	}
	return mappings
}

// GuessField classifies a single header.
func GuessField(header string) SemanticField {
	h := normalizeHeader(header)
	if h == "" {
		return FieldIgnore
	}
	for _, f := range families {
		if f.pattern.MatchString(h) {
			return f.field
		}
	}
	return FieldIgnore
}
