package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"comma", "Date,Payee,Amount\n1,2,3", ','},
		{"semicolon", "Data;Descrição;Valor\n1;2;3", ';'},
		{"tab", "Date\tPayee\tAmount", '\t'},
		{"pipe", "Date|Payee|Amount|Memo", '|'},
		{"quoted delimiters ignored", `"a,b,c",d;e;f`, ';'},
		{"quoted semicolons ignored", `Date,"Payee; Name","Memo; x"`, ','},
		{"tie defaults to comma", "a,b;c", ','},
		{"no candidates defaults to comma", "Date Payee Amount", ','},
		{"empty input defaults to comma", "", ','},
		{"only first line counts", "a,b\nc;d;e;f;g", ','},
		{"CR terminates first line", "a|b|c\rd,e,f,g,h", '|'},
		{"BOM ignored", "\uFEFFa;b;c", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.text))
		})
	}
}

func TestDelimiterNames(t *testing.T) {
	for _, d := range Candidates {
		assert.Equal(t, d, ParseDelimiter(DelimiterName(d)))
	}
	assert.Equal(t, '\t', ParseDelimiter(`\t`))
	assert.Equal(t, rune(0), ParseDelimiter("colon"))
}

func TestFingerprint(t *testing.T) {
	t.Run("ignores case and punctuation", func(t *testing.T) {
		a := Fingerprint([]string{"Date", "Payee", "Amount (GBP)"})
		b := Fingerprint([]string{" date", "PAYEE", "amount gbp"})
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("order matters", func(t *testing.T) {
		a := Fingerprint([]string{"Date", "Amount"})
		b := Fingerprint([]string{"Amount", "Date"})
		assert.NotEqual(t, a, b)
	})
}

func TestProbeDialect(t *testing.T) {
	t.Run("european amounts and day-first dates", func(t *testing.T) {
		rows := [][]string{
			{"15/01/2024", "Café", "-4,50 €"},
			{"16/01/2024", "Salário", "1.500,00"},
		}

		d := ProbeDialect(rows, 2, 0)

		assert.True(t, d.IsEuropean)
		assert.Equal(t, ',', d.DecimalSeparator)
		assert.Equal(t, '.', d.ThousandsSeparator)
		assert.Equal(t, "DMY", d.DateOrder)
		assert.Equal(t, "EUR", d.CurrencyHint)
		assert.InDelta(t, 1.0, d.Confidence, 0.001)
	})

	t.Run("us amounts and month-first dates", func(t *testing.T) {
		rows := [][]string{
			{"01/13/2024", "Coffee", "$4.50"},
			{"01/20/2024", "Rent", "1,200.00"},
		}

		d := ProbeDialect(rows, 2, 0)

		assert.False(t, d.IsEuropean)
		assert.Equal(t, '.', d.DecimalSeparator)
		assert.Equal(t, "MDY", d.DateOrder)
		assert.Equal(t, "USD", d.CurrencyHint)
	})

	t.Run("ambiguous dates default to day-first", func(t *testing.T) {
		d := ProbeDialect([][]string{{"05/06/2024", "x", "1"}}, -1, 0)

		assert.Equal(t, "DMY", d.DateOrder)
		assert.InDelta(t, 0.5, d.Confidence, 0.001)
	})

	t.Run("out of range indices are ignored", func(t *testing.T) {
		d := ProbeDialect([][]string{{"a"}}, 5, 7)
		assert.False(t, d.IsEuropean)
	})
}
