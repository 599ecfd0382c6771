package sniffer

import (
	"strconv"
	"strings"
)

// Dialect is the regional formatting inferred from sample rows. It is
// advisory: the normalizers apply their own fixed rules regardless.
type Dialect struct {
	DecimalSeparator   rune    `json:"decimalSeparator"`
	ThousandsSeparator rune    `json:"thousandsSeparator"`
	DateOrder          string  `json:"dateOrder"` // "DMY" or "MDY"
	CurrencyHint       string  `json:"currencyHint,omitempty"`
	Confidence         float64 `json:"confidence"`
	IsEuropean         bool    `json:"isEuropean"`
}

// ProbeDialect examines the amount and date columns of sampleRows (indices
// may be -1) and every cell for currency markers.
func ProbeDialect(sampleRows [][]string, amountIdx, dateIdx int) Dialect {
	dialect := Dialect{
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		DateOrder:          "DMY",
		Confidence:         0.5,
	}

	europeanHints := 0
	usHints := 0
	dayFirst := false
	monthFirst := false

	for _, row := range sampleRows {
		if amountIdx >= 0 && amountIdx < len(row) && row[amountIdx] != "" {
			switch hint := amountStyle(row[amountIdx]); {
			case hint > 0:
				europeanHints++
			case hint < 0:
				usHints++
			}
		}

		if dateIdx >= 0 && dateIdx < len(row) && row[dateIdx] != "" {
			switch dateStyle(row[dateIdx]) {
			case 1:
				dayFirst = true
			case -1:
				monthFirst = true
			}
		}

		for _, cell := range row {
			switch {
			case strings.Contains(cell, "€") || strings.Contains(cell, "EUR"):
				dialect.CurrencyHint = "EUR"
				europeanHints++
			case strings.Contains(cell, "R$") || strings.Contains(cell, "BRL"):
				dialect.CurrencyHint = "BRL"
				europeanHints++
			case strings.Contains(cell, "£") || strings.Contains(cell, "GBP"):
				dialect.CurrencyHint = "GBP"
				usHints++
			case strings.Contains(cell, "$"):
				if dialect.CurrencyHint == "" {
					dialect.CurrencyHint = "USD"
				}
				usHints++
			}
		}
	}

	if europeanHints > usHints {
		dialect.DecimalSeparator = ','
		dialect.ThousandsSeparator = '.'
		dialect.IsEuropean = true
	}

	if total := europeanHints + usHints; total > 0 {
		winning := max(europeanHints, usHints)
		dialect.Confidence = float64(winning) / float64(total)
	}

	// Unambiguous evidence decides; otherwise day-first, matching the
	// date normalizer's tie-break.
	if monthFirst && !dayFirst {
		dialect.DateOrder = "MDY"
	}

	return dialect
}

// amountStyle returns >0 for European, <0 for US, 0 for ambiguous.
func amountStyle(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1 // 1.234,56
		}
		return -1 // 1,234.56
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
	}
	return 0
}

// dateStyle returns 1 when the leading component must be a day, -1 when the
// second component must be a day, 0 otherwise.
func dateStyle(val string) int {
	parts := strings.FieldsFunc(strings.TrimSpace(val), func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 3 || len(parts[0]) == 4 {
		return 0
	}

	first, err1 := strconv.Atoi(parts[0])
	second, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0
	}

	switch {
	case first > 12 && first <= 31:
		return 1
	case second > 12 && second <= 31:
		return -1
	}
	return 0
}
