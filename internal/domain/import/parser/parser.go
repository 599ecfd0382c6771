// Package parser turns decoded CSV text (and XLSX workbooks) into a RawTable:
// a header row plus trimmed data rows, with blank rows dropped.
package parser

import "strings"

// RawTable is the tokenized form of an upload. The first non-empty row is
// always the header row. Data rows may be shorter than Headers.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// IsEmpty reports whether the table has neither headers nor rows.
func (t RawTable) IsEmpty() bool {
	return len(t.Headers) == 0 && len(t.Rows) == 0
}

// Cell returns the value at idx, or "" when idx is negative or past the end
// of a short row.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Parse tokenizes text using the given delimiter. Quoted fields may contain
// the delimiter and line breaks, and a doubled quote inside a quoted field is
// a literal quote. A quote only opens a quoted span at the start of a field;
// text between a closing quote and the next delimiter stays in the field.
// CRLF, CR and LF all terminate a row. Every field is trimmed and rows whose
// fields are all empty are discarded. Parse never fails: input without any
// non-empty row yields an empty table.
func Parse(text string, delimiter rune) RawTable {
	if delimiter == 0 {
		delimiter = ','
	}

	text = normalizeLineEndings(text)
	if strings.TrimSpace(text) == "" {
		return RawTable{}
	}

	var table RawTable
	for _, record := range tokenize(text, delimiter) {
		row, ok := cleanRecord(record)
		if !ok {
			continue
		}
		if table.Headers == nil {
			table.Headers = row
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}

// tokenize splits LF-terminated text into raw records. An unterminated
// quoted span runs to the end of the text.
func tokenize(text string, delimiter rune) [][]string {
	var (
		records  [][]string
		record   []string
		field    strings.Builder
		inQuotes bool
		quoted   bool
	)

	endField := func() {
		record = append(record, field.String())
		field.Reset()
		quoted = false
	}
	endRecord := func() {
		endField()
		records = append(records, record)
		record = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if inQuotes {
			if r != '"' {
				field.WriteRune(r)
				continue
			}
			if i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			inQuotes = false
			continue
		}

		switch {
		case r == delimiter:
			endField()
		case r == '\n':
			endRecord()
		case r == '"' && !quoted && strings.TrimSpace(field.String()) == "":
			// Leading blanks before an opening quote are dropped.
			field.Reset()
			inQuotes, quoted = true, true
		default:
			field.WriteRune(r)
		}
	}

	if inQuotes || field.Len() > 0 || len(record) > 0 {
		endRecord()
	}
	return records
}

// cleanRecord trims every field and reports false for rows that are empty
// after trimming.
func cleanRecord(record []string) ([]string, bool) {
	row := make([]string, len(record))
	nonEmpty := false
	for i, field := range record {
		row[i] = strings.TrimSpace(field)
		if row[i] != "" {
			nonEmpty = true
		}
	}
	return row, nonEmpty
}

func normalizeLineEndings(text string) string {
	if !strings.ContainsRune(text, '\r') {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
