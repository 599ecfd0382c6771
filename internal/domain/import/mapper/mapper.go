// Package mapper applies a column mapping to tokenized rows, producing
// normalized transactions plus per-row errors. A bad row never aborts the
// batch.
package mapper

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/format"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/parser"
)

// Row error messages.
const (
	MsgInvalidDate    = "Invalid date"
	MsgInvalidAmount  = "Invalid amount"
	MsgNoAmount       = "No amount found"
	MsgNoVendorOrDesc = "No vendor or description found"
)

const (
	headerRowOffset    = 2 // 1-indexed rows, header is row 1
	defaultRowCapacity = 256
)

// MappedTransaction is a normalized row. Amount is negative for money out.
type MappedTransaction struct {
	SourceRowIndex    int             `json:"sourceRowIndex"`
	Date              string          `json:"date"`
	Vendor            string          `json:"vendor"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description,omitempty"`
	CategoryName      string          `json:"categoryName,omitempty"`
	CategoryGroupName string          `json:"categoryGroupName,omitempty"`
	AccountName       string          `json:"accountName,omitempty"`
	IsStartingBalance bool            `json:"isStartingBalance,omitempty"`
	RawRow            []string        `json:"rawRow,omitempty"`
}

// RowError describes why a row could not be mapped.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	RawData string `json:"rawData,omitempty"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result holds everything produced from one table.
type Result struct {
	Transactions []MappedTransaction `json:"transactions"`
	Errors       []RowError          `json:"errors"`
	TotalRows    int                 `json:"totalRows"`
	SkippedRows  int                 `json:"skippedRows"`
}

// Options tunes row mapping.
type Options struct {
	// StartingBalanceMarker flags rows whose vendor equals it, ignoring case.
	StartingBalanceMarker string
}

// fieldIndex caches the column index of each semantic field.
type fieldIndex struct {
	date, vendor, amount, outflow, inflow         int
	description, category, categoryGroup, account int
}

func buildIndex(headers []string, mappings []format.ColumnMapping) fieldIndex {
	idx := func(f format.SemanticField) int { return format.Index(headers, mappings, f) }
	return fieldIndex{
		date:          idx(format.FieldDate),
		vendor:        idx(format.FieldVendor),
		amount:        idx(format.FieldAmount),
		outflow:       idx(format.FieldOutflow),
		inflow:        idx(format.FieldInflow),
		description:   idx(format.FieldDescription),
		category:      idx(format.FieldCategory),
		categoryGroup: idx(format.FieldCategoryGroup),
		account:       idx(format.FieldAccount),
	}
}

// ApplyMappings converts every non-empty row into a MappedTransaction or a
// RowError. Row numbers count the header as row 1.
func ApplyMappings(headers []string, rows [][]string, mappings []format.ColumnMapping, opts Options) Result {
	result := Result{
		Transactions: make([]MappedTransaction, 0, min(len(rows), defaultRowCapacity)),
		Errors:       make([]RowError, 0),
	}

	idx := buildIndex(headers, mappings)
	marker := strings.TrimSpace(opts.StartingBalanceMarker)

	for i, row := range rows {
		if isBlank(row) {
			result.SkippedRows++
			continue
		}
		result.TotalRows++

		tx, rowErr := mapRow(row, i+headerRowOffset, idx, marker)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Transactions = append(result.Transactions, *tx)
	}

	return result
}

func mapRow(row []string, rowNum int, idx fieldIndex, marker string) (*MappedTransaction, *RowError) {
	get := func(i int) string { return strings.TrimSpace(parser.Cell(row, i)) }

	rawDate := get(idx.date)
	date, ok := normalizer.NormalizeDate(rawDate)
	if !ok {
		return nil, &RowError{
			Row:     rowNum,
			Column:  string(format.FieldDate),
			Message: fmt.Sprintf("%s: %s", MsgInvalidDate, rawDate),
			RawData: rawDate,
		}
	}

	amount, rowErr := resolveAmount(get, idx, rowNum)
	if rowErr != nil {
		return nil, rowErr
	}

	vendor := get(idx.vendor)
	description := get(idx.description)
	if vendor == "" && description == "" {
		return nil, &RowError{
			Row:     rowNum,
			Column:  string(format.FieldVendor),
			Message: MsgNoVendorOrDesc,
		}
	}
	if vendor == "" {
		vendor = description
	}

	raw := make([]string, len(row))
	copy(raw, row)

	return &MappedTransaction{
		SourceRowIndex:    rowNum,
		Date:              date,
		Vendor:            vendor,
		Amount:            amount,
		Description:       description,
		CategoryName:      get(idx.category),
		CategoryGroupName: get(idx.categoryGroup),
		AccountName:       get(idx.account),
		IsStartingBalance: marker != "" && strings.EqualFold(vendor, marker),
		RawRow:            raw,
	}, nil
}

// resolveAmount prefers a single signed amount column and otherwise derives
// inflow minus outflow, treating a missing side as zero. Signed split values
// keep their sign, so an outflow of -10 is money in.
func resolveAmount(get func(int) string, idx fieldIndex, rowNum int) (decimal.Decimal, *RowError) {
	if idx.amount >= 0 {
		raw := get(idx.amount)
		if raw == "" {
			return decimal.Zero, &RowError{Row: rowNum, Column: string(format.FieldAmount), Message: MsgNoAmount}
		}
		amount, ok := normalizer.NormalizeAmount(raw)
		if !ok {
			return decimal.Zero, &RowError{
				Row:     rowNum,
				Column:  string(format.FieldAmount),
				Message: fmt.Sprintf("%s: %s", MsgInvalidAmount, raw),
				RawData: raw,
			}
		}
		return amount, nil
	}

	if idx.outflow < 0 && idx.inflow < 0 {
		return decimal.Zero, &RowError{Row: rowNum, Column: string(format.FieldAmount), Message: MsgNoAmount}
	}

	rawOut := get(idx.outflow)
	rawIn := get(idx.inflow)
	if rawOut == "" && rawIn == "" {
		return decimal.Zero, &RowError{Row: rowNum, Column: string(format.FieldAmount), Message: MsgNoAmount}
	}

	outflow, rowErr := sideAmount(rawOut, format.FieldOutflow, rowNum)
	if rowErr != nil {
		return decimal.Zero, rowErr
	}
	inflow, rowErr := sideAmount(rawIn, format.FieldInflow, rowNum)
	if rowErr != nil {
		return decimal.Zero, rowErr
	}

	return inflow.Sub(outflow), nil
}

func sideAmount(raw string, field format.SemanticField, rowNum int) (decimal.Decimal, *RowError) {
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, ok := normalizer.NormalizeAmount(raw)
	if !ok {
		return decimal.Zero, &RowError{
			Row:     rowNum,
			Column:  string(field),
			Message: fmt.Sprintf("%s: %s", MsgInvalidAmount, raw),
			RawData: raw,
		}
	}
	return amount, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
