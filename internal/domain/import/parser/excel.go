package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// preferredSheets are checked in order before falling back to the first sheet.
var preferredSheets = []string{
	"transactions", "register", "statement", "export", "data", "sheet1",
}

// ExcelInfo describes the workbook a RawTable was read from.
type ExcelInfo struct {
	Sheets []string
	Sheet  string
}

// ParseExcel reads an XLSX workbook and returns the transaction sheet as a
// RawTable with the same trimming and blank-row rules as Parse.
func ParseExcel(reader io.Reader) (RawTable, *ExcelInfo, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return RawTable{}, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	info := &ExcelInfo{Sheets: f.GetSheetList()}
	info.Sheet = findTransactionSheet(info.Sheets)
	if info.Sheet == "" {
		return RawTable{}, info, fmt.Errorf("no suitable sheet found")
	}

	rows, err := f.Rows(info.Sheet)
	if err != nil {
		return RawTable{}, info, fmt.Errorf("failed to create row iterator: %w", err)
	}
	defer rows.Close()

	var table RawTable
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return RawTable{}, info, fmt.Errorf("failed to read sheet %s: %w", info.Sheet, err)
		}

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

	return table, info, nil
}

func findTransactionSheet(sheets []string) string {
	if len(sheets) == 0 {
		return ""
	}

	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}

	return sheets[0]
}
