package service

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/parser"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/sniffer"
)

// File formats an upload can be read as.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte("PK\x03\x04")
)

// loadedTable is an upload tokenized into a RawTable.
type loadedTable struct {
	Table     parser.RawTable
	Format    string
	Delimiter rune
	Sheet     string
}

// loadTable decodes data and tokenizes it. Workbooks are recognised by their
// zip signature or an .xlsx extension; everything else is treated as text.
// Blank uploads yield an empty table.
func loadTable(fileName string, data []byte) (*loadedTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &loadedTable{Format: FormatCSV, Delimiter: ','}, nil
	}

	if isWorkbook(fileName, data) {
		table, info, err := parser.ParseExcel(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
		}
		return &loadedTable{Table: table, Format: FormatXLSX, Sheet: info.Sheet}, nil
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: binary content", ErrUnsupportedFile)
	}

	text := decodeText(data)
	delimiter := sniffer.DetectDelimiter(text)
	table := parser.Parse(text, delimiter)

	return &loadedTable{Table: table, Format: FormatCSV, Delimiter: delimiter}, nil
}

func isWorkbook(fileName string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return true
	}
	return bytes.HasPrefix(data, zipMagic)
}

// decodeText strips a UTF-8 byte order mark and falls back to Windows-1252
// for uploads that are not valid UTF-8.
func decodeText(data []byte) string {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(decoded)
}

func stripUTF8BOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}
