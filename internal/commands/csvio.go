package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/dedupe"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/normalizer"
	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
)

// existingRow is one line of an existing-records snapshot CSV.
type existingRow struct {
	Date        string `csv:"date"`
	Amount      string `csv:"amount"`
	Vendor      string `csv:"vendor"`
	Description string `csv:"description"`
	AccountID   string `csv:"account_id"`
}

// reviewRow is one line of the review CSV written by preview --out.
type reviewRow struct {
	Row               int    `csv:"row"`
	Date              string `csv:"date"`
	Vendor            string `csv:"vendor"`
	Description       string `csv:"description"`
	Amount            string `csv:"amount"`
	Duplicate         bool   `csv:"duplicate"`
	Confidence        string `csv:"confidence"`
	Reason            string `csv:"reason"`
	InternalDuplicate bool   `csv:"internal_duplicate"`
	SuggestedCategory string `csv:"suggested_category"`
	Selected          bool   `csv:"selected"`
}

// loadExisting reads a snapshot CSV with date, amount and vendor columns.
// Dates and amounts go through the same normalizers as uploads.
func loadExisting(path string) ([]dedupe.ExistingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var rows []existingRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	records := make([]dedupe.ExistingRecord, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		date, ok := normalizer.NormalizeDate(row.Date)
		if !ok {
			return nil, fmt.Errorf("%s:%d: invalid date %q", path, line, row.Date)
		}
		amount, ok := normalizer.NormalizeAmount(row.Amount)
		if !ok {
			return nil, fmt.Errorf("%s:%d: invalid amount %q", path, line, row.Amount)
		}

		rec := dedupe.ExistingRecord{
			ID:          uuid.New(),
			Date:        date,
			Amount:      amount,
			Vendor:      row.Vendor,
			Description: row.Description,
		}
		if row.AccountID != "" {
			if rec.AccountID, err = uuid.Parse(row.AccountID); err != nil {
				return nil, fmt.Errorf("%s:%d: invalid account_id %q", path, line, row.AccountID)
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// writeReview writes every reviewed item to path.
func writeReview(path string, preview *importservice.PreviewResult) error {
	rows := make([]reviewRow, len(preview.Items))
	for i, it := range preview.Items {
		tx := it.Transaction
		rows[i] = reviewRow{
			Row:               tx.SourceRowIndex,
			Date:              tx.Date,
			Vendor:            tx.Vendor,
			Description:       tx.Description,
			Amount:            tx.Amount.StringFixed(2),
			Duplicate:         it.Duplicate.IsDuplicate,
			Confidence:        strconv.FormatFloat(it.Duplicate.Confidence, 'f', 2, 64),
			Reason:            it.Duplicate.Reason,
			InternalDuplicate: it.InternalDuplicate,
			Selected:          it.Selected,
		}
		if it.Suggestion != nil {
			rows[i].SuggestedCategory = it.Suggestion.CategoryName
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
