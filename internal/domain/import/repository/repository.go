// Package repository persists what the import pipeline reads and writes:
// the existing-record snapshot used for duplicate detection, saved column
// mappings, import jobs and committed transactions.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/dedupe"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/format"
)

// Import job statuses.
const (
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// BankMapping is a column mapping a user confirmed for files with a given
// header fingerprint.
type BankMapping struct {
	ID          uuid.UUID              `json:"id"`
	BudgetID    uuid.UUID              `json:"budgetId"`
	Fingerprint string                 `json:"fingerprint"`
	BankName    *string                `json:"bankName,omitempty"`
	PresetID    string                 `json:"presetId,omitempty"`
	Delimiter   string                 `json:"delimiter"`
	Mappings    []format.ColumnMapping `json:"mappings"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// ImportJob tracks one commit of an uploaded file.
type ImportJob struct {
	ID           uuid.UUID  `json:"id"`
	BudgetID     uuid.UUID  `json:"budgetId"`
	AccountID    *uuid.UUID `json:"accountId,omitempty"`
	FileName     string     `json:"fileName"`
	Status       string     `json:"status"`
	RowsTotal    int        `json:"rowsTotal"`
	RowsImported int        `json:"rowsImported"`
	RowsSkipped  int        `json:"rowsSkipped"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Transaction is a committed, stored transaction.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	BudgetID          uuid.UUID       `json:"budgetId"`
	AccountID         uuid.UUID       `json:"accountId"`
	ImportJobID       *uuid.UUID      `json:"importJobId,omitempty"`
	Date              string          `json:"date"`
	Amount            decimal.Decimal `json:"amount"`
	Vendor            string          `json:"vendor"`
	Description       string          `json:"description,omitempty"`
	CategoryID        *uuid.UUID      `json:"categoryId,omitempty"`
	IsStartingBalance bool            `json:"isStartingBalance,omitempty"`
	SourceRow         int             `json:"sourceRow"`
}

// RecordFilter narrows the existing-record snapshot. Dates are inclusive
// YYYY-MM-DD bounds; empty means unbounded.
type RecordFilter struct {
	AccountID *uuid.UUID
	From      string
	To        string
}

// ImportRepository is everything the import service needs from storage.
type ImportRepository interface {
	categorization.Source

	// ListExistingRecords returns stored transactions of a budget as
	// duplicate-detection records, oldest first.
	ListExistingRecords(ctx context.Context, budgetID uuid.UUID, filter RecordFilter) ([]dedupe.ExistingRecord, error)

	// GetMappingByFingerprint returns (nil, nil) when no mapping is saved.
	GetMappingByFingerprint(ctx context.Context, budgetID uuid.UUID, fingerprint string) (*BankMapping, error)
	// SaveMapping inserts or replaces the mapping for its budget and fingerprint.
	SaveMapping(ctx context.Context, mapping *BankMapping) error

	CreateImportJob(ctx context.Context, job *ImportJob) error
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsSkipped int, errorMessage *string) error

	// BulkInsertTransactions stores txs atomically and returns how many were
	// written.
	BulkInsertTransactions(ctx context.Context, txs []*Transaction) (int, error)
}

func toExistingRecord(tx *Transaction) dedupe.ExistingRecord {
	return dedupe.ExistingRecord{
		ID:          tx.ID,
		Date:        tx.Date,
		Amount:      tx.Amount,
		Vendor:      tx.Vendor,
		Description: tx.Description,
		AccountID:   tx.AccountID,
	}
}

func (f RecordFilter) matches(tx *Transaction) bool {
	if f.AccountID != nil && tx.AccountID != *f.AccountID {
		return false
	}
	if f.From != "" && tx.Date < f.From {
		return false
	}
	if f.To != "" && tx.Date > f.To {
		return false
	}
	return true
}
