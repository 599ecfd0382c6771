package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/dedupe"
)

// SQLiteImportRepository implements ImportRepository on a local SQLite
// ledger opened with db.OpenSQLite. Dates, amounts and IDs are stored as text.
type SQLiteImportRepository struct {
	db *sql.DB
}

// NewSQLiteImportRepository wraps an already migrated ledger.
func NewSQLiteImportRepository(db *sql.DB) *SQLiteImportRepository {
	return &SQLiteImportRepository{db: db}
}

// AddCategory inserts a category, assigning an ID when missing.
func (r *SQLiteImportRepository) AddCategory(ctx context.Context, c *categorization.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, budget_id, name, group_name) VALUES (?, ?, ?, ?)`,
		c.ID.String(), c.BudgetID.String(), c.Name, c.GroupName,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *SQLiteImportRepository) ListCategories(ctx context.Context, budgetID uuid.UUID) ([]categorization.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, budget_id, name, group_name
		FROM categories
		WHERE budget_id = ?
		ORDER BY group_name, name
	`, budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []categorization.Category
	for rows.Next() {
		var (
			c            categorization.Category
			id, budgetIn string
		)
		if err := rows.Scan(&id, &budgetIn, &c.Name, &c.GroupName); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse category id: %w", err)
		}
		c.BudgetID = budgetID
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteImportRepository) ListHistory(ctx context.Context, budgetID uuid.UUID) ([]categorization.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.vendor, c.id, c.name, COUNT(*) AS uses
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.budget_id = ? AND t.vendor <> ''
		GROUP BY t.vendor, c.id, c.name
		ORDER BY uses DESC, t.vendor
	`, budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list categorization history: %w", err)
	}
	defer rows.Close()

	var history []categorization.HistoryEntry
	for rows.Next() {
		var (
			h  categorization.HistoryEntry
			id string
		)
		if err := rows.Scan(&h.Vendor, &id, &h.CategoryName, &h.Count); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if h.CategoryID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse category id: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *SQLiteImportRepository) ListExistingRecords(ctx context.Context, budgetID uuid.UUID, filter RecordFilter) ([]dedupe.ExistingRecord, error) {
	var account any
	if filter.AccountID != nil {
		account = filter.AccountID.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, date, amount, vendor, description
		FROM transactions
		WHERE budget_id = ?
		  AND (? IS NULL OR account_id = ?)
		  AND (? = '' OR date >= ?)
		  AND (? = '' OR date <= ?)
		ORDER BY date, rowid
	`, budgetID.String(), account, account, filter.From, filter.From, filter.To, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing records: %w", err)
	}
	defer rows.Close()

	var records []dedupe.ExistingRecord
	for rows.Next() {
		var (
			rec                   dedupe.ExistingRecord
			id, accountID, amount string
		)
		if err := rows.Scan(&id, &accountID, &rec.Date, &amount, &rec.Vendor, &rec.Description); err != nil {
			return nil, fmt.Errorf("failed to scan existing record: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse record id: %w", err)
		}
		if rec.AccountID, err = uuid.Parse(accountID); err != nil {
			return nil, fmt.Errorf("failed to parse account id of record %s: %w", id, err)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount %q of record %s: %w", amount, id, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteImportRepository) GetMappingByFingerprint(ctx context.Context, budgetID uuid.UUID, fingerprint string) (*BankMapping, error) {
	var (
		m                         BankMapping
		id, raw, created, updated string
		bankName                  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, bank_name, preset_id, delimiter, mappings, created_at, updated_at
		FROM bank_mappings
		WHERE budget_id = ? AND fingerprint = ?
	`, budgetID.String(), fingerprint).Scan(&id, &bankName, &m.PresetID, &m.Delimiter, &raw, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank mapping: %w", err)
	}

	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse bank mapping id: %w", err)
	}
	m.BudgetID = budgetID
	m.Fingerprint = fingerprint
	if bankName.Valid {
		m.BankName = &bankName.String
	}
	if err := json.Unmarshal([]byte(raw), &m.Mappings); err != nil {
		return nil, fmt.Errorf("failed to decode bank mapping %s: %w", id, err)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	return &m, nil
}

func (r *SQLiteImportRepository) SaveMapping(ctx context.Context, mapping *BankMapping) error {
	raw, err := json.Marshal(mapping.Mappings)
	if err != nil {
		return fmt.Errorf("failed to encode bank mapping: %w", err)
	}

	existing, err := r.GetMappingByFingerprint(ctx, mapping.BudgetID, mapping.Fingerprint)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if existing != nil {
		mapping.ID = existing.ID
		mapping.CreatedAt = existing.CreatedAt
	} else {
		if mapping.ID == uuid.Nil {
			mapping.ID = uuid.New()
		}
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bank_mappings (id, budget_id, fingerprint, bank_name, preset_id, delimiter, mappings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (budget_id, fingerprint) DO UPDATE SET
			bank_name = excluded.bank_name,
			preset_id = excluded.preset_id,
			delimiter = excluded.delimiter,
			mappings = excluded.mappings,
			updated_at = excluded.updated_at
	`,
		mapping.ID.String(), mapping.BudgetID.String(), mapping.Fingerprint, mapping.BankName,
		mapping.PresetID, mapping.Delimiter, string(raw),
		mapping.CreatedAt.Format(time.RFC3339Nano), mapping.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save bank mapping: %w", err)
	}
	return nil
}

func (r *SQLiteImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now().UTC()

	var account any
	if job.AccountID != nil {
		account = job.AccountID.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_jobs (id, budget_id, account_id, file_name, status, rows_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, job.ID.String(), job.BudgetID.String(), account, job.FileName, job.Status, job.RowsTotal,
		job.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

func (r *SQLiteImportRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsSkipped int, errorMessage *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = ?, rows_imported = ?, rows_skipped = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`, status, rowsImported, rowsSkipped, errorMessage, time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("import job %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteImportRepository) BulkInsertTransactions(ctx context.Context, txs []*Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, budget_id, account_id, import_job_id, date, amount, vendor,
			description, category_id, is_starting_balance, source_row
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		res, err := stmt.ExecContext(ctx,
			t.ID.String(), t.BudgetID.String(), t.AccountID.String(), nullableUUID(t.ImportJobID),
			t.Date, t.Amount.StringFixed(2), t.Vendor, t.Description, nullableUUID(t.CategoryID),
			t.IsStartingBalance, t.SourceRow,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction from row %d: %w", t.SourceRow, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
