package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/dedupe"
)

// DB is the pool surface the Postgres repository needs. *pgxpool.Pool and
// pgxmock pools both satisfy it.
type DB interface {
	categorization.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	*categorization.Repository
	db DB
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(db DB) *PostgresImportRepository {
	return &PostgresImportRepository{
		Repository: categorization.NewRepository(db),
		db:         db,
	}
}

// ListExistingRecords returns the stored transactions of a budget within the
// filter, oldest first.
func (r *PostgresImportRepository) ListExistingRecords(ctx context.Context, budgetID uuid.UUID, filter RecordFilter) ([]dedupe.ExistingRecord, error) {
	query := `
		SELECT id, account_id, to_char(date, 'YYYY-MM-DD'), amount::text, vendor, description
		FROM transactions
		WHERE budget_id = $1
		  AND ($2::uuid IS NULL OR account_id = $2::uuid)
		  AND date >= COALESCE(NULLIF($3::text, '')::date, '-infinity'::date)
		  AND date <= COALESCE(NULLIF($4::text, '')::date, 'infinity'::date)
		ORDER BY date, id
	`

	rows, err := r.db.Query(ctx, query, budgetID, filter.AccountID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing records: %w", err)
	}
	defer rows.Close()

	var records []dedupe.ExistingRecord
	for rows.Next() {
		var (
			rec    dedupe.ExistingRecord
			amount string
		)
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Date, &amount, &rec.Vendor, &rec.Description); err != nil {
			return nil, fmt.Errorf("failed to scan existing record: %w", err)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount %q of record %s: %w", amount, rec.ID, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetMappingByFingerprint returns the saved mapping for a header fingerprint
func (r *PostgresImportRepository) GetMappingByFingerprint(ctx context.Context, budgetID uuid.UUID, fingerprint string) (*BankMapping, error) {
	query := `
		SELECT id, budget_id, fingerprint, bank_name, preset_id, delimiter, mappings,
		       created_at, updated_at
		FROM bank_mappings
		WHERE budget_id = $1 AND fingerprint = $2
	`

	var (
		m   BankMapping
		raw []byte
	)
	err := r.db.QueryRow(ctx, query, budgetID, fingerprint).Scan(
		&m.ID, &m.BudgetID, &m.Fingerprint, &m.BankName, &m.PresetID, &m.Delimiter, &raw,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank mapping: %w", err)
	}

	if err := json.Unmarshal(raw, &m.Mappings); err != nil {
		return nil, fmt.Errorf("failed to decode bank mapping %s: %w", m.ID, err)
	}

	return &m, nil
}

// SaveMapping upserts a mapping keyed by budget and fingerprint
func (r *PostgresImportRepository) SaveMapping(ctx context.Context, mapping *BankMapping) error {
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}

	raw, err := json.Marshal(mapping.Mappings)
	if err != nil {
		return fmt.Errorf("failed to encode bank mapping: %w", err)
	}

	query := `
		INSERT INTO bank_mappings (id, budget_id, fingerprint, bank_name, preset_id, delimiter, mappings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (budget_id, fingerprint) DO UPDATE SET
			bank_name = EXCLUDED.bank_name,
			preset_id = EXCLUDED.preset_id,
			delimiter = EXCLUDED.delimiter,
			mappings = EXCLUDED.mappings,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		mapping.ID, mapping.BudgetID, mapping.Fingerprint, mapping.BankName,
		mapping.PresetID, mapping.Delimiter, raw,
	).Scan(&mapping.ID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save bank mapping: %w", err)
	}

	return nil
}

// CreateImportJob creates a new import job
func (r *PostgresImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	query := `
		INSERT INTO import_jobs (id, budget_id, account_id, file_name, status, rows_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		job.ID, job.BudgetID, job.AccountID, job.FileName, job.Status, job.RowsTotal,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

// FinishImportJob records the outcome of an import job
func (r *PostgresImportRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsSkipped int, errorMessage *string) error {
	query := `
		UPDATE import_jobs
		SET status = $2, rows_imported = $3, rows_skipped = $4, error_message = $5, finished_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status, rowsImported, rowsSkipped, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import job %s: %w", id, pgx.ErrNoRows)
	}

	return nil
}

// BulkInsertTransactions inserts transactions in a single database transaction
func (r *PostgresImportRepository) BulkInsertTransactions(ctx context.Context, txs []*Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO transactions (
			id, budget_id, account_id, import_job_id, date, amount, vendor,
			description, category_id, is_starting_balance, source_row
		) VALUES ($1, $2, $3, $4, $5::date, $6::numeric, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	inserted := 0
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		tag, err := tx.Exec(ctx, query,
			t.ID, t.BudgetID, t.AccountID, t.ImportJobID, t.Date, t.Amount.StringFixed(2), t.Vendor,
			t.Description, t.CategoryID, t.IsStartingBalance, t.SourceRow,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction from row %d: %w", t.SourceRow, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}

	return inserted, nil
}
