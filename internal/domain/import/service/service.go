// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/dedupe"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/format"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/mapper"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/repository"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/sniffer"
	"github.com/FACorreiaa/budget-importer/pkg/money"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file")
	ErrMappingNotFound = errors.New("mapping not found")
	ErrInvalidMapping  = errors.New("invalid column mapping")
	ErrNothingToCommit = errors.New("no transactions selected")
)

const (
	importBatchSize  = 500
	sampleRowCount   = 5
	dialectProbeRows = 20
	tracerName       = "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
)

// MappingSource says where the column mapping of an upload came from.
type MappingSource string

const (
	MappingSaved  MappingSource = "saved"
	MappingPreset MappingSource = "preset"
	MappingAuto   MappingSource = "auto"
	MappingManual MappingSource = "manual"
)

// Suggester proposes categories for mapped transactions. The result is
// aligned with txs; entries may be nil.
type Suggester interface {
	Suggest(ctx context.Context, budgetID uuid.UUID, txs []mapper.MappedTransaction) ([]*categorization.Suggestion, error)
}

// Options tunes the service. Empty fields fall back to DefaultOptions, except
// DateTolerance where zero means same-day matches only.
type Options struct {
	DateTolerance         int
	ConfidenceThreshold   float64
	StartingBalanceMarker string
	Currency              string
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		DateTolerance:         dedupe.DefaultDateTolerance,
		ConfidenceThreshold:   dedupe.DefaultConfidenceThreshold,
		StartingBalanceMarker: "Starting Balance",
		Currency:              "EUR",
	}
}

// PresetInfo identifies the preset an upload matched.
type PresetInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Version     int    `json:"version"`
}

// AnalyzeResult contains the result of analyzing an uploaded file
type AnalyzeResult struct {
	FileName      string                 `json:"fileName"`
	Format        string                 `json:"format"`
	Sheet         string                 `json:"sheet,omitempty"`
	Delimiter     string                 `json:"delimiter,omitempty"`
	Headers       []string               `json:"headers"`
	SampleRows    [][]string             `json:"sampleRows"`
	RowCount      int                    `json:"rowCount"`
	Fingerprint   string                 `json:"fingerprint"`
	Preset        *PresetInfo            `json:"preset,omitempty"`
	Mappings      []format.ColumnMapping `json:"mappings"`
	MappingSource MappingSource          `json:"mappingSource"`
	Dialect       sniffer.Dialect        `json:"dialect"`
}

// PreviewRequest asks for the review of an upload against a budget.
type PreviewRequest struct {
	BudgetID  uuid.UUID
	AccountID *uuid.UUID
	FileName  string
	Data      []byte
	// Mappings overrides the resolved mapping when set.
	Mappings []format.ColumnMapping
	// DateTolerance and ConfidenceThreshold override the service options
	// when positive.
	DateTolerance       int
	ConfidenceThreshold float64
}

// ReviewItem is one mapped transaction with everything attached to it for
// review. The transaction itself is never altered.
type ReviewItem struct {
	Transaction       mapper.MappedTransaction   `json:"transaction"`
	Duplicate         dedupe.Verdict             `json:"duplicate"`
	InternalDuplicate bool                       `json:"internalDuplicate"`
	Suggestion        *categorization.Suggestion `json:"suggestion,omitempty"`
	Selected          bool                       `json:"selected"`
}

// Summary totals a preview.
type Summary struct {
	TotalRows          int    `json:"totalRows"`
	Mapped             int    `json:"mapped"`
	Errors             int    `json:"errors"`
	Duplicates         int    `json:"duplicates"`
	InternalDuplicates int    `json:"internalDuplicates"`
	Selected           int    `json:"selected"`
	Currency           string `json:"currency"`
	Inflow             string `json:"inflow"`
	Outflow            string `json:"outflow"`
	Net                string `json:"net"`
}

// PreviewResult is the reviewed upload.
type PreviewResult struct {
	Analysis *AnalyzeResult    `json:"analysis"`
	Items    []ReviewItem      `json:"items"`
	Errors   []mapper.RowError `json:"errors"`
	Summary  Summary           `json:"summary"`
}

// SelectOptions controls which reviewed items become commit items.
type SelectOptions struct {
	IncludeDuplicates bool
	AcceptSuggestions bool
}

// CommitItem is a transaction the user chose to import.
type CommitItem struct {
	Transaction mapper.MappedTransaction `json:"transaction"`
	CategoryID  *uuid.UUID               `json:"categoryId,omitempty"`
}

// CommitRequest persists selected transactions into an account.
type CommitRequest struct {
	BudgetID    uuid.UUID    `json:"budgetId"`
	AccountID   uuid.UUID    `json:"accountId"`
	FileName    string       `json:"fileName"`
	Items       []CommitItem `json:"items"`
	RowsSkipped int          `json:"rowsSkipped"`
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	JobID        uuid.UUID `json:"jobId"`
	RowsTotal    int       `json:"rowsTotal"`
	RowsImported int       `json:"rowsImported"`
	RowsSkipped  int       `json:"rowsSkipped"`
}

// SaveMappingRequest confirms a column mapping for a header layout.
// Delimiter is a delimiter name or character; empty means comma.
type SaveMappingRequest struct {
	BudgetID  uuid.UUID              `json:"budgetId"`
	Headers   []string               `json:"headers"`
	BankName  string                 `json:"bankName,omitempty"`
	PresetID  string                 `json:"presetId,omitempty"`
	Delimiter string                 `json:"delimiter,omitempty"`
	Mappings  []format.ColumnMapping `json:"mappings"`
}

// ImportService orchestrates file analysis and import operations
type ImportService struct {
	repo      repository.ImportRepository
	suggester Suggester
	metrics   *Metrics
	tracer    trace.Tracer
	opts      Options
	logger    *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, opts Options, logger *slog.Logger) *ImportService {
	defaults := DefaultOptions()
	if opts.DateTolerance < 0 {
		opts.DateTolerance = defaults.DateTolerance
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if opts.StartingBalanceMarker == "" {
		opts.StartingBalanceMarker = defaults.StartingBalanceMarker
	}
	if opts.Currency == "" {
		opts.Currency = defaults.Currency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ImportService{
		repo:   repo,
		tracer: otel.Tracer(tracerName),
		opts:   opts,
		logger: logger,
	}
}

// WithSuggester adds category suggestions to previews
func (s *ImportService) WithSuggester(suggester Suggester) *ImportService {
	s.suggester = suggester
	return s
}

// WithMetrics records pipeline metrics
func (s *ImportService) WithMetrics(metrics *Metrics) *ImportService {
	s.metrics = metrics
	return s
}

// Analyze tokenizes an upload and resolves its column mapping: a saved
// mapping for the header fingerprint wins over a preset, which wins over
// auto-mapping.
func (s *ImportService) Analyze(ctx context.Context, budgetID uuid.UUID, fileName string, data []byte) (*AnalyzeResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.Analyze")
	defer span.End()
	defer s.metrics.observeStage("analyze", time.Now())

	result, _, err := s.analyze(ctx, budgetID, fileName, data)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("import.format", result.Format),
		attribute.String("import.mapping_source", string(result.MappingSource)),
		attribute.Int("import.rows", result.RowCount),
	)
	s.metrics.observeAnalyze(result.Format, result.MappingSource)

	s.logger.Info("import file analyzed",
		slog.String("file", fileName),
		slog.String("format", result.Format),
		slog.String("mapping_source", string(result.MappingSource)),
		slog.Int("rows", result.RowCount),
	)

	return result, nil
}

func (s *ImportService) analyze(ctx context.Context, budgetID uuid.UUID, fileName string, data []byte) (*AnalyzeResult, *loadedTable, error) {
	loaded, err := loadTable(fileName, data)
	if err != nil {
		return nil, nil, err
	}
	table := loaded.Table

	result := &AnalyzeResult{
		FileName:    fileName,
		Format:      loaded.Format,
		Sheet:       loaded.Sheet,
		Headers:     table.Headers,
		SampleRows:  table.Rows[:min(len(table.Rows), sampleRowCount)],
		RowCount:    len(table.Rows),
		Fingerprint: sniffer.Fingerprint(table.Headers),
	}
	if loaded.Format == FormatCSV {
		result.Delimiter = sniffer.DelimiterName(loaded.Delimiter)
	}

	preset, presetFound := format.DetectFormat(table.Headers)
	if presetFound {
		result.Preset = &PresetInfo{ID: preset.ID, DisplayName: preset.DisplayName, Version: preset.Version}
	}

	if table.IsEmpty() {
		result.Mappings = []format.ColumnMapping{}
		result.MappingSource = MappingAuto
		return result, loaded, nil
	}

	saved, err := s.repo.GetMappingByFingerprint(ctx, budgetID, result.Fingerprint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup mapping: %w", err)
	}

	switch {
	case saved != nil:
		result.Mappings = alignMappings(table.Headers, saved.Mappings)
		result.MappingSource = MappingSaved
	case presetFound:
		result.Mappings = preset.MappingsFor(table.Headers)
		result.MappingSource = MappingPreset
	default:
		result.Mappings = format.AutoMap(table.Headers)
		result.MappingSource = MappingAuto
	}

	amountIdx := format.Index(table.Headers, result.Mappings, format.FieldAmount)
	if amountIdx < 0 {
		amountIdx = format.Index(table.Headers, result.Mappings, format.FieldOutflow)
	}
	dateIdx := format.Index(table.Headers, result.Mappings, format.FieldDate)
	result.Dialect = sniffer.ProbeDialect(table.Rows[:min(len(table.Rows), dialectProbeRows)], amountIdx, dateIdx)

	return result, loaded, nil
}

// Preview maps an upload, flags duplicates against the stored records of the
// budget and within the upload itself, and attaches category suggestions.
// Items that are neither kind of duplicate start selected.
func (s *ImportService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.Preview")
	defer span.End()
	defer s.metrics.observeStage("preview", time.Now())

	analysis, loaded, err := s.analyze(ctx, req.BudgetID, req.FileName, req.Data)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	if len(req.Mappings) > 0 {
		if err := validateMappings(req.Mappings); err != nil {
			recordError(span, err)
			return nil, err
		}
		analysis.Mappings = alignMappings(loaded.Table.Headers, req.Mappings)
		analysis.MappingSource = MappingManual
	}

	marker := s.opts.StartingBalanceMarker
	if analysis.Preset != nil {
		if p, ok := format.PresetByID(analysis.Preset.ID); ok && p.StartingBalanceMarker != "" {
			marker = p.StartingBalanceMarker
		}
	}

	mapped := mapper.ApplyMappings(loaded.Table.Headers, loaded.Table.Rows, analysis.Mappings, mapper.Options{
		StartingBalanceMarker: marker,
	})

	detectOpts := dedupe.Options{
		AccountID:           req.AccountID,
		DateTolerance:       s.opts.DateTolerance,
		ConfidenceThreshold: s.opts.ConfidenceThreshold,
	}
	if req.DateTolerance > 0 {
		detectOpts.DateTolerance = req.DateTolerance
	}
	if req.ConfidenceThreshold > 0 {
		detectOpts.ConfidenceThreshold = req.ConfidenceThreshold
	}

	var existing []dedupe.ExistingRecord
	if len(mapped.Transactions) > 0 {
		filter := recordWindow(mapped.Transactions, detectOpts.DateTolerance)
		filter.AccountID = req.AccountID
		existing, err = s.repo.ListExistingRecords(ctx, req.BudgetID, filter)
		if err != nil {
			recordError(span, err)
			return nil, fmt.Errorf("failed to load existing records: %w", err)
		}
	}

	verdicts := dedupe.DetectDuplicates(mapped.Transactions, existing, detectOpts)
	internal := dedupe.DetectInternalDuplicates(mapped.Transactions)
	suggestions := s.suggest(ctx, req.BudgetID, mapped.Transactions)

	currency := s.opts.Currency
	if analysis.Dialect.CurrencyHint != "" {
		currency = analysis.Dialect.CurrencyHint
	}

	result := &PreviewResult{
		Analysis: analysis,
		Items:    make([]ReviewItem, len(mapped.Transactions)),
		Errors:   mapped.Errors,
		Summary: Summary{
			TotalRows: mapped.TotalRows,
			Mapped:    len(mapped.Transactions),
			Errors:    len(mapped.Errors),
			Currency:  currency,
		},
	}

	selectedAmounts := make([]decimal.Decimal, 0, len(mapped.Transactions))
	for i, tx := range mapped.Transactions {
		item := ReviewItem{
			Transaction:       tx,
			Duplicate:         verdicts[i],
			InternalDuplicate: internal.Has(i),
		}
		if i < len(suggestions) {
			item.Suggestion = suggestions[i]
		}
		item.Selected = !item.Duplicate.IsDuplicate && !item.InternalDuplicate

		if item.Duplicate.IsDuplicate {
			result.Summary.Duplicates++
		}
		if item.InternalDuplicate {
			result.Summary.InternalDuplicates++
		}
		if item.Selected {
			result.Summary.Selected++
			selectedAmounts = append(selectedAmounts, tx.Amount)
		}
		result.Items[i] = item
	}

	totals := money.Sum(selectedAmounts, currency)
	result.Summary.Inflow = totals.Inflow.Display()
	result.Summary.Outflow = totals.Outflow.Display()
	result.Summary.Net = totals.Net.Display()

	span.SetAttributes(
		attribute.Int("import.mapped", result.Summary.Mapped),
		attribute.Int("import.errors", result.Summary.Errors),
		attribute.Int("import.duplicates", result.Summary.Duplicates),
		attribute.Int("import.existing_records", len(existing)),
	)
	s.metrics.observePreview(result.Summary)

	s.logger.Info("import preview built",
		slog.String("budget_id", req.BudgetID.String()),
		slog.Int("mapped", result.Summary.Mapped),
		slog.Int("errors", result.Summary.Errors),
		slog.Int("duplicates", result.Summary.Duplicates),
		slog.Int("internal_duplicates", result.Summary.InternalDuplicates),
	)

	return result, nil
}

// suggest never fails the preview: suggestions are optional.
func (s *ImportService) suggest(ctx context.Context, budgetID uuid.UUID, txs []mapper.MappedTransaction) []*categorization.Suggestion {
	if s.suggester == nil || len(txs) == 0 {
		return nil
	}
	suggestions, err := s.suggester.Suggest(ctx, budgetID, txs)
	if err != nil {
		s.logger.Warn("failed to suggest categories", slog.Any("error", err))
		return nil
	}
	return suggestions
}

// Selected returns the commit items for the selected review items, plus the
// count of items left out. IncludeDuplicates also takes items flagged as
// duplicates of stored records; internal duplicates are always left out.
func (p *PreviewResult) Selected(opts SelectOptions) ([]CommitItem, int) {
	items := make([]CommitItem, 0, len(p.Items))
	for _, it := range p.Items {
		take := it.Selected || (opts.IncludeDuplicates && it.Duplicate.IsDuplicate && !it.InternalDuplicate)
		if !take {
			continue
		}
		ci := CommitItem{Transaction: it.Transaction}
		if opts.AcceptSuggestions && it.Suggestion != nil {
			ci.CategoryID = it.Suggestion.CategoryID
		}
		items = append(items, ci)
	}
	return items, len(p.Items) - len(items) + len(p.Errors)
}

// Commit writes the selected transactions inside an import job. The job is
// marked failed when any batch cannot be written.
func (s *ImportService) Commit(ctx context.Context, req CommitRequest) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.Commit")
	defer span.End()
	defer s.metrics.observeStage("commit", time.Now())

	if len(req.Items) == 0 {
		recordError(span, ErrNothingToCommit)
		return nil, ErrNothingToCommit
	}

	accountID := req.AccountID
	job := &repository.ImportJob{
		BudgetID:  req.BudgetID,
		AccountID: &accountID,
		FileName:  req.FileName,
		Status:    repository.JobStatusRunning,
		RowsTotal: len(req.Items) + req.RowsSkipped,
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	rowsImported := 0
	batch := make([]*repository.Transaction, 0, min(len(req.Items), importBatchSize))

	flushBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		imported, err := s.repo.BulkInsertTransactions(ctx, batch)
		if err != nil {
			return err
		}
		rowsImported += imported
		batch = batch[:0]
		return nil
	}

	var insertErr error
	for _, item := range req.Items {
		tx := item.Transaction
		batch = append(batch, &repository.Transaction{
			ID:                uuid.New(),
			BudgetID:          req.BudgetID,
			AccountID:         req.AccountID,
			ImportJobID:       &job.ID,
			Date:              tx.Date,
			Amount:            tx.Amount,
			Vendor:            tx.Vendor,
			Description:       tx.Description,
			CategoryID:        item.CategoryID,
			IsStartingBalance: tx.IsStartingBalance,
			SourceRow:         tx.SourceRowIndex,
		})
		if len(batch) >= importBatchSize {
			if insertErr = flushBatch(); insertErr != nil {
				break
			}
		}
	}
	if insertErr == nil {
		insertErr = flushBatch()
	}

	rowsSkipped := job.RowsTotal - rowsImported

	if insertErr != nil {
		errMsg := insertErr.Error()
		if err := s.repo.FinishImportJob(ctx, job.ID, repository.JobStatusFailed, rowsImported, rowsSkipped, &errMsg); err != nil {
			s.logger.Warn("failed to finish import job", slog.Any("error", err))
		}
		recordError(span, insertErr)
		return nil, fmt.Errorf("failed to insert transactions: %w", insertErr)
	}

	if err := s.repo.FinishImportJob(ctx, job.ID, repository.JobStatusSucceeded, rowsImported, rowsSkipped, nil); err != nil {
		s.logger.Warn("failed to finish import job", slog.Any("error", err))
	}

	span.SetAttributes(attribute.Int("import.rows_imported", rowsImported))
	s.metrics.observeCommit(rowsImported)

	s.logger.Info("import committed",
		slog.String("job_id", job.ID.String()),
		slog.Int("rows_imported", rowsImported),
		slog.Int("rows_skipped", rowsSkipped),
	)

	return &ImportResult{
		JobID:        job.ID,
		RowsTotal:    job.RowsTotal,
		RowsImported: rowsImported,
		RowsSkipped:  rowsSkipped,
	}, nil
}

// SaveMapping saves a user's column mapping for future uploads with the same
// header layout.
func (s *ImportService) SaveMapping(ctx context.Context, req SaveMappingRequest) (*repository.BankMapping, error) {
	if len(req.Headers) == 0 {
		return nil, fmt.Errorf("%w: headers are required", ErrInvalidMapping)
	}
	if err := validateMappings(req.Mappings); err != nil {
		return nil, err
	}
	if req.PresetID != "" {
		if _, ok := format.PresetByID(req.PresetID); !ok {
			return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidMapping, req.PresetID)
		}
	}

	delimiter := ','
	if req.Delimiter != "" {
		if delimiter = sniffer.ParseDelimiter(req.Delimiter); delimiter == 0 {
			return nil, fmt.Errorf("%w: unknown delimiter %q", ErrInvalidMapping, req.Delimiter)
		}
	}

	var bankName *string
	if name := strings.TrimSpace(req.BankName); name != "" {
		bankName = &name
	}

	m := &repository.BankMapping{
		BudgetID:    req.BudgetID,
		Fingerprint: sniffer.Fingerprint(req.Headers),
		BankName:    bankName,
		PresetID:    req.PresetID,
		Delimiter:   string(delimiter),
		Mappings:    alignMappings(req.Headers, req.Mappings),
	}
	if err := s.repo.SaveMapping(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mapping: %w", err)
	}

	s.logger.Info("column mapping saved",
		slog.String("budget_id", req.BudgetID.String()),
		slog.String("fingerprint", m.Fingerprint),
	)

	return m, nil
}

// GetMapping returns the saved mapping for a header fingerprint.
func (s *ImportService) GetMapping(ctx context.Context, budgetID uuid.UUID, fingerprint string) (*repository.BankMapping, error) {
	m, err := s.repo.GetMappingByFingerprint(ctx, budgetID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup mapping: %w", err)
	}
	if m == nil {
		return nil, ErrMappingNotFound
	}
	return m, nil
}

// validateMappings requires a date column and at least one amount column.
func validateMappings(mappings []format.ColumnMapping) error {
	has := make(map[format.SemanticField]bool)
	for _, m := range mappings {
		if !m.Field.Valid() {
			return fmt.Errorf("%w: unknown field %q for %q", ErrInvalidMapping, m.Field, m.SourceHeader)
		}
		has[m.Field] = true
	}
	if !has[format.FieldDate] {
		return fmt.Errorf("%w: no date column", ErrInvalidMapping)
	}
	if !has[format.FieldAmount] && !has[format.FieldOutflow] && !has[format.FieldInflow] {
		return fmt.Errorf("%w: no amount column", ErrInvalidMapping)
	}
	return nil
}

// alignMappings returns one mapping per header, taking the field from the
// given mappings (matched by header name) and ignore otherwise.
func alignMappings(headers []string, mappings []format.ColumnMapping) []format.ColumnMapping {
	preset := format.Preset{ColumnMappings: mappings}
	return preset.MappingsFor(headers)
}

// recordWindow spans the candidate dates widened by the date tolerance.
func recordWindow(txs []mapper.MappedTransaction, tolerance int) repository.RecordFilter {
	from, to := txs[0].Date, txs[0].Date
	for _, tx := range txs[1:] {
		if tx.Date < from {
			from = tx.Date
		}
		if tx.Date > to {
			to = tx.Date
		}
	}

	filter := repository.RecordFilter{}
	if t, err := normalizer.ParseDate(from); err == nil {
		filter.From = t.AddDate(0, 0, -tolerance).Format(time.DateOnly)
	}
	if t, err := normalizer.ParseDate(to); err == nil {
		filter.To = t.AddDate(0, 0, tolerance).Format(time.DateOnly)
	}
	return filter
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
