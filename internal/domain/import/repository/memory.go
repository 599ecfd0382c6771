package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/dedupe"
)

// MemoryImportRepository keeps everything in process memory. It backs the
// CLI when no ledger database is given, and tests.
type MemoryImportRepository struct {
	mu           sync.RWMutex
	categories   map[uuid.UUID][]categorization.Category
	transactions map[uuid.UUID][]*Transaction
	ids          map[uuid.UUID]struct{}
	mappings     map[string]*BankMapping
	jobs         map[uuid.UUID]*ImportJob
}

// NewMemoryImportRepository creates an empty repository.
func NewMemoryImportRepository() *MemoryImportRepository {
	return &MemoryImportRepository{
		categories:   make(map[uuid.UUID][]categorization.Category),
		transactions: make(map[uuid.UUID][]*Transaction),
		ids:          make(map[uuid.UUID]struct{}),
		mappings:     make(map[string]*BankMapping),
		jobs:         make(map[uuid.UUID]*ImportJob),
	}
}

// AddCategory registers a category, assigning an ID when missing.
func (r *MemoryImportRepository) AddCategory(c categorization.Category) categorization.Category {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.categories[c.BudgetID] = append(r.categories[c.BudgetID], c)
	return c
}

// AddRecords seeds stored transactions for a budget from detection records.
func (r *MemoryImportRepository) AddRecords(budgetID uuid.UUID, records []dedupe.ExistingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		id := rec.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		r.ids[id] = struct{}{}
		r.transactions[budgetID] = append(r.transactions[budgetID], &Transaction{
			ID:          id,
			BudgetID:    budgetID,
			AccountID:   rec.AccountID,
			Date:        rec.Date,
			Amount:      rec.Amount,
			Vendor:      rec.Vendor,
			Description: rec.Description,
		})
	}
}

// Transactions returns a copy of the stored transactions of a budget.
func (r *MemoryImportRepository) Transactions(budgetID uuid.UUID) []Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Transaction, len(r.transactions[budgetID]))
	for i, tx := range r.transactions[budgetID] {
		out[i] = *tx
	}
	return out
}

// Job returns a copy of an import job, or nil.
func (r *MemoryImportRepository) Job(id uuid.UUID) *ImportJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	c := *job
	return &c
}

func (r *MemoryImportRepository) ListCategories(_ context.Context, budgetID uuid.UUID) ([]categorization.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]categorization.Category, len(r.categories[budgetID]))
	copy(out, r.categories[budgetID])
	return out, nil
}

func (r *MemoryImportRepository) ListHistory(_ context.Context, budgetID uuid.UUID) ([]categorization.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make(map[uuid.UUID]string, len(r.categories[budgetID]))
	for _, c := range r.categories[budgetID] {
		names[c.ID] = c.Name
	}

	type key struct {
		vendor     string
		categoryID uuid.UUID
	}
	counts := make(map[key]int)
	var order []key
	for _, tx := range r.transactions[budgetID] {
		if tx.CategoryID == nil || tx.Vendor == "" {
			continue
		}
		k := key{vendor: tx.Vendor, categoryID: *tx.CategoryID}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}

	history := make([]categorization.HistoryEntry, 0, len(order))
	for _, k := range order {
		history = append(history, categorization.HistoryEntry{
			Vendor:       k.vendor,
			CategoryID:   k.categoryID,
			CategoryName: names[k.categoryID],
			Count:        counts[k],
		})
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Count > history[j].Count })

	return history, nil
}

func (r *MemoryImportRepository) ListExistingRecords(_ context.Context, budgetID uuid.UUID, filter RecordFilter) ([]dedupe.ExistingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []dedupe.ExistingRecord
	for _, tx := range r.transactions[budgetID] {
		if filter.matches(tx) {
			records = append(records, toExistingRecord(tx))
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date < records[j].Date })

	return records, nil
}

func mappingKey(budgetID uuid.UUID, fingerprint string) string {
	return budgetID.String() + "|" + fingerprint
}

func (r *MemoryImportRepository) GetMappingByFingerprint(_ context.Context, budgetID uuid.UUID, fingerprint string) (*BankMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[mappingKey(budgetID, fingerprint)]
	if !ok {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (r *MemoryImportRepository) SaveMapping(_ context.Context, mapping *BankMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	key := mappingKey(mapping.BudgetID, mapping.Fingerprint)
	if existing, ok := r.mappings[key]; ok {
		mapping.ID = existing.ID
		mapping.CreatedAt = existing.CreatedAt
	} else {
		if mapping.ID == uuid.Nil {
			mapping.ID = uuid.New()
		}
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	c := *mapping
	r.mappings[key] = &c
	return nil
}

func (r *MemoryImportRepository) CreateImportJob(_ context.Context, job *ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now().UTC()
	c := *job
	r.jobs[job.ID] = &c
	return nil
}

func (r *MemoryImportRepository) FinishImportJob(_ context.Context, id uuid.UUID, status string, rowsImported, rowsSkipped int, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("import job %s not found", id)
	}
	now := time.Now().UTC()
	job.Status = status
	job.RowsImported = rowsImported
	job.RowsSkipped = rowsSkipped
	job.ErrorMessage = errorMessage
	job.FinishedAt = &now
	return nil
}

func (r *MemoryImportRepository) BulkInsertTransactions(_ context.Context, txs []*Transaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, tx := range txs {
		if tx.ID == uuid.Nil {
			tx.ID = uuid.New()
		}
		if _, dup := r.ids[tx.ID]; dup {
			continue
		}
		r.ids[tx.ID] = struct{}{}
		c := *tx
		r.transactions[tx.BudgetID] = append(r.transactions[tx.BudgetID], &c)
		inserted++
	}
	return inserted, nil
}
