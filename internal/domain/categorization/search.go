package categorization

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/normalizer"
)

// historyDocument is what gets indexed for one vendor/category pair.
type historyDocument struct {
	VendorKey    string  `json:"vendor_key"`
	Vendor       string  `json:"vendor"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Count        float64 `json:"count"`
}

// HistoryHit is a past categorization that fits a vendor.
type HistoryHit struct {
	CategoryID   uuid.UUID
	CategoryName string
	Vendor       string
	Exact        bool
	Score        float64
}

// HistoryIndex answers "how was this vendor categorized before" using an
// in-memory Bleve index. Vendors are indexed by their normalized form for
// exact lookups and as text for typo-tolerant lookups.
type HistoryIndex struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewHistoryIndex creates an empty in-memory index.
func NewHistoryIndex() (*HistoryIndex, error) {
	index, err := bleve.NewMemOnly(buildHistoryMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create history index: %w", err)
	}
	return &HistoryIndex{index: index}, nil
}

func buildHistoryMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	numericFieldMapping := bleve.NewNumericFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("vendor_key", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("vendor", textFieldMapping)
	docMapping.AddFieldMappingsAt("category_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("category_name", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("count", numericFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name

	return indexMapping
}

// Index adds history entries. Entries for the same normalized vendor and
// category are merged and their counts summed.
func (h *HistoryIndex) Index(entries []HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	docs := make(map[string]*historyDocument, len(entries))
	for _, e := range entries {
		key := normalizer.NormalizeVendor(e.Vendor)
		if key == "" {
			continue
		}
		id := key + "|" + e.CategoryID.String()
		if doc, ok := docs[id]; ok {
			doc.Count += float64(e.Count)
			continue
		}
		docs[id] = &historyDocument{
			VendorKey:    key,
			Vendor:       key,
			CategoryID:   e.CategoryID.String(),
			CategoryName: e.CategoryName,
			Count:        float64(e.Count),
		}
	}

	batch := h.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("failed to index history for %q: %w", doc.Vendor, err)
		}
	}
	if err := h.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute history batch: %w", err)
	}

	return nil
}

// Lookup returns the most used category for vendor. An exact match on the
// normalized vendor is preferred. Otherwise every word of the vendor must
// match, allowing one typo per word. Returns nil when nothing fits.
func (h *HistoryIndex) Lookup(vendor string) (*HistoryHit, error) {
	key := normalizer.NormalizeVendor(vendor)
	if key == "" {
		return nil, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	exact := bleve.NewTermQuery(key)
	exact.SetField("vendor_key")

	hit, err := h.top(exact, true)
	if err != nil || hit != nil {
		return hit, err
	}

	fuzzyQuery := bleve.NewMatchQuery(key)
	fuzzyQuery.SetField("vendor")
	fuzzyQuery.SetFuzziness(1)
	fuzzyQuery.SetOperator(query.MatchQueryOperatorAnd)

	return h.top(fuzzyQuery, false)
}

func (h *HistoryIndex) top(q query.Query, exact bool) (*HistoryHit, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = 1
	req.Fields = []string{"*"}
	if exact {
		req.SortBy([]string{"-count", "category_name"})
	}

	res, err := h.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("history search failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	doc := res.Hits[0]
	idStr, _ := doc.Fields["category_id"].(string)
	categoryID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("history document %s has invalid category id: %w", doc.ID, err)
	}

	hit := &HistoryHit{
		CategoryID: categoryID,
		Exact:      exact,
		Score:      doc.Score,
	}
	hit.CategoryName, _ = doc.Fields["category_name"].(string)
	hit.Vendor, _ = doc.Fields["vendor"].(string)

	return hit, nil
}

// DocumentCount returns the number of indexed vendor/category pairs.
func (h *HistoryIndex) DocumentCount() (uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index.DocCount()
}

// Close releases the index.
func (h *HistoryIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index.Close()
}
