package categorization

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/mapper"
)

// SuggestionSource names where a suggestion came from.
type SuggestionSource string

const (
	SourceFile    SuggestionSource = "file"
	SourceHistory SuggestionSource = "history"
	SourceKeyword SuggestionSource = "keyword"
)

// Confidence assigned per source. File categories scale with how well the
// name resolved.
const (
	historyExactConfidence    = 0.9
	historyFuzzyConfidence    = 0.6
	keywordResolvedConfidence = 0.5
	keywordNameOnlyConfidence = 0.3
)

// Suggestion proposes a category for one transaction. CategoryID is nil
// when the name could not be resolved to a category of the budget.
type Suggestion struct {
	CategoryID   *uuid.UUID       `json:"categoryId,omitempty"`
	CategoryName string           `json:"categoryName"`
	Merchant     string           `json:"merchant,omitempty"`
	Source       SuggestionSource `json:"source"`
	Confidence   float64          `json:"confidence"`
}

// Source provides the budget data suggestions are drawn from.
type Source interface {
	ListCategories(ctx context.Context, budgetID uuid.UUID) ([]Category, error)
	ListHistory(ctx context.Context, budgetID uuid.UUID) ([]HistoryEntry, error)
}

// Service suggests categories for mapped transactions. Suggestions are
// advisory and never change the transactions themselves.
type Service struct {
	source Source
	engine *Engine
	logger *slog.Logger
}

// NewService creates a new categorization service
func NewService(source Source, engine *Engine, logger *slog.Logger) *Service {
	if engine == nil {
		engine = NewEngine(DefaultRules())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, engine: engine, logger: logger}
}

// Suggest returns one suggestion per transaction, nil where nothing fits.
// The order of preference is the file's own category, then past
// categorizations of the vendor, then keyword rules. Failing to load budget
// data degrades the suggestions rather than failing the call.
func (s *Service) Suggest(ctx context.Context, budgetID uuid.UUID, txs []mapper.MappedTransaction) ([]*Suggestion, error) {
	suggestions := make([]*Suggestion, len(txs))
	if len(txs) == 0 {
		return suggestions, nil
	}

	var categories []Category
	var history []HistoryEntry
	if s.source != nil {
		var err error
		categories, err = s.source.ListCategories(ctx, budgetID)
		if err != nil {
			s.logger.Warn("failed to load categories for suggestions",
				slog.String("budget_id", budgetID.String()),
				slog.Any("error", err))
		}
		history, err = s.source.ListHistory(ctx, budgetID)
		if err != nil {
			s.logger.Warn("failed to load categorization history",
				slog.String("budget_id", budgetID.String()),
				slog.Any("error", err))
		}
	}

	resolver := NewResolver(categories, DefaultResolveThreshold)

	var index *HistoryIndex
	if len(history) > 0 {
		idx, err := NewHistoryIndex()
		if err != nil {
			return nil, err
		}
		defer idx.Close()

		if err := idx.Index(history); err != nil {
			s.logger.Warn("failed to index categorization history", slog.Any("error", err))
		} else {
			index = idx
		}
	}

	for i := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		suggestions[i] = s.suggestOne(&txs[i], resolver, index)
	}

	return suggestions, nil
}

func (s *Service) suggestOne(tx *mapper.MappedTransaction, resolver *Resolver, index *HistoryIndex) *Suggestion {
	if tx.CategoryName != "" {
		if res := resolver.Resolve(tx.CategoryName, tx.CategoryGroupName); res != nil {
			id := res.Category.ID
			return &Suggestion{
				CategoryID:   &id,
				CategoryName: res.Category.Name,
				Source:       SourceFile,
				Confidence:   float64(res.Score) / 100,
			}
		}
	}

	if index != nil {
		hit, err := index.Lookup(tx.Vendor)
		if err != nil {
			s.logger.Debug("history lookup failed", slog.String("vendor", tx.Vendor), slog.Any("error", err))
		}
		if hit != nil {
			confidence := historyFuzzyConfidence
			if hit.Exact {
				confidence = historyExactConfidence
			}
			id := hit.CategoryID
			return &Suggestion{
				CategoryID:   &id,
				CategoryName: hit.CategoryName,
				Source:       SourceHistory,
				Confidence:   confidence,
			}
		}
	}

	text := strings.TrimSpace(tx.Vendor + " " + tx.Description)
	match := s.engine.Match(text)
	if match == nil {
		return nil
	}

	suggestion := &Suggestion{
		CategoryName: match.Category,
		Merchant:     match.CleanName,
		Source:       SourceKeyword,
		Confidence:   keywordNameOnlyConfidence,
	}
	if res := resolver.Resolve(match.Category, ""); res != nil {
		id := res.Category.ID
		suggestion.CategoryID = &id
		suggestion.CategoryName = res.Category.Name
		suggestion.Confidence = keywordResolvedConfidence
	}

	return suggestion
}
