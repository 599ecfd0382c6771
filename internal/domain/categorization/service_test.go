package categorization

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/mapper"
)

type fakeSource struct {
	categories []Category
	history    []HistoryEntry
	err        error
}

func (f *fakeSource) ListCategories(_ context.Context, _ uuid.UUID) ([]Category, error) {
	return f.categories, f.err
}

func (f *fakeSource) ListHistory(_ context.Context, _ uuid.UUID) ([]HistoryEntry, error) {
	return f.history, f.err
}

func TestService_Suggest(t *testing.T) {
	budget := uuid.New()
	groceries := Category{ID: uuid.New(), BudgetID: budget, Name: "Groceries"}
	eatingOut := Category{ID: uuid.New(), BudgetID: budget, Name: "Eating Out"}
	bills := Category{ID: uuid.New(), BudgetID: budget, Name: "Bills"}

	source := &fakeSource{
		categories: []Category{groceries, eatingOut, bills},
		history: []HistoryEntry{
			{Vendor: "Corner Shop", CategoryID: groceries.ID, CategoryName: "Groceries", Count: 3},
		},
	}
	svc := NewService(source, nil, nil)

	txs := []mapper.MappedTransaction{
		{Vendor: "Anything", CategoryName: "groceries"},
		{Vendor: "CORNER SHOP"},
		{Vendor: "Starbucks"},
		{Vendor: "Netflix"},
		{Vendor: "Mystery Vendor"},
		{Vendor: "Tesco", CategoryName: "Unknown Cat"},
	}

	suggestions, err := svc.Suggest(context.Background(), budget, txs)
	require.NoError(t, err)
	require.Len(t, suggestions, len(txs))

	t.Run("file category resolved", func(t *testing.T) {
		s := suggestions[0]
		require.NotNil(t, s)
		assert.Equal(t, SourceFile, s.Source)
		assert.Equal(t, groceries.ID, *s.CategoryID)
		assert.Equal(t, "Groceries", s.CategoryName)
		assert.InDelta(t, 1.0, s.Confidence, 1e-9)
	})

	t.Run("history", func(t *testing.T) {
		s := suggestions[1]
		require.NotNil(t, s)
		assert.Equal(t, SourceHistory, s.Source)
		assert.Equal(t, groceries.ID, *s.CategoryID)
		assert.InDelta(t, historyExactConfidence, s.Confidence, 1e-9)
	})

	t.Run("keyword resolved to budget category", func(t *testing.T) {
		s := suggestions[2]
		require.NotNil(t, s)
		assert.Equal(t, SourceKeyword, s.Source)
		assert.Equal(t, eatingOut.ID, *s.CategoryID)
		assert.Equal(t, "Starbucks", s.Merchant)
	})

	t.Run("keyword without budget category", func(t *testing.T) {
		s := suggestions[3]
		require.NotNil(t, s)
		assert.Nil(t, s.CategoryID)
		assert.Equal(t, "Entertainment", s.CategoryName)
		assert.InDelta(t, keywordNameOnlyConfidence, s.Confidence, 1e-9)
	})

	t.Run("no suggestion", func(t *testing.T) {
		assert.Nil(t, suggestions[4])
	})

	t.Run("unresolved file category falls through", func(t *testing.T) {
		s := suggestions[5]
		require.NotNil(t, s)
		assert.Equal(t, SourceKeyword, s.Source)
		assert.Equal(t, groceries.ID, *s.CategoryID)
	})
}

func TestService_SuggestFailsOpen(t *testing.T) {
	svc := NewService(&fakeSource{err: errors.New("connection refused")}, nil, nil)

	suggestions, err := svc.Suggest(context.Background(), uuid.New(), []mapper.MappedTransaction{{Vendor: "TESCO"}})
	require.NoError(t, err)
	require.NotNil(t, suggestions[0])
	assert.Equal(t, "Groceries", suggestions[0].CategoryName)
	assert.Nil(t, suggestions[0].CategoryID)
}

func TestService_SuggestNoSource(t *testing.T) {
	svc := NewService(nil, NewEngine(nil), nil)

	suggestions, err := svc.Suggest(context.Background(), uuid.New(), []mapper.MappedTransaction{{Vendor: "TESCO"}})
	require.NoError(t, err)
	assert.Nil(t, suggestions[0])

	empty, err := svc.Suggest(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_SuggestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(nil, nil, nil).Suggest(ctx, uuid.New(), []mapper.MappedTransaction{{Vendor: "TESCO"}})
	assert.ErrorIs(t, err, context.Canceled)
}
