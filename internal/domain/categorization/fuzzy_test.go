package categorization

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCategories() []Category {
	budget := uuid.New()
	return []Category{
		{ID: uuid.New(), BudgetID: budget, Name: "Groceries", GroupName: "Everyday"},
		{ID: uuid.New(), BudgetID: budget, Name: "Eating Out", GroupName: "Everyday"},
		{ID: uuid.New(), BudgetID: budget, Name: "Bills", GroupName: "Monthly"},
		{ID: uuid.New(), BudgetID: budget, Name: "Fuel", GroupName: "Transport"},
		{ID: uuid.New(), BudgetID: budget, Name: "Fuel", GroupName: "Car"},
	}
}

func TestResolver_Resolve(t *testing.T) {
	categories := testCategories()
	resolver := NewResolver(categories, DefaultResolveThreshold)

	tests := []struct {
		name   string
		input  string
		group  string
		wantID uuid.UUID
		score  int
	}{
		{"exact ignoring case", "groceries", "", categories[0].ID, 100},
		{"surrounding spaces", "  Bills ", "", categories[2].ID, 100},
		{"typo", "Grocries", "", categories[0].ID, 88},
		{"longer file name", "Eating Out & Takeaway", "", categories[1].ID, 86},
		{"first on tie", "Fuel", "", categories[3].ID, 100},
		{"group breaks tie", "Fuel", "car", categories[4].ID, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolver.Resolve(tt.input, tt.group)
			require.NotNil(t, res)
			assert.Equal(t, tt.wantID, res.Category.ID)
			assert.Equal(t, tt.score, res.Score)
		})
	}

	t.Run("nothing close", func(t *testing.T) {
		assert.Nil(t, resolver.Resolve("Zzz", ""))
	})

	t.Run("empty name", func(t *testing.T) {
		assert.Nil(t, resolver.Resolve("", ""))
	})

	t.Run("no categories", func(t *testing.T) {
		assert.Nil(t, NewResolver(nil, 0).Resolve("Groceries", ""))
	})
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"café", "cafe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshteinDistance(tt.a, tt.b))
		})
	}
}

func TestFuzzyScore(t *testing.T) {
	assert.Equal(t, 100, fuzzyScore("TESCO", "TESCO"))
	assert.Equal(t, 85, fuzzyScore("TESCO", "TESCO STORES"))
	assert.Equal(t, 0, fuzzyScore("ABC", "XYZ"))
}
