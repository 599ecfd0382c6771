package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ynabHeaders = []string{
	"Account", "Flag", "Date", "Payee", "Category Group/Category",
	"Category Group", "Category", "Memo", "Outflow", "Inflow", "Cleared",
}

func TestDetectFormat(t *testing.T) {
	t.Run("detects YNAB export", func(t *testing.T) {
		preset, ok := DetectFormat(ynabHeaders)

		require.True(t, ok)
		assert.Equal(t, "ynab", preset.ID)
		assert.True(t, preset.SupportsMultipleAccounts)
		assert.Equal(t, "Starting Balance", preset.StartingBalanceMarker)
	})

	t.Run("ignores case, whitespace and order", func(t *testing.T) {
		shuffled := []string{
			" cleared", "INFLOW", "outflow ", "memo", "category", "category group",
			"category group/category", "payee", "date", "flag", "account",
		}

		preset, ok := DetectFormat(shuffled)

		require.True(t, ok)
		assert.Equal(t, "ynab", preset.ID)
	})

	t.Run("extra headers still match", func(t *testing.T) {
		headers := append([]string{"Extra"}, ynabHeaders...)

		preset, ok := DetectFormat(headers)

		require.True(t, ok)
		assert.Equal(t, "ynab", preset.ID)
	})

	t.Run("missing detect header does not match", func(t *testing.T) {
		_, ok := DetectFormat(ynabHeaders[:len(ynabHeaders)-1])
		assert.False(t, ok)
	})

	t.Run("other registered layouts", func(t *testing.T) {
		tests := []struct {
			headers []string
			want    string
		}{
			{
				[]string{"Account", "Flag", "Check Number", "Date", "Payee", "Category", "Master Category", "Sub Category", "Memo", "Outflow", "Inflow", "Cleared", "Running Balance"},
				"ynab4",
			},
			{
				[]string{"Transaction ID", "Date", "Time", "Type", "Name", "Emoji", "Category", "Amount", "Currency", "Notes and #tags"},
				"monzo",
			},
			{
				[]string{"Date", "Counter Party", "Reference", "Type", "Amount (GBP)", "Balance (GBP)", "Spending Category", "Notes"},
				"starling",
			},
			{
				[]string{"Type", "Product", "Started Date", "Completed Date", "Description", "Amount", "Fee", "Currency", "State", "Balance"},
				"revolut",
			},
			{
				[]string{"Date", "Transaction type", "Description", "Paid out", "Paid in", "Balance"},
				"nationwide",
			},
		}

		for _, tt := range tests {
			preset, ok := DetectFormat(tt.headers)
			require.True(t, ok, tt.want)
			assert.Equal(t, tt.want, preset.ID)
		}
	})

	t.Run("unknown layout", func(t *testing.T) {
		_, ok := DetectFormat([]string{"When", "Who", "How Much"})
		assert.False(t, ok)

		_, ok = DetectFormat(nil)
		assert.False(t, ok)
	})
}

func TestPreset_MappingsFor(t *testing.T) {
	preset, ok := PresetByID("ynab")
	require.True(t, ok)

	headers := []string{"date", "Payee", "Outflow", "Inflow", "Unknown"}
	mappings := preset.MappingsFor(headers)

	require.Len(t, mappings, len(headers))
	assert.Equal(t, ColumnMapping{SourceHeader: "date", Field: FieldDate}, mappings[0])
	assert.Equal(t, FieldVendor, mappings[1].Field)
	assert.Equal(t, FieldOutflow, mappings[2].Field)
	assert.Equal(t, FieldInflow, mappings[3].Field)
	assert.Equal(t, FieldIgnore, mappings[4].Field)
}

func TestPresetRegistry(t *testing.T) {
	ids := map[string]bool{}
	for _, p := range Presets() {
		assert.False(t, ids[p.ID], "duplicate preset id %s", p.ID)
		ids[p.ID] = true
		assert.NotEmpty(t, p.DetectHeaders, p.ID)
		assert.Positive(t, p.Version, p.ID)
		for _, cm := range p.ColumnMappings {
			assert.True(t, cm.Field.Valid(), "%s: %s", p.ID, cm.SourceHeader)
		}
	}

	_, ok := PresetByID("missing")
	assert.False(t, ok)
}

func TestAutoMap(t *testing.T) {
	tests := []struct {
		header string
		want   SemanticField
	}{
		{"Date", FieldDate},
		{"Transaction Date", FieldDate},
		{"Value Date", FieldDate},
		{"Data mov.", FieldDate},
		{"Payee", FieldVendor},
		{"Description", FieldVendor},
		{"Merchant Name", FieldVendor},
		{"Counter Party", FieldVendor},
		{"Descrição", FieldVendor},
		{"Notes", FieldDescription},
		{"Memo", FieldDescription},
		{"Reference", FieldDescription},
		{"Amount", FieldAmount},
		{"Amount (GBP)", FieldAmount},
		{"Debit Amount", FieldOutflow},
		{"Outflow", FieldOutflow},
		{"Money Out", FieldOutflow},
		{"Débito", FieldOutflow},
		{"Credit Amount", FieldInflow},
		{"Inflow", FieldInflow},
		{"Paid in", FieldInflow},
		{"Category Group", FieldCategoryGroup},
		{"Master Category", FieldCategoryGroup},
		{"Category", FieldCategory},
		{"Sub Category", FieldCategory},
		{"Account", FieldAccount},
		{"Account Name", FieldAccount},
		{"Balance", FieldIgnore},
		{"Cleared", FieldIgnore},
		{"Updated", FieldIgnore},
		{"", FieldIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessField(tt.header))
		})
	}

	t.Run("maps every header", func(t *testing.T) {
		headers := []string{"Date", "Description", "Notes", "Amount", "Balance"}

		mappings := AutoMap(headers)

		require.Len(t, mappings, 5)
		assert.Equal(t, []SemanticField{FieldDate, FieldVendor, FieldDescription, FieldAmount, FieldIgnore},
			[]SemanticField{mappings[0].Field, mappings[1].Field, mappings[2].Field, mappings[3].Field, mappings[4].Field})
		assert.Equal(t, "Notes", mappings[2].SourceHeader)
	})
}

func TestParseField(t *testing.T) {
	assert.Equal(t, FieldCategoryGroup, ParseField(" Category_Group "))
	assert.Equal(t, FieldIgnore, ParseField("balance"))
	assert.Equal(t, FieldIgnore, ParseField("ignore"))
	assert.False(t, SemanticField("balance").Valid())
}

func TestIndex(t *testing.T) {
	headers := []string{"Date", "Amount", "Local amount"}
	mappings := []ColumnMapping{
		{SourceHeader: "Missing", Field: FieldAmount},
		{SourceHeader: "amount", Field: FieldAmount},
		{SourceHeader: "Local amount", Field: FieldAmount},
	}

	assert.Equal(t, 1, Index(headers, mappings, FieldAmount))
	assert.Equal(t, -1, Index(headers, mappings, FieldDate))
}
