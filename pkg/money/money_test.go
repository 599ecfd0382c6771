package money

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"simple", "12.34", USD, 1234},
		{"negative", "-45.00", GBP, -4500},
		{"rounds half up", "0.005", EUR, 1},
		{"yen has no minor units", "1500", JPY, 1500},
		{"unknown currency uses USD", "1.50", "XXX-NOPE", 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFromDecimal(decimal.RequireFromString(tt.amount), tt.currency)
			assert.Equal(t, tt.want, m.Amount())
		})
	}
}

func TestMoney_Display(t *testing.T) {
	assert.Equal(t, "£45.00", New(4500, GBP).Display())
	assert.Equal(t, "$0.00", (*Money)(nil).Display())
	assert.Equal(t, "-45.00", New(-4500, GBP).String())
	assert.Equal(t, "0.00", (*Money)(nil).String())
}

func TestMoney_Add(t *testing.T) {
	sum, err := New(100, GBP).Add(New(250, GBP))
	require.NoError(t, err)
	assert.Equal(t, int64(350), sum.Amount())

	_, err = New(100, GBP).Add(New(100, EUR))
	assert.Error(t, err)

	var nilMoney *Money
	sum, err = nilMoney.Add(New(5, GBP))
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Amount())
}

func TestSum(t *testing.T) {
	amounts := []decimal.Decimal{
		decimal.RequireFromString("-45.00"),
		decimal.RequireFromString("2000.00"),
		decimal.RequireFromString("-4.99"),
	}

	totals := Sum(amounts, GBP)

	assert.Equal(t, int64(200000), totals.Inflow.Amount())
	assert.Equal(t, int64(4999), totals.Outflow.Amount())
	assert.Equal(t, int64(195001), totals.Net.Amount())
	assert.Equal(t, GBP, totals.Net.Currency())
}

func TestSymbols(t *testing.T) {
	syms := Symbols()

	assert.Contains(t, syms, "$")
	assert.Contains(t, syms, "€")
	assert.Contains(t, syms, "£")
	assert.Contains(t, syms, "EUR")
	assert.Contains(t, syms, "R$")

	for i := 1; i < len(syms); i++ {
		assert.GreaterOrEqual(t, len(syms[i-1]), len(syms[i]))
	}
}

func TestTestDataGenerator(t *testing.T) {
	g := NewTestDataGeneratorWithSeed(42)
	account := uuid.New()

	txs := g.DistinctTransactions(account, 20)

	require.Len(t, txs, 20)
	seen := map[string]bool{}
	for _, tx := range txs {
		assert.Equal(t, account, tx.AccountID)
		assert.True(t, tx.Amount.IsNegative())
		assert.False(t, seen[tx.Amount.String()])
		seen[tx.Amount.String()] = true
		assert.Equal(t, 2024, tx.Date.Year())
		assert.Len(t, tx.DateString(), 10)

		noisy := g.NoisyVendor(tx)
		assert.Contains(t, strings.ToLower(noisy), strings.ToLower(tx.Vendor))
	}
}
