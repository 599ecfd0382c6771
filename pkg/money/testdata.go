package money

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic bank statement data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
	start time.Time
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return NewTestDataGeneratorWithSeed(0)
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
		start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// TestTransaction is one generated statement line.
type TestTransaction struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Date        time.Time
	Vendor      string
	Description string
	Amount      decimal.Decimal
	Category    string
}

// DateString returns the transaction date as YYYY-MM-DD.
func (t TestTransaction) DateString() string {
	return t.Date.Format("2006-01-02")
}

// Transaction generates a single random transaction within 2024.
func (g *TestDataGenerator) Transaction(accountID uuid.UUID) TestTransaction {
	cents := int64(g.faker.Number(1, 50000))
	amount := decimal.New(cents, -2)
	category := g.Category()
	if g.faker.Number(0, 9) == 0 {
		category = "Income"
	} else {
		amount = amount.Neg()
	}

	return TestTransaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Date:        g.faker.DateRange(g.start, g.start.AddDate(1, 0, -1)).UTC().Truncate(24 * time.Hour),
		Vendor:      g.Merchant(),
		Description: g.TransactionDescription(),
		Amount:      amount,
		Category:    category,
	}
}

// Transactions generates count random transactions.
func (g *TestDataGenerator) Transactions(accountID uuid.UUID, count int) []TestTransaction {
	txs := make([]TestTransaction, count)
	for i := range txs {
		txs[i] = g.Transaction(accountID)
	}
	return txs
}

// DistinctTransactions generates count transactions with pairwise distinct
// amounts, so no two of them can be confused for each other.
func (g *TestDataGenerator) DistinctTransactions(accountID uuid.UUID, count int) []TestTransaction {
	txs := g.Transactions(accountID, count)
	for i := range txs {
		txs[i].Amount = decimal.New(int64(-(i+1)*137), -2)
	}
	return txs
}

// NoisyVendor decorates a vendor the way bank exports do: a payment-type
// prefix, a trailing reference code or a trailing transaction date.
func (g *TestDataGenerator) NoisyVendor(tx TestTransaction) string {
	switch g.faker.Number(0, 3) {
	case 0:
		return "CARD PAYMENT TO " + strings.ToUpper(tx.Vendor)
	case 1:
		return "DIRECT DEBIT TO " + tx.Vendor
	case 2:
		return fmt.Sprintf("%s %s%d", tx.Vendor, strings.ToUpper(g.faker.LetterN(3)), g.faker.Number(100000, 999999))
	default:
		return fmt.Sprintf("%s ON %s", strings.ToUpper(tx.Vendor), tx.Date.Format("02/01/2006"))
	}
}

var expenseCategories = []string{
	"Groceries", "Eating Out", "Transport", "Fuel",
	"Shopping", "Entertainment", "Bills", "Health",
	"Travel", "Education", "Personal Care", "Home",
}

var merchants = []string{
	"Tesco", "Sainsburys", "Waitrose", "Amazon", "Starbucks",
	"McDonalds", "Uber", "Netflix", "Spotify", "Apple",
	"Shell", "Boots", "Pret A Manger", "Deliveroo", "Ikea",
	"Lidl", "Aldi", "Costa Coffee", "Trainline", "Vodafone",
}

var transactionDescriptions = []string{
	"Coffee and pastry",
	"Weekly groceries",
	"Fuel",
	"Online subscription",
	"Restaurant dinner",
	"Utility bill",
	"Gym membership",
	"Phone bill",
	"Parking fee",
	"Public transit",
}

// Category returns a random expense category.
func (g *TestDataGenerator) Category() string {
	return expenseCategories[g.faker.Number(0, len(expenseCategories)-1)]
}

// Merchant returns a random merchant name.
func (g *TestDataGenerator) Merchant() string {
	return merchants[g.faker.Number(0, len(merchants)-1)]
}

// TransactionDescription returns a random transaction description.
func (g *TestDataGenerator) TransactionDescription() string {
	return transactionDescriptions[g.faker.Number(0, len(transactionDescriptions)-1)]
}
