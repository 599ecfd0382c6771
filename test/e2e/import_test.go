// Package e2etest provides end-to-end integration tests for import flows.
package e2etest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/format"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/mapper"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/repository"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/service"
	"github.com/FACorreiaa/budget-importer/pkg/db"
)

const ynabJanuary = "Account,Flag,Date,Payee,Category Group/Category,Category Group,Category,Memo,Outflow,Inflow,Cleared\n" +
	"Checking,,01/01/2024,Starting Balance,Inflow: Ready to Assign,Inflow,Ready to Assign,,0.00,1500.00,Reconciled\n" +
	"Checking,,02/01/2024,Tesco,Everyday: Groceries,Everyday,Groceries,weekly shop,45.10,0.00,Cleared\n" +
	"Checking,,05/01/2024,Employer Ltd,Inflow: Ready to Assign,Inflow,Ready to Assign,salary,0.00,2000.00,Cleared\n"

const bankFebruary = "Date,Payee,Amount\n" +
	"03/02/2024,Tesco,-30.00\n" +
	"04/02/2024,Corner Shop,-4.20\n"

// Portuguese CGD-style statement, Windows-1252 encoded.
const cgdStatement = "Data mov.;Data valor;Descri\xe7\xe3o;D\xe9bito;Cr\xe9dito;Saldo contabil\xedstico\n" +
	"15-01-2024;15-01-2024;COMPRA PINGO DOCE LISBOA;12,30;;1.487,70\n" +
	"16-01-2024;16-01-2024;TRF VENCIMENTO;;1.500,00;2.987,70\n"

func openLedger(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), db.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestMappedRows covers the row mapper on a plain {date,vendor,amount} layout.
func TestMappedRows(t *testing.T) {
	headers := []string{"Date", "Vendor", "Amount"}
	rows := [][]string{
		{"2024-01-15", "Tesco", "-45.00"},
		{"2024-01-16", "Salary", "2000.00"},
	}
	mappings := []format.ColumnMapping{
		{SourceHeader: "Date", Field: format.FieldDate},
		{SourceHeader: "Vendor", Field: format.FieldVendor},
		{SourceHeader: "Amount", Field: format.FieldAmount},
	}

	result := mapper.ApplyMappings(headers, rows, mappings, mapper.Options{})
	require.Empty(t, result.Errors)
	require.Len(t, result.Transactions, 2)
	assert.True(t, decimal.NewFromInt(-45).Equal(result.Transactions[0].Amount))
	assert.True(t, decimal.NewFromInt(2000).Equal(result.Transactions[1].Amount))
}

// TestLedgerImport runs two monthly imports into a SQLite ledger: a YNAB
// register with categories, then a plain bank export whose categories come
// from the history the first import created.
func TestLedgerImport(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSQLiteImportRepository(openLedger(t))
	budgetID, accountID := uuid.New(), uuid.New()

	groceries := &categorization.Category{BudgetID: budgetID, Name: "Groceries", GroupName: "Everyday"}
	require.NoError(t, repo.AddCategory(ctx, groceries))

	svc := service.NewImportService(repo, service.DefaultOptions(), nil).
		WithSuggester(categorization.NewService(repo, nil, nil))

	t.Run("january register", func(t *testing.T) {
		analysis, err := svc.Analyze(ctx, budgetID, "register.csv", []byte(ynabJanuary))
		require.NoError(t, err)
		require.NotNil(t, analysis.Preset)
		assert.Equal(t, "ynab", analysis.Preset.ID)

		preview, err := svc.Preview(ctx, service.PreviewRequest{
			BudgetID: budgetID, AccountID: &accountID, FileName: "register.csv", Data: []byte(ynabJanuary),
		})
		require.NoError(t, err)
		require.Len(t, preview.Items, 3)
		assert.Empty(t, preview.Errors)
		assert.True(t, preview.Items[0].Transaction.IsStartingBalance)

		tesco := preview.Items[1]
		assert.True(t, decimal.RequireFromString("-45.10").Equal(tesco.Transaction.Amount))
		require.NotNil(t, tesco.Suggestion)
		assert.Equal(t, categorization.SourceFile, tesco.Suggestion.Source)
		require.NotNil(t, tesco.Suggestion.CategoryID)
		assert.Equal(t, groceries.ID, *tesco.Suggestion.CategoryID)

		items, skipped := preview.Selected(service.SelectOptions{AcceptSuggestions: true})
		result, err := svc.Commit(ctx, service.CommitRequest{
			BudgetID: budgetID, AccountID: accountID, FileName: "register.csv", Items: items, RowsSkipped: skipped,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.RowsImported)
		assert.Zero(t, result.RowsSkipped)
	})

	t.Run("re-importing january finds every row", func(t *testing.T) {
		preview, err := svc.Preview(ctx, service.PreviewRequest{
			BudgetID: budgetID, AccountID: &accountID, FileName: "register.csv", Data: []byte(ynabJanuary),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, preview.Summary.Duplicates)
		assert.Zero(t, preview.Summary.Selected)

		_, err = svc.Commit(ctx, service.CommitRequest{BudgetID: budgetID, AccountID: accountID})
		assert.ErrorIs(t, err, service.ErrNothingToCommit)
	})

	t.Run("february export learns from history", func(t *testing.T) {
		preview, err := svc.Preview(ctx, service.PreviewRequest{
			BudgetID: budgetID, AccountID: &accountID, FileName: "feb.csv", Data: []byte(bankFebruary),
		})
		require.NoError(t, err)
		assert.Equal(t, service.MappingAuto, preview.Analysis.MappingSource)
		require.Len(t, preview.Items, 2)
		assert.Zero(t, preview.Summary.Duplicates)

		tesco := preview.Items[0]
		require.NotNil(t, tesco.Suggestion)
		assert.Equal(t, categorization.SourceHistory, tesco.Suggestion.Source)
		assert.Equal(t, "Groceries", tesco.Suggestion.CategoryName)

		items, skipped := preview.Selected(service.SelectOptions{AcceptSuggestions: true})
		result, err := svc.Commit(ctx, service.CommitRequest{
			BudgetID: budgetID, AccountID: accountID, FileName: "feb.csv", Items: items, RowsSkipped: skipped,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.RowsImported)

		records, err := repo.ListExistingRecords(ctx, budgetID, repository.RecordFilter{From: "2024-02-01"})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}

// TestPortugueseStatement covers semicolon delimiters, split debit/credit
// columns, European amounts and Windows-1252 text.
func TestPortugueseStatement(t *testing.T) {
	ctx := context.Background()
	svc := service.NewImportService(repository.NewMemoryImportRepository(), service.DefaultOptions(), nil)

	analysis, err := svc.Analyze(ctx, uuid.New(), "comprovativo.csv", []byte(cgdStatement))
	require.NoError(t, err)
	assert.Equal(t, "semicolon", analysis.Delimiter)
	assert.Equal(t, "Descrição", analysis.Headers[2])
	assert.True(t, analysis.Dialect.IsEuropean)
	assert.Equal(t, format.FieldOutflow, analysis.Mappings[3].Field)
	assert.Equal(t, format.FieldInflow, analysis.Mappings[4].Field)

	preview, err := svc.Preview(ctx, service.PreviewRequest{BudgetID: uuid.New(), FileName: "comprovativo.csv", Data: []byte(cgdStatement)})
	require.NoError(t, err)
	require.Empty(t, preview.Errors)
	require.Len(t, preview.Items, 2)

	purchase, salary := preview.Items[0].Transaction, preview.Items[1].Transaction
	assert.Equal(t, "2024-01-15", purchase.Date)
	assert.True(t, decimal.RequireFromString("-12.30").Equal(purchase.Amount))
	assert.Equal(t, "COMPRA PINGO DOCE LISBOA", purchase.Vendor)
	assert.True(t, decimal.RequireFromString("1500").Equal(salary.Amount))
}
