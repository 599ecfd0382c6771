package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "Date,Description,Amount\n" +
	"15/01/2024,TESCO STORES 3297,-45.00\n" +
	"16/01/2024,Pret A Manger,-6.50\n" +
	"16/01/2024,Pret A Manger,-6.50\n" +
	"31/02/2024,Broken,-1.00\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	input := writeFile(t, "jan.csv", statementCSV)

	t.Run("table output", func(t *testing.T) {
		out, err := run(t, "analyze", input)
		require.NoError(t, err)
		assert.Contains(t, out, "csv (delimiter: comma)")
		assert.Contains(t, out, "Mapping:     auto")
		assert.Contains(t, out, "Preset:      none")
		assert.Contains(t, out, "Description  vendor")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := run(t, "analyze", input, "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"mappingSource": "auto"`)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "analyze", filepath.Join(t.TempDir(), "nope.csv"))
		assert.Error(t, err)
	})

	t.Run("ledger requires budget", func(t *testing.T) {
		_, err := run(t, "analyze", input, "--ledger", filepath.Join(t.TempDir(), "ledger.db"))
		assert.ErrorContains(t, err, "--budget is required")
	})
}

func TestPreviewCommand(t *testing.T) {
	input := writeFile(t, "jan.csv", statementCSV)
	existing := writeFile(t, "existing.csv", "date,amount,vendor\n2024-01-15,-45.00,Tesco Stores\n")

	t.Run("flags duplicates from a snapshot", func(t *testing.T) {
		reviewPath := filepath.Join(t.TempDir(), "review.csv")
		out, err := run(t, "preview", input, "--existing", existing, "--out", reviewPath)
		require.NoError(t, err)
		assert.Contains(t, out, "row 5: Invalid date: 31/02/2024")
		assert.Contains(t, out, "4 rows: 3 mapped, 1 errors, 1 duplicates, 1 repeated in file, 1 selected")

		f, err := os.Open(reviewPath)
		require.NoError(t, err)
		defer f.Close()
		var rows []reviewRow
		require.NoError(t, gocsv.UnmarshalFile(f, &rows))
		require.Len(t, rows, 3)
		assert.True(t, rows[0].Duplicate)
		assert.Equal(t, "-45.00", rows[0].Amount)
		assert.Equal(t, "Groceries", rows[0].SuggestedCategory)
		assert.True(t, rows[1].Selected)
		assert.True(t, rows[2].InternalDuplicate)
	})

	t.Run("bad snapshot", func(t *testing.T) {
		bad := writeFile(t, "bad.csv", "date,amount,vendor\nyesterday,-1,X\n")
		_, err := run(t, "preview", input, "--existing", bad)
		assert.ErrorContains(t, err, "invalid date")
	})

	t.Run("existing and ledger conflict", func(t *testing.T) {
		_, err := run(t, "preview", input, "--existing", existing, "--ledger", "x.db", "--budget", uuid.NewString())
		assert.ErrorContains(t, err, "mutually exclusive")
	})
}

func TestCommitCommand(t *testing.T) {
	input := writeFile(t, "jan.csv", statementCSV)
	ledger := filepath.Join(t.TempDir(), "ledger.db")
	budgetID := uuid.NewString()

	out, err := run(t, "commit", input, "--ledger", ledger, "--budget", budgetID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Imported 2 of 4 rows (2 skipped)"), out)

	out, err = run(t, "preview", input, "--ledger", ledger, "--budget", budgetID)
	require.NoError(t, err)
	assert.Contains(t, out, "2 duplicates, 1 repeated in file, 0 selected")

	_, err = run(t, "commit", input, "--ledger", ledger, "--budget", budgetID)
	assert.ErrorContains(t, err, "no transactions selected")

	out, err = run(t, "commit", input, "--ledger", ledger, "--budget", budgetID, "--include-duplicates")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 4 rows")

	t.Run("requires ledger and budget", func(t *testing.T) {
		_, err := run(t, "commit", input)
		assert.Error(t, err)
	})
}
