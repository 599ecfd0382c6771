package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
	"github.com/FACorreiaa/budget-importer/pkg/db"
)

// ledgerFlags select where existing records and saved mappings come from.
type ledgerFlags struct {
	ledger  string
	budget  string
	account string
}

func (f *ledgerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ledger, "ledger", "", "SQLite ledger file holding the budget")
	cmd.Flags().StringVar(&f.budget, "budget", "", "budget ID inside the ledger")
	cmd.Flags().StringVar(&f.account, "account", "", "account ID; limits duplicate matching to that account")
}

func (f *ledgerFlags) budgetID() (uuid.UUID, error) {
	if f.budget == "" {
		if f.ledger != "" {
			return uuid.Nil, fmt.Errorf("--budget is required with --ledger")
		}
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(f.budget)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --budget: %w", err)
	}
	return id, nil
}

func (f *ledgerFlags) accountID() (*uuid.UUID, error) {
	if f.account == "" {
		return nil, nil
	}
	id, err := uuid.Parse(f.account)
	if err != nil {
		return nil, fmt.Errorf("invalid --account: %w", err)
	}
	return &id, nil
}

// defaultAccountID is the account commits land in when none is given. It is
// stable per budget so repeated imports match each other.
func defaultAccountID(budgetID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(budgetID, []byte("default-account"))
}

// session is an opened repository plus the service built on it.
type session struct {
	repo    repository.ImportRepository
	memory  *repository.MemoryImportRepository // set when no ledger is open
	service *importservice.ImportService
	close   func() error
}

// openSession opens the ledger when one is given and falls back to an empty
// in-memory repository otherwise.
func openSession(ctx context.Context, f *ledgerFlags, logger *slog.Logger) (*session, error) {
	s := &session{close: func() error { return nil }}

	if f.ledger == "" {
		s.memory = repository.NewMemoryImportRepository()
		s.repo = s.memory
	} else {
		conn, err := db.OpenSQLite(ctx, f.ledger)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		s.repo = repository.NewSQLiteImportRepository(conn)
		s.close = conn.Close
	}

	s.service = importservice.NewImportService(s.repo, importservice.DefaultOptions(), logger).
		WithSuggester(categorization.NewService(s.repo, nil, logger))

	return s, nil
}

func readInput(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return filepath.Base(path), data, nil
}
