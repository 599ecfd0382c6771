package categorization

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// historyLimit caps how many vendor/category pairs are loaded per budget.
const historyLimit = 5000

// Category is a budget category an imported transaction can be filed under.
type Category struct {
	ID        uuid.UUID `json:"id"`
	BudgetID  uuid.UUID `json:"budgetId"`
	Name      string    `json:"name"`
	GroupName string    `json:"groupName,omitempty"`
}

// HistoryEntry records how often a vendor was filed under a category.
type HistoryEntry struct {
	Vendor       string    `json:"vendor"`
	CategoryID   uuid.UUID `json:"categoryId"`
	CategoryName string    `json:"categoryName"`
	Count        int       `json:"count"`
}

// DBTX is the subset of pgxpool.Pool used by repositories. pgxmock pools
// satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads categories and categorization history from Postgres.
type Repository struct {
	db DBTX
}

// NewRepository creates a new categorization repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// ListCategories returns the categories of a budget ordered by group and name.
func (r *Repository) ListCategories(ctx context.Context, budgetID uuid.UUID) ([]Category, error) {
	query := `
		SELECT id, budget_id, name, group_name
		FROM categories
		WHERE budget_id = $1
		ORDER BY group_name, name
	`

	rows, err := r.db.Query(ctx, query, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.BudgetID, &c.Name, &c.GroupName); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// ListHistory returns vendor/category pairs from categorized transactions,
// most frequent first.
func (r *Repository) ListHistory(ctx context.Context, budgetID uuid.UUID) ([]HistoryEntry, error) {
	query := `
		SELECT t.vendor, c.id, c.name, COUNT(*) AS uses
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.budget_id = $1 AND t.vendor <> ''
		GROUP BY t.vendor, c.id, c.name
		ORDER BY uses DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, budgetID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list categorization history: %w", err)
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.Vendor, &h.CategoryID, &h.CategoryName, &h.Count); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// CreateCategory inserts a category and sets its ID.
func (r *Repository) CreateCategory(ctx context.Context, c *Category) error {
	query := `
		INSERT INTO categories (budget_id, name, group_name)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := r.db.QueryRow(ctx, query, c.BudgetID, c.Name, c.GroupName).Scan(&c.ID); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}
