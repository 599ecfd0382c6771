// Package storage keeps uploaded statement files between the analyze,
// preview and commit steps of an import.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an upload does not exist for the budget.
var ErrNotFound = errors.New("upload not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	BudgetID    uuid.UUID `json:"budget_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for upload storage operations. Files are
// scoped to a budget: a file ID is only visible through the budget that
// uploaded it.
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, budgetID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Download retrieves a file by its ID
	Download(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// ReadAll returns the whole content of a file
	ReadAll(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) ([]byte, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) error

	// List returns all files for a budget
	List(ctx context.Context, budgetID uuid.UUID) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without downloading
	GetInfo(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) (*FileInfo, error)

	// Purge deletes every file created before cutoff and returns how many
	// were removed.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

// Config holds storage configuration
type Config struct {
	LocalPath string
}

// New creates the upload storage for cfg.
func New(cfg *Config) (Storage, error) {
	return NewLocalStorage(cfg.LocalPath)
}
