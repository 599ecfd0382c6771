package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDirName = ".meta"

// LocalStorage implements Storage using the local filesystem. Each budget
// gets its own directory; metadata lives next to the files under .meta.
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

// Upload stores a file and returns its metadata
func (s *LocalStorage) Upload(ctx context.Context, budgetID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	fileID := uuid.New()

	budgetDir := s.budgetDir(budgetID)
	if err := os.MkdirAll(budgetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create budget directory: %w", err)
	}

	// UUID prefix keeps repeated uploads of the same name apart
	storedFilename := fmt.Sprintf("%s_%s", fileID.String()[:8], sanitizeFilename(filename))
	filePath := filepath.Join(budgetDir, storedFilename)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		BudgetID:    budgetID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        storedFilename,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.saveMetadata(budgetID, fileID, info); err != nil {
		os.Remove(filePath)
		return nil, err
	}

	return info, nil
}

// Download retrieves a file by its ID
func (s *LocalStorage) Download(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.GetInfo(ctx, budgetID, fileID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.budgetDir(budgetID), info.Path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, info, nil
}

// ReadAll returns the whole content of a file
func (s *LocalStorage) ReadAll(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) ([]byte, *FileInfo, error) {
	rc, info, err := s.Download(ctx, budgetID, fileID)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, info, nil
}

// Delete removes a file by its ID
func (s *LocalStorage) Delete(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, budgetID, fileID)
	if err != nil {
		return err
	}
	return s.remove(budgetID, info)
}

// List returns all files for a budget
func (s *LocalStorage) List(ctx context.Context, budgetID uuid.UUID) ([]*FileInfo, error) {
	metaDir := filepath.Join(s.budgetDir(budgetID), metaDirName)
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*FileInfo{}, nil
		}
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}

		info, err := s.GetInfo(ctx, budgetID, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}

	return files, nil
}

// GetInfo returns metadata for a file without downloading
func (s *LocalStorage) GetInfo(ctx context.Context, budgetID uuid.UUID, fileID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(budgetID, fileID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &info, nil
}

// Purge deletes every file created before cutoff, across all budgets.
func (s *LocalStorage) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	budgets, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage directory: %w", err)
	}

	purged := 0
	for _, dir := range budgets {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if !dir.IsDir() {
			continue
		}
		budgetID, err := uuid.Parse(dir.Name())
		if err != nil {
			continue
		}

		files, err := s.List(ctx, budgetID)
		if err != nil {
			return purged, err
		}
		for _, info := range files {
			if !info.CreatedAt.Before(cutoff) {
				continue
			}
			if err := s.remove(budgetID, info); err != nil {
				return purged, err
			}
			purged++
		}
	}

	return purged, nil
}

func (s *LocalStorage) remove(budgetID uuid.UUID, info *FileInfo) error {
	filePath := filepath.Join(s.budgetDir(budgetID), info.Path)
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(s.metaPath(budgetID, info.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

func (s *LocalStorage) budgetDir(budgetID uuid.UUID) string {
	return filepath.Join(s.basePath, budgetID.String())
}

func (s *LocalStorage) metaPath(budgetID, fileID uuid.UUID) string {
	return filepath.Join(s.budgetDir(budgetID), metaDirName, fileID.String()+".json")
}

// saveMetadata saves file metadata to a JSON file
func (s *LocalStorage) saveMetadata(budgetID, fileID uuid.UUID, info *FileInfo) error {
	metaDir := filepath.Join(s.budgetDir(budgetID), metaDirName)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(s.metaPath(budgetID, fileID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
