package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes each page to <dir>/<name>.json
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
// An empty dir means the working directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file a page with the given name is written to
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// SavePage writes data verbatim to the page file
func (s *FileStore) SavePage(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filename := s.Path(name)
	if dir := filepath.Dir(filename); dir != s.dir {
		// name may carry a directory component through store_filename
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create page directory: %w", err)
		}
	}

	out, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = out.Write(data)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write page data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// Dir returns the output directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Close is a no-op for files
func (s *FileStore) Close() error {
	return nil
}
