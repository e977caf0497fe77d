package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var ErrMetadataNotFound = errors.New("metadata file not found")

// FileBackend reads and writes named files in a single directory.
type FileBackend struct {
	baseDir string
	log     *slog.Logger
}

// NewFileBackend creates a file backend rooted at baseDir. The directory is
// created on the first write.
func NewFileBackend(baseDir string, log *slog.Logger) *FileBackend {
	return &FileBackend{
		baseDir: baseDir,
		log:     log,
	}
}

// Fetch reads a file. Returns ErrMetadataNotFound if the file doesn't exist.
func (b *FileBackend) Fetch(name string) ([]byte, error) {
	filePath := b.path(name)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMetadataNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched metadata file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Store writes a file, replacing any previous content.
func (b *FileBackend) Store(name string, data []byte) error {
	filePath := b.path(name)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored metadata file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// Exists checks whether a file is present.
func (b *FileBackend) Exists(name string) bool {
	_, err := os.Stat(b.path(name))
	return err == nil
}

// Dir returns the backing directory.
func (b *FileBackend) Dir() string {
	return b.baseDir
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.baseDir, name)
}
