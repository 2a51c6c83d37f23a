package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"recipe-importer/internal/pkg/common"
)

// SaveImage writes a hero image under the media directory with a
// collision-resistant name and returns the stored relative path.
func (s *Store) SaveImage(data []byte) (string, error) {
	name := fmt.Sprintf("recipe_%s.png", strings.ReplaceAll(common.GenerateUUID(), "-", ""))
	if err := os.WriteFile(filepath.Join(s.mediaDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return name, nil
}

// ReadImage loads a previously stored hero image.
func (s *Store) ReadImage(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.mediaDir, filepath.Base(path)))
}

func (s *Store) removeImage(path string) {
	if path == "" {
		return
	}
	os.Remove(filepath.Join(s.mediaDir, filepath.Base(path)))
}
