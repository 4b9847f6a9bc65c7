package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"v2stats/internal/model"
)

var _ Storage = (*FileStorage)(nil)

// FileStorage writes a report as indented JSON, replacing the previous file atomically.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// ReportPath returns the output path for a network inside outDir.
func ReportPath(outDir, network string) string {
	return filepath.Join(outDir, network+".json")
}

func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) PutReport(report model.Report) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write report tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
