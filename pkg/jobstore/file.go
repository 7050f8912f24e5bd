package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// detailsFileName is the per-job details file written under the store root.
const detailsFileName = "job-details.json"

// FileStore persists job details as JSON files under a root directory, one
// subdirectory per job key.
type FileStore struct {
	root string
}

// NewFileStore creates a file-backed job store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Write persists details to <root>/<table key>/job-details.json.
func (s *FileStore) Write(_ context.Context, details Details) error {
	dir := filepath.Join(s.root, url.PathEscape(details.TableKey))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job details directory: %w", err)
	}
	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding job details: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, detailsFileName), data, 0o644); err != nil {
		return fmt.Errorf("writing job details: %w", err)
	}
	return nil
}

// Read loads the details for jobKey from disk. Every call re-reads the file.
func (s *FileStore) Read(_ context.Context, jobKey string) (*Details, error) {
	data, err := os.ReadFile(filepath.Join(s.root, url.PathEscape(jobKey), detailsFileName))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("reading job details for %q: %w", jobKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading job details for %q: %w", jobKey, err)
	}
	details := &Details{}
	if err := json.Unmarshal(data, details); err != nil {
		return nil, fmt.Errorf("decoding job details for %q: %w", jobKey, err)
	}
	return details, nil
}
