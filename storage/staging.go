package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// StagingArea manages job-scoped temporary files: downloaded datasets
// and trained-but-unpublished artifacts. Each job gets an exclusive
// directory; nothing under it is shared between jobs.
type StagingArea struct {
	root string
}

// NewStagingArea creates a staging area rooted at dir, falling back to
// the system temp directory when dir is empty.
func NewStagingArea(dir string) (*StagingArea, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "decen-ai-staging")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging root %s: %w", dir, err)
	}
	return &StagingArea{root: dir}, nil
}

// JobDir returns the exclusive directory for jobID, creating it if
// needed.
func (s *StagingArea) JobDir(jobID string) (string, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir for job %s: %w", jobID, err)
	}
	return dir, nil
}

// WriteFile writes data into the job's directory and returns the full
// path.
func (s *StagingArea) WriteFile(jobID, name string, data []byte) (string, error) {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes a single staged file. Missing files are not an error:
// the caller may be cleaning up after a partial failure.
func (s *StagingArea) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("staging: failed to remove %s: %v", path, err)
	}
}

// RemoveJobDir deletes the job's entire directory.
func (s *StagingArea) RemoveJobDir(jobID string) {
	if err := os.RemoveAll(filepath.Join(s.root, jobID)); err != nil {
		log.Printf("staging: failed to remove dir for job %s: %v", jobID, err)
	}
}

// Exists reports whether a staged file is still present on disk.
func (s *StagingArea) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
