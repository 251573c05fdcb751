package jobstore

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"decen-ai-backend/core/models"
)

// MemoryStore keeps job records in a process-local map. State is lost on
// restart; callers must tolerate job loss, and the publish path handles
// the resulting missing-staged-files case explicitly.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.JobRecord
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.JobRecord)}
}

// Create inserts a new record.
func (s *MemoryStore) Create(record *models.JobRecord) error {
	if record == nil || record.JobID == "" || record.Owner == "" {
		return fmt.Errorf("invalid job record: job ID and owner are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[record.JobID]; ok {
		return fmt.Errorf("job %s: %w", record.JobID, ErrAlreadyExists)
	}
	rec := snapshot(record)
	stampNew(rec)
	s.jobs[record.JobID] = rec
	return nil
}

// Get returns a snapshot of the record for jobID.
func (s *MemoryStore) Get(jobID string) (*models.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(rec), nil
}

// Update applies a partial update under the write lock, so a concurrent
// Get never observes a half-applied record.
func (s *MemoryStore) Update(jobID string, update models.JobUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		log.Printf("jobstore: update for unknown job %s dropped", jobID)
		return
	}
	apply(rec, update)
	if update.Status != nil {
		log.Printf("Job %s: status -> %s", jobID, *update.Status)
	}
}

// List returns snapshots of all records, newest first.
func (s *MemoryStore) List() ([]*models.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, snapshot(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
