package jobstore

import (
	"errors"
	"time"

	"decen-ai-backend/core/models"
)

// ErrNotFound is returned by Get when no record exists for the job ID.
var ErrNotFound = errors.New("job not found")

// ErrAlreadyExists is returned by Create on a duplicate job ID.
var ErrAlreadyExists = errors.New("job already exists")

// Store is the injected abstraction over job state. The in-memory store
// is the default; PostgresStore offers the same contract with
// durability across restarts. Worker and handler code never depends on
// a concrete implementation.
type Store interface {
	// Create inserts a new record. Fails on a duplicate job ID or when
	// required fields are missing.
	Create(record *models.JobRecord) error

	// Get returns a snapshot of the record. Mutating the returned value
	// does not affect the stored record.
	Get(jobID string) (*models.JobRecord, error)

	// Update applies a partial update atomically with respect to
	// concurrent readers and always refreshes UpdatedAt. An unknown job
	// ID is logged, not surfaced: worker stages must never abort on a
	// bookkeeping miss.
	Update(jobID string, update models.JobUpdate)

	// List returns snapshots of every record, newest first.
	List() ([]*models.JobRecord, error)
}

// stampNew fills in creation timestamps the caller left zero.
func stampNew(rec *models.JobRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
}

// apply writes the non-nil fields of update onto rec.
func apply(rec *models.JobRecord, update models.JobUpdate) {
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.Message != nil {
		rec.Message = *update.Message
	}
	if update.StagedArtifactPath != nil {
		rec.StagedArtifactPath = *update.StagedArtifactPath
	}
	if update.StagedMetadataPath != nil {
		rec.StagedMetadataPath = *update.StagedMetadataPath
	}
	if update.ClearStagedPaths {
		rec.StagedArtifactPath = ""
		rec.StagedMetadataPath = ""
	}
	if update.Accuracy != nil {
		rec.Accuracy = update.Accuracy
	}
	if update.PublishedArtifactCID != nil {
		rec.PublishedArtifactCID = *update.PublishedArtifactCID
	}
	if update.PublishedMetadataCID != nil {
		rec.PublishedMetadataCID = *update.PublishedMetadataCID
	}
	if update.LedgerTx != nil {
		rec.LedgerTx = update.LedgerTx
	}
	rec.UpdatedAt = time.Now().UTC()
}

// snapshot returns a copy of rec that shares no mutable state with it.
func snapshot(rec *models.JobRecord) *models.JobRecord {
	cp := *rec
	if rec.Accuracy != nil {
		acc := *rec.Accuracy
		cp.Accuracy = &acc
	}
	if rec.LedgerTx != nil {
		tx := *rec.LedgerTx
		cp.LedgerTx = &tx
	}
	return &cp
}
