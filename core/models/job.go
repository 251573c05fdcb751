package models

import "time"

// JobRecord represents a training job submitted to the platform.
// It is the single source of truth for the job's progress: the training
// worker and the publish path mutate it through the job store, clients
// poll it through the status endpoint.
type JobRecord struct {
	JobID      string
	Owner      string // wallet address of the creator; used for all authorization checks
	DatasetCID string
	Status     JobStatus
	Message    string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Local paths of the trained-but-unpublished artifacts. Set when the
	// job reaches StatusTrainingComplete, cleared once publish consumes
	// them (the files are deleted regardless of the publish outcome).
	StagedArtifactPath string
	StagedMetadataPath string

	Accuracy *float64

	// Populated by a successful publish. LedgerTx stays nil when the
	// uploads succeeded but provenance registration failed.
	PublishedArtifactCID string
	PublishedMetadataCID string
	LedgerTx             *string
}

// JobStatus represents the current stage of a job's lifecycle.
type JobStatus string

const (
	StatusPending          JobStatus = "PENDING"
	StatusVerifyingPayment JobStatus = "VERIFYING_PAYMENT"
	StatusDownloading      JobStatus = "DOWNLOADING"
	StatusTraining         JobStatus = "TRAINING"
	StatusTrainingComplete JobStatus = "TRAINING_COMPLETE"
	StatusCompleted        JobStatus = "COMPLETED"
	StatusUploadFailed     JobStatus = "UPLOAD_FAILED"
	StatusFailed           JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are legal from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusUploadFailed, StatusFailed:
		return true
	}
	return false
}

// legalTransitions enumerates every edge of the job state machine.
// FAILED is reachable from every non-terminal state; nothing leaves a
// terminal state.
var legalTransitions = map[JobStatus][]JobStatus{
	StatusPending:          {StatusVerifyingPayment, StatusFailed},
	StatusVerifyingPayment: {StatusDownloading, StatusFailed},
	StatusDownloading:      {StatusTraining, StatusFailed},
	StatusTraining:         {StatusTrainingComplete, StatusFailed},
	StatusTrainingComplete: {StatusCompleted, StatusUploadFailed, StatusFailed},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to JobStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobUpdate is a partial update applied to a JobRecord. Only non-nil
// fields are written; UpdatedAt is always refreshed by the store.
type JobUpdate struct {
	Status  *JobStatus
	Message *string

	StagedArtifactPath *string
	StagedMetadataPath *string
	// ClearStagedPaths resets both staged paths to empty. Used by the
	// publish path, which deletes the underlying files.
	ClearStagedPaths bool

	Accuracy             *float64
	PublishedArtifactCID *string
	PublishedMetadataCID *string
	LedgerTx             *string
}

// StatusUpdate builds a JobUpdate carrying just a status and message.
func StatusUpdate(status JobStatus, message string) JobUpdate {
	return JobUpdate{Status: &status, Message: &message}
}
