// Package publish implements the second phase of the training flow:
// uploading a job's staged artifacts to the blob store, registering
// provenance on the ledger, and finalizing the job record. It runs
// synchronously inside the upload request.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/models"
	"decen-ai-backend/storage"
)

var (
	// ErrJobNotFound: no such job.
	ErrJobNotFound = errors.New("training job not found")

	// ErrNotOwner: the caller does not own the job.
	ErrNotOwner = errors.New("caller does not own this training job")

	// ErrNotReady: the job is not in TRAINING_COMPLETE. Publishing twice
	// hits this on the second call, which is what prevents double
	// uploads and duplicate ledger registrations.
	ErrNotReady = errors.New("job is not ready for publishing")

	// ErrStagedFilesMissing: the staged files vanished (restart,
	// external cleanup). The job is marked FAILED before this is
	// returned; it can never be published.
	ErrStagedFilesMissing = errors.New("staged files for publish are missing")

	// ErrUploadFailed: a blob store upload failed; the job ends in
	// UPLOAD_FAILED.
	ErrUploadFailed = errors.New("artifact upload failed")
)

// Registrar writes a provenance record to the ledger.
type Registrar interface {
	RegisterAsset(ctx context.Context, owner, assetType, name, primaryCID, metadataCID, sourceCID string) (string, error)
}

// Result reports a finished publish. LedgerTx is empty when the uploads
// succeeded but registration failed; that outcome is still COMPLETED.
type Result struct {
	ArtifactCID string
	MetadataCID string
	LedgerTx    string
	Message     string
}

// Publisher finalizes training jobs.
type Publisher struct {
	store     jobstore.Store
	blobs     storage.BlobStore
	staging   *storage.StagingArea
	registrar Registrar
}

// New creates a publisher.
func New(store jobstore.Store, blobs storage.BlobStore, staging *storage.StagingArea, registrar Registrar) *Publisher {
	return &Publisher{store: store, blobs: blobs, staging: staging, registrar: registrar}
}

// Publish uploads the staged artifacts of a TRAINING_COMPLETE job,
// registers provenance, and finalizes the job record. Whatever the
// outcome, the staged files are deleted and their locators cleared:
// they are single-use, and the job never re-enters TRAINING_COMPLETE.
func (p *Publisher) Publish(ctx context.Context, jobID, principal, modelName string) (*Result, error) {
	job, err := p.store.Get(jobID)
	if errors.Is(err, jobstore.ErrNotFound) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(job.Owner, principal) {
		log.Printf("Job %s: publish attempted by %s, owner is %s", jobID, principal, job.Owner)
		return nil, ErrNotOwner
	}
	if job.Status != models.StatusTrainingComplete {
		return nil, fmt.Errorf("%w: current status is %s", ErrNotReady, job.Status)
	}

	if !p.staging.Exists(job.StagedArtifactPath) || !p.staging.Exists(job.StagedMetadataPath) {
		// The process restarted or the files were removed between
		// training and publish. The job can never be published, so it
		// is failed here rather than frozen in TRAINING_COMPLETE.
		log.Printf("Job %s: staged files missing (%s, %s)", jobID, job.StagedArtifactPath, job.StagedMetadataPath)
		failed := models.StatusUpdate(models.StatusFailed, "Required staged files for publish were missing.")
		failed.ClearStagedPaths = true
		p.store.Update(jobID, failed)
		return nil, fmt.Errorf("job %s: %w", jobID, ErrStagedFilesMissing)
	}

	artifactBytes, err := os.ReadFile(job.StagedArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged artifact: %w", err)
	}
	metadataBytes, err := os.ReadFile(job.StagedMetadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged metadata: %w", err)
	}

	if modelName == "" {
		modelName = "ML Model from Job " + shortID(jobID)
	}

	// Everything below must finalize the record no matter how far it
	// got: partial results are kept, staged locators are cleared, and
	// the staged files are removed.
	finalStatus := models.StatusFailed
	finalMessage := ""
	var artifactCID, metadataCID, ledgerTx string

	defer func() {
		update := models.JobUpdate{
			Status:           &finalStatus,
			Message:          &finalMessage,
			ClearStagedPaths: true,
		}
		if artifactCID != "" {
			update.PublishedArtifactCID = &artifactCID
		}
		if metadataCID != "" {
			update.PublishedMetadataCID = &metadataCID
		}
		if ledgerTx != "" {
			update.LedgerTx = &ledgerTx
		}
		p.store.Update(jobID, update)

		p.staging.Remove(job.StagedArtifactPath)
		p.staging.Remove(job.StagedMetadataPath)
	}()

	artifactCID, err = p.blobs.Put(ctx, "trained_model.gob", artifactBytes)
	if err != nil {
		finalStatus = models.StatusUploadFailed
		finalMessage = "Failed to upload trained model artifact."
		log.Printf("Job %s: %s: %v", jobID, finalMessage, err)
		return nil, fmt.Errorf("%w: model artifact: %v", ErrUploadFailed, err)
	}
	log.Printf("Job %s: model artifact uploaded, CID %s", jobID, artifactCID)

	metadataCID, err = p.blobs.Put(ctx, "model_info.json", metadataBytes)
	if err != nil {
		finalStatus = models.StatusUploadFailed
		finalMessage = "Failed to upload model metadata."
		log.Printf("Job %s: %s: %v", jobID, finalMessage, err)
		return nil, fmt.Errorf("%w: model metadata: %v", ErrUploadFailed, err)
	}
	log.Printf("Job %s: model metadata uploaded, CID %s", jobID, metadataCID)

	ledgerTx, err = p.registrar.RegisterAsset(ctx, job.Owner, "Model", modelName, artifactCID, metadataCID, job.DatasetCID)
	if err != nil || ledgerTx == "" {
		// Uploads already succeeded; the artifacts are durable. Losing
		// the ledger record is reconciled manually, not by failing the
		// job.
		ledgerTx = ""
		finalStatus = models.StatusCompleted
		finalMessage = "Model and metadata uploaded, but ledger provenance registration failed."
		log.Printf("Job %s: provenance registration failed: %v", jobID, err)
	} else {
		finalStatus = models.StatusCompleted
		finalMessage = "Model uploaded and provenance registered successfully."
		log.Printf("Job %s: provenance registered, tx %s", jobID, ledgerTx)
	}

	return &Result{
		ArtifactCID: artifactCID,
		MetadataCID: metadataCID,
		LedgerTx:    ledgerTx,
		Message:     finalMessage,
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
