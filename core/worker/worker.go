// Package worker drives a training job from PENDING to
// TRAINING_COMPLETE or FAILED. It is fired as a goroutine by the
// start-training handler and is never awaited; everything it learns is
// written to the job store for clients to poll.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/ml"
	"decen-ai-backend/core/models"
	"decen-ai-backend/core/payment"
	"decen-ai-backend/storage"
)

// PaymentVerifier validates a claimed service-fee payment.
type PaymentVerifier interface {
	Verify(ctx context.Context, txHash, expectedPayer, service, claimedNonce string) error
}

// JobRequest carries everything the worker needs to run one job.
type JobRequest struct {
	JobID           string
	Owner           string
	DatasetCID      string
	ModelType       string
	TargetColumn    string
	Hyperparameters map[string]interface{}
	PaymentTx       string
	PaymentNonce    string
}

// Worker executes training pipelines.
type Worker struct {
	store    jobstore.Store
	verifier PaymentVerifier
	blobs    storage.BlobStore
	staging  *storage.StagingArea
	trainer  ml.Trainer
}

// New creates a worker.
func New(store jobstore.Store, verifier PaymentVerifier, blobs storage.BlobStore, staging *storage.StagingArea, trainer ml.Trainer) *Worker {
	return &Worker{
		store:    store,
		verifier: verifier,
		blobs:    blobs,
		staging:  staging,
		trainer:  trainer,
	}
}

// Run drives the job through its stages. Each transition is one atomic
// store update; any failure is terminal for the job. The downloaded
// dataset copy is always removed; staged model files survive here -
// they belong to the publish path until consumed.
func (w *Worker) Run(ctx context.Context, req JobRequest) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Job %s: panic in training pipeline: %v", req.JobID, r)
			w.fail(req.JobID, fmt.Sprintf("An unexpected error occurred: %v", r))
		}
	}()

	log.Printf("Job %s: training pipeline started (dataset %s, model %s, target %s)",
		req.JobID, req.DatasetCID, req.ModelType, req.TargetColumn)

	// Stage 1: payment. Fails closed; nothing below runs without a
	// verified fee.
	w.store.Update(req.JobID, models.StatusUpdate(models.StatusVerifyingPayment, "Verifying service fee payment."))
	if err := w.verifier.Verify(ctx, req.PaymentTx, req.Owner, payment.ServiceTraining, req.PaymentNonce); err != nil {
		log.Printf("Job %s: payment verification failed: %v", req.JobID, err)
		w.fail(req.JobID, "Payment verification failed: "+err.Error())
		return
	}

	// Stage 2: dataset download into job-scoped temp storage.
	w.store.Update(req.JobID, models.StatusUpdate(models.StatusDownloading, "Downloading dataset from storage."))
	data, err := w.blobs.Get(ctx, req.DatasetCID)
	if err != nil {
		log.Printf("Job %s: failed to download dataset %s: %v", req.JobID, req.DatasetCID, err)
		w.fail(req.JobID, "Failed to download dataset from storage.")
		return
	}
	datasetPath, err := w.staging.WriteFile(req.JobID, "dataset.csv", data)
	if err != nil {
		log.Printf("Job %s: failed to stage dataset: %v", req.JobID, err)
		w.fail(req.JobID, "Failed to write dataset to local storage.")
		return
	}
	defer w.staging.Remove(datasetPath)

	// Stage 3: training.
	w.store.Update(req.JobID, models.StatusUpdate(models.StatusTraining, "Training model."))
	result, err := w.trainer.Fit(ctx, data, req.ModelType, req.TargetColumn, req.Hyperparameters)
	if err != nil {
		log.Printf("Job %s: training failed: %v", req.JobID, err)
		w.fail(req.JobID, "Model training failed: "+err.Error())
		return
	}

	// Augment metadata before staging so the published metadata file is
	// self-describing, independent of the ledger record.
	result.Metadata["source_dataset_cid"] = req.DatasetCID
	result.Metadata["owner_address"] = req.Owner
	result.Metadata["model_type"] = req.ModelType
	result.Metadata["target_column"] = req.TargetColumn
	result.Metadata["hyperparameters_used"] = req.Hyperparameters

	metadataJSON, err := json.MarshalIndent(result.Metadata, "", "  ")
	if err != nil {
		log.Printf("Job %s: failed to encode model metadata: %v", req.JobID, err)
		w.fail(req.JobID, "Failed to encode model metadata.")
		return
	}

	// Stage 4: persist staged artifacts and hand off to publish.
	artifactPath, err := w.staging.WriteFile(req.JobID, "model.gob", result.Artifact)
	if err != nil {
		log.Printf("Job %s: failed to stage model artifact: %v", req.JobID, err)
		w.fail(req.JobID, "Failed to write trained model to local storage.")
		return
	}
	metadataPath, err := w.staging.WriteFile(req.JobID, "model_info.json", metadataJSON)
	if err != nil {
		log.Printf("Job %s: failed to stage model metadata: %v", req.JobID, err)
		w.staging.Remove(artifactPath)
		w.fail(req.JobID, "Failed to write model metadata to local storage.")
		return
	}

	status := models.StatusTrainingComplete
	message := "Training complete. Model is staged and ready to publish."
	w.store.Update(req.JobID, models.JobUpdate{
		Status:             &status,
		Message:            &message,
		StagedArtifactPath: &artifactPath,
		StagedMetadataPath: &metadataPath,
		Accuracy:           &result.Accuracy,
	})
	log.Printf("Job %s: training complete (accuracy %.4f)", req.JobID, result.Accuracy)
}

func (w *Worker) fail(jobID, message string) {
	w.store.Update(jobID, models.StatusUpdate(models.StatusFailed, message))
}
