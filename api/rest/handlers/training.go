package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"decen-ai-backend/api/rest/middleware"
	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/ml"
	"decen-ai-backend/core/models"
	"decen-ai-backend/core/worker"
)

// TrainingHandler starts training jobs and serves their status.
type TrainingHandler struct {
	store  jobstore.Store
	worker *worker.Worker
}

// NewTrainingHandler creates a training handler.
func NewTrainingHandler(store jobstore.Store, w *worker.Worker) *TrainingHandler {
	return &TrainingHandler{store: store, worker: w}
}

// TrainRequest is the body of POST /v1/training/start.
type TrainRequest struct {
	DatasetCID      string                 `json:"dataset_cid"`
	ModelType       string                 `json:"model_type"`
	TargetColumn    string                 `json:"target_column"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	PaymentTxHash   string                 `json:"payment_tx_hash"`
	PaymentNonce    string                 `json:"payment_nonce"`
}

func (r *TrainRequest) validate() string {
	switch {
	case r.DatasetCID == "":
		return "dataset_cid is required"
	case r.TargetColumn == "":
		return "target_column is required"
	case r.PaymentTxHash == "":
		return "payment_tx_hash is required"
	case r.PaymentNonce == "":
		return "payment_nonce is required"
	}
	switch r.ModelType {
	case ml.ModelRandomForest, ml.ModelDecisionTree, ml.ModelLogisticRegression:
		return ""
	default:
		return "unsupported model_type: " + r.ModelType
	}
}

// Start handles POST /v1/training/start. It records the job as PENDING,
// fires the training pipeline in the background, and returns 202 at
// once; clients follow progress through the status endpoint.
func (h *TrainingHandler) Start(w http.ResponseWriter, r *http.Request) {
	principal := middleware.Principal(r.Context())

	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	jobID := uuid.NewString()
	record := &models.JobRecord{
		JobID:      jobID,
		Owner:      principal,
		DatasetCID: req.DatasetCID,
		Status:     models.StatusPending,
	}
	if err := h.store.Create(record); err != nil {
		log.Printf("Failed to create training job: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create training job")
		return
	}

	// The pipeline outlives this request; it reports through the store.
	go h.worker.Run(context.Background(), worker.JobRequest{
		JobID:           jobID,
		Owner:           principal,
		DatasetCID:      req.DatasetCID,
		ModelType:       req.ModelType,
		TargetColumn:    req.TargetColumn,
		Hyperparameters: req.Hyperparameters,
		PaymentTx:       req.PaymentTxHash,
		PaymentNonce:    req.PaymentNonce,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      jobID,
		"status":      string(models.StatusPending),
		"dataset_cid": req.DatasetCID,
		"message":     "Training job initiated successfully",
	})
}

// JobStatusResponse is the externally visible view of a job record.
// Staged file paths stay internal.
type JobStatusResponse struct {
	JobID        string    `json:"job_id"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	DatasetCID   string    `json:"dataset_cid"`
	OwnerAddress string    `json:"owner_address"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	ModelCID     string    `json:"model_cid,omitempty"`
	ModelInfoCID string    `json:"model_info_cid,omitempty"`
	FvmTxHash    *string   `json:"fvm_tx_hash,omitempty"`
}

// Status handles GET /v1/training/status/{job_id}
func (h *TrainingHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal := middleware.Principal(r.Context())
	jobID := mux.Vars(r)["job_id"]

	job, err := h.store.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Training job "+jobID+" not found")
		return
	}
	if !strings.EqualFold(job.Owner, principal) {
		writeError(w, http.StatusForbidden, "Not authorized to view this training job")
		return
	}

	writeJSON(w, http.StatusOK, JobStatusResponse{
		JobID:        job.JobID,
		Status:       string(job.Status),
		Message:      job.Message,
		DatasetCID:   job.DatasetCID,
		OwnerAddress: job.Owner,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		Accuracy:     job.Accuracy,
		ModelCID:     job.PublishedArtifactCID,
		ModelInfoCID: job.PublishedMetadataCID,
		FvmTxHash:    job.LedgerTx,
	})
}
