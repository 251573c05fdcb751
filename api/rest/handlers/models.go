package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"decen-ai-backend/api/rest/middleware"
	"decen-ai-backend/core/publish"
)

// ModelHandler finalizes trained models: upload to the blob store plus
// provenance registration.
type ModelHandler struct {
	publisher *publish.Publisher
}

// NewModelHandler creates a model handler.
func NewModelHandler(p *publish.Publisher) *ModelHandler {
	return &ModelHandler{publisher: p}
}

// UploadModelRequest is the body of POST /v1/models/{job_id}/upload.
type UploadModelRequest struct {
	ModelName string `json:"model_name"`
}

// UploadModelResponse reports the published CIDs. FvmTxHash is empty
// when provenance registration failed after successful uploads.
type UploadModelResponse struct {
	JobID        string `json:"job_id"`
	ModelCID     string `json:"model_cid"`
	ModelInfoCID string `json:"model_info_cid"`
	FvmTxHash    string `json:"fvm_tx_hash,omitempty"`
	Message      string `json:"message"`
}

// Upload handles POST /v1/models/{job_id}/upload
func (h *ModelHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal := middleware.Principal(r.Context())
	jobID := mux.Vars(r)["job_id"]

	var req UploadModelRequest
	if r.Body != nil {
		// The body is optional; model_name defaults server-side.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.publisher.Publish(r.Context(), jobID, principal, req.ModelName)
	switch {
	case err == nil:
	case errors.Is(err, publish.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Training job "+jobID+" not found")
		return
	case errors.Is(err, publish.ErrNotOwner):
		writeError(w, http.StatusForbidden, "User is not authorized to perform this action on the specified job")
		return
	case errors.Is(err, publish.ErrNotReady):
		writeError(w, http.StatusConflict, "Job "+jobID+" is not ready for upload")
		return
	case errors.Is(err, publish.ErrStagedFilesMissing):
		writeError(w, http.StatusNotFound, "Required files for upload not found; the job may have expired")
		return
	case errors.Is(err, publish.ErrUploadFailed):
		writeError(w, http.StatusInternalServerError, "Failed to upload model artifacts")
		return
	default:
		log.Printf("Job %s: publish failed: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "Failed to publish model")
		return
	}

	writeJSON(w, http.StatusOK, UploadModelResponse{
		JobID:        jobID,
		ModelCID:     result.ArtifactCID,
		ModelInfoCID: result.MetadataCID,
		FvmTxHash:    result.LedgerTx,
		Message:      result.Message,
	})
}
