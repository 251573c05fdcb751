package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"decen-ai-backend/api/rest/middleware"
	"decen-ai-backend/core/inference"
	"decen-ai-backend/core/payment"
	"decen-ai-backend/storage"
)

// PaymentVerifier validates a claimed service-fee payment.
type PaymentVerifier interface {
	Verify(ctx context.Context, txHash, expectedPayer, service, claimedNonce string) error
}

// InferenceHandler serves payment-gated predictions.
type InferenceHandler struct {
	cache    *inference.Cache
	verifier PaymentVerifier
}

// NewInferenceHandler creates an inference handler.
func NewInferenceHandler(cache *inference.Cache, verifier PaymentVerifier) *InferenceHandler {
	return &InferenceHandler{cache: cache, verifier: verifier}
}

// InferenceRequest is the body of POST /v1/inference/predict.
type InferenceRequest struct {
	ModelCID      string                 `json:"model_cid"`
	ModelInfoCID  string                 `json:"model_info_cid"`
	InputData     map[string]interface{} `json:"input_data"`
	PaymentTxHash string                 `json:"payment_tx_hash"`
	PaymentNonce  string                 `json:"payment_nonce"`
}

// Predict handles POST /v1/inference/predict
func (h *InferenceHandler) Predict(w http.ResponseWriter, r *http.Request) {
	principal := middleware.Principal(r.Context())

	var req InferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ModelCID == "" {
		writeError(w, http.StatusBadRequest, "model_cid is required")
		return
	}
	if len(req.InputData) == 0 {
		writeError(w, http.StatusBadRequest, "input_data is required")
		return
	}

	err := h.verifier.Verify(r.Context(), req.PaymentTxHash, principal, payment.ServiceInference, req.PaymentNonce)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentInvalid) {
			writeError(w, http.StatusPaymentRequired, "Payment verification failed: "+err.Error())
			return
		}
		log.Printf("Payment verification error for %s: %v", principal, err)
		writeError(w, http.StatusInternalServerError, "Payment verification failed")
		return
	}

	model, err := h.cache.Load(r.Context(), req.ModelCID, req.ModelInfoCID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Model not found for CID: "+req.ModelCID)
			return
		}
		log.Printf("Failed to load model %s: %v", req.ModelCID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load model")
		return
	}

	prediction, err := model.Artifact.Predict(req.InputData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Prediction failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prediction":    prediction.Label,
		"probabilities": prediction.Probabilities,
		"model_cid":     req.ModelCID,
	})
}
