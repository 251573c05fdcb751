package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"decen-ai-backend/core/auth"
)

// AuthHandler implements wallet sign-in: nonce issuance and signature
// verification returning an access token.
type AuthHandler struct {
	nonces auth.NonceStore
	tokens *auth.TokenIssuer
	domain string
}

// NewAuthHandler creates an auth handler. domain is the expected sign-in
// message domain.
func NewAuthHandler(nonces auth.NonceStore, tokens *auth.TokenIssuer, domain string) *AuthHandler {
	return &AuthHandler{nonces: nonces, tokens: tokens, domain: domain}
}

// GetNonce handles GET /v1/auth/nonce
func (h *AuthHandler) GetNonce(w http.ResponseWriter, r *http.Request) {
	nonce, err := h.nonces.Issue(r.Context())
	if err != nil {
		log.Printf("Failed to issue sign-in nonce: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue nonce")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

// VerifyRequest carries the signed sign-in message.
type VerifyRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// VerifyResponse is returned after successful sign-in.
type VerifyResponse struct {
	Status      string `json:"status"`
	Address     string `json:"address"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Verify handles POST /v1/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "message and signature are required")
		return
	}

	msg, err := auth.ParseSignInMessage(req.Message)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Could not parse sign-in message")
		return
	}
	if !strings.EqualFold(msg.Domain, h.domain) {
		writeError(w, http.StatusUnauthorized, "Sign-in message domain mismatch")
		return
	}

	live, err := h.nonces.Consume(r.Context(), msg.Nonce)
	if err != nil {
		log.Printf("Failed to check sign-in nonce: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify nonce")
		return
	}
	if !live {
		writeError(w, http.StatusUnauthorized, "Nonce is unknown, expired or already used")
		return
	}

	if err := auth.VerifySignature(msg, req.Signature); err != nil {
		log.Printf("Sign-in signature verification failed for %s: %v", msg.Address, err)
		writeError(w, http.StatusUnauthorized, "Signature verification failed")
		return
	}

	token, err := h.tokens.Issue(msg.Address)
	if err != nil {
		log.Printf("Failed to issue access token for %s: %v", msg.Address, err)
		writeError(w, http.StatusInternalServerError, "Failed to issue access token")
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Status:      "ok",
		Address:     msg.Address,
		AccessToken: token,
		TokenType:   "bearer",
	})
}
