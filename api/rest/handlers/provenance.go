package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"decen-ai-backend/providers/fvm"
)

// Ledger reads provenance records from the registry contract.
type Ledger interface {
	AssetByCID(ctx context.Context, cid string) (*fvm.Asset, error)
	AssetsByOwner(ctx context.Context, owner string) ([]*fvm.Asset, error)
}

// ProvenanceHandler serves provenance queries against the ledger.
type ProvenanceHandler struct {
	ledger Ledger
}

// NewProvenanceHandler creates a provenance handler.
func NewProvenanceHandler(ledger Ledger) *ProvenanceHandler {
	return &ProvenanceHandler{ledger: ledger}
}

func assetJSON(a *fvm.Asset) map[string]interface{} {
	return map[string]interface{}{
		"owner":         a.Owner,
		"asset_type":    a.AssetType,
		"name":          a.Name,
		"primary_cid":   a.PrimaryCID,
		"metadata_cid":  a.MetadataCID,
		"source_cid":    a.SourceCID,
		"registered_at": a.RegisteredAt,
	}
}

// ByCID handles GET /v1/provenance/cid/{cid}
func (h *ProvenanceHandler) ByCID(w http.ResponseWriter, r *http.Request) {
	cid := mux.Vars(r)["cid"]

	asset, err := h.ledger.AssetByCID(r.Context(), cid)
	if err != nil {
		if errors.Is(err, fvm.ErrAssetNotFound) {
			writeError(w, http.StatusNotFound, "No asset registered for CID "+cid)
			return
		}
		log.Printf("Provenance lookup for CID %s failed: %v", cid, err)
		writeError(w, http.StatusInternalServerError, "Provenance lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, assetJSON(asset))
}

// ByOwner handles GET /v1/provenance/owner/{address}
func (h *ProvenanceHandler) ByOwner(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, address+" is not a wallet address")
		return
	}

	assets, err := h.ledger.AssetsByOwner(r.Context(), address)
	if err != nil {
		log.Printf("Provenance lookup for owner %s failed: %v", address, err)
		writeError(w, http.StatusInternalServerError, "Provenance lookup failed")
		return
	}

	items := make([]map[string]interface{}, len(assets))
	for i, asset := range assets {
		items[i] = assetJSON(asset)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner": address,
		"items": items,
	})
}
