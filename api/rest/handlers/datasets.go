package handlers

import (
	"io"
	"log"
	"net/http"

	"decen-ai-backend/storage"
)

// maxUploadBytes caps dataset uploads at 64 MiB.
const maxUploadBytes = 64 << 20

// DatasetHandler handles dataset uploads to the blob store.
type DatasetHandler struct {
	blobs storage.BlobStore
}

// NewDatasetHandler creates a dataset handler.
func NewDatasetHandler(blobs storage.BlobStore) *DatasetHandler {
	return &DatasetHandler{blobs: blobs}
}

// Upload handles POST /v1/datasets/upload
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Expected a multipart upload with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	cid, err := h.blobs.Put(r.Context(), header.Filename, data)
	if err != nil {
		log.Printf("Dataset upload to blob store failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to store dataset")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"filename":     header.Filename,
		"content_type": header.Header.Get("Content-Type"),
		"cid":          cid,
		"message":      "File uploaded successfully",
	})
}
