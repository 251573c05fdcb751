package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the store holds no content for
// the CID.
var ErrNotFound = errors.New("content not found")

// BlobStore is content-addressed storage for datasets, model artifacts
// and metadata. Implementations are network-bound and must honor the
// context deadline.
type BlobStore interface {
	// Put stores data and returns its content identifier. name is a
	// display hint only; it does not affect the CID.
	Put(ctx context.Context, name string, data []byte) (string, error)

	// Get retrieves the content for cid.
	Get(ctx context.Context, cid string) ([]byte, error)
}
