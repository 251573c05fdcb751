package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"decen-ai-backend/core/ml"
	"decen-ai-backend/storage"
)

// Model is a cached, ready-to-serve inference model.
type Model struct {
	Artifact *ml.Artifact
	Metadata map[string]interface{}
}

// Cache fetches model artifacts from the blob store and keeps the
// decoded models in memory keyed by artifact CID. Content-addressed
// storage makes entries immutable, so they never need invalidation.
type Cache struct {
	blobs storage.BlobStore

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ready chan struct{}
	model *Model
	err   error
}

// NewCache creates an empty model cache over the given blob store.
func NewCache(blobs storage.BlobStore) *Cache {
	return &Cache{
		blobs:   blobs,
		entries: make(map[string]*entry),
	}
}

// Load returns the model for the given artifact and metadata CIDs,
// fetching and decoding it on first use. Concurrent loads of the same
// CID share a single fetch; failed loads are not cached.
func (c *Cache) Load(ctx context.Context, artifactCID, metadataCID string) (*Model, error) {
	c.mu.Lock()
	if e, ok := c.entries[artifactCID]; ok {
		c.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}
		return e.model, nil
	}
	e := &entry{ready: make(chan struct{})}
	c.entries[artifactCID] = e
	c.mu.Unlock()

	e.model, e.err = c.fetch(ctx, artifactCID, metadataCID)
	if e.err != nil {
		c.mu.Lock()
		delete(c.entries, artifactCID)
		c.mu.Unlock()
	}
	close(e.ready)
	return e.model, e.err
}

func (c *Cache) fetch(ctx context.Context, artifactCID, metadataCID string) (*Model, error) {
	raw, err := c.blobs.Get(ctx, artifactCID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model %s: %w", artifactCID, err)
	}
	artifact, err := ml.DecodeArtifact(raw)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", artifactCID, err)
	}

	metadata := map[string]interface{}{}
	if metadataCID != "" {
		rawMeta, err := c.blobs.Get(ctx, metadataCID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch model metadata %s: %w", metadataCID, err)
		}
		if err := json.Unmarshal(rawMeta, &metadata); err != nil {
			return nil, fmt.Errorf("metadata %s is not valid JSON: %w", metadataCID, err)
		}
	}

	return &Model{Artifact: artifact, Metadata: metadata}, nil
}
