// Package lighthouse is a client for Lighthouse decentralized storage:
// uploads through the Lighthouse node API, downloads through the public
// IPFS gateway.
package lighthouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"decen-ai-backend/storage"
)

const (
	defaultUploadURL  = "https://node.lighthouse.storage/api/v0/add"
	defaultGatewayURL = "https://gateway.lighthouse.storage/ipfs"
)

// Client implements storage.BlobStore against Lighthouse.
type Client struct {
	apiKey     string
	uploadURL  string
	gatewayURL string
	http       *http.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithEndpoints overrides the upload and gateway URLs (tests, private
// gateways).
func WithEndpoints(uploadURL, gatewayURL string) Option {
	return func(c *Client) {
		c.uploadURL = uploadURL
		c.gatewayURL = gatewayURL
	}
}

// NewClient creates a Lighthouse client. Every request carries a bounded
// timeout; large dataset downloads get five minutes.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		uploadURL:  defaultUploadURL,
		gatewayURL: defaultGatewayURL,
		http:       &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type uploadResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Put uploads data and returns its CID.
func (c *Client) Put(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("lighthouse upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("lighthouse upload failed: status %d: %s", resp.StatusCode, msg)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("lighthouse upload returned unexpected response: %w", err)
	}
	if result.Hash == "" {
		return "", fmt.Errorf("lighthouse upload returned no CID")
	}
	return result.Hash, nil
}

// Get downloads the content for cid from the gateway.
func (c *Client) Get(ctx context.Context, cid string) ([]byte, error) {
	if cid == "" {
		return nil, fmt.Errorf("empty CID")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+"/"+cid, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway download of %s failed: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("cid %s: %w", cid, storage.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway download of %s failed: status %d", cid, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway download of %s failed: %w", cid, err)
	}
	return data, nil
}
