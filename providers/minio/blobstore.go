// Package minio backs the blob store with a MinIO (or any S3) bucket
// for self-hosted deployments. Content is addressed by its SHA-256, so
// the CID contract of the blob store holds.
package minio

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"decen-ai-backend/storage"
)

// BlobStore implements storage.BlobStore over a MinIO bucket.
type BlobStore struct {
	client *minio.Client
	bucket string
}

// NewBlobStore connects to MinIO and ensures the bucket exists.
func NewBlobStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, secure bool) (*BlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return &BlobStore{client: client, bucket: bucket}, nil
}

// Put stores data under its SHA-256 and returns that digest as the CID.
func (s *BlobStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	cid := hex.EncodeToString(sum[:])

	_, err := s.client.PutObject(ctx, s.bucket, cid, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: map[string]string{"x-original-name": name},
		})
	if err != nil {
		return "", fmt.Errorf("failed to store object %s: %w", cid, err)
	}
	return cid, nil
}

// Get retrieves the content for cid.
func (s *BlobStore) Get(ctx context.Context, cid string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, cid, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object %s: %w", cid, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("cid %s: %w", cid, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", cid, err)
	}
	return data, nil
}
