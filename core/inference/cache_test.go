package inference

import (
	"context"
	"errors"
	"strings"
	"testing"

	"decen-ai-backend/core/ml"
	"decen-ai-backend/storage"
)

type fakeBlobStore struct {
	data map[string][]byte
	gets int
}

func (f *fakeBlobStore) Put(_ context.Context, _ string, _ []byte) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeBlobStore) Get(_ context.Context, cid string) ([]byte, error) {
	f.gets++
	data, ok := f.data[cid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func trainedArtifact(t *testing.T) []byte {
	t.Helper()
	csv := strings.Join([]string{
		"f,Label",
		"1,a", "2,a", "3,a", "4,a", "5,a",
		"6,b", "7,b", "8,b", "9,b", "10,b",
	}, "\n")
	result, err := ml.NewNativeTrainer().Fit(context.Background(), []byte(csv), ml.ModelDecisionTree, "Label", nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return result.Artifact
}

func TestCacheLoad(t *testing.T) {
	blobs := &fakeBlobStore{data: map[string][]byte{
		"cid-model": trainedArtifact(t),
		"cid-info":  []byte(`{"model_type":"DecisionTree"}`),
	}}
	cache := NewCache(blobs)
	ctx := context.Background()

	model, err := cache.Load(ctx, "cid-model", "cid-info")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if model.Artifact == nil {
		t.Fatal("nil artifact")
	}
	if model.Metadata["model_type"] != "DecisionTree" {
		t.Errorf("metadata = %v", model.Metadata)
	}
	getsAfterFirst := blobs.gets

	t.Run("second load is served from cache", func(t *testing.T) {
		again, err := cache.Load(ctx, "cid-model", "cid-info")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if again != model {
			t.Error("expected the cached entry")
		}
		if blobs.gets != getsAfterFirst {
			t.Errorf("blob store hit again: %d gets, want %d", blobs.gets, getsAfterFirst)
		}
	})

	t.Run("loaded model predicts", func(t *testing.T) {
		pred, err := model.Artifact.Predict(map[string]interface{}{"f": float64(9)})
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if pred.Label != "b" {
			t.Errorf("label = %q, want b", pred.Label)
		}
	})
}

func TestCacheLoadWithoutMetadata(t *testing.T) {
	blobs := &fakeBlobStore{data: map[string][]byte{"cid-model": trainedArtifact(t)}}
	cache := NewCache(blobs)

	model, err := cache.Load(context.Background(), "cid-model", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(model.Metadata) != 0 {
		t.Errorf("metadata = %v, want empty", model.Metadata)
	}
}

func TestCacheLoadFailures(t *testing.T) {
	t.Run("unknown model CID", func(t *testing.T) {
		cache := NewCache(&fakeBlobStore{data: map[string][]byte{}})
		if _, err := cache.Load(context.Background(), "cid-missing", ""); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Load = %v, want wrapped ErrNotFound", err)
		}
	})

	t.Run("corrupt artifact", func(t *testing.T) {
		cache := NewCache(&fakeBlobStore{data: map[string][]byte{"cid-bad": []byte("junk")}})
		if _, err := cache.Load(context.Background(), "cid-bad", ""); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("failed loads are retried", func(t *testing.T) {
		blobs := &fakeBlobStore{data: map[string][]byte{}}
		cache := NewCache(blobs)
		ctx := context.Background()

		cache.Load(ctx, "cid-model", "")
		blobs.data["cid-model"] = trainedArtifact(t)
		if _, err := cache.Load(ctx, "cid-model", ""); err != nil {
			t.Errorf("Load after store recovered: %v", err)
		}
	})
}
