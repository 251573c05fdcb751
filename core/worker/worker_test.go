package worker

import (
	"context"
	"errors"
	"os"
	"testing"

	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/ml"
	"decen-ai-backend/core/models"
	"decen-ai-backend/storage"
)

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, _, _, _, _ string) error {
	f.calls++
	return f.err
}

type fakeBlobStore struct {
	data  map[string][]byte
	calls int
}

func (f *fakeBlobStore) Put(_ context.Context, _ string, _ []byte) (string, error) {
	return "", errors.New("not used by the worker")
}

func (f *fakeBlobStore) Get(_ context.Context, cid string) ([]byte, error) {
	f.calls++
	data, ok := f.data[cid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

type fakeTrainer struct {
	result *ml.FitResult
	err    error
	panics bool
}

func (f *fakeTrainer) Fit(_ context.Context, _ []byte, _, _ string, _ map[string]interface{}) (*ml.FitResult, error) {
	if f.panics {
		panic("trainer exploded")
	}
	return f.result, f.err
}

type fixture struct {
	store    *jobstore.MemoryStore
	verifier *fakeVerifier
	blobs    *fakeBlobStore
	staging  *storage.StagingArea
	worker   *Worker
}

func newFixture(t *testing.T, verifier *fakeVerifier, blobs *fakeBlobStore, trainer ml.Trainer) *fixture {
	t.Helper()
	staging, err := storage.NewStagingArea(t.TempDir())
	if err != nil {
		t.Fatalf("NewStagingArea: %v", err)
	}
	store := jobstore.NewMemoryStore()
	return &fixture{
		store:    store,
		verifier: verifier,
		blobs:    blobs,
		staging:  staging,
		worker:   New(store, verifier, blobs, staging, trainer),
	}
}

func (fx *fixture) createJob(t *testing.T) JobRequest {
	t.Helper()
	req := JobRequest{
		JobID:        "job-1",
		Owner:        "0xAbC0000000000000000000000000000000000001",
		DatasetCID:   "bafy-dataset",
		ModelType:    ml.ModelRandomForest,
		TargetColumn: "Churn",
		PaymentTx:    "0xtx",
		PaymentNonce: "nonce-1",
	}
	err := fx.store.Create(&models.JobRecord{
		JobID:      req.JobID,
		Owner:      req.Owner,
		DatasetCID: req.DatasetCID,
		Status:     models.StatusPending,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return req
}

func goodTrainer() *fakeTrainer {
	return &fakeTrainer{result: &ml.FitResult{
		Artifact: []byte("gob bytes"),
		Metadata: map[string]interface{}{"accuracy": 0.9},
		Accuracy: 0.9,
	}}
}

func TestWorkerRunSuccess(t *testing.T) {
	fx := newFixture(t,
		&fakeVerifier{},
		&fakeBlobStore{data: map[string][]byte{"bafy-dataset": []byte("a,b\n1,2\n")}},
		goodTrainer(),
	)
	req := fx.createJob(t)

	fx.worker.Run(context.Background(), req)

	job, err := fx.store.Get(req.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != models.StatusTrainingComplete {
		t.Fatalf("status = %s (%s), want TRAINING_COMPLETE", job.Status, job.Message)
	}
	if job.Accuracy == nil || *job.Accuracy != 0.9 {
		t.Errorf("accuracy = %v, want 0.9", job.Accuracy)
	}
	if job.StagedArtifactPath == "" || job.StagedMetadataPath == "" {
		t.Fatal("staged paths not recorded")
	}
	for _, path := range []string{job.StagedArtifactPath, job.StagedMetadataPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("staged file %s missing: %v", path, err)
		}
	}

	// The downloaded dataset copy is removed; only staged artifacts stay.
	dir, _ := fx.staging.JobDir(req.JobID)
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() == "dataset.csv" {
			t.Error("dataset copy not cleaned up")
		}
	}
}

func TestWorkerRunPaymentRejected(t *testing.T) {
	blobs := &fakeBlobStore{data: map[string][]byte{"bafy-dataset": []byte("a,b\n1,2\n")}}
	fx := newFixture(t, &fakeVerifier{err: errors.New("nonce already used")}, blobs, goodTrainer())
	req := fx.createJob(t)

	fx.worker.Run(context.Background(), req)

	job, _ := fx.store.Get(req.JobID)
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if job.Message == "" {
		t.Error("expected a payment-related failure message")
	}
	// The pipeline stops at payment; the dataset must never be fetched.
	if blobs.calls != 0 {
		t.Errorf("blob store called %d times after payment rejection", blobs.calls)
	}
}

func TestWorkerRunDownloadFails(t *testing.T) {
	fx := newFixture(t, &fakeVerifier{}, &fakeBlobStore{data: map[string][]byte{}}, goodTrainer())
	req := fx.createJob(t)

	fx.worker.Run(context.Background(), req)

	job, _ := fx.store.Get(req.JobID)
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
}

func TestWorkerRunTrainingFails(t *testing.T) {
	fx := newFixture(t,
		&fakeVerifier{},
		&fakeBlobStore{data: map[string][]byte{"bafy-dataset": []byte("a,b\n1,2\n")}},
		&fakeTrainer{err: ml.ErrTargetMissing},
	)
	req := fx.createJob(t)

	fx.worker.Run(context.Background(), req)

	job, _ := fx.store.Get(req.JobID)
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if job.StagedArtifactPath != "" {
		t.Error("failed job must not carry staged paths")
	}
}

func TestWorkerRunRecoversFromPanic(t *testing.T) {
	fx := newFixture(t,
		&fakeVerifier{},
		&fakeBlobStore{data: map[string][]byte{"bafy-dataset": []byte("a,b\n1,2\n")}},
		&fakeTrainer{panics: true},
	)
	req := fx.createJob(t)

	fx.worker.Run(context.Background(), req)

	job, _ := fx.store.Get(req.JobID)
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED after panic", job.Status)
	}
}
