package publish

import (
	"context"
	"errors"
	"os"
	"testing"

	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/models"
	"decen-ai-backend/storage"
)

const owner = "0xAbC0000000000000000000000000000000000001"

type fakeBlobStore struct {
	puts      int
	failAfter int // fail the Nth put (1-based); 0 never fails
}

func (f *fakeBlobStore) Put(_ context.Context, name string, _ []byte) (string, error) {
	f.puts++
	if f.failAfter != 0 && f.puts >= f.failAfter {
		return "", errors.New("storage gateway unavailable")
	}
	return "cid-" + name, nil
}

func (f *fakeBlobStore) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, storage.ErrNotFound
}

type fakeRegistrar struct {
	calls int
	tx    string
	err   error

	lastName string
}

func (f *fakeRegistrar) RegisterAsset(_ context.Context, _, _, name, _, _, _ string) (string, error) {
	f.calls++
	f.lastName = name
	return f.tx, f.err
}

type fixture struct {
	store     *jobstore.MemoryStore
	blobs     *fakeBlobStore
	staging   *storage.StagingArea
	registrar *fakeRegistrar
	publisher *Publisher
}

func newFixture(t *testing.T, blobs *fakeBlobStore, registrar *fakeRegistrar) *fixture {
	t.Helper()
	staging, err := storage.NewStagingArea(t.TempDir())
	if err != nil {
		t.Fatalf("NewStagingArea: %v", err)
	}
	store := jobstore.NewMemoryStore()
	return &fixture{
		store:     store,
		blobs:     blobs,
		staging:   staging,
		registrar: registrar,
		publisher: New(store, blobs, staging, registrar),
	}
}

// stageJob creates a TRAINING_COMPLETE job with staged files on disk.
func (fx *fixture) stageJob(t *testing.T, jobID string) *models.JobRecord {
	t.Helper()
	artifactPath, err := fx.staging.WriteFile(jobID, "model.gob", []byte("model bytes"))
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	metadataPath, err := fx.staging.WriteFile(jobID, "model_info.json", []byte(`{"accuracy":0.9}`))
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rec := &models.JobRecord{
		JobID:              jobID,
		Owner:              owner,
		DatasetCID:         "bafy-dataset",
		Status:             models.StatusTrainingComplete,
		StagedArtifactPath: artifactPath,
		StagedMetadataPath: metadataPath,
	}
	if err := fx.store.Create(rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestPublishSuccess(t *testing.T) {
	fx := newFixture(t, &fakeBlobStore{}, &fakeRegistrar{tx: "0xledger"})
	rec := fx.stageJob(t, "job-1")

	result, err := fx.publisher.Publish(context.Background(), "job-1", owner, "Churn Model")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.ArtifactCID == "" || result.MetadataCID == "" {
		t.Error("missing published CIDs")
	}
	if result.LedgerTx != "0xledger" {
		t.Errorf("ledger tx = %q, want 0xledger", result.LedgerTx)
	}
	if fx.registrar.lastName != "Churn Model" {
		t.Errorf("registered name = %q, want caller-supplied name", fx.registrar.lastName)
	}

	job, _ := fx.store.Get("job-1")
	if job.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", job.Status)
	}
	if job.LedgerTx == nil || *job.LedgerTx != "0xledger" {
		t.Errorf("record ledger tx = %v", job.LedgerTx)
	}
	if job.StagedArtifactPath != "" || job.StagedMetadataPath != "" {
		t.Error("staged paths not cleared")
	}
	if _, err := os.Stat(rec.StagedArtifactPath); !os.IsNotExist(err) {
		t.Error("staged artifact file not deleted")
	}
	if _, err := os.Stat(rec.StagedMetadataPath); !os.IsNotExist(err) {
		t.Error("staged metadata file not deleted")
	}
}

func TestPublishDefaultModelName(t *testing.T) {
	fx := newFixture(t, &fakeBlobStore{}, &fakeRegistrar{tx: "0xledger"})
	fx.stageJob(t, "job-123456789")

	if _, err := fx.publisher.Publish(context.Background(), "job-123456789", owner, ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fx.registrar.lastName == "" {
		t.Error("expected a derived default model name")
	}
}

func TestPublishSecondCallConflicts(t *testing.T) {
	fx := newFixture(t, &fakeBlobStore{}, &fakeRegistrar{tx: "0xledger"})
	fx.stageJob(t, "job-1")

	ctx := context.Background()
	if _, err := fx.publisher.Publish(ctx, "job-1", owner, ""); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	putsAfterFirst := fx.blobs.puts
	registrationsAfterFirst := fx.registrar.calls

	_, err := fx.publisher.Publish(ctx, "job-1", owner, "")
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("second Publish = %v, want ErrNotReady", err)
	}
	if fx.blobs.puts != putsAfterFirst || fx.registrar.calls != registrationsAfterFirst {
		t.Error("second publish re-ran uploads or registration")
	}
}

func TestPublishAuthorization(t *testing.T) {
	fx := newFixture(t, &fakeBlobStore{}, &fakeRegistrar{tx: "0xledger"})
	fx.stageJob(t, "job-1")
	ctx := context.Background()

	t.Run("unknown job", func(t *testing.T) {
		if _, err := fx.publisher.Publish(ctx, "nope", owner, ""); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("Publish = %v, want ErrJobNotFound", err)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		_, err := fx.publisher.Publish(ctx, "job-1", "0xDef0000000000000000000000000000000000002", "")
		if !errors.Is(err, ErrNotOwner) {
			t.Fatalf("Publish = %v, want ErrNotOwner", err)
		}
		// A rejected caller changes nothing.
		job, _ := fx.store.Get("job-1")
		if job.Status != models.StatusTrainingComplete {
			t.Errorf("status = %s, want TRAINING_COMPLETE untouched", job.Status)
		}
		if fx.blobs.puts != 0 {
			t.Error("rejected publish uploaded artifacts")
		}
	})

	t.Run("owner case-insensitive", func(t *testing.T) {
		lower := "0xabc0000000000000000000000000000000000001"
		if _, err := fx.publisher.Publish(ctx, "job-1", lower, ""); err != nil {
			t.Errorf("Publish with lowercased owner: %v", err)
		}
	})
}

func TestPublishStagedFilesMissing(t *testing.T) {
	fx := newFixture(t, &fakeBlobStore{}, &fakeRegistrar{tx: "0xledger"})
	rec := fx.stageJob(t, "job-1")
	os.Remove(rec.StagedArtifactPath)

	_, err := fx.publisher.Publish(context.Background(), "job-1", owner, "")
	if !errors.Is(err, ErrStagedFilesMissing) {
		t.Fatalf("Publish = %v, want ErrStagedFilesMissing", err)
	}

	// The job can never be published; it must not stay frozen in
	// TRAINING_COMPLETE.
	job, _ := fx.store.Get("job-1")
	if job.Status != models.StatusFailed {
		t.Errorf("status = %s, want FAILED", job.Status)
	}
	if job.StagedArtifactPath != "" || job.StagedMetadataPath != "" {
		t.Error("stale staged paths not cleared")
	}
}

func TestPublishArtifactUploadFails(t *testing.T) {
	fx := newFixture(t, &fakeBlobStore{failAfter: 1}, &fakeRegistrar{tx: "0xledger"})
	rec := fx.stageJob(t, "job-1")

	_, err := fx.publisher.Publish(context.Background(), "job-1", owner, "")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("Publish = %v, want ErrUploadFailed", err)
	}

	job, _ := fx.store.Get("job-1")
	if job.Status != models.StatusUploadFailed {
		t.Errorf("status = %s, want UPLOAD_FAILED", job.Status)
	}
	if fx.registrar.calls != 0 {
		t.Error("registration attempted after failed upload")
	}
	if _, err := os.Stat(rec.StagedArtifactPath); !os.IsNotExist(err) {
		t.Error("staged files must be deleted even on failure")
	}
}

func TestPublishMetadataUploadFails(t *testing.T) {
	fx := newFixture(t, &fakeBlobStore{failAfter: 2}, &fakeRegistrar{tx: "0xledger"})
	fx.stageJob(t, "job-1")

	_, err := fx.publisher.Publish(context.Background(), "job-1", owner, "")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("Publish = %v, want ErrUploadFailed", err)
	}

	job, _ := fx.store.Get("job-1")
	if job.Status != models.StatusUploadFailed {
		t.Errorf("status = %s, want UPLOAD_FAILED", job.Status)
	}
	// The artifact made it up before the metadata failed; the partial
	// result is kept on the record.
	if job.PublishedArtifactCID == "" {
		t.Error("partial artifact CID dropped")
	}
	if job.PublishedMetadataCID != "" {
		t.Error("metadata CID recorded despite failed upload")
	}
}

func TestPublishLedgerFailureIsNotFatal(t *testing.T) {
	cases := map[string]*fakeRegistrar{
		"registrar error": {err: errors.New("chain unreachable")},
		"empty tx hash":   {tx: ""},
	}
	for name, registrar := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t, &fakeBlobStore{}, registrar)
			fx.stageJob(t, "job-1")

			result, err := fx.publisher.Publish(context.Background(), "job-1", owner, "")
			if err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if result.LedgerTx != "" {
				t.Errorf("ledger tx = %q, want empty", result.LedgerTx)
			}
			if result.ArtifactCID == "" || result.MetadataCID == "" {
				t.Error("published CIDs missing")
			}

			job, _ := fx.store.Get("job-1")
			if job.Status != models.StatusCompleted {
				t.Errorf("status = %s, want COMPLETED despite ledger failure", job.Status)
			}
			if job.LedgerTx != nil {
				t.Errorf("record ledger tx = %v, want nil", *job.LedgerTx)
			}
		})
	}
}
