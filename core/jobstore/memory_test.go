package jobstore

import (
	"errors"
	"testing"
	"time"

	"decen-ai-backend/core/models"
)

func newRecord(jobID string) *models.JobRecord {
	return &models.JobRecord{
		JobID:      jobID,
		Owner:      "0xAbC0000000000000000000000000000000000001",
		DatasetCID: "bafy-dataset",
		Status:     models.StatusPending,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Create(newRecord("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("status = %s, want PENDING", got.Status)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be stamped on create")
	}

	t.Run("duplicate job id", func(t *testing.T) {
		if err := s.Create(newRecord("job-1")); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("Create duplicate = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		if err := s.Create(&models.JobRecord{JobID: "job-2"}); err == nil {
			t.Error("expected error for record without owner")
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get unknown = %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Create(newRecord("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, _ := s.Get("job-1")

	acc := 0.91
	path := "/tmp/model.gob"
	s.Update("job-1", models.JobUpdate{
		Status:             statusPtr(models.StatusTrainingComplete),
		Accuracy:           &acc,
		StagedArtifactPath: &path,
	})

	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusTrainingComplete {
		t.Errorf("status = %s, want TRAINING_COMPLETE", got.Status)
	}
	if got.Accuracy == nil || *got.Accuracy != acc {
		t.Errorf("accuracy = %v, want %v", got.Accuracy, acc)
	}
	if got.StagedArtifactPath != path {
		t.Errorf("staged artifact path = %q, want %q", got.StagedArtifactPath, path)
	}
	// Untouched fields survive a partial update.
	if got.DatasetCID != before.DatasetCID || got.Owner != before.Owner {
		t.Error("partial update overwrote fields it did not carry")
	}
	if !got.UpdatedAt.After(before.UpdatedAt) && !got.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}

	t.Run("clear staged paths", func(t *testing.T) {
		s.Update("job-1", models.JobUpdate{ClearStagedPaths: true})
		got, _ := s.Get("job-1")
		if got.StagedArtifactPath != "" || got.StagedMetadataPath != "" {
			t.Error("expected staged paths to be cleared")
		}
	})

	t.Run("unknown job is dropped, not fatal", func(t *testing.T) {
		s.Update("nope", models.StatusUpdate(models.StatusFailed, "x"))
	})
}

func TestMemoryStoreGetReturnsSnapshot(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Create(newRecord("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := s.Get("job-1")
	got.Status = models.StatusFailed
	got.Owner = "0xmallory"

	again, _ := s.Get("job-1")
	if again.Status != models.StatusPending || again.Owner == "0xmallory" {
		t.Error("mutating a Get result leaked into the store")
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		rec := newRecord(id)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.Create(rec); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	jobs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(jobs))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if jobs[i].JobID != want {
			t.Errorf("jobs[%d] = %s, want %s", i, jobs[i].JobID, want)
		}
	}
}

func statusPtr(s models.JobStatus) *models.JobStatus { return &s }
