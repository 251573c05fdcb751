package monitoring

import (
	"fmt"
	"time"

	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/models"
)

// Stats summarizes the platform's training activity for the dashboard.
type Stats struct {
	TotalJobs      int            `json:"total_jobs"`
	ActiveJobs     int            `json:"active_jobs"`
	CompletedJobs  int            `json:"completed_jobs"`
	FailedJobs     int            `json:"failed_jobs"`
	JobsByStatus   map[string]int `json:"jobs_by_status"`
	RecentJobs     []JobSummary   `json:"recent_jobs"`
	PublishedCount int            `json:"published_models"`
}

// JobSummary is the dashboard view of a job. Owner addresses and file
// paths stay out of it.
type JobSummary struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Collector aggregates job statistics from the job store.
type Collector struct {
	store jobstore.Store
}

// NewCollector creates a stats collector over the given job store.
func NewCollector(store jobstore.Store) *Collector {
	return &Collector{store: store}
}

const recentJobLimit = 10

// Snapshot computes the current platform statistics.
func (c *Collector) Snapshot() (*Stats, error) {
	jobs, err := c.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	stats := &Stats{JobsByStatus: make(map[string]int)}
	for _, job := range jobs {
		stats.TotalJobs++
		stats.JobsByStatus[string(job.Status)]++
		switch {
		case job.Status == models.StatusCompleted:
			stats.CompletedJobs++
			if job.PublishedArtifactCID != "" {
				stats.PublishedCount++
			}
		case job.Status == models.StatusFailed || job.Status == models.StatusUploadFailed:
			stats.FailedJobs++
		default:
			stats.ActiveJobs++
		}
	}

	// List returns jobs newest first.
	if len(jobs) > recentJobLimit {
		jobs = jobs[:recentJobLimit]
	}
	stats.RecentJobs = make([]JobSummary, len(jobs))
	for i, job := range jobs {
		stats.RecentJobs[i] = JobSummary{
			JobID:     job.JobID,
			Status:    string(job.Status),
			CreatedAt: job.CreatedAt,
			UpdatedAt: job.UpdatedAt,
		}
	}

	return stats, nil
}
