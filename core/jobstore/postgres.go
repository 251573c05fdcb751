package jobstore

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"decen-ai-backend/core/models"

	_ "github.com/lib/pq"
)

// PostgresStore is the durable Store backend. It preserves the same
// contract as MemoryStore; each Update runs as a single statement, so
// readers never observe a half-applied record.
type PostgresStore struct {
	db *sql.DB
}

const jobsSchema = `
CREATE TABLE IF NOT EXISTS training_jobs (
	job_id                 TEXT PRIMARY KEY,
	owner_address          TEXT NOT NULL,
	dataset_cid            TEXT NOT NULL,
	status                 TEXT NOT NULL,
	message                TEXT NOT NULL DEFAULT '',
	staged_artifact_path   TEXT NOT NULL DEFAULT '',
	staged_metadata_path   TEXT NOT NULL DEFAULT '',
	accuracy               DOUBLE PRECISION,
	published_artifact_cid TEXT NOT NULL DEFAULT '',
	published_metadata_cid TEXT NOT NULL DEFAULT '',
	ledger_tx              TEXT,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
)`

// NewPostgresStore connects to Postgres and ensures the jobs table
// exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(jobsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure jobs table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Create inserts a new record.
func (s *PostgresStore) Create(record *models.JobRecord) error {
	if record == nil || record.JobID == "" || record.Owner == "" {
		return fmt.Errorf("invalid job record: job ID and owner are required")
	}
	stampNew(record)

	query := `
		INSERT INTO training_jobs (
			job_id, owner_address, dataset_cid, status, message,
			staged_artifact_path, staged_metadata_path, accuracy,
			published_artifact_cid, published_metadata_cid, ledger_tx,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (job_id) DO NOTHING
	`

	res, err := s.db.Exec(query,
		record.JobID,
		record.Owner,
		record.DatasetCID,
		record.Status,
		record.Message,
		record.StagedArtifactPath,
		record.StagedMetadataPath,
		record.Accuracy,
		record.PublishedArtifactCID,
		record.PublishedMetadataCID,
		record.LedgerTx,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", record.JobID, ErrAlreadyExists)
	}
	return nil
}

// Get retrieves a record by job ID.
func (s *PostgresStore) Get(jobID string) (*models.JobRecord, error) {
	query := `
		SELECT job_id, owner_address, dataset_cid, status, message,
			staged_artifact_path, staged_metadata_path, accuracy,
			published_artifact_cid, published_metadata_cid, ledger_tx,
			created_at, updated_at
		FROM training_jobs
		WHERE job_id = $1
	`

	var rec models.JobRecord
	var accuracy sql.NullFloat64
	var ledgerTx sql.NullString

	err := s.db.QueryRow(query, jobID).Scan(
		&rec.JobID,
		&rec.Owner,
		&rec.DatasetCID,
		&rec.Status,
		&rec.Message,
		&rec.StagedArtifactPath,
		&rec.StagedMetadataPath,
		&accuracy,
		&rec.PublishedArtifactCID,
		&rec.PublishedMetadataCID,
		&ledgerTx,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if accuracy.Valid {
		rec.Accuracy = &accuracy.Float64
	}
	if ledgerTx.Valid {
		rec.LedgerTx = &ledgerTx.String
	}
	return &rec, nil
}

// Update applies a partial update in one UPDATE statement.
func (s *PostgresStore) Update(jobID string, update models.JobUpdate) {
	sets := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Status != nil {
		sets = append(sets, "status = "+arg(*update.Status))
	}
	if update.Message != nil {
		sets = append(sets, "message = "+arg(*update.Message))
	}
	if update.StagedArtifactPath != nil {
		sets = append(sets, "staged_artifact_path = "+arg(*update.StagedArtifactPath))
	}
	if update.StagedMetadataPath != nil {
		sets = append(sets, "staged_metadata_path = "+arg(*update.StagedMetadataPath))
	}
	if update.ClearStagedPaths {
		sets = append(sets, "staged_artifact_path = ''", "staged_metadata_path = ''")
	}
	if update.Accuracy != nil {
		sets = append(sets, "accuracy = "+arg(*update.Accuracy))
	}
	if update.PublishedArtifactCID != nil {
		sets = append(sets, "published_artifact_cid = "+arg(*update.PublishedArtifactCID))
	}
	if update.PublishedMetadataCID != nil {
		sets = append(sets, "published_metadata_cid = "+arg(*update.PublishedMetadataCID))
	}
	if update.LedgerTx != nil {
		sets = append(sets, "ledger_tx = "+arg(*update.LedgerTx))
	}
	sets = append(sets, "updated_at = "+arg(time.Now().UTC()))

	query := "UPDATE training_jobs SET " + strings.Join(sets, ", ") +
		" WHERE job_id = " + arg(jobID)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		log.Printf("jobstore: failed to update job %s: %v", jobID, err)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Printf("jobstore: update for unknown job %s dropped", jobID)
		return
	}
	if update.Status != nil {
		log.Printf("Job %s: status -> %s", jobID, *update.Status)
	}
}

// List returns every record, newest first.
func (s *PostgresStore) List() ([]*models.JobRecord, error) {
	query := `
		SELECT job_id, owner_address, dataset_cid, status, message,
			staged_artifact_path, staged_metadata_path, accuracy,
			published_artifact_cid, published_metadata_cid, ledger_tx,
			created_at, updated_at
		FROM training_jobs
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.JobRecord
	for rows.Next() {
		var rec models.JobRecord
		var accuracy sql.NullFloat64
		var ledgerTx sql.NullString
		if err := rows.Scan(
			&rec.JobID,
			&rec.Owner,
			&rec.DatasetCID,
			&rec.Status,
			&rec.Message,
			&rec.StagedArtifactPath,
			&rec.StagedMetadataPath,
			&accuracy,
			&rec.PublishedArtifactCID,
			&rec.PublishedMetadataCID,
			&ledgerTx,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if accuracy.Valid {
			rec.Accuracy = &accuracy.Float64
		}
		if ledgerTx.Valid {
			rec.LedgerTx = &ledgerTx.String
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
