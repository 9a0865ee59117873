package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
)

// RunRepository persists job runs and their event log. It implements
// jobs.Recorder; the registry treats every call as best effort.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// JobCreated inserts the initial row for a job run.
func (r *RunRepository) JobCreated(ctx context.Context, snap jobs.Snapshot) error {
	query := `
		INSERT INTO job_runs (id, kind, status, total, done, ok, err, note, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		snap.ID,
		snap.Kind,
		string(snap.Status),
		snap.Total,
		snap.Done,
		snap.OK,
		snap.Err,
		snap.Note,
		snap.Meta,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job run: %w", err)
	}

	return nil
}

// JobUpdated overwrites the run row with the latest snapshot.
func (r *RunRepository) JobUpdated(ctx context.Context, snap jobs.Snapshot) error {
	query := `
		UPDATE job_runs
		SET status = $1, total = $2, done = $3, ok = $4, err = $5, note = $6,
		    meta = $7, updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		string(snap.Status),
		snap.Total,
		snap.Done,
		snap.OK,
		snap.Err,
		snap.Note,
		snap.Meta,
		snap.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check job run update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job run not found: %s", snap.ID)
	}

	return nil
}

// JobEvent appends one entry to the run's event log.
func (r *RunRepository) JobEvent(ctx context.Context, jobID, level, message string, plus int, meta jobs.Meta) error {
	query := `
		INSERT INTO job_events (job_id, level, message, plus, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	_, err := r.db.ExecContext(ctx, query, jobID, level, message, plus, meta)
	if err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}

	return nil
}
