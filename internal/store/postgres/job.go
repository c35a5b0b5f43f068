package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"researchplane/internal/store"
)

// CreateJob inserts a new job row.
// Options are serialized to a JSON object for storage.
func (s *Store) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	query := `
		INSERT INTO jobs (id, type, status, query, options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	optsJson, err := json.Marshal(job.Options)
	if err != nil {
		return err
	}

	_, err = s.getExecutor(tx).ExecContext(ctx, query,
		job.ID,
		job.Type,
		job.Status,
		job.Query,
		optsJson,
		job.CreatedAt,
	)
	return err
}

const jobColumns = `id, type, status, query, options, result, error, created_at, started_at, completed_at`

// GetJobByID returns a job by its ID.
func (s *Store) GetJobByID(ctx context.Context, id string) (*store.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", jobColumns)
	return s.scanJob(s.db.QueryRowContext(ctx, query, id))
}

// ListJobs returns jobs ordered newest-first.
// An empty status returns jobs in any status.
func (s *Store) ListJobs(ctx context.Context, status store.JobStatus, limit int) ([]*store.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	args := []interface{}{limit}
	whereClause := ""
	if status != "" {
		whereClause = "WHERE status = $2"
		args = append(args, status)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM jobs
		%s
		ORDER BY created_at DESC
		LIMIT $1
	`, jobColumns, whereClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs query failed: %w", err)
	}
	defer rows.Close()

	var jobs []*store.Job
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs scan failed: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJobStatus writes the status transition plus result/error and
// timestamp fields of the given job.
func (s *Store) UpdateJobStatus(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	query := `
		UPDATE jobs
		SET status = $1, result = $2, error = $3, started_at = $4, completed_at = $5
		WHERE id = $6
	`
	res, err := s.getExecutor(tx).ExecContext(ctx, query,
		job.Status,
		job.Result,
		job.Error,
		job.StartedAt,
		job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// NextQueuedJob returns the oldest queued job (FIFO).
func (s *Store) NextQueuedJob(ctx context.Context) (*store.Job, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, jobColumns)
	return s.scanJob(s.db.QueryRowContext(ctx, query, store.JobStatusQueued))
}

// FailRunningJobs marks every running job as failed.
// Called once on startup: a crash must never leave the illusion of
// in-progress work that nothing will ever complete.
func (s *Store) FailRunningJobs(ctx context.Context, errMsg string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, error = $2, completed_at = NOW()
		WHERE status = $3
	`, store.JobStatusFailed, errMsg, store.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to recover running jobs: %w", err)
	}
	return res.RowsAffected()
}

// CountJobs returns the number of jobs in the given status.
// An empty status counts all jobs.
func (s *Store) CountJobs(ctx context.Context, status store.JobStatus) (int64, error) {
	var count int64
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE status = $1", status).Scan(&count)
	}
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanJob(row rowScanner) (*store.Job, error) {
	var job store.Job
	var optsJson []byte

	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.Query,
		&optsJson,
		&job.Result,
		&job.Error,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if len(optsJson) > 0 {
		if err := json.Unmarshal(optsJson, &job.Options); err != nil {
			return nil, fmt.Errorf("failed to decode job options: %w", err)
		}
	}
	return &job, nil
}

func (s *Store) getExecutor(tx store.DBTransaction) store.DBTransaction {
	if tx != nil {
		return tx
	}
	return s.db
}
