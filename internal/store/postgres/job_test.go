package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"researchplane/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "status", "query", "options", "result", "error",
		"created_at", "started_at", "completed_at",
	})
}

func TestCreateJob_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	ctx := context.Background()
	job := &store.Job{
		ID:        uuid.NewString(),
		Type:      store.JobTypeResearchToPodcast,
		Status:    store.JobStatusQueued,
		Query:     "history of container orchestration",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(job.ID, job.Type, job.Status, job.Query, sqlmock.AnyArg(), job.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.CreateJob(ctx, nil, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJobByID_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	id := uuid.NewString()
	mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id`).
		WithArgs(id).
		WillReturnRows(jobRows())

	_, err := s.GetJobByID(context.Background(), id)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want store.ErrNotFound", err)
	}
}

func TestGetJobByID_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	id := uuid.NewString()
	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id`).
		WithArgs(id).
		WillReturnRows(jobRows().AddRow(
			id, "query", "queued", "q", []byte(`{"dry_run":true}`), nil, nil, created, nil, nil,
		))

	job, err := s.GetJobByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJobByID failed: %v", err)
	}
	if job.Status != store.JobStatusQueued {
		t.Errorf("got status %q, want queued", job.Status)
	}
	if !job.Options.DryRun {
		t.Error("expected options.DryRun to be decoded")
	}
}

func TestListJobs_StatusFilter(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM jobs\s+WHERE status = \$2`).
		WithArgs(10, store.JobStatusFailed).
		WillReturnRows(jobRows().
			AddRow(uuid.NewString(), "query", "failed", "a", []byte(`{}`), nil, nil, time.Now(), nil, nil).
			AddRow(uuid.NewString(), "query", "failed", "b", []byte(`{}`), nil, nil, time.Now(), nil, nil))

	jobs, err := s.ListJobs(context.Background(), store.JobStatusFailed, 10)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestUpdateJobStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	job := &store.Job{ID: uuid.NewString(), Status: store.JobStatusRunning}

	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateJobStatus(context.Background(), nil, job)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want store.ErrNotFound", err)
	}
}

func TestNextQueuedJob_FIFO(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	oldest := uuid.NewString()
	mock.ExpectQuery(`ORDER BY created_at ASC\s+LIMIT 1`).
		WithArgs(store.JobStatusQueued).
		WillReturnRows(jobRows().AddRow(
			oldest, "deep_research", "queued", "q", []byte(`{}`), nil, nil, time.Now(), nil, nil,
		))

	job, err := s.NextQueuedJob(context.Background())
	if err != nil {
		t.Fatalf("NextQueuedJob failed: %v", err)
	}
	if job.ID != oldest {
		t.Errorf("got %s, want %s", job.ID, oldest)
	}
}

func TestFailRunningJobs(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStatusFailed, "job interrupted by process restart", store.JobStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.FailRunningJobs(context.Background(), "job interrupted by process restart")
	if err != nil {
		t.Fatalf("FailRunningJobs failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 recovered jobs, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
