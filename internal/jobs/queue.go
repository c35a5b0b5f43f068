// Package jobs implements the durable job queue on top of the store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"researchplane/internal/store"

	"github.com/google/uuid"
)

// RestartErrorMessage is written to every job found running at startup.
const RestartErrorMessage = "job interrupted by process restart"

// maxErrorLen bounds the error text persisted on a job.
const maxErrorLen = 2000

// ErrValidation is returned when caller input is malformed.
// Nothing is written to the store in that case.
var ErrValidation = errors.New("validation failed")

// Queue provides CRUD and state-machine operations over Job records.
// One instance is constructed per process and injected into every
// component that needs it.
type Queue struct {
	store  store.JobStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates a job queue backed by the given store.
func New(s store.JobStore, logger *slog.Logger) *Queue {
	return &Queue{
		store:  s,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// StatusUpdate carries the optional fields merged into a job on transition.
type StatusUpdate struct {
	Result *string
	Error  *string
}

// Add creates a new job in status queued.
func (q *Queue) Add(ctx context.Context, jobType store.JobType, query string, opts store.JobOptions) (*store.Job, error) {
	if !store.ValidJobType(jobType) {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrValidation, jobType)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}

	job := &store.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    store.JobStatusQueued,
		Query:     query,
		Options:   opts,
		CreatedAt: q.now(),
	}

	if err := q.store.CreateJob(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Get returns a job by ID, or store.ErrNotFound.
func (q *Queue) Get(ctx context.Context, id string) (*store.Job, error) {
	return q.store.GetJobByID(ctx, id)
}

// List returns jobs ordered newest-first. An empty status means all.
func (q *Queue) List(ctx context.Context, status store.JobStatus, limit int) ([]*store.Job, error) {
	return q.store.ListJobs(ctx, status, limit)
}

// statusRank orders statuses along the only legal direction of travel:
// queued, running, then a terminal state.
func statusRank(s store.JobStatus) int {
	switch s {
	case store.JobStatusQueued:
		return 0
	case store.JobStatusRunning:
		return 1
	default:
		return 2
	}
}

// UpdateStatus transitions a job and merges result/error fields.
// StartedAt is stamped on entry into running, CompletedAt on entry into a
// terminal state. Status only moves forward: a running job never returns
// to queued, and a terminal status is frozen entirely — later calls may
// still merge result text (a webhook landing after completion) but never
// change the status again, and never flip failed to completed.
func (q *Queue) UpdateStatus(ctx context.Context, id string, status store.JobStatus, extra *StatusUpdate) (*store.Job, error) {
	job, err := q.store.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := q.now()

	if job.Status.Terminal() {
		if status != job.Status {
			q.logger.Warn("ignoring status change on terminal job",
				"job_id", id, "status", job.Status, "requested", status)
		}
		if extra == nil || extra.Result == nil {
			return job, nil
		}
		job.Result = extra.Result
	} else {
		if statusRank(status) < statusRank(job.Status) {
			return nil, fmt.Errorf("job %s cannot move from %s back to %s", id, job.Status, status)
		}
		if status == store.JobStatusRunning && job.StartedAt == nil {
			job.StartedAt = &now
		}
		if status.Terminal() {
			job.CompletedAt = &now
		}
		job.Status = status
		if extra != nil {
			if extra.Result != nil {
				job.Result = extra.Result
			}
			if extra.Error != nil {
				msg := truncate(*extra.Error, maxErrorLen)
				job.Error = &msg
			}
		}
	}

	if err := q.store.UpdateJobStatus(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return job, nil
}

// FindNextQueued returns the oldest queued job (FIFO) for pull-based
// workers, or store.ErrNotFound when the queue is empty.
func (q *Queue) FindNextQueued(ctx context.Context) (*store.Job, error) {
	return q.store.NextQueuedJob(ctx)
}

// RecoverInterrupted marks every job left running by a previous process
// as failed. Called exactly once at startup, before the runner starts.
func (q *Queue) RecoverInterrupted(ctx context.Context) (int64, error) {
	n, err := q.store.FailRunningJobs(ctx, RestartErrorMessage)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Warn("recovered interrupted jobs", "count", n)
	}
	return n, nil
}

// Depth returns the number of queued jobs, for the queue-depth gauge.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.store.CountJobs(ctx, store.JobStatusQueued)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
