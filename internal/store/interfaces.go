package store

import (
	"context"
	"database/sql"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// JobStore handles the persistence of Job records.
type JobStore interface {
	// CreateJob inserts a new job in status queued.
	CreateJob(ctx context.Context, tx DBTransaction, job *Job) error

	// GetJobByID returns a job by its ID, or ErrNotFound.
	GetJobByID(ctx context.Context, id string) (*Job, error)

	// ListJobs returns jobs ordered newest-first. An empty status means all.
	ListJobs(ctx context.Context, status JobStatus, limit int) ([]*Job, error)

	// UpdateJobStatus writes a status transition plus result/error fields.
	UpdateJobStatus(ctx context.Context, tx DBTransaction, job *Job) error

	// NextQueuedJob returns the oldest queued job (FIFO), or ErrNotFound.
	NextQueuedJob(ctx context.Context) (*Job, error)

	// FailRunningJobs marks every running job as failed with the given
	// error message. Returns the number of jobs recovered.
	FailRunningJobs(ctx context.Context, errMsg string) (int64, error)

	// CountJobs returns the number of jobs in the given status.
	CountJobs(ctx context.Context, status JobStatus) (int64, error)
}

// PendingAudioStore handles the persistence of PendingAudio tracking records.
type PendingAudioStore interface {
	// CreatePendingAudio inserts a new record in status queued.
	CreatePendingAudio(ctx context.Context, tx DBTransaction, pa *PendingAudio) error

	// GetPendingAudioByID returns a record by its ID, or ErrNotFound.
	GetPendingAudioByID(ctx context.Context, id string) (*PendingAudio, error)

	// GetPendingAudioByRemoteJobID resolves a webhook notification back to
	// the tracking record, or ErrNotFound.
	GetPendingAudioByRemoteJobID(ctx context.Context, remoteJobID string) (*PendingAudio, error)

	// UpdatePendingAudio writes status plus remote job id, error and result fields.
	UpdatePendingAudio(ctx context.Context, tx DBTransaction, pa *PendingAudio) error
}

// GraphStore handles generic entity/relationship facts, including
// the session -> document -> audio lineage edges.
type GraphStore interface {
	// CreateEntity inserts a new graph node.
	CreateEntity(ctx context.Context, tx DBTransaction, e *Entity) error

	// GetEntityByID returns an entity by its ID, or ErrNotFound.
	GetEntityByID(ctx context.Context, id string) (*Entity, error)

	// FindEntities returns entities filtered by type and/or name.
	// An empty types slice matches all types; an empty name matches all names.
	FindEntities(ctx context.Context, types []string, name string) ([]*Entity, error)

	// CreateRelationship inserts a new edge.
	CreateRelationship(ctx context.Context, tx DBTransaction, r *Relationship) error

	// ListRelationshipsFrom returns edges of the given type starting at fromID.
	ListRelationshipsFrom(ctx context.Context, fromID, relType string) ([]*Relationship, error)

	// Lineage walks derived_from edges from a leaf entity up to its root,
	// returning the ordered chain [leaf .. root].
	Lineage(ctx context.Context, leafID string) ([]*Entity, error)
}
