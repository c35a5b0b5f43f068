package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"researchplane/internal/store"
)

// CreatePendingAudio inserts a new tracking row.
// It is called before the remote trigger request is issued.
func (s *Store) CreatePendingAudio(ctx context.Context, tx store.DBTransaction, pa *store.PendingAudio) error {
	query := `
		INSERT INTO pending_audio (id, notebook_title, sources, status, custom_prompt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	sourcesJson, err := json.Marshal(pa.Sources)
	if err != nil {
		return err
	}

	_, err = s.getExecutor(tx).ExecContext(ctx, query,
		pa.ID,
		pa.NotebookTitle,
		sourcesJson,
		pa.Status,
		pa.CustomPrompt,
		pa.CreatedAt,
	)
	return err
}

const pendingAudioColumns = `id, notebook_title, sources, status, remote_job_id, custom_prompt,
	created_at, started_at, completed_at, error, result_audio_id`

// GetPendingAudioByID returns a tracking record by its ID.
func (s *Store) GetPendingAudioByID(ctx context.Context, id string) (*store.PendingAudio, error) {
	query := fmt.Sprintf("SELECT %s FROM pending_audio WHERE id = $1", pendingAudioColumns)
	return s.scanPendingAudio(s.db.QueryRowContext(ctx, query, id))
}

// GetPendingAudioByRemoteJobID resolves a webhook notification back to
// its tracking record.
func (s *Store) GetPendingAudioByRemoteJobID(ctx context.Context, remoteJobID string) (*store.PendingAudio, error) {
	query := fmt.Sprintf("SELECT %s FROM pending_audio WHERE remote_job_id = $1", pendingAudioColumns)
	return s.scanPendingAudio(s.db.QueryRowContext(ctx, query, remoteJobID))
}

// UpdatePendingAudio writes the mutable fields of the given record.
func (s *Store) UpdatePendingAudio(ctx context.Context, tx store.DBTransaction, pa *store.PendingAudio) error {
	query := `
		UPDATE pending_audio
		SET status = $1, remote_job_id = $2, started_at = $3, completed_at = $4, error = $5, result_audio_id = $6
		WHERE id = $7
	`
	res, err := s.getExecutor(tx).ExecContext(ctx, query,
		pa.Status,
		pa.RemoteJobID,
		pa.StartedAt,
		pa.CompletedAt,
		pa.Error,
		pa.ResultAudioID,
		pa.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) scanPendingAudio(row rowScanner) (*store.PendingAudio, error) {
	var pa store.PendingAudio
	var sourcesJson []byte

	err := row.Scan(
		&pa.ID,
		&pa.NotebookTitle,
		&sourcesJson,
		&pa.Status,
		&pa.RemoteJobID,
		&pa.CustomPrompt,
		&pa.CreatedAt,
		&pa.StartedAt,
		&pa.CompletedAt,
		&pa.Error,
		&pa.ResultAudioID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if len(sourcesJson) > 0 {
		if err := json.Unmarshal(sourcesJson, &pa.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
		}
	}
	return &pa, nil
}
