// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import "time"

// SubmitJobRequest is the request body for submitting a new research job.
type SubmitJobRequest struct {
	Type  string `json:"type"`
	Query string `json:"query"`
	// Options are type-specific knobs (dry_run, custom_prompt, ...).
	Options JobOptions `json:"options,omitempty"`
}

// JobOptions carries the per-job settings understood by the pipeline.
type JobOptions struct {
	DryRun       bool   `json:"dry_run,omitempty"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
	// WaitForAudio keeps an audio_generation job running until every
	// remote generation reaches a terminal state, polling the execution
	// service instead of relying on its callback.
	WaitForAudio bool `json:"wait_for_audio,omitempty"`
	// Sources names the documents fed to an audio_generation job.
	Sources []string `json:"sources,omitempty"`
}

// SubmitJobResponse is the response body after submitting a job.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Query       string     `json:"query"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the response body for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ArtifactResponse represents a registry entry in API responses.
type ArtifactResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ParentID   string    `json:"parent_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	LocalPath  string    `json:"local_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LineageResponse is the ordered ancestor chain from a leaf artifact
// to its root session.
type LineageResponse struct {
	Lineage []ArtifactResponse `json:"lineage"`
}

// QueueAudioRequest is the request body for queueing audio generations.
type QueueAudioRequest struct {
	NotebookTitle string   `json:"notebook_title"`
	Sources       []string `json:"sources"`
	CustomPrompt  string   `json:"custom_prompt,omitempty"`
}

// QueueAudioResponse reports which sources were dispatched and which failed.
type QueueAudioResponse struct {
	Queued        []string               `json:"queued"`
	Failed        []string               `json:"failed"`
	PendingAudios []PendingAudioResponse `json:"pending_audios"`
}

// PendingAudioResponse represents one in-flight audio generation.
type PendingAudioResponse struct {
	ID            string     `json:"id"`
	NotebookTitle string     `json:"notebook_title"`
	Sources       []string   `json:"sources"`
	Status        string     `json:"status"`
	RemoteJobID   string     `json:"remote_job_id,omitempty"`
	Error         string     `json:"error,omitempty"`
	ResultAudioID string     `json:"result_audio_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// AudioWebhookRequest is the payload the external execution service posts
// back when an audio generation finishes.
type AudioWebhookRequest struct {
	RemoteJobID   string `json:"remote_job_id"`
	Status        string `json:"status"`
	ResultAudioID string `json:"result_audio_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
