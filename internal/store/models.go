// Package store contains the database layer for researchplane.
package store

import (
	"encoding/json"
	"time"
)

// Job represents a tracked unit of asynchronous research work.
type Job struct {
	ID          string
	Type        JobType
	Status      JobStatus
	Query       string
	Options     JobOptions
	Result      *string
	Error       *string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// JobType identifies the kind of work a job performs.
type JobType string

const (
	JobTypeQuery             JobType = "query"
	JobTypeDeepResearch      JobType = "deep_research"
	JobTypeAudioGeneration   JobType = "audio_generation"
	JobTypeResearchToPodcast JobType = "research_to_podcast"
	JobTypeSyncConversations JobType = "sync_conversations"
)

// JobStatus represents the state of a job.
// Status only moves forward: queued -> running -> completed|failed.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidJobType reports whether t is one of the known job types.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeQuery, JobTypeDeepResearch, JobTypeAudioGeneration,
		JobTypeResearchToPodcast, JobTypeSyncConversations:
		return true
	}
	return false
}

// JobOptions are the per-job settings persisted alongside the job.
type JobOptions struct {
	DryRun       bool     `json:"dry_run,omitempty"`
	CustomPrompt string   `json:"custom_prompt,omitempty"`
	WaitForAudio bool     `json:"wait_for_audio,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// PendingAudio tracks one in-flight remote audio-synthesis request.
// The row is created before the remote trigger is issued so a crash
// between creation and dispatch still leaves an inspectable record.
type PendingAudio struct {
	ID            string
	NotebookTitle string
	Sources       []string
	Status        PendingAudioStatus
	RemoteJobID   *string
	CustomPrompt  *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Error         *string
	ResultAudioID *string
}

// PendingAudioStatus represents the state of a pending audio generation.
type PendingAudioStatus string

const (
	PendingAudioQueued     PendingAudioStatus = "queued"
	PendingAudioStarted    PendingAudioStatus = "started"
	PendingAudioGenerating PendingAudioStatus = "generating"
	PendingAudioCompleted  PendingAudioStatus = "completed"
	PendingAudioFailed     PendingAudioStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s PendingAudioStatus) Terminal() bool {
	return s == PendingAudioCompleted || s == PendingAudioFailed
}

// Entity is a typed node in the knowledge graph.
type Entity struct {
	ID         string
	Type       string
	Name       string
	Properties json.RawMessage
	CreatedAt  time.Time
}

// Relationship is a typed edge between two entities.
type Relationship struct {
	FromID     string
	ToID       string
	Type       string
	Properties json.RawMessage
	CreatedAt  time.Time
}

// RelDerivedFrom is the edge type used for session -> document -> audio
// lineage. The edge points from the derived artifact to its parent.
const RelDerivedFrom = "derived_from"
