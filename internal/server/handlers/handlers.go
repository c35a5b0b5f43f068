// Package handlers contains the HTTP handlers for the API server.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"researchplane/internal/dispatch"
	"researchplane/internal/jobs"
	"researchplane/internal/registry"
	"researchplane/internal/store"
	"researchplane/pkg/api"
)

// Dispatcher is the slice of the dispatch client the handlers use.
type Dispatcher interface {
	IsConfigured() bool
	QueueAudioGenerations(ctx context.Context, notebookTitle string, sources []string, customPrompt string) (*dispatch.QueueResult, error)
	ResolveWebhook(ctx context.Context, remoteJobID, status, resultAudioID, errText string) (*store.PendingAudio, error)
}

// Pinger reports database connectivity for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	queue      *jobs.Queue
	registry   *registry.Registry
	pending    store.PendingAudioStore
	dispatcher Dispatcher
	db         Pinger
	logger     *slog.Logger
}

// New creates a Handlers instance with the given dependencies.
func New(queue *jobs.Queue, reg *registry.Registry, pending store.PendingAudioStore, dispatcher Dispatcher, db Pinger, logger *slog.Logger) *Handlers {
	return &Handlers{
		queue:      queue,
		registry:   reg,
		pending:    pending,
		dispatcher: dispatcher,
		db:         db,
		logger:     logger,
	}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

func toJobResponse(job *store.Job) api.JobResponse {
	resp := api.JobResponse{
		ID:          job.ID,
		Type:        string(job.Type),
		Status:      string(job.Status),
		Query:       job.Query,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Result != nil {
		resp.Result = *job.Result
	}
	if job.Error != nil {
		resp.Error = *job.Error
	}
	return resp
}

func toArtifactResponse(id string, e *registry.Entry) api.ArtifactResponse {
	return api.ArtifactResponse{
		ID:         id,
		Type:       e.Type,
		ParentID:   e.ParentID,
		Title:      e.Title,
		ExternalID: e.ExternalID,
		LocalPath:  e.LocalPath,
		CreatedAt:  e.CreatedAt,
	}
}

func toPendingAudioResponse(pa *store.PendingAudio) api.PendingAudioResponse {
	resp := api.PendingAudioResponse{
		ID:            pa.ID,
		NotebookTitle: pa.NotebookTitle,
		Sources:       pa.Sources,
		Status:        string(pa.Status),
		CreatedAt:     pa.CreatedAt,
		StartedAt:     pa.StartedAt,
		CompletedAt:   pa.CompletedAt,
	}
	if pa.RemoteJobID != nil {
		resp.RemoteJobID = *pa.RemoteJobID
	}
	if pa.Error != nil {
		resp.Error = *pa.Error
	}
	if pa.ResultAudioID != nil {
		resp.ResultAudioID = *pa.ResultAudioID
	}
	return resp
}
