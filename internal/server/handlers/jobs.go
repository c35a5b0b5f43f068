package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"researchplane/internal/jobs"
	"researchplane/internal/logger"
	"researchplane/internal/store"
	"researchplane/pkg/api"
)

// SubmitJob handles POST /jobs.
// The job is persisted in status queued; the runner picks it up.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts := store.JobOptions{
		DryRun:       req.Options.DryRun,
		CustomPrompt: req.Options.CustomPrompt,
		WaitForAudio: req.Options.WaitForAudio,
		Sources:      req.Options.Sources,
	}

	job, err := h.queue.Add(ctx, store.JobType(req.Type), req.Query, opts)
	if err != nil {
		if errors.Is(err, jobs.ErrValidation) {
			h.httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.FromContext(ctx, h.logger).Error("failed to create job", "error", err)
		h.httpError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.SubmitJobResponse{JobID: job.ID})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /jobs. Optional query params: status, limit.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := store.JobStatus(r.URL.Query().Get("status"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.httpError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.queue.List(r.Context(), status, limit)
	if err != nil {
		h.httpError(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	resp := api.ListJobsResponse{Jobs: make([]api.JobResponse, 0, len(list))}
	for _, job := range list {
		resp.Jobs = append(resp.Jobs, toJobResponse(job))
	}
	h.respondJson(w, http.StatusOK, resp)
}
