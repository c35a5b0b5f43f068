package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"researchplane/internal/logger"
	"researchplane/internal/store"
	"researchplane/pkg/api"
)

// QueueAudio handles POST /audio. It dispatches one remote audio
// generation per source; per-source failures land in the response, not
// in the status code.
func (h *Handlers) QueueAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.dispatcher.IsConfigured() {
		h.httpError(w, "Remote dispatch is not configured", http.StatusServiceUnavailable)
		return
	}

	var req api.QueueAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NotebookTitle == "" || len(req.Sources) == 0 {
		h.httpError(w, "notebook_title and sources are required", http.StatusBadRequest)
		return
	}

	result, err := h.dispatcher.QueueAudioGenerations(ctx, req.NotebookTitle, req.Sources, req.CustomPrompt)
	if err != nil {
		logger.FromContext(ctx, h.logger).Error("failed to queue audio generations", "error", err)
		h.httpError(w, "Failed to queue audio generations", http.StatusInternalServerError)
		return
	}

	resp := api.QueueAudioResponse{
		Queued: result.Queued,
		Failed: result.Failed,
	}
	for _, pa := range result.PendingAudios {
		resp.PendingAudios = append(resp.PendingAudios, toPendingAudioResponse(pa))
	}
	h.respondJson(w, http.StatusAccepted, resp)
}

// GetPendingAudio handles GET /audio/{id}.
func (h *Handlers) GetPendingAudio(w http.ResponseWriter, r *http.Request) {
	pa, err := h.pending.GetPendingAudioByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Pending audio not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to load pending audio", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, toPendingAudioResponse(pa))
}
