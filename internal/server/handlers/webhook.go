package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"researchplane/internal/dispatch"
	"researchplane/internal/logger"
	"researchplane/internal/store"
	"researchplane/pkg/api"
)

// AudioWebhook handles POST /webhooks/audio, the callback the execution
// service posts when a remote audio generation changes state.
func (h *Handlers) AudioWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.AudioWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RemoteJobID == "" || req.Status == "" {
		h.httpError(w, "remote_job_id and status are required", http.StatusBadRequest)
		return
	}

	pa, err := h.dispatcher.ResolveWebhook(ctx, req.RemoteJobID, req.Status, req.ResultAudioID, req.Error)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Unknown remote job", http.StatusNotFound)
			return
		}
		if errors.Is(err, dispatch.ErrUnknownStatus) {
			h.httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.FromContext(ctx, h.logger).Error("failed to resolve audio webhook",
			"remote_job_id", req.RemoteJobID, "error", err)
		h.httpError(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, toPendingAudioResponse(pa))
}
