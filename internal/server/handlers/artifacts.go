package handlers

import (
	"net/http"

	"researchplane/pkg/api"
)

// GetArtifact handles GET /artifacts/{id}.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entry, ok := h.registry.Get(id)
	if !ok {
		h.httpError(w, "Artifact not found", http.StatusNotFound)
		return
	}

	h.respondJson(w, http.StatusOK, toArtifactResponse(id, entry))
}

// GetArtifactLineage handles GET /artifacts/{id}/lineage.
// The chain is ordered leaf first, root session last.
func (h *Handlers) GetArtifactLineage(w http.ResponseWriter, r *http.Request) {
	chain, err := h.registry.GetLineage(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Artifact not found", http.StatusNotFound)
		return
	}

	resp := api.LineageResponse{Lineage: make([]api.ArtifactResponse, 0, len(chain))}
	for _, l := range chain {
		resp.Lineage = append(resp.Lineage, toArtifactResponse(l.ID, &l.Entry))
	}
	h.respondJson(w, http.StatusOK, resp)
}
