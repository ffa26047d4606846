package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/store"
)

// EntityHandler exposes the label resolver.
type EntityHandler struct {
	resolver domain.Resolver
}

func NewEntityHandler(resolver domain.Resolver) *EntityHandler {
	return &EntityHandler{resolver: resolver}
}

type resolveRequest struct {
	Label string `json:"label"`
	// LookupOnly skips allocation for unknown labels.
	LookupOnly bool `json:"lookup_only,omitempty"`
}

type resolveResponse struct {
	Label string          `json:"label"`
	ID    domain.EntityID `json:"id"`
}

func (h *EntityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	var (
		id  domain.EntityID
		err error
	)
	if req.LookupOnly {
		id, err = h.resolver.Lookup(r.Context(), req.Label)
	} else {
		id, err = h.resolver.Resolve(r.Context(), req.Label)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "label not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve label")
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Label: req.Label, ID: id})
}

func (h *EntityHandler) Name(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}

	label, err := h.resolver.NameOf(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up entity")
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Label: label, ID: id})
}
