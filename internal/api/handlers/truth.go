package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/service"
)

// TruthHandler exposes the truth maintenance operations: registering
// support, retracting, and inspecting what the engine currently believes.
type TruthHandler struct {
	retractionSvc *service.RetractionService
	provenanceSvc *service.ProvenanceService
}

func NewTruthHandler(retractionSvc *service.RetractionService, provenanceSvc *service.ProvenanceService) *TruthHandler {
	return &TruthHandler{retractionSvc: retractionSvc, provenanceSvc: provenanceSvc}
}

type addSupportRequest struct {
	Derived    domain.EntityID       `json:"derived"`
	Premises   []domain.EntityID     `json:"premises"`
	Kind       domain.DerivationKind `json:"kind"`
	KindName   string                `json:"kind_name,omitempty"`
	Confidence float64               `json:"confidence"`
}

type addSupportResponse struct {
	RecordID   domain.EntityID `json:"record_id"`
	Derived    domain.EntityID `json:"derived"`
	Confidence float64         `json:"confidence"`
}

func (h *TruthHandler) AddSupport(w http.ResponseWriter, r *http.Request) {
	var req addSupportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Derived.Valid() {
		writeError(w, http.StatusBadRequest, "derived is required")
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be in [0,1]")
		return
	}

	kind := req.Kind
	if kind.Tag == 0 && req.KindName != "" {
		tag, ok := domain.KindByName(req.KindName)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown kind name")
			return
		}
		kind.Tag = tag
	}
	if kind.Tag == 0 {
		kind = domain.NewReasoned()
	}

	set := domain.SupportSet{
		Premises:   req.Premises,
		Kind:       kind,
		Confidence: req.Confidence,
	}
	recordID, err := h.retractionSvc.AddSupport(r.Context(), req.Derived, set)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, addSupportResponse{
		RecordID:   recordID,
		Derived:    req.Derived,
		Confidence: h.retractionSvc.EffectiveConfidence(req.Derived),
	})
}

type retractRequest struct {
	Entity domain.EntityID `json:"entity"`
}

func (h *TruthHandler) Retract(w http.ResponseWriter, r *http.Request) {
	var req retractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Entity.Valid() {
		writeError(w, http.StatusBadRequest, "entity is required")
		return
	}

	result, err := h.retractionSvc.Retract(r.Context(), req.Entity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TruthHandler) Confidence(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.retractionSvc.StatusOf(id))
}

func (h *TruthHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}

	explanation, err := h.provenanceSvc.Explain(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build explanation")
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}
