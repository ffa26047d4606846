package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/service"
	"github.com/Toasterson/akh-medu-sub004/internal/store"
)

type ProvenanceHandler struct {
	svc *service.ProvenanceService
}

func NewProvenanceHandler(svc *service.ProvenanceService) *ProvenanceHandler {
	return &ProvenanceHandler{svc: svc}
}

type createRecordRequest struct {
	DerivedID  domain.EntityID       `json:"derived_id"`
	Sources    []domain.EntityID     `json:"sources"`
	Kind       domain.DerivationKind `json:"kind"`
	KindName   string                `json:"kind_name,omitempty"`
	Confidence float64               `json:"confidence"`
	Depth      uint32                `json:"depth"`
}

func (req *createRecordRequest) toRecord() (*domain.ProvenanceRecord, error) {
	kind := req.Kind
	if kind.Tag == 0 && req.KindName != "" {
		tag, ok := domain.KindByName(req.KindName)
		if !ok {
			return nil, errors.New("unknown kind name")
		}
		kind.Tag = tag
	}
	rec := domain.NewProvenanceRecord(req.DerivedID, req.Sources, kind, req.Confidence)
	rec.Depth = req.Depth
	return rec, nil
}

type recordResponse struct {
	domain.ProvenanceRecord
	KindName string `json:"kind_name"`
}

func toRecordResponse(r domain.ProvenanceRecord) recordResponse {
	return recordResponse{ProvenanceRecord: r, KindName: r.Kind.Name()}
}

func (h *ProvenanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.svc.Record(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(*rec))
}

type createBatchRequest struct {
	Records []createRecordRequest `json:"records"`
}

type createBatchResponse struct {
	IDs   []domain.EntityID `json:"ids"`
	Count int               `json:"count"`
}

func (h *ProvenanceHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "records are required")
		return
	}

	recs := make([]*domain.ProvenanceRecord, len(req.Records))
	for i := range req.Records {
		rec, err := req.Records[i].toRecord()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		recs[i] = rec
	}

	ids, err := h.svc.RecordBatch(r.Context(), recs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createBatchResponse{IDs: ids, Count: len(ids)})
}

func (h *ProvenanceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(*rec))
}

type listRecordsResponse struct {
	Records []recordResponse `json:"records"`
	Count   int              `json:"count"`
}

// List queries one secondary index, selected by exactly one of the
// derived, source, or kind query parameters.
func (h *ProvenanceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	derived, source, kind := q.Get("derived"), q.Get("source"), q.Get("kind")

	set := 0
	for _, v := range []string{derived, source, kind} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		writeError(w, http.StatusBadRequest, "exactly one of derived, source, kind is required")
		return
	}

	var (
		records []domain.ProvenanceRecord
		err     error
	)
	switch {
	case derived != "":
		var id domain.EntityID
		if id, err = domain.ParseEntityID(derived); err == nil {
			records, err = h.svc.History(r.Context(), id)
		}
	case source != "":
		var id domain.EntityID
		if id, err = domain.ParseEntityID(source); err == nil {
			records, err = h.svc.Uses(r.Context(), id)
		}
	default:
		tag, ok := domain.KindByName(kind)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown kind")
			return
		}
		records, err = h.svc.OfKind(r.Context(), tag)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = toRecordResponse(rec)
	}
	writeJSON(w, http.StatusOK, listRecordsResponse{Records: out, Count: len(out)})
}
