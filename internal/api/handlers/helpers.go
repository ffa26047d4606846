package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// entityParam parses the {id} URL parameter as an entity identifier,
// writing a 400 itself when the value is unusable.
func entityParam(w http.ResponseWriter, r *http.Request) (domain.EntityID, bool) {
	id, err := domain.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return domain.NoEntity, false
	}
	return id, true
}
