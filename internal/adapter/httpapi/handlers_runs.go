package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tmdb-agent/internal/application/port/input"
	"tmdb-agent/internal/domain/entity"
)

type submitRequest struct {
	RunID string `json:"run_id"`
	Query string `json:"query"`
}

func (h *handlers) handleRunSubmit(w http.ResponseWriter, r *http.Request) {
	var request submitRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	if strings.TrimSpace(request.Query) == "" {
		writeInvalidRequest(w, "query is required")
		return
	}
	if request.RunID != "" && strings.TrimSpace(request.RunID) == "" {
		writeInvalidRequest(w, "run_id must not be blank")
		return
	}

	handle, err := h.runs.Submit(r.Context(), input.SubmitRequest{
		ID:    entity.RunID(strings.TrimSpace(request.RunID)),
		Query: strings.TrimSpace(request.Query),
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, newRunResponse(handle))
}

func (h *handlers) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	id := entity.RunID(chi.URLParam(r, "id"))
	handle, ok := h.runs.Lookup(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, errorCodeNotFound, entity.ErrRunNotFound.Error()+": "+id.String())
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(handle))
}

func (h *handlers) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, entity.RunID(chi.URLParam(r, "id")))
}
