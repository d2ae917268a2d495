package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"accredo/internal/gradeevent"
	"accredo/internal/transport/http/json"
	"accredo/internal/transport/http/shared"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

func (h *Handler) handleGradeEvent(w http.ResponseWriter, r *http.Request) {
	var event gradeevent.GradeEvent
	if err := json.DecodeJSON(r, &event); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	result, err := h.grades.Process(r.Context(), event)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	listID, err := id.ParseListID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "list id is required"))
		return
	}

	jobID, err := h.sync.Trigger(r.Context(), listID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID.String(),
		"list_id": listID.String(),
	})
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "job id is required"))
		return
	}

	job, err := h.sync.Status(r.Context(), jobID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, job)
}
