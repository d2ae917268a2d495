package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accredo/internal/transfer/models"
	transfer "accredo/internal/transfer/service"
	"accredo/internal/transport/http/json"
	"accredo/internal/transport/http/shared"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

type createTransferRequest struct {
	StudentID          string `json:"student_id"`
	SourceCredentialID string `json:"source_credential_id"`
	SourceCourse       string `json:"source_course,omitempty"`
	TargetInstitution  string `json:"target_institution"`
	TargetCourse       string `json:"target_course,omitempty"`
}

func (h *Handler) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	request, err := h.transfers.Request(r.Context(), transfer.RequestInput{
		StudentID:          id.SubjectID(req.StudentID),
		SourceCredentialID: id.CredentialID(req.SourceCredentialID),
		SourceCourse:       id.CourseID(req.SourceCourse),
		TargetInstitution:  req.TargetInstitution,
		TargetCourse:       req.TargetCourse,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "transfer id is required"))
		return
	}

	request, err := h.transfers.Get(r.Context(), transferID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, request)
}

type reviewTransferRequest struct {
	Reviewer string `json:"reviewer"`
	Note     string `json:"note,omitempty"`
}

func (h *Handler) handleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	h.reviewTransfer(w, r, h.transfers.Approve)
}

func (h *Handler) handleRejectTransfer(w http.ResponseWriter, r *http.Request) {
	h.reviewTransfer(w, r, h.transfers.Reject)
}

// reviewTransfer shares the decode/validate/respond plumbing between the
// approve and reject endpoints.
func (h *Handler) reviewTransfer(
	w http.ResponseWriter,
	r *http.Request,
	review func(ctx context.Context, transferID id.TransferID, reviewer, note string) (*models.TransferRequest, error),
) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "transfer id is required"))
		return
	}

	var req reviewTransferRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}
	if req.Reviewer == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "reviewer is required"))
		return
	}

	request, err := review(r.Context(), transferID, req.Reviewer, req.Note)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, request)
}
