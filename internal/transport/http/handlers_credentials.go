package httptransport

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accredo/internal/credential/issuer"
	"accredo/internal/credential/models"
	"accredo/internal/transport/http/json"
	"accredo/internal/transport/http/shared"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

type issueCredentialRequest struct {
	SubjectID string        `json:"subject_id"`
	CourseID  string        `json:"course_id"`
	Period    string        `json:"period"`
	Type      string        `json:"type,omitempty"`
	Claims    models.Claims `json:"claims,omitempty"`
}

func (h *Handler) handleIssueCredential(w http.ResponseWriter, r *http.Request) {
	var req issueCredentialRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	subjectID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "subject_id is required"))
		return
	}
	courseID, err := id.ParseCourseID(req.CourseID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "course_id is required"))
		return
	}

	credType := models.CredentialType(req.Type)
	if req.Type == "" {
		credType = models.CredentialTypeCourseCompletion
	}

	cred, err := h.issuer.Issue(r.Context(), issuer.IssueRequest{
		SubjectID: subjectID,
		Course:    models.CourseRef{CourseID: courseID, Period: req.Period},
		Type:      credType,
		Claims:    req.Claims,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, cred)
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "credential id is required"))
		return
	}

	cred, err := h.issuer.Get(r.Context(), credID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, cred)
}

type revokeCredentialRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "credential id is required"))
		return
	}

	var req revokeCredentialRequest
	if err := json.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	cred, err := h.issuer.RevokeByID(r.Context(), credID, req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleGetRevocationList(w http.ResponseWriter, r *http.Request) {
	listID, err := id.ParseListID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "list id is required"))
		return
	}

	list, err := h.registry.BuildPublicList(r.Context(), listID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, list)
}
