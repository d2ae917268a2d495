package httptransport

import (
	"net/http"

	"accredo/internal/presentation"
	"accredo/internal/transport/http/json"
	"accredo/internal/transport/http/shared"
	dErrors "accredo/pkg/domain-errors"
)

type createChallengeRequest struct {
	Domain string `json:"domain"`
}

func (h *Handler) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}
	if req.Domain == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "domain is required"))
		return
	}

	c, err := h.broker.Generate(r.Context(), req.Domain)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, c)
}

type verifyPresentationRequest struct {
	Challenge    string                    `json:"challenge"`
	Domain       string                    `json:"domain"`
	Presentation presentation.Presentation `json:"presentation"`
}

func (h *Handler) handleVerifyPresentation(w http.ResponseWriter, r *http.Request) {
	var req verifyPresentationRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}
	if req.Challenge == "" || req.Domain == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "challenge and domain are required"))
		return
	}

	result, err := h.verifier.Verify(r.Context(), req.Presentation, req.Challenge, req.Domain)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, result)
}
