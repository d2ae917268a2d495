package shared

import (
	"errors"
	"net/http"

	"accredo/internal/transport/http/json"
	dErrors "accredo/pkg/domain-errors"
)

// WriteError centralizes domain error translation to HTTP responses. The
// domain code travels verbatim in the envelope so clients can branch on it;
// wrapped causes never leak.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		json.WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
		return
	}

	json.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeAlreadyProcessed:
		return http.StatusConflict
	case dErrors.CodeRevoked, dErrors.CodeSubjectMismatch, dErrors.CodeGradeTooLow:
		return http.StatusUnprocessableEntity
	case dErrors.CodeChallengeExpired:
		return http.StatusGone
	case dErrors.CodeSignatureInvalid:
		return http.StatusUnprocessableEntity
	case dErrors.CodeIssuerUnknown, dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeListExhausted:
		return http.StatusInsufficientStorage
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
