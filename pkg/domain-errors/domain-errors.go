package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
// External callers must key behavior off the code only; messages are for humans.
type Code string

const (
	CodeNotFound         Code = "not_found"
	CodeBadRequest       Code = "bad_request"
	CodeInvalidInput     Code = "invalid_input"
	CodeValidation       Code = "validation_failed"
	CodeInternal         Code = "internal_error"
	CodeConflict         Code = "conflict"
	CodeAlreadyProcessed Code = "already_processed"
	CodeUnavailable      Code = "unavailable"

	// Credential lifecycle codes.
	CodeRevoked       Code = "vc_revoked"
	CodeListExhausted Code = "revocation_list_exhausted"

	// Presentation verification codes.
	CodeChallengeExpired Code = "vp_challenge_expired"
	CodeIssuerUnknown    Code = "issuer_unknown"
	CodeSignatureInvalid Code = "signature_invalid"

	// Credit-transfer workflow codes.
	CodeSubjectMismatch Code = "transfer_subject_mismatch"
	CodeGradeTooLow     Code = "transfer_grade_too_low"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		// Preserve the original domain code, update message
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the domain code from an error, defaulting to CodeInternal
// for non-domain errors so transport layers never leak raw failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Retryable reports whether the error represents a transient dependency
// failure worth retrying, as opposed to a deterministic rejection.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeIssuerUnknown:
		return true
	default:
		return false
	}
}
