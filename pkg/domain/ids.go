// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	dErrors "accredo/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a SubjectID where a CourseID is expected.
// Credential and transfer ids are opaque strings (deterministic or prefixed UUIDs),
// never relational auto-increments.
type (
	SubjectID    string
	CredentialID string
	CourseID     string
	TransferID   string
	ListID       string
	JobID        string
)

// Parse functions - use at trust boundaries (handlers, event payloads).

func ParseSubjectID(s string) (SubjectID, error) {
	if err := nonEmpty(s, "subject ID"); err != nil {
		return "", err
	}
	return SubjectID(s), nil
}

func ParseCredentialID(s string) (CredentialID, error) {
	if err := nonEmpty(s, "credential ID"); err != nil {
		return "", err
	}
	return CredentialID(s), nil
}

func ParseCourseID(s string) (CourseID, error) {
	if err := nonEmpty(s, "course ID"); err != nil {
		return "", err
	}
	return CourseID(s), nil
}

func ParseTransferID(s string) (TransferID, error) {
	if err := nonEmpty(s, "transfer ID"); err != nil {
		return "", err
	}
	return TransferID(s), nil
}

func ParseListID(s string) (ListID, error) {
	if err := nonEmpty(s, "list ID"); err != nil {
		return "", err
	}
	return ListID(s), nil
}

func ParseJobID(s string) (JobID, error) {
	if err := nonEmpty(s, "job ID"); err != nil {
		return "", err
	}
	return JobID(s), nil
}

func nonEmpty(s, what string) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	return nil
}

// String methods - for logging and debugging.

func (id SubjectID) String() string    { return string(id) }
func (id CredentialID) String() string { return string(id) }
func (id CourseID) String() string     { return string(id) }
func (id TransferID) String() string   { return string(id) }
func (id ListID) String() string       { return string(id) }
func (id JobID) String() string        { return string(id) }

// IsNil checks - used for service-layer validation.

func (id SubjectID) IsNil() bool    { return id == "" }
func (id CredentialID) IsNil() bool { return id == "" }
func (id CourseID) IsNil() bool     { return id == "" }
func (id TransferID) IsNil() bool   { return id == "" }
func (id ListID) IsNil() bool       { return id == "" }
func (id JobID) IsNil() bool        { return id == "" }
