package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "accredo/pkg/domain"
)

// Status is the transfer request lifecycle state. pending is the only
// non-terminal state; approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// TransferRequest is a student's request to transfer credit earned at this
// institution to a target institution, backed by a source credential.
type TransferRequest struct {
	ID                  id.TransferID   `json:"id"`
	StudentID           id.SubjectID    `json:"student_id"`
	SourceCredentialID  id.CredentialID `json:"source_credential_id"`
	SourceCourse        id.CourseID     `json:"source_course"`
	TargetInstitution   string          `json:"target_institution"`
	TargetCourse        string          `json:"target_course,omitempty"`
	Status              Status          `json:"status"`
	ReviewedBy          string          `json:"reviewed_by,omitempty"`
	ReviewNote          string          `json:"review_note,omitempty"`
	DerivedCredentialID id.CredentialID `json:"derived_credential_id,omitempty"`
	RequestedAt         time.Time       `json:"requested_at"`
	ReviewedAt          *time.Time      `json:"reviewed_at,omitempty"`
}

// IsTerminal reports whether the request has been reviewed.
func (r TransferRequest) IsTerminal() bool {
	return r.Status != StatusPending
}

// Blocking reports whether this request blocks a new request for the same
// (source credential, target institution) pair. Pending and approved requests
// block; a rejected request may be retried.
func (r TransferRequest) Blocking() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// NewTransferID generates a traceable transfer request id.
func NewTransferID() id.TransferID {
	return id.TransferID("xfer_" + uuid.NewString())
}

// gradePoints maps letter grades to 4.0-scale quality points.
var gradePoints = map[string]float64{
	"A+": 4.0, "A": 4.0, "A-": 3.7,
	"B+": 3.3, "B": 3.0, "B-": 2.7,
	"C+": 2.3, "C": 2.0, "C-": 1.7,
	"D+": 1.3, "D": 1.0, "D-": 0.7,
	"F": 0.0,
}

// GradePoints converts a letter grade to its quality score.
// The second return is false for unknown grades.
func GradePoints(grade string) (float64, bool) {
	points, ok := gradePoints[strings.ToUpper(strings.TrimSpace(grade))]
	return points, ok
}
