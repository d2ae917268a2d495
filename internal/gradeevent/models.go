package gradeevent

import (
	id "accredo/pkg/domain"
)

// Kind discriminates the grade event stream emitted by the student
// information system.
type Kind string

const (
	KindRecorded  Kind = "recorded"
	KindUpdated   Kind = "updated"
	KindCancelled Kind = "cancelled"
)

// GradeEvent is one delivery from the grade stream. Deliveries may repeat;
// processing any event twice must leave the same state as processing it once.
type GradeEvent struct {
	EventID   string       `json:"event_id"`
	Kind      Kind         `json:"kind"`
	SubjectID id.SubjectID `json:"subject_id"`
	CourseID  id.CourseID  `json:"course_id"`
	Period    string       `json:"period"`
	Grade     string       `json:"grade"`
}

// Result reports what processing an event did.
type Result struct {
	// CredentialID is the credential the event resolved to: the issued or
	// existing credential for recorded/updated, the revoked one for cancelled.
	CredentialID id.CredentialID `json:"credential_id,omitempty"`
	// Changed is false when the event was a redelivery or had nothing to do.
	Changed bool `json:"changed"`
}
