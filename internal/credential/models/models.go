package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	id "accredo/pkg/domain"
)

// CredentialType identifies the kind of credential issued by the trust node.
type CredentialType string

const (
	// CredentialTypeCourseCompletion attests that a subject completed a course
	// in a given academic period.
	CredentialTypeCourseCompletion CredentialType = "CourseCompletion"

	// CredentialTypeTransfer is the derived credential issued when a credit
	// transfer request is approved.
	CredentialTypeTransfer CredentialType = "CreditTransfer"
)

// Status is the one-way credential lifecycle state.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Claims is an opaque claim set. Claims are immutable once the credential is
// issued; re-issuance creates a new versioned credential instead of mutating.
type Claims map[string]any

// CourseRef identifies the course completion being attested.
type CourseRef struct {
	CourseID id.CourseID
	Period   string
}

// Credential is the persisted attestation record. The proof lives alongside
// the claims so the stored document can be served to holders verbatim.
type Credential struct {
	ID              id.CredentialID `json:"id"`
	SubjectID       id.SubjectID    `json:"subject_id"`
	IssuerDID       string          `json:"issuer_did"`
	Type            CredentialType  `json:"type"`
	Claims          Claims          `json:"claims"`
	Proof           string          `json:"proof,omitempty"`
	RevocationList  id.ListID       `json:"revocation_list"`
	RevocationIndex uint64          `json:"revocation_index"`
	Status          Status          `json:"status"`
	IssuedAt        time.Time       `json:"issued_at"`
	RevokedAt       *time.Time      `json:"revoked_at,omitempty"`
	RevokeReason    string          `json:"revoke_reason,omitempty"`
}

// IsRevoked reports whether the credential has reached its terminal state.
func (c Credential) IsRevoked() bool {
	return c.Status == StatusRevoked
}

// DeriveCredentialID computes the deterministic credential id from the
// immutable issuance coordinates. Recomputing with the same inputs always
// yields the same id, which is what makes issuance idempotent across retries.
func DeriveCredentialID(issuerDID string, subject id.SubjectID, course id.CourseID, period string) id.CredentialID {
	seed := strings.Join([]string{issuerDID, subject.String(), course.String(), period}, "|")
	sum := blake2b.Sum256([]byte(seed))
	return id.CredentialID("vc_" + hex.EncodeToString(sum[:16]))
}

// VersionedID returns the id for the nth issuance of a base credential id.
// Version 1 is the bare base id; later versions append a -vN suffix.
func VersionedID(base id.CredentialID, version int) id.CredentialID {
	if version <= 1 {
		return base
	}
	return id.CredentialID(fmt.Sprintf("%s-v%d", base, version))
}

// BaseOf strips a version suffix, returning the base id shared by all
// versions of the same subject/course/period credential.
func BaseOf(credID id.CredentialID) id.CredentialID {
	s := credID.String()
	if i := strings.LastIndex(s, "-v"); i > 0 {
		if _, err := fmt.Sscanf(s[i:], "-v%d", new(int)); err == nil {
			return id.CredentialID(s[:i])
		}
	}
	return credID
}

// CanonicalPayload renders the byte sequence the issuer signs and verifiers
// check. encoding/json emits map keys in sorted order, so the output is stable
// for a given claim set.
func CanonicalPayload(credID id.CredentialID, subject id.SubjectID, claims Claims) ([]byte, error) {
	payload := struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
		Claims  Claims `json:"claims"`
	}{
		ID:      credID.String(),
		Subject: subject.String(),
		Claims:  claims,
	}
	return json.Marshal(payload)
}
