package presentation

import (
	"accredo/internal/credential/models"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

// Presentation is a holder-submitted bundle: embedded credential documents
// plus the holder's own proof-of-possession token.
type Presentation struct {
	HolderDID   string              `json:"holder_did"`
	Credentials []models.Credential `json:"credentials"`
	// HolderProof is an EdDSA JWT signed by the holder key, binding the
	// challenge nonce and the verifier domain audience.
	HolderProof string `json:"holder_proof"`
}

// CredentialResult is the independent verdict for one embedded credential.
type CredentialResult struct {
	CredentialID id.CredentialID `json:"credential_id"`
	Valid        bool            `json:"valid"`
	IsRevoked    bool            `json:"is_revoked"`
	IsExpired    bool            `json:"is_expired"`
	Code         dErrors.Code    `json:"code,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// Result aggregates holder-proof and per-credential verdicts. The presentation
// is valid iff the holder proof is valid and every credential result is valid.
type Result struct {
	Valid             bool               `json:"valid"`
	Holder            string             `json:"holder"`
	HolderProofValid  bool               `json:"holder_proof_valid"`
	HolderProofReason string             `json:"holder_proof_reason,omitempty"`
	Credentials       []CredentialResult `json:"credentials"`
}
