// Package didresolver resolves decentralized identifiers to their published
// verification methods. The full DID resolution protocol is out of scope; this
// covers the did:web well-known fetch plus a static resolver for trust anchors.
package didresolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	dErrors "accredo/pkg/domain-errors"
)

// VerificationMethod is a key published in a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller,omitempty"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Document is the subset of a DID document the verifier needs.
type Document struct {
	ID                  string               `json:"id"`
	VerificationMethods []VerificationMethod `json:"verificationMethod"`
}

// FirstKey returns the first usable verification key, or an empty string.
func (d Document) FirstKey() string {
	for _, vm := range d.VerificationMethods {
		if vm.PublicKeyMultibase != "" {
			return vm.PublicKeyMultibase
		}
	}
	return ""
}

// Resolver is the DID resolution collaborator contract.
// Network-class failures surface as the retryable issuer_unknown code; a
// resolvable document with no usable method is the caller's signature problem.
type Resolver interface {
	Resolve(ctx context.Context, did string) (Document, error)
}

// StaticResolver serves documents from a fixed in-memory table. Used for
// locally trusted issuers and in tests.
type StaticResolver struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewStaticResolver constructs an empty static resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{docs: make(map[string]Document)}
}

// Register publishes a DID with a single ed25519 verification method.
func (r *StaticResolver) Register(did, publicKeyMultibase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[did] = Document{
		ID: did,
		VerificationMethods: []VerificationMethod{{
			ID:                 did + "#key-1",
			Type:               "Ed25519VerificationKey2020",
			Controller:         did,
			PublicKeyMultibase: publicKeyMultibase,
		}},
	}
}

// Resolve returns the registered document or issuer_unknown.
func (r *StaticResolver) Resolve(_ context.Context, did string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if doc, ok := r.docs[did]; ok {
		return doc, nil
	}
	return Document{}, dErrors.New(dErrors.CodeIssuerUnknown,
		fmt.Sprintf("no DID document for %s", did))
}

// webURL maps a did:web identifier to its well-known document URL.
func webURL(did string) (string, error) {
	const prefix = "did:web:"
	if !strings.HasPrefix(did, prefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "not a did:web identifier")
	}
	rest := strings.TrimPrefix(did, prefix)
	if rest == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "empty did:web identifier")
	}
	// Colons after the host map to path segments; %3A ports are unescaped.
	parts := strings.Split(rest, ":")
	host := strings.ReplaceAll(parts[0], "%3A", ":")
	if len(parts) == 1 {
		return "https://" + host + "/.well-known/did.json", nil
	}
	return "https://" + host + "/" + strings.Join(parts[1:], "/") + "/did.json", nil
}
