// Package keycustody abstracts signing and verification so the trust node never
// handles raw key material outside a single implementation. The signature math
// itself is a collaborator concern; services only see opaque signatures.
package keycustody

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/multiformats/go-multibase"

	dErrors "accredo/pkg/domain-errors"
)

// ed25519 public keys are published as publicKeyMultibase with the 0xed01
// multicodec prefix, matching did:key / did:web conventions.
var ed25519Multicodec = []byte{0xed, 0x01}

// Custody is the signing collaborator contract.
type Custody interface {
	Sign(ctx context.Context, payload []byte) (string, error)
	Verify(payload []byte, signature string) bool
	PublicKeyMultibase() string
}

// LocalCustody signs with an in-process ed25519 key. Suitable for a single
// trust node; an HSM or KMS implementation satisfies the same interface.
type LocalCustody struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewLocalCustody generates a fresh ed25519 keypair.
func NewLocalCustody() (*LocalCustody, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &LocalCustody{priv: priv, pub: pub}, nil
}

// NewLocalCustodyFromSeed derives the keypair from a 32-byte seed.
// Used when the node key is provisioned externally.
func NewLocalCustodyFromSeed(seed []byte) (*LocalCustody, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("seed must be %d bytes", ed25519.SeedSize))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &LocalCustody{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Sign produces a base64 detached signature over the payload.
func (c *LocalCustody) Sign(_ context.Context, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "payload is required")
	}
	sig := ed25519.Sign(c.priv, payload)
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks a detached signature against the custody's own public key.
func (c *LocalCustody) Verify(payload []byte, signature string) bool {
	return verify(c.pub, payload, signature)
}

// PublicKeyMultibase returns the multibase-encoded public key for publication
// in the node's DID document.
func (c *LocalCustody) PublicKeyMultibase() string {
	encoded, err := multibase.Encode(multibase.Base58BTC, append(ed25519Multicodec, c.pub...))
	if err != nil {
		// Base58BTC is a registered encoding; this cannot fail for valid input.
		return ""
	}
	return encoded
}

// PrivateKey exposes the signing key for holder-proof construction in tests
// and local tooling. Production callers should only use Sign.
func (c *LocalCustody) PrivateKey() ed25519.PrivateKey {
	return c.priv
}

// VerifyWithKey checks a detached signature against a foreign issuer's
// multibase-encoded public key, as found in a resolved DID document.
func VerifyWithKey(publicKeyMultibase string, payload []byte, signature string) (bool, error) {
	pub, err := DecodePublicKey(publicKeyMultibase)
	if err != nil {
		return false, err
	}
	return verify(pub, payload, signature), nil
}

// DecodePublicKey decodes a publicKeyMultibase value into an ed25519 key.
func DecodePublicKey(publicKeyMultibase string) (ed25519.PublicKey, error) {
	_, raw, err := multibase.Decode(publicKeyMultibase)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed public key encoding")
	}
	if len(raw) == ed25519.PublicKeySize+len(ed25519Multicodec) &&
		raw[0] == ed25519Multicodec[0] && raw[1] == ed25519Multicodec[1] {
		raw = raw[len(ed25519Multicodec):]
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "public key is not ed25519")
	}
	return ed25519.PublicKey(raw), nil
}

func verify(pub ed25519.PublicKey, payload []byte, signature string) bool {
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, payload, sig)
}
