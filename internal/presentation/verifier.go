package presentation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"accredo/internal/credential/models"
	"accredo/internal/didresolver"
	"accredo/internal/keycustody"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

// ChallengeValidator consumes one-time challenges.
type ChallengeValidator interface {
	Validate(ctx context.Context, token, domain string) bool
}

// StatusChecker reads revocation bits from the issuer's published list.
type StatusChecker interface {
	IsRevoked(ctx context.Context, listID id.ListID, index uint64) (bool, error)
}

// Verifier checks holder presentations: challenge freshness, the holder's
// proof-of-possession, and each embedded credential independently.
type Verifier struct {
	challenges ChallengeValidator
	resolver   didresolver.Resolver
	status     StatusChecker
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithLogger configures a logger for the verifier.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithClock injects a clock for deterministic expiry tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier creates a presentation verifier.
func NewVerifier(challenges ChallengeValidator, resolver didresolver.Resolver, status StatusChecker, opts ...Option) (*Verifier, error) {
	if challenges == nil || resolver == nil || status == nil {
		return nil, fmt.Errorf("challenges, resolver, and status checker are required")
	}
	v := &Verifier{
		challenges: challenges,
		resolver:   resolver,
		status:     status,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the presentation against a previously issued challenge.
//
// The challenge is consumed first; an invalid or expired challenge fails
// before any cryptographic work. A failed holder proof or credential check
// yields Valid=false with a reason, not an error: only infrastructure-class
// failures (unresolvable DIDs at the presentation level) surface as errors.
func (v *Verifier) Verify(ctx context.Context, pres Presentation, challengeToken, domain string) (*Result, error) {
	if pres.HolderDID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "holder DID is required")
	}

	if !v.challenges.Validate(ctx, challengeToken, domain) {
		return nil, dErrors.New(dErrors.CodeChallengeExpired,
			"challenge is unknown, expired, or bound to another domain")
	}

	result := &Result{
		Holder:      pres.HolderDID,
		Credentials: make([]CredentialResult, len(pres.Credentials)),
	}

	holderValid, holderReason, err := v.verifyHolderProof(ctx, pres, challengeToken, domain)
	if err != nil {
		return nil, err
	}
	result.HolderProofValid = holderValid
	result.HolderProofReason = holderReason

	// Each credential is checked independently; one failure never aborts the
	// others. Goroutines write to their own slot, and the group error stays
	// nil because verdicts are carried in the results.
	g, gctx := errgroup.WithContext(ctx)
	for i := range pres.Credentials {
		g.Go(func() error {
			result.Credentials[i] = v.verifyCredential(gctx, pres.Credentials[i])
			return nil
		})
	}
	_ = g.Wait()

	result.Valid = result.HolderProofValid
	for _, cr := range result.Credentials {
		if !cr.Valid {
			result.Valid = false
		}
	}
	return result, nil
}

// verifyHolderProof checks the proof-of-possession JWT. Resolution failures
// bubble up as errors (retryable issuer_unknown); a bad or mismatched proof is
// reported as invalid, not as an error.
func (v *Verifier) verifyHolderProof(ctx context.Context, pres Presentation, challengeToken, domain string) (bool, string, error) {
	doc, err := v.resolver.Resolve(ctx, pres.HolderDID)
	if err != nil {
		return false, "", err
	}
	keyEncoded := doc.FirstKey()
	if keyEncoded == "" {
		return false, "holder DID document has no verification method", nil
	}
	pub, err := keycustody.DecodePublicKey(keyEncoded)
	if err != nil {
		return false, "holder verification method is not a usable key", nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithAudience(domain),
		jwt.WithTimeFunc(v.now),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(pres.HolderProof, claims, func(*jwt.Token) (any, error) {
		return pub, nil
	}); err != nil {
		return false, fmt.Sprintf("holder proof rejected: %v", err), nil
	}

	if nonce, _ := claims["nonce"].(string); nonce != challengeToken {
		return false, "holder proof is not bound to this challenge", nil
	}
	return true, "", nil
}

// verifyCredential produces the independent verdict for one embedded credential.
func (v *Verifier) verifyCredential(ctx context.Context, cred models.Credential) CredentialResult {
	result := CredentialResult{CredentialID: cred.ID}

	doc, err := v.resolver.Resolve(ctx, cred.IssuerDID)
	if err != nil {
		result.Code = dErrors.CodeOf(err)
		result.Reason = fmt.Sprintf("issuer %s could not be resolved", cred.IssuerDID)
		return result
	}
	keyEncoded := doc.FirstKey()
	if keyEncoded == "" {
		result.Code = dErrors.CodeSignatureInvalid
		result.Reason = "issuer DID document has no verification method"
		return result
	}

	payload, err := models.CanonicalPayload(cred.ID, cred.SubjectID, cred.Claims)
	if err != nil {
		result.Code = dErrors.CodeSignatureInvalid
		result.Reason = "credential claims could not be canonicalized"
		return result
	}
	ok, err := keycustody.VerifyWithKey(keyEncoded, payload, cred.Proof)
	if err != nil || !ok {
		result.Code = dErrors.CodeSignatureInvalid
		result.Reason = "credential signature does not verify against the issuer key"
		return result
	}

	if expired, reason := v.isExpired(cred.Claims); expired {
		result.IsExpired = true
		result.Code = dErrors.CodeValidation
		result.Reason = reason
		return result
	}

	revoked, err := v.status.IsRevoked(ctx, cred.RevocationList, cred.RevocationIndex)
	if err != nil {
		result.Code = dErrors.CodeUnavailable
		result.Reason = "revocation status could not be checked"
		return result
	}
	if revoked {
		result.IsRevoked = true
		result.Code = dErrors.CodeRevoked
		result.Reason = "credential is revoked"
		return result
	}

	result.Valid = true
	return result
}

// isExpired honors an optional expires_at claim in RFC 3339 form.
func (v *Verifier) isExpired(claims models.Claims) (bool, string) {
	raw, ok := claims["expires_at"].(string)
	if !ok {
		return false, ""
	}
	expiresAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true, "credential carries a malformed expiry"
	}
	if v.now().After(expiresAt) {
		return true, "credential expired at " + raw
	}
	return false, ""
}
