package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accredo/internal/audit"
	"accredo/internal/credential/metrics"
	"accredo/internal/credential/models"
	"accredo/internal/credential/store"
	"accredo/internal/keycustody"
	"accredo/internal/platform/tracer"
	"accredo/internal/referencedata"
	"accredo/internal/revocation"
	"accredo/internal/sentinel"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

// IssueRequest carries the issuance coordinates and opaque claims.
// IDOverride is used for re-issuance, where the caller already knows the
// versioned id the new credential must take.
type IssueRequest struct {
	SubjectID  id.SubjectID
	Course     models.CourseRef
	Type       models.CredentialType
	Claims     models.Claims
	IDOverride id.CredentialID
}

// Service builds, issues, and revokes credentials. Issuance is deterministic
// and idempotent: the same coordinates always produce the same id, and a
// duplicate id fails with conflict so retrying callers can treat it as success.
type Service struct {
	store     store.Store
	registry  revocation.Registry
	custody   keycustody.Custody
	catalog   referencedata.Catalog
	issuerDID string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   audit.Publisher
	tracer    tracer.Tracer
}

// Option configures the issuer service.
type Option func(*Service)

// WithLogger configures a logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics configures Prometheus collectors for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditor configures an audit publisher for the service.
func WithAuditor(auditor audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithCatalog configures the reference-data catalog used to enrich claims.
// Issuance proceeds with raw identifiers when the catalog is absent or failing.
func WithCatalog(catalog referencedata.Catalog) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// WithTracer configures distributed tracing for issuance spans.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewService creates an issuer with the required collaborators.
func NewService(credStore store.Store, registry revocation.Registry, custody keycustody.Custody, issuerDID string, opts ...Option) (*Service, error) {
	if credStore == nil || registry == nil || custody == nil {
		return nil, fmt.Errorf("store, registry, and custody are required")
	}
	if issuerDID == "" {
		return nil, fmt.Errorf("issuer DID is required")
	}
	svc := &Service{
		store:     credStore,
		registry:  registry,
		custody:   custody,
		issuerDID: issuerDID,
		logger:    slog.Default(),
		tracer:    tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IssuerDID returns the DID this node issues under.
func (s *Service) IssuerDID() string {
	return s.issuerDID
}

// DeriveID exposes the deterministic id for the service's issuer DID.
func (s *Service) DeriveID(subjectID id.SubjectID, course models.CourseRef) id.CredentialID {
	return models.DeriveCredentialID(s.issuerDID, subjectID, course.CourseID, course.Period)
}

// Issue creates and persists a signed credential.
//
// The revocation slot is allocated before anything is persisted: a crash after
// allocation only burns an index, it never produces a credential without one.
// A duplicate id fails with conflict; idempotent callers treat that as success.
// Reference-data enrichment is best-effort and never blocks issuance.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.Credential, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "issuer.issue",
		tracer.String("subject_id", req.SubjectID.String()),
		tracer.String("course_id", req.Course.CourseID.String()),
	)
	var issueErr error
	defer func() { span.End(issueErr) }()

	if req.SubjectID.IsNil() {
		issueErr = dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
		return nil, issueErr
	}
	if req.Course.CourseID.IsNil() || req.Course.Period == "" {
		issueErr = dErrors.New(dErrors.CodeInvalidInput, "course ID and period are required")
		return nil, issueErr
	}

	credType := req.Type
	if credType == "" {
		credType = models.CredentialTypeCourseCompletion
	}

	credID := req.IDOverride
	if credID.IsNil() {
		credID = s.DeriveID(req.SubjectID, req.Course)
	}

	if exists, err := s.store.ExistsByID(ctx, credID); err != nil {
		issueErr = dErrors.Wrap(err, dErrors.CodeInternal, "check credential existence")
		return nil, issueErr
	} else if exists {
		s.countConflict()
		issueErr = dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("credential %s already issued", credID))
		return nil, issueErr
	}

	listID := listFor(req.Course)
	index, err := s.registry.Allocate(ctx, listID)
	if err != nil {
		s.countFailure("revocation_slot")
		issueErr = dErrors.Wrap(err, dErrors.CodeInternal, "allocate revocation slot")
		return nil, issueErr
	}

	claims := s.enrichClaims(ctx, req)

	payload, err := models.CanonicalPayload(credID, req.SubjectID, claims)
	if err != nil {
		s.countFailure("canonicalize")
		issueErr = dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize claims")
		return nil, issueErr
	}

	proof, err := s.custody.Sign(ctx, payload)
	if err != nil {
		s.countFailure("signing")
		s.logger.ErrorContext(ctx, "credential signing failed",
			"credential_id", credID.String(),
			"error", err,
		)
		issueErr = dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance failed: signing unavailable")
		return nil, issueErr
	}

	credential := models.Credential{
		ID:              credID,
		SubjectID:       req.SubjectID,
		IssuerDID:       s.issuerDID,
		Type:            credType,
		Claims:          claims,
		Proof:           proof,
		RevocationList:  listID,
		RevocationIndex: index,
		Status:          models.StatusActive,
		IssuedAt:        time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, credential); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			s.countConflict()
			issueErr = dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("credential %s already issued", credID))
			return nil, issueErr
		}
		s.countFailure("store")
		issueErr = dErrors.Wrap(err, dErrors.CodeInternal, "persist credential")
		return nil, issueErr
	}

	s.emitAudit(ctx, audit.Event{
		SubjectID: credential.SubjectID,
		Target:    credential.ID.String(),
		Action:    audit.ActionCredentialIssued,
	})
	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
		s.metrics.IssueDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}
	span.SetAttributes(tracer.String("credential_id", credID.String()))

	return &credential, nil
}

// Get retrieves a stored credential.
func (s *Service) Get(ctx context.Context, credID id.CredentialID) (*models.Credential, error) {
	cred, err := s.store.FindByID(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("credential %s does not exist", credID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load credential")
	}
	return &cred, nil
}

// RevokeByID revokes an active credential.
//
// The registry bit is flipped before the store status update: a crash between
// the two leaves the published list more restrictive than the store, never
// less. Retrying the revocation converges both.
func (s *Service) RevokeByID(ctx context.Context, credID id.CredentialID, reason string) (*models.Credential, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "issuer.revoke",
		tracer.String("credential_id", credID.String()),
	)
	var revokeErr error
	defer func() { span.End(revokeErr) }()

	cred, err := s.store.FindByID(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			revokeErr = dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("credential %s does not exist", credID))
			return nil, revokeErr
		}
		revokeErr = dErrors.Wrap(err, dErrors.CodeInternal, "load credential")
		return nil, revokeErr
	}
	if cred.IsRevoked() {
		revokeErr = dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("credential %s is already revoked", credID))
		return nil, revokeErr
	}

	if err := s.registry.SetRevoked(ctx, cred.RevocationList, cred.RevocationIndex); err != nil {
		revokeErr = dErrors.Wrap(err, dErrors.CodeInternal, "set revocation bit")
		return nil, revokeErr
	}

	now := time.Now().UTC()
	if err := s.store.UpdateStatus(ctx, credID, models.StatusRevoked, reason, now); err != nil {
		revokeErr = dErrors.Wrap(err, dErrors.CodeInternal, "update credential status")
		return nil, revokeErr
	}

	cred.Status = models.StatusRevoked
	cred.RevokedAt = &now
	cred.RevokeReason = reason

	s.emitAudit(ctx, audit.Event{
		SubjectID: cred.SubjectID,
		Target:    cred.ID.String(),
		Action:    audit.ActionCredentialRevoked,
		Reason:    reason,
	})
	if s.metrics != nil {
		s.metrics.CredentialsRevoked.Inc()
		s.metrics.RevocationDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}

	return &cred, nil
}

// enrichClaims copies the request claims and adds catalog reference data.
// Any catalog failure falls back to raw identifiers: an unavailable reference
// service must never block issuance.
func (s *Service) enrichClaims(ctx context.Context, req IssueRequest) models.Claims {
	claims := make(models.Claims, len(req.Claims)+3)
	for k, v := range req.Claims {
		claims[k] = v
	}
	claims["course_id"] = req.Course.CourseID.String()
	claims["period"] = req.Course.Period

	if s.catalog == nil {
		return claims
	}
	course, err := s.catalog.GetCourse(ctx, req.Course.CourseID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.CatalogFallbacks.Inc()
		}
		s.logger.WarnContext(ctx, "course catalog lookup failed, issuing with raw identifiers",
			"course_id", req.Course.CourseID.String(),
			"error", err,
		)
		claims["course_name"] = req.Course.CourseID.String()
		return claims
	}
	claims["course_name"] = course.Name
	claims["credits"] = course.Credits
	return claims
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", string(event.Action),
			"target", event.Target,
			"error", err,
		)
	}
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.IssuanceConflicts.Inc()
	}
}

func (s *Service) countFailure(reason string) {
	if s.metrics != nil {
		s.metrics.IssuanceFailures.WithLabelValues(reason).Inc()
	}
}

// listFor keys revocation lists by academic period so each term's list fills
// and exhausts independently.
func listFor(course models.CourseRef) id.ListID {
	if course.Period == "" {
		return "default"
	}
	return id.ListID(course.Period)
}
