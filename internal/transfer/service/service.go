package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Issuer,Directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accredo/internal/audit"
	"accredo/internal/credential/issuer"
	credmodels "accredo/internal/credential/models"
	"accredo/internal/sentinel"
	"accredo/internal/transfer/metrics"
	"accredo/internal/transfer/models"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

// DefaultMinimumScore is the lowest 4.0-scale grade score eligible for
// transfer; a plain C.
const DefaultMinimumScore = 2.0

// Store persists transfer requests. See the store package for the error
// contract implementations must honor.
type Store interface {
	Insert(ctx context.Context, request models.TransferRequest) error
	FindByID(ctx context.Context, transferID id.TransferID) (models.TransferRequest, error)
	Update(ctx context.Context, request models.TransferRequest) error
	FindBlockingPair(ctx context.Context, source id.CredentialID, targetInstitution string) (models.TransferRequest, bool, error)
}

// Issuer reads credentials and mints the derived transfer credential on
// approval. Satisfied by the credential issuer service.
type Issuer interface {
	Get(ctx context.Context, credentialID id.CredentialID) (*credmodels.Credential, error)
	Issue(ctx context.Context, req issuer.IssueRequest) (*credmodels.Credential, error)
}

// Directory answers whether a student is known to the institution.
type Directory interface {
	Exists(ctx context.Context, subjectID id.SubjectID) (bool, error)
}

// AuditPublisher records review decisions. Satisfied by any audit.Publisher;
// emission failures are logged, never surfaced to the caller.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the credit transfer workflow: request intake with eligibility
// validation, then a registrar review that approves or rejects exactly once.
type Service struct {
	store     Store
	issuer    Issuer
	directory Directory
	minScore  float64
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   AuditPublisher
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches transfer metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditor attaches an audit publisher.
func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithMinimumScore overrides the transfer eligibility floor.
func WithMinimumScore(score float64) Option {
	return func(s *Service) {
		if score > 0 {
			s.minScore = score
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the transfer service. Store, issuer, and directory are
// required.
func NewService(store Store, issuer Issuer, directory Directory, opts ...Option) (*Service, error) {
	if store == nil || issuer == nil || directory == nil {
		return nil, fmt.Errorf("store, issuer, and directory are required")
	}
	s := &Service{
		store:     store,
		issuer:    issuer,
		directory: directory,
		minScore:  DefaultMinimumScore,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestInput is the intake form for a new transfer request. SourceCourse is
// optional; when present it must match the course the credential attests.
type RequestInput struct {
	StudentID          id.SubjectID
	SourceCredentialID id.CredentialID
	SourceCourse       id.CourseID
	TargetInstitution  string
	TargetCourse       string
}

// Request validates eligibility and records a pending transfer request.
//
// Checks run in a fixed order and fail fast: the student must be registered,
// the source credential must exist, be unrevoked, belong to the student, match
// the declared source course, and carry a passing grade; finally at most one
// pending-or-approved request may exist per (credential, target institution)
// pair.
func (s *Service) Request(ctx context.Context, input RequestInput) (*models.TransferRequest, error) {
	if input.StudentID.IsNil() || input.SourceCredentialID.IsNil() || input.TargetInstitution == "" {
		return nil, s.fail(dErrors.New(dErrors.CodeInvalidInput,
			"student id, source credential id, and target institution are required"))
	}

	known, err := s.directory.Exists(ctx, input.StudentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "directory lookup failed")
	}
	if !known {
		return nil, s.fail(dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("student %s is not registered", input.StudentID)))
	}

	cred, err := s.issuer.Get(ctx, input.SourceCredentialID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, s.fail(err)
		}
		return nil, err
	}
	if cred.Status == credmodels.StatusRevoked {
		return nil, s.fail(dErrors.New(dErrors.CodeRevoked,
			fmt.Sprintf("credential %s is revoked and cannot back a transfer", cred.ID)))
	}
	if cred.SubjectID != input.StudentID {
		return nil, s.fail(dErrors.New(dErrors.CodeSubjectMismatch,
			"source credential does not belong to the requesting student"))
	}

	courseID, _ := cred.Claims["course_id"].(string)
	if !input.SourceCourse.IsNil() && input.SourceCourse != id.CourseID(courseID) {
		return nil, s.fail(dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("source course %s does not match the credential's course %s",
				input.SourceCourse, courseID)))
	}

	grade, _ := cred.Claims["grade"].(string)
	score, ok := models.GradePoints(grade)
	if !ok {
		return nil, s.fail(dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("credential %s carries no recognizable grade", cred.ID)))
	}
	if score < s.minScore {
		return nil, s.fail(dErrors.New(dErrors.CodeGradeTooLow,
			fmt.Sprintf("grade %s (%.1f) is below the transfer minimum %.1f", grade, score, s.minScore)))
	}

	if _, exists, err := s.store.FindBlockingPair(ctx, input.SourceCredentialID, input.TargetInstitution); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transfer lookup failed")
	} else if exists {
		return nil, s.fail(dErrors.New(dErrors.CodeConflict,
			"an open or approved transfer already exists for this credential and institution"))
	}

	request := models.TransferRequest{
		ID:                 models.NewTransferID(),
		StudentID:          input.StudentID,
		SourceCredentialID: input.SourceCredentialID,
		SourceCourse:       id.CourseID(courseID),
		TargetInstitution:  input.TargetInstitution,
		TargetCourse:       input.TargetCourse,
		Status:             models.StatusPending,
		RequestedAt:        s.now().UTC(),
	}

	if err := s.store.Insert(ctx, request); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			// Lost the race against a concurrent request for the same pair.
			return nil, s.fail(dErrors.New(dErrors.CodeConflict,
				"an open or approved transfer already exists for this credential and institution"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transfer request could not be stored")
	}

	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
	s.emit(ctx, request, audit.ActionTransferRequested, "")
	s.logger.InfoContext(ctx, "transfer requested",
		"transfer_id", request.ID, "student_id", request.StudentID,
		"credential_id", request.SourceCredentialID, "target", request.TargetInstitution)
	return &request, nil
}

// Get returns the transfer request by id.
func (s *Service) Get(ctx context.Context, transferID id.TransferID) (*models.TransferRequest, error) {
	request, err := s.store.FindByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("transfer %s not found", transferID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transfer lookup failed")
	}
	return &request, nil
}

// Approve moves a pending request to approved and issues the derived transfer
// credential. The request stays pending if issuance fails, so the review can
// be retried without losing the decision.
func (s *Service) Approve(ctx context.Context, transferID id.TransferID, reviewer, note string) (*models.TransferRequest, error) {
	request, err := s.guardPending(ctx, transferID)
	if err != nil {
		return nil, err
	}

	source, err := s.issuer.Get(ctx, request.SourceCredentialID)
	if err != nil {
		return nil, err
	}

	period, _ := source.Claims["period"].(string)
	derived, err := s.issuer.Issue(ctx, issuer.IssueRequest{
		SubjectID:  request.StudentID,
		Course:     credmodels.CourseRef{CourseID: request.SourceCourse, Period: period},
		Type:       credmodels.CredentialTypeTransfer,
		IDOverride: derivedCredentialID(request.ID),
		Claims: credmodels.Claims{
			"source_credential_id": string(request.SourceCredentialID),
			"target_institution":   request.TargetInstitution,
			"target_course":        request.TargetCourse,
			"transfer_id":          string(request.ID),
			"grade":                source.Claims["grade"],
		},
	})
	if err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
		s.logger.ErrorContext(ctx, "derived credential issuance failed",
			"transfer_id", request.ID, "error", err)
		return nil, err
	}
	if derived == nil {
		// Conflict means a prior approval attempt already minted it.
		existing, getErr := s.issuer.Get(ctx, derivedCredentialID(request.ID))
		if getErr != nil {
			return nil, getErr
		}
		derived = existing
	}

	now := s.now().UTC()
	request.Status = models.StatusApproved
	request.ReviewedBy = reviewer
	request.ReviewNote = note
	request.DerivedCredentialID = derived.ID
	request.ReviewedAt = &now
	if err := s.store.Update(ctx, *request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transfer update failed")
	}

	if s.metrics != nil {
		s.metrics.RequestsApproved.Inc()
	}
	s.emit(ctx, *request, audit.ActionTransferApproved, note)
	s.logger.InfoContext(ctx, "transfer approved",
		"transfer_id", request.ID, "derived_credential_id", derived.ID, "reviewer", reviewer)
	return request, nil
}

// Reject moves a pending request to rejected. No credential is issued.
func (s *Service) Reject(ctx context.Context, transferID id.TransferID, reviewer, note string) (*models.TransferRequest, error) {
	request, err := s.guardPending(ctx, transferID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	request.Status = models.StatusRejected
	request.ReviewedBy = reviewer
	request.ReviewNote = note
	request.ReviewedAt = &now
	if err := s.store.Update(ctx, *request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transfer update failed")
	}

	if s.metrics != nil {
		s.metrics.RequestsRejected.Inc()
	}
	s.emit(ctx, *request, audit.ActionTransferRejected, note)
	s.logger.InfoContext(ctx, "transfer rejected", "transfer_id", request.ID, "reviewer", reviewer)
	return request, nil
}

// guardPending loads the request and enforces the single-review rule.
func (s *Service) guardPending(ctx context.Context, transferID id.TransferID) (*models.TransferRequest, error) {
	request, err := s.store.FindByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("transfer %s not found", transferID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transfer lookup failed")
	}
	if request.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeAlreadyProcessed,
			fmt.Sprintf("transfer %s was already %s", transferID, request.Status))
	}
	return &request, nil
}

// derivedCredentialID derives the deterministic id of the credential minted on
// approval, so a retried approval cannot mint a second one.
func derivedCredentialID(transferID id.TransferID) id.CredentialID {
	return id.CredentialID("vc_" + string(transferID))
}

func (s *Service) fail(err error) error {
	if s.metrics != nil {
		s.metrics.ValidationFailing.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
	}
	return err
}

func (s *Service) emit(ctx context.Context, request models.TransferRequest, action audit.Action, reason string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp: s.now().UTC(),
		SubjectID: request.StudentID,
		Target:    string(request.ID),
		Action:    action,
		Actor:     request.ReviewedBy,
		Reason:    reason,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", string(action),
			"transfer_id", request.ID,
			"error", err,
		)
	}
}
