package gradeevent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"accredo/internal/credential/issuer"
	"accredo/internal/credential/models"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

// Issuer is the slice of the credential issuer the processor needs.
type Issuer interface {
	DeriveID(subjectID id.SubjectID, course models.CourseRef) id.CredentialID
	Issue(ctx context.Context, req issuer.IssueRequest) (*models.Credential, error)
	Get(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	RevokeByID(ctx context.Context, credentialID id.CredentialID, reason string) (*models.Credential, error)
}

// Directory provisions subjects on first contact.
type Directory interface {
	EnsureSubject(ctx context.Context, subjectID id.SubjectID) (bool, error)
}

// Index exposes the version scans the processor needs over issued credentials.
// Satisfied by the credential store.
type Index interface {
	CountByIDPrefix(ctx context.Context, prefix string) (int, error)
	FindByIDPrefix(ctx context.Context, prefix string) ([]models.Credential, error)
}

// Processor applies grade events to the credential ledger. Every path is safe
// under redelivery: deterministic ids make duplicate issuance a conflict the
// processor absorbs, and revocations of already-revoked credentials are no-ops.
type Processor struct {
	issuer    Issuer
	directory Directory
	index     Index
	logger    *slog.Logger
}

// Option configures the Processor.
type Option func(*Processor)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a grade event processor.
func NewProcessor(iss Issuer, directory Directory, index Index, opts ...Option) (*Processor, error) {
	if iss == nil || directory == nil || index == nil {
		return nil, fmt.Errorf("issuer, directory, and index are required")
	}
	p := &Processor{issuer: iss, directory: directory, index: index, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process dispatches one event. Unknown kinds fail with invalid_input.
func (p *Processor) Process(ctx context.Context, event GradeEvent) (*Result, error) {
	if event.SubjectID.IsNil() || event.CourseID.IsNil() || event.Period == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"subject id, course id, and period are required")
	}

	switch event.Kind {
	case KindRecorded:
		return p.recorded(ctx, event)
	case KindUpdated:
		return p.updated(ctx, event)
	case KindCancelled:
		return p.cancelled(ctx, event)
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("unknown grade event kind %q", event.Kind))
	}
}

// recorded provisions the subject and issues the course-completion credential.
// A redelivered event hits the deterministic id and is absorbed as success.
func (p *Processor) recorded(ctx context.Context, event GradeEvent) (*Result, error) {
	if event.Grade == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "grade is required")
	}

	created, err := p.directory.EnsureSubject(ctx, event.SubjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "subject provisioning failed")
	}
	if created {
		p.logger.InfoContext(ctx, "subject auto-provisioned",
			"subject_id", event.SubjectID, "event_id", event.EventID)
	}

	cred, err := p.issuer.Issue(ctx, p.issueRequest(event, ""))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			base := p.issuer.DeriveID(event.SubjectID, courseRef(event))
			return &Result{CredentialID: base, Changed: false}, nil
		}
		return nil, err
	}
	return &Result{CredentialID: cred.ID, Changed: true}, nil
}

// updated revokes the currently active version and issues the next one.
//
// A crash between the revoke and the issue is recovered on retry: the revoke
// is already done, and the issue lands on the next free version id. A full
// redelivery after success is detected by the latest version already carrying
// the event's grade.
func (p *Processor) updated(ctx context.Context, event GradeEvent) (*Result, error) {
	if event.Grade == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "grade is required")
	}

	base := p.issuer.DeriveID(event.SubjectID, courseRef(event))
	versions, err := p.versions(ctx, base)
	if err != nil {
		return nil, err
	}

	if latest := latestActive(versions); latest != nil {
		if grade, _ := latest.Claims["grade"].(string); grade == event.Grade {
			// Redelivery of an update already applied.
			return &Result{CredentialID: latest.ID, Changed: false}, nil
		}
		if _, err := p.issuer.RevokeByID(ctx, latest.ID, "updated"); err != nil &&
			!dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
	}

	next := models.VersionedID(base, len(versions)+1)
	cred, err := p.issuer.Issue(ctx, p.issueRequest(event, next))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return &Result{CredentialID: next, Changed: false}, nil
		}
		return nil, err
	}

	p.logger.InfoContext(ctx, "grade updated",
		"subject_id", event.SubjectID, "course_id", event.CourseID,
		"credential_id", cred.ID, "event_id", event.EventID)
	return &Result{CredentialID: cred.ID, Changed: true}, nil
}

// cancelled revokes the newest active version, if any. A course with nothing
// active left is already in the cancelled state, so the event is a no-op.
func (p *Processor) cancelled(ctx context.Context, event GradeEvent) (*Result, error) {
	base := p.issuer.DeriveID(event.SubjectID, courseRef(event))
	versions, err := p.versions(ctx, base)
	if err != nil {
		return nil, err
	}

	latest := latestActive(versions)
	if latest == nil {
		return &Result{Changed: false}, nil
	}

	if _, err := p.issuer.RevokeByID(ctx, latest.ID, "cancelled"); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return &Result{CredentialID: latest.ID, Changed: false}, nil
		}
		return nil, err
	}

	p.logger.InfoContext(ctx, "enrollment cancelled",
		"subject_id", event.SubjectID, "course_id", event.CourseID,
		"credential_id", latest.ID, "event_id", event.EventID)
	return &Result{CredentialID: latest.ID, Changed: true}, nil
}

// courseRef projects the event onto the issuer's course reference, which seeds
// the deterministic credential id.
func courseRef(event GradeEvent) models.CourseRef {
	return models.CourseRef{CourseID: event.CourseID, Period: event.Period}
}

func (p *Processor) issueRequest(event GradeEvent, override id.CredentialID) issuer.IssueRequest {
	return issuer.IssueRequest{
		SubjectID:  event.SubjectID,
		Course:     courseRef(event),
		Type:       models.CredentialTypeCourseCompletion,
		Claims:     models.Claims{"grade": event.Grade},
		IDOverride: override,
	}
}

// versions loads all issuances sharing the base id, filtered against ids of
// unrelated credentials that merely share a hash prefix (impossible for the
// fixed-width derived ids, but cheap to enforce).
func (p *Processor) versions(ctx context.Context, base id.CredentialID) ([]models.Credential, error) {
	found, err := p.index.FindByIDPrefix(ctx, base.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "version scan failed")
	}
	versions := found[:0]
	for _, cred := range found {
		if models.BaseOf(cred.ID) == base {
			versions = append(versions, cred)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versionOf(versions[i].ID) < versionOf(versions[j].ID)
	})
	return versions, nil
}

// latestActive returns the newest non-revoked version, scanning highest first.
func latestActive(versions []models.Credential) *models.Credential {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Status == models.StatusActive {
			return &versions[i]
		}
	}
	return nil
}

func versionOf(credID id.CredentialID) int {
	s := credID.String()
	i := strings.LastIndex(s, "-v")
	if i < 0 {
		return 1
	}
	var n int
	if _, err := fmt.Sscanf(s[i:], "-v%d", &n); err != nil {
		return 1
	}
	return n
}
