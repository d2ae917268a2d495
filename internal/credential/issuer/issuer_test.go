package issuer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"accredo/internal/audit"
	"accredo/internal/credential/models"
	"accredo/internal/credential/store"
	"accredo/internal/keycustody"
	"accredo/internal/referencedata"
	"accredo/internal/revocation"
	dErrors "accredo/pkg/domain-errors"
)

const testIssuerDID = "did:web:registrar.example.edu"

type IssuerSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	registry *revocation.InMemoryRegistry
	custody  *keycustody.LocalCustody
	catalog  *referencedata.MemoryCatalog
	auditor  *audit.InMemoryStore
	service  *Service
}

func (s *IssuerSuite) SetupTest() {
	var err error
	s.store = store.NewInMemoryStore()
	s.registry = revocation.NewInMemoryRegistry()
	s.custody, err = keycustody.NewLocalCustody()
	require.NoError(s.T(), err)
	s.catalog = referencedata.NewMemoryCatalog()
	s.catalog.Put(referencedata.Course{ID: "CS101", Name: "Algorithms", Credits: 3, Active: true})
	s.auditor = audit.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service, err = NewService(s.store, s.registry, s.custody, testIssuerDID,
		WithLogger(logger),
		WithCatalog(s.catalog),
		WithAuditor(s.auditor),
	)
	require.NoError(s.T(), err)
}

func (s *IssuerSuite) issueRequest() IssueRequest {
	return IssueRequest{
		SubjectID: "s1001",
		Course:    models.CourseRef{CourseID: "CS101", Period: "2567-1"},
		Claims:    models.Claims{"grade": "A"},
	}
}

func (s *IssuerSuite) TestIssueCreatesSignedActiveCredential() {
	ctx := context.Background()

	cred, err := s.service.Issue(ctx, s.issueRequest())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), models.StatusActive, cred.Status)
	assert.Equal(s.T(), testIssuerDID, cred.IssuerDID)
	assert.Equal(s.T(), uint64(0), cred.RevocationIndex)
	assert.Equal(s.T(), "Algorithms", cred.Claims["course_name"])
	assert.Equal(s.T(), 3, cred.Claims["credits"])
	assert.Equal(s.T(), "A", cred.Claims["grade"])

	payload, err := models.CanonicalPayload(cred.ID, cred.SubjectID, cred.Claims)
	require.NoError(s.T(), err)
	assert.True(s.T(), s.custody.Verify(payload, cred.Proof))

	events := s.auditor.Events()
	require.Len(s.T(), events, 1)
	assert.Equal(s.T(), audit.ActionCredentialIssued, events[0].Action)
}

func (s *IssuerSuite) TestIssueIsDeterministicAndConflictsOnDuplicate() {
	ctx := context.Background()

	first, err := s.service.Issue(ctx, s.issueRequest())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.service.DeriveID("s1001", models.CourseRef{CourseID: "CS101", Period: "2567-1"}), first.ID)

	_, err = s.service.Issue(ctx, s.issueRequest())
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))

	// Exactly one record persisted.
	count, err := s.store.CountByIDPrefix(ctx, first.ID.String())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, count)
}

func (s *IssuerSuite) TestIssueHonorsIDOverride() {
	ctx := context.Background()

	req := s.issueRequest()
	req.IDOverride = "vc_custom-v2"

	cred, err := s.service.Issue(ctx, req)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "vc_custom-v2", cred.ID.String())
}

func (s *IssuerSuite) TestIssueFallsBackWhenCourseUnknown() {
	ctx := context.Background()

	req := s.issueRequest()
	req.Course.CourseID = "ART999"

	cred, err := s.service.Issue(ctx, req)
	require.NoError(s.T(), err, "issuance must not block on reference data")
	assert.Equal(s.T(), "ART999", cred.Claims["course_name"])
	_, hasCredits := cred.Claims["credits"]
	assert.False(s.T(), hasCredits)
}

func (s *IssuerSuite) TestIssueSigningFailurePersistsNothing() {
	ctx := context.Background()

	svc, err := NewService(s.store, s.registry, failingCustody{}, testIssuerDID,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(s.T(), err)

	_, err = svc.Issue(ctx, s.issueRequest())
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnavailable))

	derived := svc.DeriveID("s1001", models.CourseRef{CourseID: "CS101", Period: "2567-1"})
	exists, err := s.store.ExistsByID(ctx, derived)
	require.NoError(s.T(), err)
	assert.False(s.T(), exists)
}

func (s *IssuerSuite) TestRevokeByIDFlipsBitAndUpdatesStore() {
	ctx := context.Background()

	cred, err := s.service.Issue(ctx, s.issueRequest())
	require.NoError(s.T(), err)

	revoked, err := s.service.RevokeByID(ctx, cred.ID, "updated")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusRevoked, revoked.Status)
	assert.Equal(s.T(), "updated", revoked.RevokeReason)

	bit, err := s.registry.IsRevoked(ctx, cred.RevocationList, cred.RevocationIndex)
	require.NoError(s.T(), err)
	assert.True(s.T(), bit)

	stored, err := s.store.FindByID(ctx, cred.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusRevoked, stored.Status)
}

func (s *IssuerSuite) TestRevokeByIDNotFound() {
	_, err := s.service.RevokeByID(context.Background(), "vc_missing", "updated")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *IssuerSuite) TestRevokeByIDAlreadyRevoked() {
	ctx := context.Background()

	cred, err := s.service.Issue(ctx, s.issueRequest())
	require.NoError(s.T(), err)

	_, err = s.service.RevokeByID(ctx, cred.ID, "updated")
	require.NoError(s.T(), err)

	_, err = s.service.RevokeByID(ctx, cred.ID, "updated")
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *IssuerSuite) TestIssueAllocatesDistinctIndices() {
	ctx := context.Background()

	first, err := s.service.Issue(ctx, s.issueRequest())
	require.NoError(s.T(), err)

	req := s.issueRequest()
	req.SubjectID = "s1002"
	second, err := s.service.Issue(ctx, req)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), uint64(0), first.RevocationIndex)
	assert.Equal(s.T(), uint64(1), second.RevocationIndex)
	assert.Equal(s.T(), first.RevocationList, second.RevocationList)
}

type failingCustody struct{}

func (failingCustody) Sign(context.Context, []byte) (string, error) {
	return "", errors.New("hsm offline")
}
func (failingCustody) Verify([]byte, string) bool { return false }
func (failingCustody) PublicKeyMultibase() string { return "" }

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}
