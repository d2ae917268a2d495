package service

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	credmodels "accredo/internal/credential/models"
	"accredo/internal/sentinel"
	"accredo/internal/transfer/models"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

func (s *ServiceSuite) validInput() RequestInput {
	return RequestInput{
		StudentID:          "s2001",
		SourceCredentialID: "vc_source",
		TargetInstitution:  "Chulalongkorn University",
		TargetCourse:       "2110316",
	}
}

func (s *ServiceSuite) TestRequestHappyPath() {
	ctx := context.Background()
	input := s.validInput()

	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "B+"), nil)
	s.mockStore.EXPECT().FindBlockingPair(ctx, id.CredentialID("vc_source"), input.TargetInstitution).
		Return(models.TransferRequest{}, false, nil)

	var stored models.TransferRequest
	s.mockStore.EXPECT().Insert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, request models.TransferRequest) error {
			stored = request
			return nil
		})
	s.mockAuditor.EXPECT().Emit(ctx, gomock.Any())

	request, err := s.service.Request(ctx, input)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), models.StatusPending, request.Status)
	assert.Equal(s.T(), id.CourseID("CS301"), request.SourceCourse)
	assert.Equal(s.T(), testNow, request.RequestedAt)
	assert.Contains(s.T(), string(request.ID), "xfer_")
	assert.Equal(s.T(), stored.ID, request.ID)
}

func (s *ServiceSuite) TestRequestUnknownStudent() {
	ctx := context.Background()
	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(false, nil)

	_, err := s.service.Request(ctx, s.validInput())
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRequestMissingCredential() {
	ctx := context.Background()
	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "credential vc_source not found"))

	_, err := s.service.Request(ctx, s.validInput())
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRequestRevokedCredential() {
	ctx := context.Background()
	cred := activeCredential("vc_source", "A")
	cred.Status = credmodels.StatusRevoked

	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(cred, nil)

	_, err := s.service.Request(ctx, s.validInput())
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeRevoked))
}

func (s *ServiceSuite) TestRequestSubjectMismatch() {
	ctx := context.Background()
	cred := activeCredential("vc_source", "A")
	cred.SubjectID = "s9999"

	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(cred, nil)

	_, err := s.service.Request(ctx, s.validInput())
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeSubjectMismatch))
}

func (s *ServiceSuite) TestRequestGradeTooLow() {
	ctx := context.Background()
	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "C-"), nil)

	_, err := s.service.Request(ctx, s.validInput())
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeGradeTooLow))
}

func (s *ServiceSuite) TestRequestBoundaryGradePasses() {
	ctx := context.Background()
	input := s.validInput()

	// A plain C sits exactly on the 2.0 floor and is eligible.
	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "C"), nil)
	s.mockStore.EXPECT().FindBlockingPair(ctx, id.CredentialID("vc_source"), input.TargetInstitution).
		Return(models.TransferRequest{}, false, nil)
	s.mockStore.EXPECT().Insert(ctx, gomock.Any()).Return(nil)
	s.mockAuditor.EXPECT().Emit(ctx, gomock.Any())

	request, err := s.service.Request(ctx, input)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusPending, request.Status)
}

func (s *ServiceSuite) TestRequestSourceCourseMismatch() {
	ctx := context.Background()
	input := s.validInput()
	input.SourceCourse = "MATH201"

	// The credential attests CS301; a declared course that disagrees is rejected.
	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "A"), nil)

	_, err := s.service.Request(ctx, input)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRequestSourceCourseMatchPasses() {
	ctx := context.Background()
	input := s.validInput()
	input.SourceCourse = "CS301"

	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "A"), nil)
	s.mockStore.EXPECT().FindBlockingPair(ctx, id.CredentialID("vc_source"), input.TargetInstitution).
		Return(models.TransferRequest{}, false, nil)
	s.mockStore.EXPECT().Insert(ctx, gomock.Any()).Return(nil)
	s.mockAuditor.EXPECT().Emit(ctx, gomock.Any())

	request, err := s.service.Request(ctx, input)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id.CourseID("CS301"), request.SourceCourse)
}

func (s *ServiceSuite) TestRequestSucceedsWhenAuditEmitFails() {
	ctx := context.Background()
	input := s.validInput()

	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "A"), nil)
	s.mockStore.EXPECT().FindBlockingPair(ctx, id.CredentialID("vc_source"), input.TargetInstitution).
		Return(models.TransferRequest{}, false, nil)
	s.mockStore.EXPECT().Insert(ctx, gomock.Any()).Return(nil)
	s.mockAuditor.EXPECT().Emit(ctx, gomock.Any()).Return(fmt.Errorf("audit sink down"))

	request, err := s.service.Request(ctx, input)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusPending, request.Status)
}

func (s *ServiceSuite) TestRequestUnrecognizableGrade() {
	ctx := context.Background()
	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "PASS"), nil)

	_, err := s.service.Request(ctx, s.validInput())
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRequestDuplicatePair() {
	ctx := context.Background()
	input := s.validInput()

	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "A"), nil)
	s.mockStore.EXPECT().FindBlockingPair(ctx, id.CredentialID("vc_source"), input.TargetInstitution).
		Return(models.TransferRequest{Status: models.StatusPending}, true, nil)

	_, err := s.service.Request(ctx, input)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRequestLosesInsertRace() {
	ctx := context.Background()
	input := s.validInput()

	s.mockDirectory.EXPECT().Exists(ctx, id.SubjectID("s2001")).Return(true, nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "A"), nil)
	s.mockStore.EXPECT().FindBlockingPair(ctx, id.CredentialID("vc_source"), input.TargetInstitution).
		Return(models.TransferRequest{}, false, nil)
	s.mockStore.EXPECT().Insert(ctx, gomock.Any()).
		Return(fmt.Errorf("pair taken: %w", sentinel.ErrAlreadyExists))

	_, err := s.service.Request(ctx, input)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRequestMissingFields() {
	_, err := s.service.Request(context.Background(), RequestInput{StudentID: "s2001"})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
