package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"accredo/internal/credential/issuer"
	credmodels "accredo/internal/credential/models"
	"accredo/internal/sentinel"
	"accredo/internal/transfer/models"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

const reviewTransferID = id.TransferID("xfer_11111111-2222-3333-4444-555555555555")

func pendingRequest() models.TransferRequest {
	return models.TransferRequest{
		ID:                 reviewTransferID,
		StudentID:          "s2001",
		SourceCredentialID: "vc_source",
		SourceCourse:       "CS301",
		TargetInstitution:  "Chulalongkorn University",
		TargetCourse:       "2110316",
		Status:             models.StatusPending,
		RequestedAt:        testNow.Add(-time.Hour),
	}
}

func (s *ServiceSuite) TestApproveIssuesDerivedCredential() {
	ctx := context.Background()
	derivedID := derivedCredentialID(reviewTransferID)

	s.mockStore.EXPECT().FindByID(ctx, reviewTransferID).Return(pendingRequest(), nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "B+"), nil)

	var issued issuer.IssueRequest
	s.mockIssuer.EXPECT().Issue(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req issuer.IssueRequest) (*credmodels.Credential, error) {
			issued = req
			return &credmodels.Credential{ID: req.IDOverride, SubjectID: req.SubjectID,
				Type: credmodels.CredentialTypeTransfer, Status: credmodels.StatusActive}, nil
		})

	var updated models.TransferRequest
	s.mockStore.EXPECT().Update(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, request models.TransferRequest) error {
			updated = request
			return nil
		})
	s.mockAuditor.EXPECT().Emit(ctx, gomock.Any())

	request, err := s.service.Approve(ctx, reviewTransferID, "registrar@example.edu", "equivalency confirmed")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), models.StatusApproved, request.Status)
	assert.Equal(s.T(), derivedID, request.DerivedCredentialID)
	assert.Equal(s.T(), "registrar@example.edu", request.ReviewedBy)
	require.NotNil(s.T(), request.ReviewedAt)
	assert.Equal(s.T(), testNow, *request.ReviewedAt)
	assert.Equal(s.T(), updated.Status, request.Status)

	// The derived credential is bound to the transfer and carries provenance.
	assert.Equal(s.T(), derivedID, issued.IDOverride)
	assert.Equal(s.T(), credmodels.CredentialTypeTransfer, issued.Type)
	assert.Equal(s.T(), "vc_source", issued.Claims["source_credential_id"])
	assert.Equal(s.T(), string(reviewTransferID), issued.Claims["transfer_id"])
}

func (s *ServiceSuite) TestApproveRetryReusesMintedCredential() {
	ctx := context.Background()
	derivedID := derivedCredentialID(reviewTransferID)

	s.mockStore.EXPECT().FindByID(ctx, reviewTransferID).Return(pendingRequest(), nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "B+"), nil)

	// A prior attempt minted the credential but crashed before the update.
	s.mockIssuer.EXPECT().Issue(ctx, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "credential already exists"))
	s.mockIssuer.EXPECT().Get(ctx, derivedID).
		Return(&credmodels.Credential{ID: derivedID, Status: credmodels.StatusActive}, nil)
	s.mockStore.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	s.mockAuditor.EXPECT().Emit(ctx, gomock.Any())

	request, err := s.service.Approve(ctx, reviewTransferID, "registrar@example.edu", "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), derivedID, request.DerivedCredentialID)
}

func (s *ServiceSuite) TestApproveStaysPendingWhenIssuanceFails() {
	ctx := context.Background()

	s.mockStore.EXPECT().FindByID(ctx, reviewTransferID).Return(pendingRequest(), nil)
	s.mockIssuer.EXPECT().Get(ctx, id.CredentialID("vc_source")).Return(activeCredential("vc_source", "B+"), nil)
	s.mockIssuer.EXPECT().Issue(ctx, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "signing unavailable"))

	// No Update expectation: the request must not be touched.
	_, err := s.service.Approve(ctx, reviewTransferID, "registrar@example.edu", "")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestApproveAlreadyReviewed() {
	ctx := context.Background()
	request := pendingRequest()
	request.Status = models.StatusRejected

	s.mockStore.EXPECT().FindByID(ctx, reviewTransferID).Return(request, nil)

	_, err := s.service.Approve(ctx, reviewTransferID, "registrar@example.edu", "")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeAlreadyProcessed))
}

func (s *ServiceSuite) TestRejectPendingRequest() {
	ctx := context.Background()

	s.mockStore.EXPECT().FindByID(ctx, reviewTransferID).Return(pendingRequest(), nil)
	var updated models.TransferRequest
	s.mockStore.EXPECT().Update(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, request models.TransferRequest) error {
			updated = request
			return nil
		})
	s.mockAuditor.EXPECT().Emit(ctx, gomock.Any())

	request, err := s.service.Reject(ctx, reviewTransferID, "registrar@example.edu", "no equivalent course")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), models.StatusRejected, request.Status)
	assert.Equal(s.T(), "no equivalent course", request.ReviewNote)
	assert.Empty(s.T(), request.DerivedCredentialID)
	assert.Equal(s.T(), models.StatusRejected, updated.Status)
}

func (s *ServiceSuite) TestRejectAlreadyApproved() {
	ctx := context.Background()
	request := pendingRequest()
	request.Status = models.StatusApproved

	s.mockStore.EXPECT().FindByID(ctx, reviewTransferID).Return(request, nil)

	_, err := s.service.Reject(ctx, reviewTransferID, "registrar@example.edu", "")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeAlreadyProcessed))
}

func (s *ServiceSuite) TestReviewUnknownTransfer() {
	ctx := context.Background()
	s.mockStore.EXPECT().FindByID(ctx, id.TransferID("xfer_missing")).
		Return(models.TransferRequest{}, fmt.Errorf("not here: %w", sentinel.ErrNotFound))

	_, err := s.service.Reject(ctx, "xfer_missing", "registrar@example.edu", "")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}
