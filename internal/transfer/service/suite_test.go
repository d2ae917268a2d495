package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	credmodels "accredo/internal/credential/models"
	"accredo/internal/transfer/service/mocks"
	id "accredo/pkg/domain"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockStore     *mocks.MockStore
	mockIssuer    *mocks.MockIssuer
	mockDirectory *mocks.MockDirectory
	mockAuditor   *mocks.MockAuditPublisher
	service       *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockIssuer = mocks.NewMockIssuer(s.ctrl)
	s.mockDirectory = mocks.NewMockDirectory(s.ctrl)
	s.mockAuditor = mocks.NewMockAuditPublisher(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.service, err = NewService(
		s.mockStore,
		s.mockIssuer,
		s.mockDirectory,
		WithLogger(logger),
		WithAuditor(s.mockAuditor),
		WithClock(func() time.Time { return testNow }),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// activeCredential builds a plausible source credential for s2001.
func activeCredential(credID id.CredentialID, grade string) *credmodels.Credential {
	return &credmodels.Credential{
		ID:        credID,
		SubjectID: "s2001",
		IssuerDID: "did:web:registrar.example.edu",
		Type:      credmodels.CredentialTypeCourseCompletion,
		Claims: credmodels.Claims{
			"grade":     grade,
			"course_id": "CS301",
			"period":    "2567-1",
		},
		Status:   credmodels.StatusActive,
		IssuedAt: testNow.Add(-30 * 24 * time.Hour),
	}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
