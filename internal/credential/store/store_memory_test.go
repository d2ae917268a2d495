package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"accredo/internal/credential/models"
	"accredo/internal/sentinel"
	"accredo/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) credential() models.Credential {
	return models.Credential{
		ID:        models.VersionedID(models.DeriveCredentialID("did:web:registrar.example.edu", "s1001", "CS101", "2567-1"), 1),
		SubjectID: "s1001",
		IssuerDID: "did:web:registrar.example.edu",
		Type:      models.CredentialTypeCourseCompletion,
		Claims:    models.Claims{"grade": "A"},
		Status:    models.StatusActive,
		IssuedAt:  time.Now().UTC(),
	}
}

func (s *InMemoryStoreSuite) TestInsertAndFindByID() {
	ctx := context.Background()
	cred := s.credential()

	require.NoError(s.T(), s.store.Insert(ctx, cred))

	found, err := s.store.FindByID(ctx, cred.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), cred.ID, found.ID)
	assert.Equal(s.T(), models.StatusActive, found.Status)
}

func (s *InMemoryStoreSuite) TestInsertDuplicateFails() {
	ctx := context.Background()
	cred := s.credential()

	require.NoError(s.T(), s.store.Insert(ctx, cred))
	err := s.store.Insert(ctx, cred)

	require.Error(s.T(), err)
	assert.ErrorIs(s.T(), err, sentinel.ErrAlreadyExists)
}

func (s *InMemoryStoreSuite) TestConcurrentInsertOfSameIDYieldsOneRecord() {
	ctx := context.Background()
	cred := s.credential()

	res := testutil.RunConcurrent(16, func(int) error {
		return s.store.Insert(ctx, cred)
	})

	assert.Equal(s.T(), int32(1), res.Successes)
	assert.Equal(s.T(), int32(15), res.Conflicts)
}

func (s *InMemoryStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(context.Background(), "vc_missing")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateStatusRecordsRevocation() {
	ctx := context.Background()
	cred := s.credential()
	require.NoError(s.T(), s.store.Insert(ctx, cred))

	at := time.Now().UTC()
	require.NoError(s.T(), s.store.UpdateStatus(ctx, cred.ID, models.StatusRevoked, "updated", at))

	found, err := s.store.FindByID(ctx, cred.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusRevoked, found.Status)
	assert.Equal(s.T(), "updated", found.RevokeReason)
	require.NotNil(s.T(), found.RevokedAt)
	assert.Equal(s.T(), at, *found.RevokedAt)
}

func (s *InMemoryStoreSuite) TestCountAndFindByIDPrefix() {
	ctx := context.Background()
	base := models.DeriveCredentialID("did:web:registrar.example.edu", "s1001", "CS101", "2567-1")

	for version := 1; version <= 3; version++ {
		cred := s.credential()
		cred.ID = models.VersionedID(base, version)
		require.NoError(s.T(), s.store.Insert(ctx, cred))
	}

	count, err := s.store.CountByIDPrefix(ctx, base.String())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 3, count)

	found, err := s.store.FindByIDPrefix(ctx, base.String())
	require.NoError(s.T(), err)
	require.Len(s.T(), found, 3)
	assert.Equal(s.T(), base, found[0].ID)
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}
