package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "accredo/pkg/domain"
)

func TestDeriveCredentialIDIsDeterministic(t *testing.T) {
	a := DeriveCredentialID("did:web:registrar.example.edu", "s1001", "CS101", "2567-1")
	b := DeriveCredentialID("did:web:registrar.example.edu", "s1001", "CS101", "2567-1")

	assert.Equal(t, a, b)
	assert.True(t, len(a.String()) > 3)
	assert.Contains(t, a.String(), "vc_")
}

func TestDeriveCredentialIDDiffersPerCoordinate(t *testing.T) {
	base := DeriveCredentialID("did:web:registrar.example.edu", "s1001", "CS101", "2567-1")

	assert.NotEqual(t, base, DeriveCredentialID("did:web:other.example.edu", "s1001", "CS101", "2567-1"))
	assert.NotEqual(t, base, DeriveCredentialID("did:web:registrar.example.edu", "s1002", "CS101", "2567-1"))
	assert.NotEqual(t, base, DeriveCredentialID("did:web:registrar.example.edu", "s1001", "CS102", "2567-1"))
	assert.NotEqual(t, base, DeriveCredentialID("did:web:registrar.example.edu", "s1001", "CS101", "2567-2"))
}

func TestVersionedID(t *testing.T) {
	base := id.CredentialID("vc_abc")

	assert.Equal(t, base, VersionedID(base, 0))
	assert.Equal(t, base, VersionedID(base, 1))
	assert.Equal(t, id.CredentialID("vc_abc-v2"), VersionedID(base, 2))
	assert.Equal(t, id.CredentialID("vc_abc-v7"), VersionedID(base, 7))
}

func TestBaseOfStripsVersionSuffix(t *testing.T) {
	assert.Equal(t, id.CredentialID("vc_abc"), BaseOf("vc_abc-v2"))
	assert.Equal(t, id.CredentialID("vc_abc"), BaseOf("vc_abc"))
	// A non-numeric suffix is part of the id, not a version marker.
	assert.Equal(t, id.CredentialID("vc_abc-vx"), BaseOf("vc_abc-vx"))
}

func TestCanonicalPayloadIsStable(t *testing.T) {
	claims := Claims{"grade": "A", "course_name": "Algorithms", "credits": 3}

	first, err := CanonicalPayload("vc_abc", "s1001", claims)
	require.NoError(t, err)
	second, err := CanonicalPayload("vc_abc", "s1001", claims)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
