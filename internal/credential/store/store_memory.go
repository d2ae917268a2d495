package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"accredo/internal/credential/models"
	"accredo/internal/sentinel"
	id "accredo/pkg/domain"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
// It is safe for concurrent access but does not persist across process restarts.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]models.Credential
}

// NewInMemoryStore constructs an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[id.CredentialID]models.Credential)}
}

// Insert stores a new credential, failing on a duplicate id.
func (s *InMemoryStore) Insert(_ context.Context, credential models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[credential.ID]; exists {
		return fmt.Errorf("credential %s: %w", credential.ID, sentinel.ErrAlreadyExists)
	}
	s.credentials[credential.ID] = credential
	return nil
}

// FindByID retrieves a credential by id or returns sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, credID id.CredentialID) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cred, ok := s.credentials[credID]; ok {
		return cred, nil
	}
	return models.Credential{}, fmt.Errorf("credential %s: %w", credID, sentinel.ErrNotFound)
}

// ExistsByID reports whether a credential with the given id is persisted.
func (s *InMemoryStore) ExistsByID(_ context.Context, credID id.CredentialID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.credentials[credID]
	return ok, nil
}

// UpdateStatus transitions a credential's status. The revocation timestamp and
// reason are recorded only on the active→revoked transition.
func (s *InMemoryStore) UpdateStatus(_ context.Context, credID id.CredentialID, status models.Status, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[credID]
	if !ok {
		return fmt.Errorf("credential %s: %w", credID, sentinel.ErrNotFound)
	}
	cred.Status = status
	if status == models.StatusRevoked {
		cred.RevokedAt = &at
		cred.RevokeReason = reason
	}
	s.credentials[credID] = cred
	return nil
}

// CountByIDPrefix counts credentials whose id starts with the given prefix.
func (s *InMemoryStore) CountByIDPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for credID := range s.credentials {
		if strings.HasPrefix(credID.String(), prefix) {
			count++
		}
	}
	return count, nil
}

// FindByIDPrefix returns credentials whose id starts with the given prefix,
// ordered by id for deterministic version scans.
func (s *InMemoryStore) FindByIDPrefix(_ context.Context, prefix string) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Credential
	for credID, cred := range s.credentials {
		if strings.HasPrefix(credID.String(), prefix) {
			out = append(out, cred)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
