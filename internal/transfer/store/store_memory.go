package store

import (
	"context"
	"fmt"
	"sync"

	"accredo/internal/sentinel"
	"accredo/internal/transfer/models"
	id "accredo/pkg/domain"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.TransferID]models.TransferRequest
}

// NewInMemoryStore constructs an empty in-memory transfer store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.TransferID]models.TransferRequest)}
}

// Insert stores a new request. The pair invariant is checked under the same
// lock as the write, so two concurrent requests for one pair cannot both land.
func (s *InMemoryStore) Insert(_ context.Context, request models.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[request.ID]; exists {
		return fmt.Errorf("transfer %s: %w", request.ID, sentinel.ErrAlreadyExists)
	}
	for _, existing := range s.requests {
		if existing.SourceCredentialID == request.SourceCredentialID &&
			existing.TargetInstitution == request.TargetInstitution &&
			existing.Blocking() {
			return fmt.Errorf("transfer for %s to %s: %w",
				request.SourceCredentialID, request.TargetInstitution, sentinel.ErrAlreadyExists)
		}
	}
	s.requests[request.ID] = request
	return nil
}

// FindByID retrieves a request by id or returns sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, transferID id.TransferID) (models.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if request, ok := s.requests[transferID]; ok {
		return request, nil
	}
	return models.TransferRequest{}, fmt.Errorf("transfer %s: %w", transferID, sentinel.ErrNotFound)
}

// Update replaces a stored request.
func (s *InMemoryStore) Update(_ context.Context, request models.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.ID]; !ok {
		return fmt.Errorf("transfer %s: %w", request.ID, sentinel.ErrNotFound)
	}
	s.requests[request.ID] = request
	return nil
}

// FindBlockingPair returns the pending-or-approved request for the pair, if any.
func (s *InMemoryStore) FindBlockingPair(_ context.Context, source id.CredentialID, targetInstitution string) (models.TransferRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, request := range s.requests {
		if request.SourceCredentialID == source &&
			request.TargetInstitution == targetInstitution &&
			request.Blocking() {
			return request, true, nil
		}
	}
	return models.TransferRequest{}, false, nil
}
