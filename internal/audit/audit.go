// Package audit captures credential lifecycle actions for compliance review.
package audit

import (
	"context"
	"sync"
	"time"

	id "accredo/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	SubjectID id.SubjectID
	Target    string
	Action    Action
	Actor     string
	Reason    string
}

// Action enumerates audited lifecycle actions.
type Action string

const (
	ActionCredentialIssued  Action = "credential_issued"
	ActionCredentialRevoked Action = "credential_revoked"
	ActionTransferRequested Action = "transfer_requested"
	ActionTransferApproved  Action = "transfer_approved"
	ActionTransferRejected  Action = "transfer_rejected"
	ActionListSyncStarted   Action = "revocation_list_sync_started"
)

// Publisher captures audit events. Emission failures are a logging concern for
// the caller, never a reason to fail the underlying operation.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// InMemoryStore is an append-only in-memory audit sink for local use and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryStore constructs an empty audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Emit appends the event, stamping the time if the caller left it zero.
func (s *InMemoryStore) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (s *InMemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
